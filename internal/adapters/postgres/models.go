package postgres

import "time"

type ledgerEntryModel struct {
	EntryID           string    `gorm:"column:entry_id;primaryKey"`
	CreatorID         string    `gorm:"column:creator_id;index"`
	Channel           string    `gorm:"column:channel"`
	GrossMinor        int64     `gorm:"column:gross_minor"`
	CommissionRateBPS int64     `gorm:"column:commission_rate_bps"`
	CommissionMinor   int64     `gorm:"column:commission_minor"`
	NetMinor          int64     `gorm:"column:net_minor"`
	Currency          string    `gorm:"column:currency"`
	Status            string    `gorm:"column:status"`
	AvailableAt       time.Time `gorm:"column:available_at"`
	SourceRef         string    `gorm:"column:source_ref"`
	ReversalOf        string    `gorm:"column:reversal_of"`
	Reason            string    `gorm:"column:reason"`
	Metadata          string    `gorm:"column:metadata"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

func (ledgerEntryModel) TableName() string { return "ledger_entries" }

type balanceModel struct {
	CreatorID      string    `gorm:"column:creator_id;primaryKey"`
	Currency       string    `gorm:"column:currency;primaryKey"`
	AvailableMinor int64     `gorm:"column:available_minor"`
	PendingMinor   int64     `gorm:"column:pending_minor"`
	WithheldMinor  int64     `gorm:"column:withheld_minor"`
	ReservedMinor  int64     `gorm:"column:reserved_minor"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (balanceModel) TableName() string { return "balances" }

type channelTotalModel struct {
	CreatorID  string `gorm:"column:creator_id;primaryKey"`
	Channel    string `gorm:"column:channel;primaryKey"`
	Currency   string `gorm:"column:currency;primaryKey"`
	GrossTotal int64  `gorm:"column:gross_total_minor"`
	NetTotal   int64  `gorm:"column:net_total_minor"`
	EntryCount int64  `gorm:"column:entry_count"`
}

func (channelTotalModel) TableName() string { return "channel_totals" }

type escrowHoldModel struct {
	HoldID                  string     `gorm:"column:hold_id;primaryKey"`
	OrderID                 string     `gorm:"column:order_id;uniqueIndex"`
	BuyerID                 string     `gorm:"column:buyer_id"`
	CreatorID               string     `gorm:"column:creator_id;index"`
	AmountMinor             int64      `gorm:"column:amount_minor"`
	Currency                string     `gorm:"column:currency"`
	State                   string     `gorm:"column:state"`
	AutoReleaseDelaySeconds int64      `gorm:"column:auto_release_delay_seconds"`
	DeliveredAt             *time.Time `gorm:"column:delivered_at"`
	AutoReleaseAt           *time.Time `gorm:"column:auto_release_at"`
	DisputeReason           string     `gorm:"column:dispute_reason"`
	Resolution              string     `gorm:"column:resolution"`
	CreatedAt               time.Time  `gorm:"column:created_at"`
	UpdatedAt               time.Time  `gorm:"column:updated_at"`
	ClosedAt                *time.Time `gorm:"column:closed_at"`
}

func (escrowHoldModel) TableName() string { return "escrow_holds" }

type streamModel struct {
	StreamID        string    `gorm:"column:stream_id;primaryKey"`
	TrackID         string    `gorm:"column:track_id;index"`
	CreatorID       string    `gorm:"column:creator_id"`
	ListenerID      string    `gorm:"column:listener_id"`
	DurationSeconds int       `gorm:"column:duration_seconds"`
	IsComplete      bool      `gorm:"column:is_complete"`
	StreamedAt      time.Time `gorm:"column:streamed_at"`
}

func (streamModel) TableName() string { return "streams" }

type royaltyPeriodModel struct {
	TrackID        string    `gorm:"column:track_id;primaryKey"`
	PeriodStart    time.Time `gorm:"column:period_start;primaryKey"`
	PeriodEnd      time.Time `gorm:"column:period_end;primaryKey"`
	CreatorID      string    `gorm:"column:creator_id;index"`
	TotalStreams   int64     `gorm:"column:total_streams"`
	RatePer1KMinor int64     `gorm:"column:rate_per_1k_minor"`
	GrossMinor     int64     `gorm:"column:gross_minor"`
	Currency       string    `gorm:"column:currency"`
	EntryID        string    `gorm:"column:entry_id"`
	ClosedAt       time.Time `gorm:"column:closed_at"`
}

func (royaltyPeriodModel) TableName() string { return "royalty_periods" }

type payoutModel struct {
	RequestID     string     `gorm:"column:request_id;primaryKey"`
	CreatorID     string     `gorm:"column:creator_id;index"`
	AmountMinor   int64      `gorm:"column:amount_minor"`
	Currency      string     `gorm:"column:currency"`
	Method        string     `gorm:"column:method"`
	State         string     `gorm:"column:state;index"`
	KYCVerified   bool       `gorm:"column:kyc_verified"`
	FailureReason string     `gorm:"column:failure_reason"`
	Attempts      int        `gorm:"column:attempts"`
	RequestedAt   time.Time  `gorm:"column:requested_at"`
	QueuedAt      *time.Time `gorm:"column:queued_at"`
	ProcessingAt  *time.Time `gorm:"column:processing_at"`
	SettledAt     *time.Time `gorm:"column:settled_at"`
	FailedAt      *time.Time `gorm:"column:failed_at"`
	QuarantinedAt *time.Time `gorm:"column:quarantined_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (payoutModel) TableName() string { return "payout_requests" }

type rateChangeModel struct {
	ChangeID    string    `gorm:"column:change_id;primaryKey"`
	Channel     string    `gorm:"column:channel;index"`
	RateBPS     int64     `gorm:"column:rate_bps"`
	EffectiveAt time.Time `gorm:"column:effective_at"`
	Signature   string    `gorm:"column:signature"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (rateChangeModel) TableName() string { return "rate_changes" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "idempotency_keys" }

type outboxModel struct {
	RecordID   string     `gorm:"column:record_id;primaryKey"`
	EventClass string     `gorm:"column:event_class"`
	Envelope   string     `gorm:"column:envelope"`
	Attempts   int        `gorm:"column:attempts"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	SentAt     *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string { return "event_outbox" }
