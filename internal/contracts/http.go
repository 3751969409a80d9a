package contracts

import "time"

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type RecordRevenueEventRequest struct {
	CreatorID         string            `json:"creator_id"`
	Channel           string            `json:"channel"`
	GrossMinor        int64             `json:"gross_minor"`
	Currency          string            `json:"currency"`
	SourceRef         string            `json:"source_ref"`
	CommissionRateBPS *int64            `json:"commission_rate_bps,omitempty"`
	OccurredAt        time.Time         `json:"occurred_at,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type ReverseEntryRequest struct {
	Reason string `json:"reason"`
}

type MoneyView struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Display     string `json:"display"`
}

type ChannelBreakdown struct {
	Channel    string    `json:"channel"`
	Gross      MoneyView `json:"gross"`
	Net        MoneyView `json:"net"`
	EntryCount int64     `json:"entry_count"`
}

type LedgerSummaryResponse struct {
	CreatorID string             `json:"creator_id"`
	Available MoneyView          `json:"available"`
	Pending   MoneyView          `json:"pending"`
	Withheld  MoneyView          `json:"withheld"`
	Reserved  MoneyView          `json:"reserved"`
	Channels  []ChannelBreakdown `json:"per_channel_breakdown"`
	AsOf      time.Time          `json:"as_of"`
}

type CreateEscrowOrderRequest struct {
	OrderID          string `json:"order_id"`
	BuyerID          string `json:"buyer_id"`
	CreatorID        string `json:"creator_id"`
	AmountMinor      int64  `json:"amount_minor"`
	Currency         string `json:"currency"`
	AutoReleaseHours int    `json:"auto_release_hours,omitempty"`
}

type DisputeOrderRequest struct {
	Reason string `json:"reason"`
}

type ResolveDisputeRequest struct {
	Decision string `json:"decision"` // release | refund
	Note     string `json:"note,omitempty"`
}

type RecordStreamRequest struct {
	TrackID         string    `json:"track_id"`
	CreatorID       string    `json:"creator_id"`
	ListenerID      string    `json:"listener_id"`
	DurationSeconds int       `json:"duration_seconds"`
	StreamedAt      time.Time `json:"streamed_at,omitempty"`
}

type CloseRoyaltyPeriodRequest struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type RequestPayoutRequest struct {
	CreatorID   string `json:"creator_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
}

type QuarantinePayoutRequest struct {
	Reason string `json:"reason"`
}

type ScheduleRateChangeRequest struct {
	Channel     string    `json:"channel"`
	RateBPS     int64     `json:"rate_bps"`
	EffectiveAt time.Time `json:"effective_at"`
	Signature   string    `json:"signature"`
}
