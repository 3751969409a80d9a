package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic"`
	TraceID       string        `json:"trace_id"`
}

type EntryRecordedPayload struct {
	EntryID     string `json:"entry_id"`
	CreatorID   string `json:"creator_id"`
	Channel     string `json:"channel"`
	GrossMinor  int64  `json:"gross_minor"`
	NetMinor    int64  `json:"net_minor"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	SourceRef   string `json:"source_ref"`
	AvailableAt string `json:"available_at"`
}

type EntryReversedPayload struct {
	EntryID      string `json:"entry_id"`
	ReversalID   string `json:"reversal_id"`
	CreatorID    string `json:"creator_id"`
	Channel      string `json:"channel"`
	NetMinor     int64  `json:"net_minor"`
	Currency     string `json:"currency"`
	Reason       string `json:"reason"`
	ReversedFrom string `json:"reversed_from_status"`
}

type EscrowHoldPayload struct {
	HoldID      string `json:"hold_id"`
	OrderID     string `json:"order_id"`
	BuyerID     string `json:"buyer_id"`
	CreatorID   string `json:"creator_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	State       string `json:"state"`
}

type RoyaltyPeriodClosedPayload struct {
	PeriodStart  string `json:"period_start"`
	PeriodEnd    string `json:"period_end"`
	TracksClosed int    `json:"tracks_closed"`
	TracksFailed int    `json:"tracks_failed"`
	CreatorID    string `json:"creator_id,omitempty"`
}

type PayoutPayload struct {
	RequestID   string `json:"request_id"`
	CreatorID   string `json:"creator_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	State       string `json:"state"`
	Reason      string `json:"reason,omitempty"`
}
