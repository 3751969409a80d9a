package ports

import (
	"context"
	"time"

	"github.com/viralforge/revenue-ledger/internal/contracts"
)

type OutboxRecord struct {
	RecordID   string
	EventClass string
	Envelope   contracts.EventEnvelope
	Attempts   int
	CreatedAt  time.Time
	SentAt     *time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, recordID string, at time.Time) error
	// MarkFailed increments the publish attempt counter and keeps the
	// record pending for the next flush.
	MarkFailed(ctx context.Context, recordID string, at time.Time) error
}

type DomainPublisher interface {
	PublishDomain(ctx context.Context, event contracts.EventEnvelope) error
}

type AnalyticsPublisher interface {
	PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error
}

type DLQPublisher interface {
	PublishDLQ(ctx context.Context, record contracts.DLQRecord) error
}

type EventConsumer interface {
	Receive(ctx context.Context) (*contracts.EventEnvelope, error)
}
