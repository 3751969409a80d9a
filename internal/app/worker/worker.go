// Package worker drives the service's periodic jobs: flushing the event
// outbox, promoting matured pending entries, sweeping expired escrow holds
// and running the payout batch. It also drains the domain event stream when
// a consumer is configured.
package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/viralforge/revenue-ledger/internal/application"
	"github.com/viralforge/revenue-ledger/internal/contracts"
	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
)

type Worker struct {
	logger   *slog.Logger
	service  *application.Service
	consumer ports.EventConsumer
	dlq      ports.DLQPublisher

	outboxInterval time.Duration
	matureInterval time.Duration
	escrowInterval time.Duration
	payoutInterval time.Duration
}

type Config struct {
	OutboxInterval time.Duration
	MatureInterval time.Duration
	EscrowInterval time.Duration
	PayoutInterval time.Duration

	// Consumer is optional; when set, Run also drains the domain event
	// stream and routes malformed envelopes to the DLQ.
	Consumer ports.EventConsumer
	DLQ      ports.DLQPublisher
}

func New(logger *slog.Logger, service *application.Service, cfg Config) *Worker {
	if cfg.OutboxInterval <= 0 {
		cfg.OutboxInterval = 2 * time.Second
	}
	if cfg.MatureInterval <= 0 {
		cfg.MatureInterval = time.Minute
	}
	if cfg.EscrowInterval <= 0 {
		cfg.EscrowInterval = 5 * time.Minute
	}
	if cfg.PayoutInterval <= 0 {
		cfg.PayoutInterval = time.Hour
	}
	return &Worker{
		logger:         logger,
		service:        service,
		consumer:       cfg.Consumer,
		dlq:            cfg.DLQ,
		outboxInterval: cfg.OutboxInterval,
		matureInterval: cfg.MatureInterval,
		escrowInterval: cfg.EscrowInterval,
		payoutInterval: cfg.PayoutInterval,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	if w.consumer != nil {
		go w.consumeLoop(ctx)
	}

	outbox := time.NewTicker(w.outboxInterval)
	mature := time.NewTicker(w.matureInterval)
	escrow := time.NewTicker(w.escrowInterval)
	payout := time.NewTicker(w.payoutInterval)
	defer outbox.Stop()
	defer mature.Stop()
	defer escrow.Stop()
	defer payout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-outbox.C:
			if err := w.service.FlushOutbox(ctx); err != nil {
				w.logFailure(ctx, "flush_outbox", err)
			}
		case <-mature.C:
			if _, err := w.service.PromoteMatured(ctx, time.Now().UTC()); err != nil {
				w.logFailure(ctx, "promote_matured", err)
			}
		case <-escrow.C:
			if _, err := w.service.ReleaseExpired(ctx, time.Now().UTC()); err != nil {
				w.logFailure(ctx, "release_expired", err)
			}
		case <-payout.C:
			if _, err := w.service.ProcessPayoutBatch(ctx); err != nil && !errors.Is(err, domain.ErrBatchAlreadyRunning) {
				w.logFailure(ctx, "process_payout_batch", err)
			}
		}
	}
}

// consumeLoop drains the domain event stream. Events land here after the
// outbox published them; the loop records them as the service's audit trail
// and routes envelopes it cannot place to the DLQ.
func (w *Worker) consumeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		envelope, err := w.consumer.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return
			}
			w.logFailure(ctx, "consume_event", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.handleEvent(ctx, *envelope)
	}
}

func (w *Worker) handleEvent(ctx context.Context, envelope contracts.EventEnvelope) {
	if strings.TrimSpace(envelope.EventType) == "" || strings.TrimSpace(envelope.PartitionKey) == "" {
		now := time.Now().UTC()
		if w.dlq != nil {
			if err := w.dlq.PublishDLQ(ctx, contracts.DLQRecord{
				OriginalEvent: envelope,
				ErrorSummary:  "envelope missing event type or partition key",
				RetryCount:    0,
				FirstSeenAt:   now,
				LastErrorAt:   now,
				TraceID:       envelope.TraceID,
			}); err != nil {
				w.logFailure(ctx, "publish_dlq", err)
			}
		}
		return
	}
	w.logger.InfoContext(ctx, "domain event observed",
		"module", "worker",
		"layer", "app",
		"operation", "consume_event",
		"event_id", envelope.EventID,
		"event_type", envelope.EventType,
		"partition_key", envelope.PartitionKey,
	)
}

func (w *Worker) logFailure(ctx context.Context, operation string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	w.logger.ErrorContext(ctx, "worker iteration failed",
		"module", "worker",
		"layer", "app",
		"operation", operation,
		"outcome", "failure",
		"error", err,
	)
}
