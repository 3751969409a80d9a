package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/revenue-ledger/internal/contracts"
	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
)

func (s *Service) enqueueEvent(ctx context.Context, eventType, partitionKey string, payload any) error {
	if s.outbox == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	now := s.nowFn()
	return s.outbox.Enqueue(ctx, ports.OutboxRecord{
		RecordID:   uuid.NewString(),
		EventClass: domain.CanonicalEventClass(eventType),
		Envelope: contracts.EventEnvelope{
			EventID:          uuid.NewString(),
			EventType:        eventType,
			EventClass:       domain.CanonicalEventClass(eventType),
			OccurredAt:       now,
			PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
			PartitionKey:     partitionKey,
			SourceService:    s.cfg.ServiceName,
			SchemaVersion:    "v1",
			Data:             data,
		},
		CreatedAt: now,
	})
}

func (s *Service) enqueueEntryRecorded(ctx context.Context, entry domain.LedgerEntry) error {
	return s.enqueueEvent(ctx, domain.EventEntryRecorded, entry.CreatorID, contracts.EntryRecordedPayload{
		EntryID:     entry.EntryID,
		CreatorID:   entry.CreatorID,
		Channel:     string(entry.Channel),
		GrossMinor:  entry.Gross.Amount,
		NetMinor:    entry.Net.Amount,
		Currency:    entry.Net.Currency,
		Status:      string(entry.Status),
		SourceRef:   entry.SourceRef,
		AvailableAt: entry.AvailableAt.Format(time.RFC3339),
	})
}

func (s *Service) enqueueEntryAvailable(ctx context.Context, entry domain.LedgerEntry) error {
	return s.enqueueEvent(ctx, domain.EventEntryAvailable, entry.CreatorID, contracts.EntryRecordedPayload{
		EntryID:    entry.EntryID,
		CreatorID:  entry.CreatorID,
		Channel:    string(entry.Channel),
		GrossMinor: entry.Gross.Amount,
		NetMinor:   entry.Net.Amount,
		Currency:   entry.Net.Currency,
		Status:     string(domain.EntryStatusAvailable),
		SourceRef:  entry.SourceRef,
	})
}

func (s *Service) enqueueEntryReversed(ctx context.Context, original, compensating domain.LedgerEntry, reason string, priorStatus domain.EntryStatus) error {
	return s.enqueueEvent(ctx, domain.EventEntryReversed, original.CreatorID, contracts.EntryReversedPayload{
		EntryID:      original.EntryID,
		ReversalID:   compensating.EntryID,
		CreatorID:    original.CreatorID,
		Channel:      string(original.Channel),
		NetMinor:     original.Net.Amount,
		Currency:     original.Net.Currency,
		Reason:       reason,
		ReversedFrom: string(priorStatus),
	})
}

func (s *Service) enqueueHoldEvent(ctx context.Context, eventType string, hold domain.EscrowHold) error {
	return s.enqueueEvent(ctx, eventType, hold.CreatorID, contracts.EscrowHoldPayload{
		HoldID:      hold.HoldID,
		OrderID:     hold.OrderID,
		BuyerID:     hold.BuyerID,
		CreatorID:   hold.CreatorID,
		AmountMinor: hold.Amount.Amount,
		Currency:    hold.Amount.Currency,
		State:       string(hold.State),
	})
}

func (s *Service) enqueuePayoutEvent(ctx context.Context, eventType string, request domain.PayoutRequest) error {
	return s.enqueueEvent(ctx, eventType, request.CreatorID, contracts.PayoutPayload{
		RequestID:   request.RequestID,
		CreatorID:   request.CreatorID,
		AmountMinor: request.Amount.Amount,
		Currency:    request.Amount.Currency,
		Method:      string(request.Method),
		State:       string(request.State),
		Reason:      request.FailureReason,
	})
}

// FlushOutbox pushes pending outbox records to the configured publishers.
// Records that fail to publish stay pending for the next flush; a record
// that keeps failing is handed to the dead letter queue once its attempt
// count reaches the configured ceiling, so no event is ever silently lost.
func (s *Service) FlushOutbox(ctx context.Context) error {
	if s.outbox == nil {
		return nil
	}
	pending, err := s.outbox.ListPending(ctx, s.cfg.OutboxFlushBatchSize)
	if err != nil {
		return err
	}
	for _, record := range pending {
		var pubErr error
		switch record.EventClass {
		case domain.CanonicalEventClassAnalyticsOnly:
			if s.analytics != nil {
				pubErr = s.analytics.PublishAnalytics(ctx, record.Envelope)
			}
		default:
			if s.domainEvents != nil {
				pubErr = s.domainEvents.PublishDomain(ctx, record.Envelope)
			}
		}
		if pubErr != nil {
			s.logger.ErrorContext(ctx, "outbox publish failed", "record_id", record.RecordID, "event_type", record.Envelope.EventType, "attempts", record.Attempts+1, "error", pubErr)
			if err := s.outbox.MarkFailed(ctx, record.RecordID, s.nowFn()); err != nil {
				return err
			}
			if record.Attempts+1 >= s.cfg.OutboxMaxAttempts {
				if err := s.deadLetterOutboxRecord(ctx, record, pubErr); err != nil {
					return err
				}
			}
			continue
		}
		if err := s.outbox.MarkSent(ctx, record.RecordID, s.nowFn()); err != nil {
			return err
		}
	}
	return nil
}

// deadLetterOutboxRecord parks an undeliverable record on the DLQ and
// retires it from the pending set.
func (s *Service) deadLetterOutboxRecord(ctx context.Context, record ports.OutboxRecord, pubErr error) error {
	if s.dlq == nil {
		return nil
	}
	now := s.nowFn()
	if err := s.dlq.PublishDLQ(ctx, contracts.DLQRecord{
		OriginalEvent: record.Envelope,
		ErrorSummary:  pubErr.Error(),
		RetryCount:    record.Attempts + 1,
		FirstSeenAt:   record.CreatedAt,
		LastErrorAt:   now,
		TraceID:       record.Envelope.TraceID,
	}); err != nil {
		return fmt.Errorf("publish dlq record %s: %w", record.RecordID, err)
	}
	s.logger.WarnContext(ctx, "outbox record dead lettered", "record_id", record.RecordID, "event_type", record.Envelope.EventType, "attempts", record.Attempts+1)
	return s.outbox.MarkSent(ctx, record.RecordID, now)
}
