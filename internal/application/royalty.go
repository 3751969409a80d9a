package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/revenue-ledger/internal/domain"
)

func (s *Service) RecordStream(ctx context.Context, actor Actor, input RecordStreamInput) (domain.StreamRecord, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.StreamRecord{}, domain.ErrUnauthorized
	}
	input.TrackID = strings.TrimSpace(input.TrackID)
	input.CreatorID = strings.TrimSpace(input.CreatorID)
	if input.TrackID == "" || input.CreatorID == "" {
		return domain.StreamRecord{}, domain.ErrInvalidInput
	}
	if input.DurationSeconds < 0 {
		return domain.StreamRecord{}, domain.ErrInvalidInput
	}
	streamedAt := input.StreamedAt
	if streamedAt.IsZero() {
		streamedAt = s.nowFn()
	}
	stream := domain.StreamRecord{
		StreamID:        uuid.NewString(),
		TrackID:         input.TrackID,
		CreatorID:       input.CreatorID,
		ListenerID:      strings.TrimSpace(input.ListenerID),
		DurationSeconds: input.DurationSeconds,
		IsComplete:      input.DurationSeconds >= domain.CompleteStreamSeconds,
		StreamedAt:      streamedAt.UTC(),
	}
	if err := s.streams.Record(ctx, stream); err != nil {
		return domain.StreamRecord{}, err
	}
	return stream, nil
}

// CloseRoyaltyPeriod turns completed-stream counts into one payable royalty
// entry per (track, period). The run-level lock prevents two instances from
// grinding through the same period; the (track, period) ledger key makes a
// concurrent or resumed run harmless anyway. A track whose computation fails
// is logged and skipped without blocking the rest of the batch.
func (s *Service) CloseRoyaltyPeriod(ctx context.Context, actor Actor, periodStart, periodEnd time.Time) ([]domain.LedgerEntry, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if periodStart.IsZero() || periodEnd.IsZero() || !periodEnd.After(periodStart) {
		return nil, domain.ErrInvalidInput
	}
	periodStart = periodStart.UTC()
	periodEnd = periodEnd.UTC()

	lockKey := fmt.Sprintf("royalty:%d:%d", periodStart.Unix(), periodEnd.Unix())
	if s.runLock != nil {
		acquired, err := s.runLock.Acquire(ctx, lockKey, s.cfg.RunLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire royalty run lock: %w", err)
		}
		if !acquired {
			return nil, domain.ErrBatchAlreadyRunning
		}
		defer func() { _ = s.runLock.Release(ctx, lockKey) }()
	}

	tracks, err := s.streams.TracksWithCompleted(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		entries []domain.LedgerEntry
		failed  int
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, s.cfg.RoyaltyBatchParallelism)
	for _, track := range tracks {
		wg.Add(1)
		sem <- struct{}{}
		go func(track string, creator string) {
			defer wg.Done()
			defer func() { <-sem }()
			entry, err := s.closeTrackPeriod(ctx, track, creator, periodStart, periodEnd)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				s.logger.ErrorContext(ctx, "royalty computation skipped track", "track_id", track, "period_start", periodStart, "period_end", periodEnd, "error", err)
				return
			}
			entries = append(entries, entry)
		}(track.TrackID, track.CreatorID)
	}
	wg.Wait()

	if err := s.enqueueEvent(ctx, domain.EventRoyaltyPeriodClosed, lockKey, map[string]any{
		"period_start":  periodStart.Format(time.RFC3339),
		"period_end":    periodEnd.Format(time.RFC3339),
		"tracks_closed": len(entries),
		"tracks_failed": failed,
	}); err != nil {
		return entries, err
	}
	return entries, nil
}

func (s *Service) closeTrackPeriod(ctx context.Context, trackID, creatorID string, periodStart, periodEnd time.Time) (domain.LedgerEntry, error) {
	// Already-closed periods resolve to their existing entry; re-running the
	// batch is a no-op per track.
	if existing, err := s.royalties.Get(ctx, trackID, periodStart, periodEnd); err == nil {
		return s.ledger.GetByID(ctx, existing.EntryID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.LedgerEntry{}, err
	}

	totalStreams, err := s.streams.CountCompleted(ctx, trackID, periodStart, periodEnd)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if totalStreams <= 0 {
		return domain.LedgerEntry{}, domain.ErrNotFound
	}

	ratePer1K := domain.NewMoney(s.cfg.RoyaltyRatePer1KMinor, s.cfg.DefaultCurrency)
	gross := domain.RoyaltyGross(totalStreams, ratePer1K)
	if !gross.IsPositive() {
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}
	rate, err := s.commissionRateFor(ctx, domain.ChannelStreamingRoyalty, nil, periodEnd)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	now := s.nowFn()
	s.creatorLocks.Lock(creatorID)
	entry, err := s.postEntry(ctx, entrySpec{
		creatorID:   creatorID,
		channel:     domain.ChannelStreamingRoyalty,
		gross:       gross,
		rate:        rate,
		availableAt: now,
		sourceRef:   domain.RoyaltySourceRef(trackID, periodStart, periodEnd),
		metadata: map[string]string{
			"track_id":      trackID,
			"total_streams": fmt.Sprintf("%d", totalStreams),
		},
	})
	s.creatorLocks.Unlock(creatorID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	period := domain.RoyaltyPeriod{
		TrackID:      trackID,
		CreatorID:    creatorID,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		TotalStreams: totalStreams,
		RatePer1K:    ratePer1K,
		Gross:        gross,
		EntryID:      entry.EntryID,
		ClosedAt:     now,
	}
	if err := s.royalties.Create(ctx, period); err != nil && !errors.Is(err, domain.ErrConflict) {
		return domain.LedgerEntry{}, err
	}
	return entry, nil
}

func (s *Service) ListRoyaltyPeriods(ctx context.Context, actor Actor, creatorID string, limit int) ([]domain.RoyaltyPeriod, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !actor.IsAdmin() && actor.SubjectID != creatorID {
		return nil, domain.ErrForbidden
	}
	if limit <= 0 {
		limit = 50
	}
	return s.royalties.ListByCreator(ctx, creatorID, limit)
}
