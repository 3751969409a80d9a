package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
)

func testEntry(id, creatorID, sourceRef string, status domain.EntryStatus, createdAt time.Time) domain.LedgerEntry {
	return domain.LedgerEntry{
		EntryID:        id,
		CreatorID:      creatorID,
		Channel:        domain.ChannelSale,
		Gross:          domain.NewMoney(1000, "EUR"),
		CommissionRate: 1500,
		Commission:     domain.NewMoney(150, "EUR"),
		Net:            domain.NewMoney(850, "EUR"),
		Status:         status,
		SourceRef:      sourceRef,
		CreatedAt:      createdAt,
	}
}

func TestLedgerRepositorySourceRefUniqueness(t *testing.T) {
	t.Parallel()
	repos := NewRepositories()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repos.Ledger.Append(ctx, testEntry("e1", "c1", "order:1", domain.EntryStatusPending, now)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	err := repos.Ledger.Append(ctx, testEntry("e2", "c1", "order:1", domain.EntryStatusPending, now))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate source ref = %v, want ErrConflict", err)
	}

	// Reversing frees the key for a corrected posting.
	if err := repos.Ledger.UpdateStatus(ctx, "e1", domain.EntryStatusPending, domain.EntryStatusReversed, now); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := repos.Ledger.Append(ctx, testEntry("e3", "c1", "order:1", domain.EntryStatusPending, now)); err != nil {
		t.Fatalf("append after reversal: %v", err)
	}

	found, err := repos.Ledger.FindActiveBySourceRef(ctx, "order:1", domain.ChannelSale)
	if err != nil || found.EntryID != "e3" {
		t.Fatalf("FindActiveBySourceRef = (%s, %v), want e3", found.EntryID, err)
	}
}

func TestLedgerRepositoryUpdateStatusGuard(t *testing.T) {
	t.Parallel()
	repos := NewRepositories()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repos.Ledger.Append(ctx, testEntry("e1", "c1", "order:1", domain.EntryStatusPending, now)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	err := repos.Ledger.UpdateStatus(ctx, "e1", domain.EntryStatusAvailable, domain.EntryStatusWithheld, now)
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("stale from-status = %v, want ErrInvalidStateTransition", err)
	}
	if err := repos.Ledger.UpdateStatus(ctx, "missing", domain.EntryStatusPending, domain.EntryStatusAvailable, now); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing entry = %v, want ErrNotFound", err)
	}
}

func TestLedgerRepositoryListByCreator(t *testing.T) {
	t.Parallel()
	repos := NewRepositories()
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"e1", "e2", "e3"} {
		entry := testEntry(id, "c1", "order:"+id, domain.EntryStatusPending, base.Add(time.Duration(i)*time.Minute))
		if err := repos.Ledger.Append(ctx, entry); err != nil {
			t.Fatalf("Append %s: %v", id, err)
		}
	}

	items, err := repos.Ledger.ListByCreator(ctx, "c1", ports.EntryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListByCreator: %v", err)
	}
	if len(items) != 2 || items[0].EntryID != "e3" || items[1].EntryID != "e2" {
		t.Fatalf("unexpected page: %+v", items)
	}

	items, err = repos.Ledger.ListByCreator(ctx, "c1", ports.EntryFilter{Limit: 2, Offset: 2})
	if err != nil || len(items) != 1 || items[0].EntryID != "e1" {
		t.Fatalf("second page = (%+v, %v)", items, err)
	}

	items, err = repos.Ledger.ListByCreator(ctx, "c1", ports.EntryFilter{Status: domain.EntryStatusAvailable})
	if err != nil || len(items) != 0 {
		t.Fatalf("status filter = (%d, %v), want empty", len(items), err)
	}
}

func TestBalanceRepositoryApplyDelta(t *testing.T) {
	t.Parallel()
	repos := NewRepositories()
	ctx := context.Background()
	now := time.Now().UTC()

	snap, err := repos.Balances.Get(ctx, "c1", "EUR")
	if err != nil {
		t.Fatalf("Get on empty store: %v", err)
	}
	if snap.Available != 0 || snap.Pending != 0 {
		t.Fatalf("fresh snapshot not zero: %+v", snap)
	}

	if err := repos.Balances.ApplyDelta(ctx, "c1", "EUR", ports.BalanceDelta{Pending: 850}, now); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if err := repos.Balances.ApplyDelta(ctx, "c1", "EUR", ports.BalanceDelta{Pending: -850, Available: 850}, now); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	snap, _ = repos.Balances.Get(ctx, "c1", "EUR")
	if snap.Available != 850 || snap.Pending != 0 {
		t.Fatalf("snapshot = %+v, want available 850", snap)
	}

	// Currencies are independent buckets.
	if err := repos.Balances.ApplyDelta(ctx, "c1", "USD", ports.BalanceDelta{Available: 5}, now); err != nil {
		t.Fatalf("ApplyDelta USD: %v", err)
	}
	snap, _ = repos.Balances.Get(ctx, "c1", "EUR")
	if snap.Available != 850 {
		t.Fatalf("EUR bucket changed: %+v", snap)
	}
}

func TestIdempotencyRepository(t *testing.T) {
	t.Parallel()
	repos := NewRepositories()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repos.Idempotency.Reserve(ctx, "key-1", "hash-a", now.Add(time.Hour)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	// Re-reserving with the same hash is a no-op.
	if err := repos.Idempotency.Reserve(ctx, "key-1", "hash-a", now.Add(time.Hour)); err != nil {
		t.Fatalf("repeat Reserve: %v", err)
	}
	// A different payload under the same key conflicts.
	err := repos.Idempotency.Reserve(ctx, "key-1", "hash-b", now.Add(time.Hour))
	if !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("hash mismatch = %v, want ErrIdempotencyConflict", err)
	}

	if err := repos.Idempotency.Complete(ctx, "key-1", 201, []byte(`{"ok":true}`), now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	rec, err := repos.Idempotency.Get(ctx, "key-1", now)
	if err != nil || rec == nil {
		t.Fatalf("Get = (%v, %v)", rec, err)
	}
	if rec.ResponseCode != 201 || string(rec.ResponseBody) != `{"ok":true}` {
		t.Fatalf("record = %+v", rec)
	}

	// Expired records vanish.
	rec, err = repos.Idempotency.Get(ctx, "key-1", now.Add(2*time.Hour))
	if err != nil || rec != nil {
		t.Fatalf("expired Get = (%v, %v), want (nil, nil)", rec, err)
	}
}

func TestRunLock(t *testing.T) {
	t.Parallel()
	lock := NewRunLock()
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "batch", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = lock.Acquire(ctx, "batch", time.Minute)
	if err != nil || ok {
		t.Fatalf("second Acquire = (%v, %v), want (false, nil)", ok, err)
	}
	// Other keys are unaffected.
	ok, err = lock.Acquire(ctx, "other", time.Minute)
	if err != nil || !ok {
		t.Fatalf("other key = (%v, %v), want (true, nil)", ok, err)
	}

	if err := lock.Release(ctx, "batch"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	ok, err = lock.Acquire(ctx, "batch", time.Minute)
	if err != nil || !ok {
		t.Fatalf("reacquire after release = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestOutboxRepository(t *testing.T) {
	t.Parallel()
	repos := NewRepositories()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"r1", "r2"} {
		if err := repos.Outbox.Enqueue(ctx, ports.OutboxRecord{RecordID: id, CreatedAt: now}); err != nil {
			t.Fatalf("Enqueue %s: %v", id, err)
		}
	}
	pending, err := repos.Outbox.ListPending(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("ListPending = (%d, %v), want 2", len(pending), err)
	}
	if err := repos.Outbox.MarkSent(ctx, "r1", now); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	pending, err = repos.Outbox.ListPending(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].RecordID != "r2" {
		t.Fatalf("after MarkSent = (%+v, %v), want only r2", pending, err)
	}

	// Failed publishes keep the record pending and count attempts.
	for i := 0; i < 3; i++ {
		if err := repos.Outbox.MarkFailed(ctx, "r2", now); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
	}
	pending, err = repos.Outbox.ListPending(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("after MarkFailed = (%d, %v), want 1 pending", len(pending), err)
	}
	if pending[0].Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", pending[0].Attempts)
	}
}

func TestPayoutRepositoryUpdateStateGuard(t *testing.T) {
	t.Parallel()
	repos := NewRepositories()
	ctx := context.Background()

	request := domain.PayoutRequest{
		RequestID: "pr-1",
		CreatorID: "creator-1",
		Amount:    domain.NewMoney(1500, "EUR"),
		Method:    domain.PayoutMethodSEPA,
		State:     domain.PayoutStateRequested,
	}
	if err := repos.Payouts.Create(ctx, request); err != nil {
		t.Fatalf("Create: %v", err)
	}

	queued := request
	queued.State = domain.PayoutStateQueued
	if err := repos.Payouts.Update(ctx, queued, domain.PayoutStateRequested); err != nil {
		t.Fatalf("Update from requested: %v", err)
	}

	// A writer holding a stale view of the state must not win.
	stale := request
	stale.State = domain.PayoutStateFailed
	if err := repos.Payouts.Update(ctx, stale, domain.PayoutStateRequested); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("stale update = %v, want ErrInvalidStateTransition", err)
	}
	current, err := repos.Payouts.GetByID(ctx, "pr-1")
	if err != nil || current.State != domain.PayoutStateQueued {
		t.Fatalf("state = (%s, %v), want queued intact", current.State, err)
	}

	missing := request
	missing.RequestID = "pr-missing"
	if err := repos.Payouts.Update(ctx, missing, domain.PayoutStateRequested); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing update = %v, want ErrNotFound", err)
	}
}

func TestStreamRepositoryWindowBounds(t *testing.T) {
	t.Parallel()
	repos := NewRepositories()
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{start, start.Add(12 * time.Hour), end} {
		err := repos.Streams.Record(ctx, domain.StreamRecord{
			StreamID:        string(rune('a' + i)),
			TrackID:         "track-w",
			CreatorID:       "creator-w",
			DurationSeconds: 45,
			IsComplete:      true,
			StreamedAt:      at,
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	// The window is half-open: the start boundary counts, the end boundary
	// belongs to the next period.
	count, err := repos.Streams.CountCompleted(ctx, "track-w", start, end)
	if err != nil || count != 2 {
		t.Fatalf("CountCompleted = (%d, %v), want 2", count, err)
	}
	count, err = repos.Streams.CountCompleted(ctx, "track-w", end, end.AddDate(0, 1, 0))
	if err != nil || count != 1 {
		t.Fatalf("next period count = (%d, %v), want 1", count, err)
	}

	tracks, err := repos.Streams.TracksWithCompleted(ctx, end, end.AddDate(0, 1, 0))
	if err != nil || len(tracks) != 1 || tracks[0].TrackID != "track-w" {
		t.Fatalf("TracksWithCompleted = (%+v, %v), want track-w", tracks, err)
	}
}
