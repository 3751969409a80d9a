package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
)

// racingPayoutRepo fires a hook once, right after the batch lists requested
// payouts, so a state change can land between the batch's read and its write.
type racingPayoutRepo struct {
	ports.PayoutRepository
	mu              sync.Mutex
	onListRequested func()
}

func (r *racingPayoutRepo) ListByState(ctx context.Context, state domain.PayoutState, limit int) ([]domain.PayoutRequest, error) {
	out, err := r.PayoutRepository.ListByState(ctx, state, limit)
	if state == domain.PayoutStateRequested {
		r.mu.Lock()
		hook := r.onListRequested
		r.onListRequested = nil
		r.mu.Unlock()
		if hook != nil {
			hook()
		}
	}
	return out, err
}

func TestRequestPayout(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	ctx := context.Background()
	f.seedAvailable(t, "creator-p", 1200)

	_, err := f.svc.RequestPayout(ctx, creatorActor("creator-p", "pay-1"), RequestPayoutInput{
		CreatorID:   "creator-p",
		AmountMinor: 1500,
		Method:      domain.PayoutMethodSEPA,
	})
	requireErr(t, err, domain.ErrInsufficientBalance)

	_, err = f.svc.RequestPayout(ctx, creatorActor("creator-p", "pay-2"), RequestPayoutInput{
		CreatorID:   "creator-p",
		AmountMinor: 999,
		Method:      domain.PayoutMethodSEPA,
	})
	requireErr(t, err, domain.ErrBelowThreshold)

	request, err := f.svc.RequestPayout(ctx, creatorActor("creator-p", "pay-3"), RequestPayoutInput{
		CreatorID:   "creator-p",
		AmountMinor: 1000,
		Method:      domain.PayoutMethodSEPA,
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if request.State != domain.PayoutStateRequested {
		t.Fatalf("state = %s, want requested", request.State)
	}

	summary, err := f.svc.LedgerSummary(ctx, adminActor(""), "creator-p")
	if err != nil {
		t.Fatalf("LedgerSummary: %v", err)
	}
	if summary.Available.AmountMinor != 200 || summary.Reserved.AmountMinor != 1000 {
		t.Fatalf("available/reserved = %d/%d, want 200/1000", summary.Available.AmountMinor, summary.Reserved.AmountMinor)
	}

	_, err = f.svc.RequestPayout(ctx, creatorActor("creator-p", "pay-4"), RequestPayoutInput{
		CreatorID:   "creator-p",
		AmountMinor: 1000,
		Method:      domain.PayoutMethodSEPA,
	})
	requireErr(t, err, domain.ErrRequestAlreadyPending)
}

func TestRequestPayoutGuards(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	ctx := context.Background()
	f.seedAvailable(t, "creator-g", 5000)

	if _, err := f.svc.RequestPayout(ctx, creatorActor("other", "g-1"), RequestPayoutInput{CreatorID: "creator-g", AmountMinor: 1000, Method: domain.PayoutMethodSEPA}); err != domain.ErrForbidden {
		t.Fatalf("cross-creator payout = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.RequestPayout(ctx, Actor{SubjectID: "creator-g"}, RequestPayoutInput{CreatorID: "creator-g", AmountMinor: 1000, Method: domain.PayoutMethodSEPA}); err != domain.ErrIdempotencyRequired {
		t.Fatalf("missing key = %v, want ErrIdempotencyRequired", err)
	}
	if _, err := f.svc.RequestPayout(ctx, creatorActor("creator-g", "g-2"), RequestPayoutInput{CreatorID: "creator-g", AmountMinor: 1000, Method: "cheque"}); err != domain.ErrInvalidInput {
		t.Fatalf("bad method = %v, want ErrInvalidInput", err)
	}

	f.kyc.verified = false
	_, err := f.svc.RequestPayout(ctx, creatorActor("creator-g", "g-3"), RequestPayoutInput{CreatorID: "creator-g", AmountMinor: 1000, Method: domain.PayoutMethodSEPA})
	requireErr(t, err, domain.ErrKYCRequired)
}

func TestRequestPayoutIdempotentReplay(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	ctx := context.Background()
	f.seedAvailable(t, "creator-r", 3000)
	input := RequestPayoutInput{CreatorID: "creator-r", AmountMinor: 1000, Method: domain.PayoutMethodSEPA}

	first, err := f.svc.RequestPayout(ctx, creatorActor("creator-r", "same"), input)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	replay, err := f.svc.RequestPayout(ctx, creatorActor("creator-r", "same"), input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.RequestID != first.RequestID {
		t.Fatal("replay created a second request")
	}

	// The reservation was taken once.
	summary, _ := f.svc.LedgerSummary(ctx, adminActor(""), "creator-r")
	if summary.Reserved.AmountMinor != 1000 {
		t.Fatalf("reserved = %d, want 1000", summary.Reserved.AmountMinor)
	}
}

func TestRequestPayoutConcurrent(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	ctx := context.Background()
	f.seedAvailable(t, "creator-c", 1000)

	const attempts = 50
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.RequestPayout(ctx, creatorActor("creator-c", fmt.Sprintf("conc-%d", i)), RequestPayoutInput{
				CreatorID:   "creator-c",
				AmountMinor: 1000,
				Method:      domain.PayoutMethodSEPA,
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrRequestAlreadyPending), errors.Is(err, domain.ErrInsufficientBalance):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d concurrent requests succeeded, want exactly 1", succeeded)
	}

	summary, _ := f.svc.LedgerSummary(ctx, adminActor(""), "creator-c")
	if summary.Available.AmountMinor != 0 || summary.Reserved.AmountMinor != 1000 {
		t.Fatalf("available/reserved = %d/%d, want 0/1000", summary.Available.AmountMinor, summary.Reserved.AmountMinor)
	}
}

func TestCancelPayout(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	ctx := context.Background()
	f.seedAvailable(t, "creator-cx", 2000)

	request, err := f.svc.RequestPayout(ctx, creatorActor("creator-cx", "cx-1"), RequestPayoutInput{
		CreatorID:   "creator-cx",
		AmountMinor: 1500,
		Method:      domain.PayoutMethodPayPal,
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	cancelled, err := f.svc.CancelPayout(ctx, creatorActor("creator-cx", ""), request.RequestID)
	if err != nil {
		t.Fatalf("CancelPayout: %v", err)
	}
	if cancelled.State != domain.PayoutStateFailed || cancelled.FailureReason != "cancelled_by_creator" {
		t.Fatalf("cancelled = %s/%q", cancelled.State, cancelled.FailureReason)
	}

	// The reservation returns to Available.
	summary, _ := f.svc.LedgerSummary(ctx, adminActor(""), "creator-cx")
	if summary.Available.AmountMinor != 2000 || summary.Reserved.AmountMinor != 0 {
		t.Fatalf("available/reserved = %d/%d, want 2000/0", summary.Available.AmountMinor, summary.Reserved.AmountMinor)
	}

	_, err = f.svc.CancelPayout(ctx, creatorActor("creator-cx", ""), request.RequestID)
	requireErr(t, err, domain.ErrInvalidStateTransition)
}

func TestProcessPayoutBatchSettles(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	ctx := context.Background()
	f.seedAvailable(t, "creator-b", 2500)

	request, err := f.svc.RequestPayout(ctx, creatorActor("creator-b", "b-1"), RequestPayoutInput{
		CreatorID:   "creator-b",
		AmountMinor: 2000,
		Method:      domain.PayoutMethodSEPA,
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	settled, err := f.svc.ProcessPayoutBatch(ctx)
	if err != nil || settled != 1 {
		t.Fatalf("ProcessPayoutBatch = (%d, %v), want (1, nil)", settled, err)
	}
	if f.provider.Calls() != 1 {
		t.Fatalf("provider calls = %d, want 1", f.provider.Calls())
	}

	paid, err := f.svc.PayoutStatus(ctx, creatorActor("creator-b", ""), request.RequestID)
	if err != nil {
		t.Fatalf("PayoutStatus: %v", err)
	}
	if paid.State != domain.PayoutStatePaid || paid.SettledAt == nil {
		t.Fatalf("state = %s, want paid with settlement time", paid.State)
	}

	// Settlement finalizes the reservation without touching Available.
	summary, _ := f.svc.LedgerSummary(ctx, adminActor(""), "creator-b")
	if summary.Available.AmountMinor != 500 || summary.Reserved.AmountMinor != 0 {
		t.Fatalf("available/reserved = %d/%d, want 500/0", summary.Available.AmountMinor, summary.Reserved.AmountMinor)
	}

	// A second run finds nothing to do.
	settled, err = f.svc.ProcessPayoutBatch(ctx)
	if err != nil || settled != 0 {
		t.Fatalf("repeat batch = (%d, %v), want (0, nil)", settled, err)
	}
}

func TestProcessPayoutBatchProviderFailure(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	ctx := context.Background()
	f.seedAvailable(t, "creator-f", 2000)
	f.provider.err = errors.New("gateway unavailable")

	request, err := f.svc.RequestPayout(ctx, creatorActor("creator-f", "f-1"), RequestPayoutInput{
		CreatorID:   "creator-f",
		AmountMinor: 2000,
		Method:      domain.PayoutMethodSEPA,
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	settled, err := f.svc.ProcessPayoutBatch(ctx)
	if err != nil || settled != 0 {
		t.Fatalf("ProcessPayoutBatch = (%d, %v), want (0, nil)", settled, err)
	}
	if f.provider.Calls() != 3 {
		t.Fatalf("provider attempts = %d, want 3 bounded retries", f.provider.Calls())
	}

	failed, err := f.svc.PayoutStatus(ctx, adminActor(""), request.RequestID)
	if err != nil {
		t.Fatalf("PayoutStatus: %v", err)
	}
	if failed.State != domain.PayoutStateFailed {
		t.Fatalf("state = %s, want failed", failed.State)
	}

	// The reservation is released on failure.
	summary, _ := f.svc.LedgerSummary(ctx, adminActor(""), "creator-f")
	if summary.Available.AmountMinor != 2000 || summary.Reserved.AmountMinor != 0 {
		t.Fatalf("available/reserved = %d/%d, want 2000/0", summary.Available.AmountMinor, summary.Reserved.AmountMinor)
	}

	// RetryPayout re-checks and re-reserves.
	f.provider.err = nil
	retried, err := f.svc.RetryPayout(ctx, adminActor(""), request.RequestID)
	if err != nil {
		t.Fatalf("RetryPayout: %v", err)
	}
	if retried.State != domain.PayoutStateQueued || retried.Attempts != 0 {
		t.Fatalf("retried = %s attempts=%d, want queued attempts=0", retried.State, retried.Attempts)
	}
	summary, _ = f.svc.LedgerSummary(ctx, adminActor(""), "creator-f")
	if summary.Reserved.AmountMinor != 2000 {
		t.Fatalf("reserved after retry = %d, want 2000", summary.Reserved.AmountMinor)
	}

	settled, err = f.svc.ProcessPayoutBatch(ctx)
	if err != nil || settled != 1 {
		t.Fatalf("batch after retry = (%d, %v), want (1, nil)", settled, err)
	}
}

func TestProcessPayoutBatchSkipsConcurrentlyCancelledRequest(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	ctx := context.Background()
	f.seedAvailable(t, "creator-race", 2000)

	request, err := f.svc.RequestPayout(ctx, creatorActor("creator-race", "race-1"), RequestPayoutInput{
		CreatorID:   "creator-race",
		AmountMinor: 1500,
		Method:      domain.PayoutMethodSEPA,
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	racing := &racingPayoutRepo{PayoutRepository: f.repos.Payouts}
	racing.onListRequested = func() {
		if _, cancelErr := f.svc.CancelPayout(ctx, creatorActor("creator-race", ""), request.RequestID); cancelErr != nil {
			t.Errorf("CancelPayout: %v", cancelErr)
		}
	}
	f.svc.payouts = racing

	settled, err := f.svc.ProcessPayoutBatch(ctx)
	if err != nil || settled != 0 {
		t.Fatalf("ProcessPayoutBatch = (%d, %v), want (0, nil)", settled, err)
	}
	if f.provider.Calls() != 0 {
		t.Fatalf("provider calls = %d, want 0 for a cancelled request", f.provider.Calls())
	}

	final, err := f.svc.PayoutStatus(ctx, adminActor(""), request.RequestID)
	if err != nil {
		t.Fatalf("PayoutStatus: %v", err)
	}
	if final.State != domain.PayoutStateFailed || final.FailureReason != "cancelled_by_creator" {
		t.Fatalf("final = %s/%q, want failed/cancelled_by_creator", final.State, final.FailureReason)
	}

	// The cancellation's release stands; the batch must not pay on top of it.
	summary, _ := f.svc.LedgerSummary(ctx, adminActor(""), "creator-race")
	if summary.Available.AmountMinor != 2000 || summary.Reserved.AmountMinor != 0 {
		t.Fatalf("available/reserved = %d/%d, want 2000/0", summary.Available.AmountMinor, summary.Reserved.AmountMinor)
	}
}

func TestRetryPayoutRequiresAdminAndFailedState(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	ctx := context.Background()
	f.seedAvailable(t, "creator-rt", 1500)

	request, err := f.svc.RequestPayout(ctx, creatorActor("creator-rt", "rt-1"), RequestPayoutInput{
		CreatorID:   "creator-rt",
		AmountMinor: 1500,
		Method:      domain.PayoutMethodSEPA,
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	if _, err := f.svc.RetryPayout(ctx, creatorActor("creator-rt", ""), request.RequestID); err != domain.ErrForbidden {
		t.Fatalf("non-admin retry = %v, want ErrForbidden", err)
	}
	_, err = f.svc.RetryPayout(ctx, adminActor(""), request.RequestID)
	requireErr(t, err, domain.ErrInvalidStateTransition)
}

func TestQuarantinePayout(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	ctx := context.Background()
	f.seedAvailable(t, "creator-q", 1500)

	request, err := f.svc.RequestPayout(ctx, creatorActor("creator-q", "q-1"), RequestPayoutInput{
		CreatorID:   "creator-q",
		AmountMinor: 1500,
		Method:      domain.PayoutMethodSEPA,
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	if _, err := f.svc.QuarantinePayout(ctx, creatorActor("creator-q", ""), request.RequestID, "nope"); err != domain.ErrForbidden {
		t.Fatalf("non-admin quarantine = %v, want ErrForbidden", err)
	}

	held, err := f.svc.QuarantinePayout(ctx, adminActor(""), request.RequestID, "velocity flag")
	if err != nil {
		t.Fatalf("QuarantinePayout: %v", err)
	}
	if held.State != domain.PayoutStateQuarantined {
		t.Fatalf("state = %s, want quarantined", held.State)
	}

	// The reservation stays in place while quarantined, and the batch skips it.
	summary, _ := f.svc.LedgerSummary(ctx, adminActor(""), "creator-q")
	if summary.Reserved.AmountMinor != 1500 {
		t.Fatalf("reserved = %d, want 1500", summary.Reserved.AmountMinor)
	}
	settled, err := f.svc.ProcessPayoutBatch(ctx)
	if err != nil || settled != 0 {
		t.Fatalf("batch over quarantine = (%d, %v), want (0, nil)", settled, err)
	}

	// Cancellation is blocked while quarantined.
	_, err = f.svc.CancelPayout(ctx, creatorActor("creator-q", ""), request.RequestID)
	requireErr(t, err, domain.ErrInvalidStateTransition)

	cleared, err := f.svc.ClearQuarantine(ctx, adminActor(""), request.RequestID)
	if err != nil {
		t.Fatalf("ClearQuarantine: %v", err)
	}
	if cleared.State != domain.PayoutStateQueued {
		t.Fatalf("state = %s, want queued", cleared.State)
	}

	settled, err = f.svc.ProcessPayoutBatch(ctx)
	if err != nil || settled != 1 {
		t.Fatalf("batch after clearance = (%d, %v), want (1, nil)", settled, err)
	}
}
