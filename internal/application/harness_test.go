package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	eventadapter "github.com/viralforge/revenue-ledger/internal/adapters/events"
	"github.com/viralforge/revenue-ledger/internal/adapters/memory"
	"github.com/viralforge/revenue-ledger/internal/contracts"
	"github.com/viralforge/revenue-ledger/internal/domain"
)

// testClock is a settable clock shared by a service under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start.UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingDomainPublisher struct {
	err error
}

func (p *failingDomainPublisher) PublishDomain(_ context.Context, _ contracts.EventEnvelope) error {
	return p.err
}

type stubKYC struct {
	verified bool
	err      error
}

func (s *stubKYC) IsVerified(_ context.Context, _ string) (bool, error) {
	return s.verified, s.err
}

type stubProvider struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubProvider) SubmitPayout(_ context.Context, _ domain.PayoutRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type testFixture struct {
	svc      *Service
	repos    *memory.Repositories
	clock    *testClock
	kyc      *stubKYC
	provider *stubProvider
	domainEv *eventadapter.MemoryDomainPublisher
	dlq      *eventadapter.MemoryDLQPublisher
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	repos := memory.NewRepositories()
	clock := newTestClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	kyc := &stubKYC{verified: true}
	provider := &stubProvider{}
	domainEv := eventadapter.NewMemoryDomainPublisher()
	dlq := eventadapter.NewMemoryDLQPublisher()

	svc := NewService(Dependencies{
		Config: Config{
			RateChangeSecret: []byte("test-rate-secret"),
		},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Ledger:       repos.Ledger,
		Balances:     repos.Balances,
		Holds:        repos.Holds,
		Streams:      repos.Streams,
		Royalties:    repos.Royalties,
		Payouts:      repos.Payouts,
		RateChanges:  repos.RateChanges,
		Idempotency:  repos.Idempotency,
		Outbox:       repos.Outbox,
		KYC:          kyc,
		Provider:     provider,
		RunLock:      memory.NewRunLock(),
		DomainEvents: domainEv,
		Analytics:    eventadapter.NewMemoryAnalyticsPublisher(),
		DLQ:          dlq,
	})
	svc.nowFn = clock.Now
	svc.sleepFn = func(time.Duration) {}

	return &testFixture{svc: svc, repos: repos, clock: clock, kyc: kyc, provider: provider, domainEv: domainEv, dlq: dlq}
}

func adminActor(key string) Actor {
	return Actor{SubjectID: "admin-1", Role: "admin", IdempotencyKey: key}
}

func creatorActor(creatorID, key string) Actor {
	return Actor{SubjectID: creatorID, Role: "creator", IdempotencyKey: key}
}

// seedAvailable posts an immediately-cleared affiliate conversion at a zero
// per-link rate so the creator's Available balance lands on an exact amount.
func (f *testFixture) seedAvailable(t *testing.T, creatorID string, netMinor int64) {
	t.Helper()
	zeroRate := int64(0)
	ref := "seed:" + creatorID + ":" + time.Now().Format("150405.000000000")
	entry, err := f.svc.RecordRevenueEvent(context.Background(), adminActor("idem-"+ref), RecordEventInput{
		CreatorID:         creatorID,
		Channel:           domain.ChannelAffiliate,
		GrossMinor:        netMinor,
		SourceRef:         ref,
		CommissionRateBPS: &zeroRate,
	})
	if err != nil {
		t.Fatalf("seed revenue event: %v", err)
	}
	if entry.Status != domain.EntryStatusAvailable {
		t.Fatalf("seed entry status = %s, want available", entry.Status)
	}
	if entry.Net.Amount != netMinor {
		t.Fatalf("seed net = %d, want %d", entry.Net.Amount, netMinor)
	}
}

func requireErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}
