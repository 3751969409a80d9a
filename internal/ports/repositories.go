package ports

import (
	"context"
	"time"

	"github.com/viralforge/revenue-ledger/internal/domain"
)

type EntryFilter struct {
	Channel domain.Channel
	Status  domain.EntryStatus
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}

// LedgerRepository is the append-only entry store. Append must enforce
// uniqueness of (source_ref, channel) over non-reversed entries and return
// domain.ErrConflict on violation.
type LedgerRepository interface {
	Append(ctx context.Context, entry domain.LedgerEntry) error
	GetByID(ctx context.Context, entryID string) (domain.LedgerEntry, error)
	FindActiveBySourceRef(ctx context.Context, sourceRef string, channel domain.Channel) (domain.LedgerEntry, error)
	ListByCreator(ctx context.Context, creatorID string, filter EntryFilter) ([]domain.LedgerEntry, error)
	UpdateStatus(ctx context.Context, entryID string, from, to domain.EntryStatus, at time.Time) error
	ListMatured(ctx context.Context, now time.Time, limit int) ([]domain.LedgerEntry, error)
}

// BalanceSnapshot is the maintained projection over ledger entries plus the
// running payout reservation counter. It is updated incrementally on each
// append or status move, never recomputed from raw events at read time.
type BalanceSnapshot struct {
	CreatorID string
	Currency  string
	Available int64
	Pending   int64
	Withheld  int64
	Reserved  int64
	UpdatedAt time.Time
}

type BalanceDelta struct {
	Available int64
	Pending   int64
	Withheld  int64
	Reserved  int64
}

type ChannelTotal struct {
	CreatorID  string
	Channel    domain.Channel
	Currency   string
	GrossTotal int64
	NetTotal   int64
	EntryCount int64
}

type BalanceRepository interface {
	Get(ctx context.Context, creatorID, currency string) (BalanceSnapshot, error)
	ApplyDelta(ctx context.Context, creatorID, currency string, delta BalanceDelta, at time.Time) error
	ChannelTotals(ctx context.Context, creatorID string) ([]ChannelTotal, error)
	AddChannelTotal(ctx context.Context, creatorID string, channel domain.Channel, currency string, gross, net, entries int64) error
}

type EscrowHoldRepository interface {
	Create(ctx context.Context, hold domain.EscrowHold) error
	GetByID(ctx context.Context, holdID string) (domain.EscrowHold, error)
	GetByOrderID(ctx context.Context, orderID string) (domain.EscrowHold, error)
	Update(ctx context.Context, hold domain.EscrowHold) error
	ListAutoReleasable(ctx context.Context, now time.Time, limit int) ([]domain.EscrowHold, error)
}

type TrackActivity struct {
	TrackID   string
	CreatorID string
}

type StreamRepository interface {
	Record(ctx context.Context, stream domain.StreamRecord) error
	CountCompleted(ctx context.Context, trackID string, from, to time.Time) (int64, error)
	TracksWithCompleted(ctx context.Context, from, to time.Time) ([]TrackActivity, error)
}

type RoyaltyPeriodRepository interface {
	Create(ctx context.Context, period domain.RoyaltyPeriod) error
	Get(ctx context.Context, trackID string, periodStart, periodEnd time.Time) (domain.RoyaltyPeriod, error)
	ListByCreator(ctx context.Context, creatorID string, limit int) ([]domain.RoyaltyPeriod, error)
}

type PayoutRepository interface {
	Create(ctx context.Context, request domain.PayoutRequest) error
	// Update writes the request only while its stored state still equals
	// from, so a concurrent cancel or quarantine cannot be overwritten.
	// Returns domain.ErrInvalidStateTransition on a state mismatch.
	Update(ctx context.Context, request domain.PayoutRequest, from domain.PayoutState) error
	GetByID(ctx context.Context, requestID string) (domain.PayoutRequest, error)
	FindActiveByCreator(ctx context.Context, creatorID string) (domain.PayoutRequest, error)
	ListByState(ctx context.Context, state domain.PayoutState, limit int) ([]domain.PayoutRequest, error)
}

type RateChangeRepository interface {
	Create(ctx context.Context, change domain.RateChange) error
	// ActiveRate returns the most recent signed override whose effective date
	// is at or before the event timestamp.
	ActiveRate(ctx context.Context, channel domain.Channel, at time.Time) (domain.Rate, bool, error)
	List(ctx context.Context, channel domain.Channel) ([]domain.RateChange, error)
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}

// RunLocker guards batch jobs against concurrent runs of the same period.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
