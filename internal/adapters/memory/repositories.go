package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
)

// Repositories bundles map-backed implementations of every storage port,
// used by unit tests and the local runtime when no database is configured.
type Repositories struct {
	Ledger      *LedgerRepository
	Balances    *BalanceRepository
	Holds       *EscrowHoldRepository
	Streams     *StreamRepository
	Royalties   *RoyaltyPeriodRepository
	Payouts     *PayoutRepository
	RateChanges *RateChangeRepository
	Idempotency *IdempotencyRepository
	Outbox      *OutboxRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Ledger:      &LedgerRepository{entries: make(map[string]domain.LedgerEntry)},
		Balances:    &BalanceRepository{snapshots: make(map[string]ports.BalanceSnapshot), totals: make(map[string]ports.ChannelTotal)},
		Holds:       &EscrowHoldRepository{holds: make(map[string]domain.EscrowHold), byOrder: make(map[string]string)},
		Streams:     &StreamRepository{},
		Royalties:   &RoyaltyPeriodRepository{periods: make(map[string]domain.RoyaltyPeriod)},
		Payouts:     &PayoutRepository{requests: make(map[string]domain.PayoutRequest)},
		RateChanges: &RateChangeRepository{},
		Idempotency: &IdempotencyRepository{records: make(map[string]ports.IdempotencyRecord)},
		Outbox:      &OutboxRepository{records: make(map[string]ports.OutboxRecord)},
	}
}

type LedgerRepository struct {
	mu      sync.RWMutex
	entries map[string]domain.LedgerEntry
	order   []string
}

func (r *LedgerRepository) Append(_ context.Context, entry domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.EntryID]; ok {
		return domain.ErrConflict
	}
	for _, id := range r.order {
		existing := r.entries[id]
		if existing.SourceRef == entry.SourceRef && existing.Channel == entry.Channel && existing.Status != domain.EntryStatusReversed {
			return domain.ErrConflict
		}
	}
	r.entries[entry.EntryID] = entry
	r.order = append(r.order, entry.EntryID)
	return nil
}

func (r *LedgerRepository) GetByID(_ context.Context, entryID string) (domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[entryID]
	if !ok {
		return domain.LedgerEntry{}, domain.ErrNotFound
	}
	return entry, nil
}

func (r *LedgerRepository) FindActiveBySourceRef(_ context.Context, sourceRef string, channel domain.Channel) (domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.SourceRef == sourceRef && entry.Channel == channel && entry.Status != domain.EntryStatusReversed {
			return entry, nil
		}
	}
	return domain.LedgerEntry{}, domain.ErrNotFound
}

func (r *LedgerRepository) ListByCreator(_ context.Context, creatorID string, filter ports.EntryFilter) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]domain.LedgerEntry, 0)
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.CreatorID != creatorID {
			continue
		}
		if filter.Channel != "" && entry.Channel != filter.Channel {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && entry.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && entry.CreatedAt.After(filter.To) {
			continue
		}
		items = append(items, entry)
	}
	slices.SortFunc(items, func(a, b domain.LedgerEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Offset >= len(items) {
		return []domain.LedgerEntry{}, nil
	}
	end := filter.Offset + filter.Limit
	if filter.Limit <= 0 || end > len(items) {
		end = len(items)
	}
	out := make([]domain.LedgerEntry, end-filter.Offset)
	copy(out, items[filter.Offset:end])
	return out, nil
}

func (r *LedgerRepository) UpdateStatus(_ context.Context, entryID string, from, to domain.EntryStatus, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[entryID]
	if !ok {
		return domain.ErrNotFound
	}
	if entry.Status != from {
		return domain.ErrInvalidStateTransition
	}
	entry.Status = to
	r.entries[entryID] = entry
	return nil
}

func (r *LedgerRepository) ListMatured(_ context.Context, now time.Time, limit int) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.LedgerEntry, 0)
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.Status == domain.EntryStatusPending && !entry.AvailableAt.After(now) {
			out = append(out, entry)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type BalanceRepository struct {
	mu        sync.Mutex
	snapshots map[string]ports.BalanceSnapshot
	totals    map[string]ports.ChannelTotal
}

func balanceKey(creatorID, currency string) string {
	return creatorID + "|" + currency
}

func (r *BalanceRepository) Get(_ context.Context, creatorID, currency string) (ports.BalanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[balanceKey(creatorID, currency)]
	if !ok {
		return ports.BalanceSnapshot{CreatorID: creatorID, Currency: currency}, nil
	}
	return snapshot, nil
}

func (r *BalanceRepository) ApplyDelta(_ context.Context, creatorID, currency string, delta ports.BalanceDelta, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := balanceKey(creatorID, currency)
	snapshot, ok := r.snapshots[key]
	if !ok {
		snapshot = ports.BalanceSnapshot{CreatorID: creatorID, Currency: currency}
	}
	snapshot.Available += delta.Available
	snapshot.Pending += delta.Pending
	snapshot.Withheld += delta.Withheld
	snapshot.Reserved += delta.Reserved
	snapshot.UpdatedAt = at
	r.snapshots[key] = snapshot
	return nil
}

func (r *BalanceRepository) ChannelTotals(_ context.Context, creatorID string) ([]ports.ChannelTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.ChannelTotal, 0)
	for key, total := range r.totals {
		if strings.HasPrefix(key, creatorID+"|") {
			out = append(out, total)
		}
	}
	slices.SortFunc(out, func(a, b ports.ChannelTotal) int {
		return strings.Compare(string(a.Channel), string(b.Channel))
	})
	return out, nil
}

func (r *BalanceRepository) AddChannelTotal(_ context.Context, creatorID string, channel domain.Channel, currency string, gross, net, entries int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := creatorID + "|" + string(channel) + "|" + currency
	total, ok := r.totals[key]
	if !ok {
		total = ports.ChannelTotal{CreatorID: creatorID, Channel: channel, Currency: currency}
	}
	total.GrossTotal += gross
	total.NetTotal += net
	total.EntryCount += entries
	r.totals[key] = total
	return nil
}

type EscrowHoldRepository struct {
	mu      sync.RWMutex
	holds   map[string]domain.EscrowHold
	byOrder map[string]string
}

func (r *EscrowHoldRepository) Create(_ context.Context, hold domain.EscrowHold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byOrder[hold.OrderID]; ok {
		return domain.ErrConflict
	}
	r.holds[hold.HoldID] = hold
	r.byOrder[hold.OrderID] = hold.HoldID
	return nil
}

func (r *EscrowHoldRepository) GetByID(_ context.Context, holdID string) (domain.EscrowHold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hold, ok := r.holds[holdID]
	if !ok {
		return domain.EscrowHold{}, domain.ErrNotFound
	}
	return hold, nil
}

func (r *EscrowHoldRepository) GetByOrderID(_ context.Context, orderID string) (domain.EscrowHold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	holdID, ok := r.byOrder[orderID]
	if !ok {
		return domain.EscrowHold{}, domain.ErrNotFound
	}
	return r.holds[holdID], nil
}

func (r *EscrowHoldRepository) Update(_ context.Context, hold domain.EscrowHold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.holds[hold.HoldID]; !ok {
		return domain.ErrNotFound
	}
	r.holds[hold.HoldID] = hold
	return nil
}

func (r *EscrowHoldRepository) ListAutoReleasable(_ context.Context, now time.Time, limit int) ([]domain.EscrowHold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.EscrowHold, 0)
	for _, hold := range r.holds {
		if hold.State != domain.HoldStateHeld || hold.AutoReleaseAt == nil {
			continue
		}
		if hold.AutoReleaseAt.After(now) {
			continue
		}
		out = append(out, hold)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type StreamRepository struct {
	mu      sync.RWMutex
	streams []domain.StreamRecord
}

func (r *StreamRepository) Record(_ context.Context, stream domain.StreamRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams = append(r.streams, stream)
	return nil
}

func (r *StreamRepository) CountCompleted(_ context.Context, trackID string, from, to time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, stream := range r.streams {
		if stream.TrackID != trackID || !stream.IsComplete {
			continue
		}
		// Half-open window: a stream landing exactly on a period boundary
		// belongs to the period that starts there.
		if stream.StreamedAt.Before(from) || !stream.StreamedAt.Before(to) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *StreamRepository) TracksWithCompleted(_ context.Context, from, to time.Time) ([]ports.TrackActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	out := make([]ports.TrackActivity, 0)
	for _, stream := range r.streams {
		if !stream.IsComplete || seen[stream.TrackID] {
			continue
		}
		if stream.StreamedAt.Before(from) || !stream.StreamedAt.Before(to) {
			continue
		}
		seen[stream.TrackID] = true
		out = append(out, ports.TrackActivity{TrackID: stream.TrackID, CreatorID: stream.CreatorID})
	}
	slices.SortFunc(out, func(a, b ports.TrackActivity) int {
		return strings.Compare(a.TrackID, b.TrackID)
	})
	return out, nil
}

type RoyaltyPeriodRepository struct {
	mu      sync.Mutex
	periods map[string]domain.RoyaltyPeriod
}

func periodKey(trackID string, start, end time.Time) string {
	return domain.RoyaltySourceRef(trackID, start, end)
}

func (r *RoyaltyPeriodRepository) Create(_ context.Context, period domain.RoyaltyPeriod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := periodKey(period.TrackID, period.PeriodStart, period.PeriodEnd)
	if _, ok := r.periods[key]; ok {
		return domain.ErrConflict
	}
	r.periods[key] = period
	return nil
}

func (r *RoyaltyPeriodRepository) Get(_ context.Context, trackID string, periodStart, periodEnd time.Time) (domain.RoyaltyPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	period, ok := r.periods[periodKey(trackID, periodStart, periodEnd)]
	if !ok {
		return domain.RoyaltyPeriod{}, domain.ErrNotFound
	}
	return period, nil
}

func (r *RoyaltyPeriodRepository) ListByCreator(_ context.Context, creatorID string, limit int) ([]domain.RoyaltyPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RoyaltyPeriod, 0)
	for _, period := range r.periods {
		if period.CreatorID != creatorID {
			continue
		}
		out = append(out, period)
	}
	slices.SortFunc(out, func(a, b domain.RoyaltyPeriod) int {
		return b.PeriodStart.Compare(a.PeriodStart)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type PayoutRepository struct {
	mu       sync.RWMutex
	requests map[string]domain.PayoutRequest
	order    []string
}

func (r *PayoutRepository) Create(_ context.Context, request domain.PayoutRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[request.RequestID]; ok {
		return domain.ErrConflict
	}
	r.requests[request.RequestID] = request
	r.order = append(r.order, request.RequestID)
	return nil
}

func (r *PayoutRepository) Update(_ context.Context, request domain.PayoutRequest, from domain.PayoutState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.requests[request.RequestID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.State != from {
		return domain.ErrInvalidStateTransition
	}
	r.requests[request.RequestID] = request
	return nil
}

func (r *PayoutRepository) GetByID(_ context.Context, requestID string) (domain.PayoutRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	request, ok := r.requests[requestID]
	if !ok {
		return domain.PayoutRequest{}, domain.ErrNotFound
	}
	return request, nil
}

func (r *PayoutRepository) FindActiveByCreator(_ context.Context, creatorID string) (domain.PayoutRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		request := r.requests[id]
		if request.CreatorID == creatorID && !request.State.Terminal() {
			return request, nil
		}
	}
	return domain.PayoutRequest{}, domain.ErrNotFound
}

func (r *PayoutRepository) ListByState(_ context.Context, state domain.PayoutState, limit int) ([]domain.PayoutRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PayoutRequest, 0)
	for _, id := range r.order {
		request := r.requests[id]
		if request.State != state {
			continue
		}
		out = append(out, request)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type RateChangeRepository struct {
	mu      sync.RWMutex
	changes []domain.RateChange
}

func (r *RateChangeRepository) Create(_ context.Context, change domain.RateChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return nil
}

func (r *RateChangeRepository) ActiveRate(_ context.Context, channel domain.Channel, at time.Time) (domain.Rate, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best  domain.RateChange
		found bool
	)
	for _, change := range r.changes {
		if change.Channel != channel || change.EffectiveAt.After(at) {
			continue
		}
		if !found || change.EffectiveAt.After(best.EffectiveAt) {
			best = change
			found = true
		}
	}
	if !found {
		return 0, false, nil
	}
	return best.Rate, true, nil
}

func (r *RateChangeRepository) List(_ context.Context, channel domain.Channel) ([]domain.RateChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RateChange, 0)
	for _, change := range r.changes {
		if change.Channel == channel {
			out = append(out, change)
		}
	}
	return out, nil
}

type IdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]ports.IdempotencyRecord
}

func (r *IdempotencyRepository) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	if now.After(record.ExpiresAt) {
		delete(r.records, key)
		return nil, nil
	}
	clone := record
	return &clone, nil
}

func (r *IdempotencyRepository) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[key]; ok && time.Now().UTC().Before(existing.ExpiresAt) {
		if existing.RequestHash != requestHash {
			return domain.ErrIdempotencyConflict
		}
		return nil
	}
	r.records[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		ExpiresAt:   expiresAt,
	}
	return nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return domain.ErrNotFound
	}
	record.ResponseCode = responseCode
	record.ResponseBody = slices.Clone(responseBody)
	if at.After(record.ExpiresAt) {
		record.ExpiresAt = at.Add(7 * 24 * time.Hour)
	}
	r.records[key] = record
	return nil
}

type OutboxRepository struct {
	mu      sync.Mutex
	records map[string]ports.OutboxRecord
	order   []string
}

func (r *OutboxRepository) Enqueue(_ context.Context, record ports.OutboxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.RecordID] = record
	r.order = append(r.order, record.RecordID)
	return nil
}

func (r *OutboxRepository) ListPending(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.order {
		record, ok := r.records[id]
		if !ok || record.SentAt != nil {
			continue
		}
		out = append(out, record)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, recordID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	record.SentAt = &at
	r.records[recordID] = record
	return nil
}

func (r *OutboxRepository) MarkFailed(_ context.Context, recordID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	record.Attempts++
	r.records[recordID] = record
	return nil
}

// RunLock is the single-process run-level lock used when Redis is absent.
type RunLock struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

func NewRunLock() *RunLock {
	return &RunLock{locks: make(map[string]time.Time)}
}

func (l *RunLock) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	if expires, ok := l.locks[key]; ok && now.Before(expires) {
		return false, nil
	}
	l.locks[key] = now.Add(ttl)
	return true, nil
}

func (l *RunLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}
