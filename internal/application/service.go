package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/revenue-ledger/internal/contracts"
	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
)

// entrySpec describes one ledger posting. All channel adapters, the escrow
// release path, and the royalty batch funnel through postEntry with their
// channel policy already resolved, so the commission and idempotency contract
// lives in exactly one place.
type entrySpec struct {
	creatorID   string
	channel     domain.Channel
	gross       domain.Money
	rate        domain.Rate
	availableAt time.Time
	sourceRef   string
	metadata    map[string]string
}

func (s *Service) RecordRevenueEvent(ctx context.Context, actor Actor, input RecordEventInput) (domain.LedgerEntry, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.LedgerEntry{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.LedgerEntry{}, domain.ErrIdempotencyRequired
	}
	input.CreatorID = strings.TrimSpace(input.CreatorID)
	input.SourceRef = strings.TrimSpace(input.SourceRef)
	if input.CreatorID == "" || input.SourceRef == "" {
		return domain.LedgerEntry{}, domain.ErrInvalidInput
	}
	if !input.Channel.Valid() {
		return domain.LedgerEntry{}, domain.ErrUnknownChannel
	}
	if input.GrossMinor <= 0 {
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}
	if input.Currency == "" {
		input.Currency = s.cfg.DefaultCurrency
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.nowFn()
	}

	requestHash := hashPayload(input)
	if cached, ok, err := s.getIdempotentEntry(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.LedgerEntry{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.LedgerEntry{}, err
	}

	rate, err := s.commissionRateFor(ctx, input.Channel, input.CommissionRateBPS, occurredAt)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	s.creatorLocks.Lock(input.CreatorID)
	defer s.creatorLocks.Unlock(input.CreatorID)

	entry, err := s.postEntry(ctx, entrySpec{
		creatorID:   input.CreatorID,
		channel:     input.Channel,
		gross:       domain.NewMoney(input.GrossMinor, input.Currency),
		rate:        rate,
		availableAt: domain.AvailabilityAt(input.Channel, occurredAt),
		sourceRef:   input.SourceRef,
		metadata:    input.Metadata,
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 201, entry)
	return entry, nil
}

// commissionRateFor resolves the commission applied to an event: the per-link
// rate for affiliate conversions, otherwise a signed override effective for
// the event timestamp, otherwise the platform default table.
func (s *Service) commissionRateFor(ctx context.Context, channel domain.Channel, override *int64, occurredAt time.Time) (domain.Rate, error) {
	if channel == domain.ChannelAffiliate {
		if override == nil {
			return 0, domain.ErrInvalidInput
		}
		return domain.RateFromBasisPoints(*override)
	}
	if override != nil {
		// Non-affiliate rates change only through signed rate-change records.
		return 0, domain.ErrInvalidInput
	}
	if rate, ok, err := s.rateChanges.ActiveRate(ctx, channel, occurredAt); err != nil {
		return 0, fmt.Errorf("active rate lookup: %w", err)
	} else if ok {
		return rate, nil
	}
	rate, ok := domain.DefaultCommissionRate(channel)
	if !ok {
		return 0, domain.ErrUnknownChannel
	}
	return rate, nil
}

// postEntry appends one ledger entry and maintains the balance projection.
// Callers hold the creator lock. Re-delivery of a source ref that already has
// a non-reversed entry on the channel returns the existing entry unchanged.
func (s *Service) postEntry(ctx context.Context, spec entrySpec) (domain.LedgerEntry, error) {
	existing, err := s.ledger.FindActiveBySourceRef(ctx, spec.sourceRef, spec.channel)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.LedgerEntry{}, err
	}

	now := s.nowFn()
	commission := spec.rate.Apply(spec.gross)
	net, err := spec.gross.Sub(commission)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	status := domain.EntryStatusPending
	if !spec.availableAt.After(now) {
		status = domain.EntryStatusAvailable
	}
	entry := domain.LedgerEntry{
		EntryID:        uuid.NewString(),
		CreatorID:      spec.creatorID,
		Channel:        spec.channel,
		Gross:          spec.gross,
		CommissionRate: spec.rate,
		Commission:     commission,
		Net:            net,
		Status:         status,
		AvailableAt:    spec.availableAt,
		SourceRef:      spec.sourceRef,
		Metadata:       spec.metadata,
		CreatedAt:      now,
	}
	if err := entry.Validate(); err != nil {
		return domain.LedgerEntry{}, err
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost an append race with the same source ref: idempotent no-op.
			return s.ledger.FindActiveBySourceRef(ctx, spec.sourceRef, spec.channel)
		}
		return domain.LedgerEntry{}, err
	}

	delta := ports.BalanceDelta{}
	if status == domain.EntryStatusAvailable {
		delta.Available = net.Amount
	} else {
		delta.Pending = net.Amount
	}
	if err := s.balances.ApplyDelta(ctx, entry.CreatorID, entry.Net.Currency, delta, now); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("apply balance delta: %w", err)
	}
	if err := s.balances.AddChannelTotal(ctx, entry.CreatorID, entry.Channel, entry.Gross.Currency, entry.Gross.Amount, entry.Net.Amount, 1); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("add channel total: %w", err)
	}
	if err := s.enqueueEntryRecorded(ctx, entry); err != nil {
		return domain.LedgerEntry{}, err
	}
	return entry, nil
}

func (s *Service) ListEntries(ctx context.Context, actor Actor, creatorID string, filter ports.EntryFilter) ([]domain.LedgerEntry, error) {
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
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.ledger.ListByCreator(ctx, creatorID, filter)
}

// LedgerSummary reads the maintained projection; it never re-derives balances
// from raw entries.
func (s *Service) LedgerSummary(ctx context.Context, actor Actor, creatorID string) (contracts.LedgerSummaryResponse, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return contracts.LedgerSummaryResponse{}, domain.ErrUnauthorized
	}
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return contracts.LedgerSummaryResponse{}, domain.ErrInvalidInput
	}
	if !actor.IsAdmin() && actor.SubjectID != creatorID {
		return contracts.LedgerSummaryResponse{}, domain.ErrForbidden
	}
	snapshot, err := s.balances.Get(ctx, creatorID, s.cfg.DefaultCurrency)
	if err != nil {
		return contracts.LedgerSummaryResponse{}, err
	}
	totals, err := s.balances.ChannelTotals(ctx, creatorID)
	if err != nil {
		return contracts.LedgerSummaryResponse{}, err
	}
	channels := make([]contracts.ChannelBreakdown, 0, len(totals))
	for _, t := range totals {
		channels = append(channels, contracts.ChannelBreakdown{
			Channel:    string(t.Channel),
			Gross:      moneyView(domain.NewMoney(t.GrossTotal, t.Currency)),
			Net:        moneyView(domain.NewMoney(t.NetTotal, t.Currency)),
			EntryCount: t.EntryCount,
		})
	}
	currency := snapshot.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	return contracts.LedgerSummaryResponse{
		CreatorID: creatorID,
		Available: moneyView(domain.NewMoney(snapshot.Available, currency)),
		Pending:   moneyView(domain.NewMoney(snapshot.Pending, currency)),
		Withheld:  moneyView(domain.NewMoney(snapshot.Withheld, currency)),
		Reserved:  moneyView(domain.NewMoney(snapshot.Reserved, currency)),
		Channels:  channels,
		AsOf:      s.nowFn(),
	}, nil
}

// ReverseEntry handles refund clawback: the original entry's status moves to
// Reversed and a negated compensating entry is appended for audit. History is
// never rewritten. Pending entries reverse through the same path as Available
// ones.
func (s *Service) ReverseEntry(ctx context.Context, actor Actor, entryID, reason string) (domain.LedgerEntry, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.LedgerEntry{}, domain.ErrUnauthorized
	}
	entryID = strings.TrimSpace(entryID)
	if entryID == "" || strings.TrimSpace(reason) == "" {
		return domain.LedgerEntry{}, domain.ErrInvalidInput
	}
	entry, err := s.ledger.GetByID(ctx, entryID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	s.creatorLocks.Lock(entry.CreatorID)
	defer s.creatorLocks.Unlock(entry.CreatorID)

	// Re-read under the lock: a concurrent reversal may have won.
	entry, err = s.ledger.GetByID(ctx, entryID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if entry.IsReversal() || !domain.CanTransitionEntry(entry.Status, domain.EntryStatusReversed) {
		return domain.LedgerEntry{}, domain.ErrInvalidStateTransition
	}
	priorStatus := entry.Status
	now := s.nowFn()
	if err := s.ledger.UpdateStatus(ctx, entry.EntryID, priorStatus, domain.EntryStatusReversed, now); err != nil {
		return domain.LedgerEntry{}, err
	}

	compensating := domain.LedgerEntry{
		EntryID:        uuid.NewString(),
		CreatorID:      entry.CreatorID,
		Channel:        entry.Channel,
		Gross:          entry.Gross.Neg(),
		CommissionRate: entry.CommissionRate,
		Commission:     entry.Commission.Neg(),
		Net:            entry.Net.Neg(),
		Status:         domain.EntryStatusReversed,
		AvailableAt:    now,
		SourceRef:      "reversal:" + entry.EntryID,
		ReversalOf:     entry.EntryID,
		Reason:         reason,
		CreatedAt:      now,
	}
	if err := compensating.Validate(); err != nil {
		return domain.LedgerEntry{}, err
	}
	if err := s.ledger.Append(ctx, compensating); err != nil {
		return domain.LedgerEntry{}, err
	}

	delta := ports.BalanceDelta{}
	switch priorStatus {
	case domain.EntryStatusAvailable:
		delta.Available = -entry.Net.Amount
	case domain.EntryStatusPending:
		delta.Pending = -entry.Net.Amount
	case domain.EntryStatusWithheld:
		delta.Withheld = -entry.Net.Amount
	}
	if err := s.balances.ApplyDelta(ctx, entry.CreatorID, entry.Net.Currency, delta, now); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("apply balance delta: %w", err)
	}
	if err := s.balances.AddChannelTotal(ctx, entry.CreatorID, entry.Channel, entry.Gross.Currency, -entry.Gross.Amount, -entry.Net.Amount, -1); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("add channel total: %w", err)
	}
	if err := s.enqueueEntryReversed(ctx, entry, compensating, reason, priorStatus); err != nil {
		return domain.LedgerEntry{}, err
	}
	return compensating, nil
}

// WithholdEntry moves an Available entry to Withheld during a fraud or
// chargeback investigation.
func (s *Service) WithholdEntry(ctx context.Context, actor Actor, entryID, reason string) (domain.LedgerEntry, error) {
	if !actor.IsAdmin() {
		return domain.LedgerEntry{}, domain.ErrForbidden
	}
	entry, err := s.ledger.GetByID(ctx, entryID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	s.creatorLocks.Lock(entry.CreatorID)
	defer s.creatorLocks.Unlock(entry.CreatorID)

	entry, err = s.ledger.GetByID(ctx, entryID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if !domain.CanTransitionEntry(entry.Status, domain.EntryStatusWithheld) {
		return domain.LedgerEntry{}, domain.ErrInvalidStateTransition
	}
	now := s.nowFn()
	if err := s.ledger.UpdateStatus(ctx, entry.EntryID, entry.Status, domain.EntryStatusWithheld, now); err != nil {
		return domain.LedgerEntry{}, err
	}
	delta := ports.BalanceDelta{Available: -entry.Net.Amount, Withheld: entry.Net.Amount}
	if err := s.balances.ApplyDelta(ctx, entry.CreatorID, entry.Net.Currency, delta, now); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("apply balance delta: %w", err)
	}
	s.logger.InfoContext(ctx, "entry withheld", "entry_id", entry.EntryID, "creator_id", entry.CreatorID, "reason", reason)
	entry.Status = domain.EntryStatusWithheld
	return entry, nil
}

// PromoteMatured flips Pending entries whose availability timestamp has
// passed. The worker runs this on a short cadence; re-runs are no-ops.
func (s *Service) PromoteMatured(ctx context.Context, now time.Time) (int, error) {
	matured, err := s.ledger.ListMatured(ctx, now, 500)
	if err != nil {
		return 0, err
	}
	promoted := 0
	for _, entry := range matured {
		s.creatorLocks.Lock(entry.CreatorID)
		err := func() error {
			current, err := s.ledger.GetByID(ctx, entry.EntryID)
			if err != nil {
				return err
			}
			if current.Status != domain.EntryStatusPending {
				return nil
			}
			if err := s.ledger.UpdateStatus(ctx, entry.EntryID, domain.EntryStatusPending, domain.EntryStatusAvailable, now); err != nil {
				return err
			}
			delta := ports.BalanceDelta{Pending: -entry.Net.Amount, Available: entry.Net.Amount}
			if err := s.balances.ApplyDelta(ctx, entry.CreatorID, entry.Net.Currency, delta, now); err != nil {
				return err
			}
			promoted++
			return s.enqueueEntryAvailable(ctx, entry)
		}()
		s.creatorLocks.Unlock(entry.CreatorID)
		if err != nil {
			return promoted, err
		}
	}
	return promoted, nil
}

// ScheduleRateChange records a signed commission override taking effect no
// sooner than the 30-day notice period.
func (s *Service) ScheduleRateChange(ctx context.Context, actor Actor, channel domain.Channel, rateBPS int64, effectiveAt time.Time, signature string) (domain.RateChange, error) {
	if !actor.IsAdmin() {
		return domain.RateChange{}, domain.ErrForbidden
	}
	rate, err := domain.RateFromBasisPoints(rateBPS)
	if err != nil {
		return domain.RateChange{}, err
	}
	change := domain.RateChange{
		ChangeID:    uuid.NewString(),
		Channel:     channel,
		Rate:        rate,
		EffectiveAt: effectiveAt.UTC(),
		Signature:   signature,
		CreatedAt:   s.nowFn(),
	}
	if err := change.Validate(s.nowFn(), s.cfg.RateChangeSecret); err != nil {
		return domain.RateChange{}, err
	}
	if err := s.rateChanges.Create(ctx, change); err != nil {
		return domain.RateChange{}, err
	}
	s.logger.InfoContext(ctx, "rate change scheduled", "channel", channel, "rate_bps", rateBPS, "effective_at", change.EffectiveAt)
	return change, nil
}

func (s *Service) ListRateChanges(ctx context.Context, actor Actor, channel domain.Channel) ([]domain.RateChange, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if !channel.Valid() {
		return nil, domain.ErrUnknownChannel
	}
	return s.rateChanges.List(ctx, channel)
}

func moneyView(m domain.Money) contracts.MoneyView {
	return contracts.MoneyView{AmountMinor: m.Amount, Currency: m.Currency, Display: m.String()}
}

func (s *Service) getIdempotentEntry(ctx context.Context, key, requestHash string) (domain.LedgerEntry, bool, error) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return domain.LedgerEntry{}, false, nil
	}
	rec, err := s.idempotency.Get(ctx, key, s.nowFn())
	if err != nil || rec == nil {
		return domain.LedgerEntry{}, false, err
	}
	if rec.RequestHash != requestHash {
		return domain.LedgerEntry{}, false, domain.ErrIdempotencyConflict
	}
	if len(rec.ResponseBody) == 0 {
		return domain.LedgerEntry{}, false, nil
	}
	var out domain.LedgerEntry
	if err := json.Unmarshal(rec.ResponseBody, &out); err != nil {
		return domain.LedgerEntry{}, false, nil
	}
	return out, true, nil
}

func (s *Service) reserveIdempotency(ctx context.Context, key, requestHash string) error {
	if s.idempotency == nil {
		return nil
	}
	err := s.idempotency.Reserve(ctx, key, requestHash, s.nowFn().Add(s.cfg.IdempotencyTTL))
	if errors.Is(err, domain.ErrConflict) {
		return domain.ErrIdempotencyConflict
	}
	return err
}

func (s *Service) completeIdempotencyJSON(ctx context.Context, key string, code int, payload any) error {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	b, _ := json.Marshal(payload)
	return s.idempotency.Complete(ctx, key, code, b, s.nowFn())
}

func hashPayload(value interface{}) string {
	blob, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
