package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/revenue-ledger/internal/domain"
)

func (s *Service) CreateEscrowOrder(ctx context.Context, actor Actor, input CreateEscrowOrderInput) (domain.EscrowHold, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowHold{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.EscrowHold{}, domain.ErrIdempotencyRequired
	}
	input.OrderID = strings.TrimSpace(input.OrderID)
	input.BuyerID = strings.TrimSpace(input.BuyerID)
	input.CreatorID = strings.TrimSpace(input.CreatorID)
	if input.OrderID == "" || input.BuyerID == "" || input.CreatorID == "" {
		return domain.EscrowHold{}, domain.ErrInvalidInput
	}
	if input.AmountMinor <= 0 {
		return domain.EscrowHold{}, domain.ErrInvalidAmount
	}
	if input.Currency == "" {
		input.Currency = s.cfg.DefaultCurrency
	}

	// One hold per order: re-delivery returns the existing hold.
	if existing, err := s.holds.GetByOrderID(ctx, input.OrderID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.EscrowHold{}, err
	}

	// The auto-release override is fixed at creation time and bounded by the
	// administrator-configured floor and ceiling.
	delay := s.cfg.EscrowAutoRelease
	if input.AutoReleaseHours > 0 {
		delay = domain.ClampAutoRelease(time.Duration(input.AutoReleaseHours)*time.Hour, s.cfg.EscrowAutoReleaseFloor, s.cfg.EscrowAutoReleaseCeiling)
	}

	now := s.nowFn()
	hold := domain.EscrowHold{
		HoldID:           uuid.NewString(),
		OrderID:          input.OrderID,
		BuyerID:          input.BuyerID,
		CreatorID:        input.CreatorID,
		Amount:           domain.NewMoney(input.AmountMinor, input.Currency),
		State:            domain.HoldStateHeld,
		AutoReleaseDelay: delay,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.holds.Create(ctx, hold); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.holds.GetByOrderID(ctx, input.OrderID)
		}
		return domain.EscrowHold{}, err
	}
	if err := s.enqueueHoldEvent(ctx, domain.EventEscrowHoldCreated, hold); err != nil {
		return domain.EscrowHold{}, err
	}
	return hold, nil
}

// SubmitDelivery marks the creator's deliverable as submitted and arms the
// auto-release timer.
func (s *Service) SubmitDelivery(ctx context.Context, actor Actor, orderID string) (domain.EscrowHold, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowHold{}, domain.ErrUnauthorized
	}
	hold, err := s.holds.GetByOrderID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if !actor.IsAdmin() && actor.SubjectID != hold.CreatorID {
		return domain.EscrowHold{}, domain.ErrForbidden
	}
	if hold.State != domain.HoldStateHeld {
		return domain.EscrowHold{}, domain.ErrInvalidStateTransition
	}
	if hold.DeliveredAt != nil {
		return domain.EscrowHold{}, domain.ErrDeliveryAlreadySubmitted
	}
	now := s.nowFn()
	release := now.Add(hold.AutoReleaseDelay)
	hold.DeliveredAt = &now
	hold.AutoReleaseAt = &release
	hold.UpdatedAt = now
	if err := s.holds.Update(ctx, hold); err != nil {
		return domain.EscrowHold{}, err
	}
	return hold, nil
}

// AcceptDelivery is the buyer's confirmation; it releases held funds to the
// creator immediately.
func (s *Service) AcceptDelivery(ctx context.Context, actor Actor, orderID string) (domain.EscrowHold, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowHold{}, domain.ErrUnauthorized
	}
	hold, err := s.holds.GetByOrderID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if !actor.IsAdmin() && actor.SubjectID != hold.BuyerID {
		return domain.EscrowHold{}, domain.ErrForbidden
	}
	if hold.State != domain.HoldStateHeld {
		return domain.EscrowHold{}, invalidHoldTransition(hold.State)
	}
	if hold.DeliveredAt == nil {
		return domain.EscrowHold{}, domain.ErrInvalidStateTransition
	}
	return s.releaseHold(ctx, hold, "delivery_accepted")
}

// RequestRefund returns held funds to the buyer. Only reachable while no
// delivery has been submitted and the policy window is open.
func (s *Service) RequestRefund(ctx context.Context, actor Actor, orderID string) (domain.EscrowHold, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowHold{}, domain.ErrUnauthorized
	}
	hold, err := s.holds.GetByOrderID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if !actor.IsAdmin() && actor.SubjectID != hold.BuyerID {
		return domain.EscrowHold{}, domain.ErrForbidden
	}
	if hold.State != domain.HoldStateHeld {
		return domain.EscrowHold{}, invalidHoldTransition(hold.State)
	}
	if hold.DeliveredAt != nil {
		return domain.EscrowHold{}, domain.ErrDeliveryAlreadySubmitted
	}
	now := s.nowFn()
	if now.After(hold.CreatedAt.Add(s.cfg.EscrowRefundWindow)) {
		return domain.EscrowHold{}, domain.ErrRefundWindowExpired
	}
	return s.refundHold(ctx, hold, "buyer_refund")
}

func (s *Service) DisputeOrder(ctx context.Context, actor Actor, orderID, reason string) (domain.EscrowHold, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowHold{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(reason) == "" {
		return domain.EscrowHold{}, domain.ErrInvalidInput
	}
	hold, err := s.holds.GetByOrderID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.EscrowHold{}, err
	}
	// Either party may open a dispute.
	if !actor.IsAdmin() && actor.SubjectID != hold.BuyerID && actor.SubjectID != hold.CreatorID {
		return domain.EscrowHold{}, domain.ErrForbidden
	}
	if !domain.CanTransitionHold(hold.State, domain.HoldStateDisputed) {
		return domain.EscrowHold{}, invalidHoldTransition(hold.State)
	}
	now := s.nowFn()
	hold.State = domain.HoldStateDisputed
	hold.DisputeReason = reason
	hold.UpdatedAt = now
	if err := s.holds.Update(ctx, hold); err != nil {
		return domain.EscrowHold{}, err
	}
	if err := s.enqueueHoldEvent(ctx, domain.EventEscrowHoldDisputed, hold); err != nil {
		return domain.EscrowHold{}, err
	}
	return hold, nil
}

// ResolveDispute records the mediator decision. Disputes never time out on
// their own; this is the only way out of Disputed.
func (s *Service) ResolveDispute(ctx context.Context, actor Actor, orderID, decision string) (domain.EscrowHold, error) {
	if !actor.IsAdmin() {
		return domain.EscrowHold{}, domain.ErrForbidden
	}
	hold, err := s.holds.GetByOrderID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if hold.State != domain.HoldStateDisputed {
		return domain.EscrowHold{}, invalidHoldTransition(hold.State)
	}
	switch decision {
	case "release":
		return s.releaseHold(ctx, hold, "mediator_release")
	case "refund":
		return s.refundHold(ctx, hold, "mediator_refund")
	default:
		return domain.EscrowHold{}, domain.ErrInvalidInput
	}
}

// ReleaseExpired releases all held orders whose auto-release timer elapsed
// without buyer action. Run by the worker; re-runs are no-ops.
func (s *Service) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	holds, err := s.holds.ListAutoReleasable(ctx, now, 200)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, hold := range holds {
		if _, err := s.releaseHold(ctx, hold, "auto_release"); err != nil {
			if errors.Is(err, domain.ErrInvalidStateTransition) || errors.Is(err, domain.ErrHoldClosed) || errors.Is(err, domain.ErrDisputeUnresolved) {
				continue
			}
			return released, err
		}
		released++
	}
	return released, nil
}

// releaseHold performs the single terminal release transition and posts the
// Marketplace ledger entry. Escrow-released funds are Available immediately:
// the validation delay already passed inside the hold.
func (s *Service) releaseHold(ctx context.Context, hold domain.EscrowHold, resolution string) (domain.EscrowHold, error) {
	s.creatorLocks.Lock(hold.CreatorID)
	defer s.creatorLocks.Unlock(hold.CreatorID)

	current, err := s.holds.GetByID(ctx, hold.HoldID)
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if !domain.CanTransitionHold(current.State, domain.HoldStateReleased) {
		return domain.EscrowHold{}, invalidHoldTransition(current.State)
	}
	now := s.nowFn()
	current.State = domain.HoldStateReleased
	current.Resolution = resolution
	current.UpdatedAt = now
	current.ClosedAt = &now
	if err := s.holds.Update(ctx, current); err != nil {
		return domain.EscrowHold{}, err
	}

	rate, err := s.commissionRateFor(ctx, domain.ChannelMarketplace, nil, now)
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if _, err := s.postEntry(ctx, entrySpec{
		creatorID:   current.CreatorID,
		channel:     domain.ChannelMarketplace,
		gross:       current.Amount,
		rate:        rate,
		availableAt: now,
		sourceRef:   "escrow:" + current.OrderID,
		metadata:    map[string]string{"order_id": current.OrderID, "resolution": resolution},
	}); err != nil {
		return domain.EscrowHold{}, err
	}
	if err := s.enqueueHoldEvent(ctx, domain.EventEscrowHoldReleased, current); err != nil {
		return domain.EscrowHold{}, err
	}
	return current, nil
}

// refundHold performs the single terminal refund transition. The buyer is
// made whole by the external payment collaborator; no creator entry exists.
func (s *Service) refundHold(ctx context.Context, hold domain.EscrowHold, resolution string) (domain.EscrowHold, error) {
	s.creatorLocks.Lock(hold.CreatorID)
	defer s.creatorLocks.Unlock(hold.CreatorID)

	current, err := s.holds.GetByID(ctx, hold.HoldID)
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if !domain.CanTransitionHold(current.State, domain.HoldStateRefunded) {
		return domain.EscrowHold{}, invalidHoldTransition(current.State)
	}
	now := s.nowFn()
	current.State = domain.HoldStateRefunded
	current.Resolution = resolution
	current.UpdatedAt = now
	current.ClosedAt = &now
	if err := s.holds.Update(ctx, current); err != nil {
		return domain.EscrowHold{}, err
	}
	if err := s.enqueueHoldEvent(ctx, domain.EventEscrowHoldRefunded, current); err != nil {
		return domain.EscrowHold{}, err
	}
	return current, nil
}

func (s *Service) GetEscrowOrder(ctx context.Context, actor Actor, orderID string) (domain.EscrowHold, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowHold{}, domain.ErrUnauthorized
	}
	hold, err := s.holds.GetByOrderID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.EscrowHold{}, err
	}
	if !actor.IsAdmin() && actor.SubjectID != hold.BuyerID && actor.SubjectID != hold.CreatorID {
		return domain.EscrowHold{}, domain.ErrForbidden
	}
	return hold, nil
}

func invalidHoldTransition(state domain.HoldState) error {
	switch {
	case state.Terminal():
		return domain.ErrHoldClosed
	case state == domain.HoldStateDisputed:
		return domain.ErrDisputeUnresolved
	default:
		return domain.ErrInvalidStateTransition
	}
}
