package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
)

// RequestPayout validates KYC, threshold and balance, then atomically moves
// the requested amount from Available into the reservation counter under the
// creator lock. Concurrent requests for the same creator serialize here, so
// a balance that covers one request admits at most one.
func (s *Service) RequestPayout(ctx context.Context, actor Actor, input RequestPayoutInput) (domain.PayoutRequest, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.PayoutRequest{}, domain.ErrUnauthorized
	}
	if !actor.IsAdmin() && actor.SubjectID != input.CreatorID {
		return domain.PayoutRequest{}, domain.ErrForbidden
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.PayoutRequest{}, domain.ErrIdempotencyRequired
	}
	if input.Currency == "" {
		input.Currency = s.cfg.DefaultCurrency
	}
	amount := domain.NewMoney(input.AmountMinor, input.Currency)
	if err := domain.ValidatePayoutInput(input.CreatorID, amount, input.Method); err != nil {
		return domain.PayoutRequest{}, err
	}

	requestHash := hashPayload(input)
	if cached, ok, err := s.getIdempotentPayout(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.PayoutRequest{}, err
	} else if ok {
		return cached, nil
	}

	verified, err := s.kyc.IsVerified(ctx, input.CreatorID)
	if err != nil {
		return domain.PayoutRequest{}, fmt.Errorf("kyc lookup: %w", err)
	}
	if !verified {
		return domain.PayoutRequest{}, domain.ErrKYCRequired
	}
	if amount.Amount < s.cfg.MinimumPayoutMinor {
		return domain.PayoutRequest{}, domain.ErrBelowThreshold
	}

	s.creatorLocks.Lock(input.CreatorID)
	defer s.creatorLocks.Unlock(input.CreatorID)

	if _, err := s.payouts.FindActiveByCreator(ctx, input.CreatorID); err == nil {
		return domain.PayoutRequest{}, domain.ErrRequestAlreadyPending
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.PayoutRequest{}, err
	}

	snapshot, err := s.balances.Get(ctx, input.CreatorID, input.Currency)
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	if amount.Amount > snapshot.Available {
		return domain.PayoutRequest{}, domain.ErrInsufficientBalance
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.PayoutRequest{}, err
	}

	now := s.nowFn()
	if err := s.balances.ApplyDelta(ctx, input.CreatorID, input.Currency, ports.BalanceDelta{Available: -amount.Amount, Reserved: amount.Amount}, now); err != nil {
		return domain.PayoutRequest{}, fmt.Errorf("reserve balance: %w", err)
	}
	request := domain.PayoutRequest{
		RequestID:   uuid.NewString(),
		CreatorID:   input.CreatorID,
		Amount:      amount,
		Method:      input.Method,
		State:       domain.PayoutStateRequested,
		KYCVerified: verified,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	if err := s.payouts.Create(ctx, request); err != nil {
		return domain.PayoutRequest{}, err
	}
	if err := s.enqueuePayoutEvent(ctx, domain.EventPayoutRequested, request); err != nil {
		return domain.PayoutRequest{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 201, request)
	return request, nil
}

func (s *Service) PayoutStatus(ctx context.Context, actor Actor, requestID string) (domain.PayoutRequest, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.PayoutRequest{}, domain.ErrUnauthorized
	}
	request, err := s.payouts.GetByID(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	if !actor.IsAdmin() && actor.SubjectID != request.CreatorID {
		return domain.PayoutRequest{}, domain.ErrForbidden
	}
	return request, nil
}

// CancelPayout is honored only before processing starts. Once a request is
// with the provider the system waits for confirmation or timeout.
func (s *Service) CancelPayout(ctx context.Context, actor Actor, requestID string) (domain.PayoutRequest, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.PayoutRequest{}, domain.ErrUnauthorized
	}
	request, err := s.payouts.GetByID(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	if !actor.IsAdmin() && actor.SubjectID != request.CreatorID {
		return domain.PayoutRequest{}, domain.ErrForbidden
	}

	s.creatorLocks.Lock(request.CreatorID)
	defer s.creatorLocks.Unlock(request.CreatorID)

	request, err = s.payouts.GetByID(ctx, request.RequestID)
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	if request.State != domain.PayoutStateRequested && request.State != domain.PayoutStateQueued {
		return domain.PayoutRequest{}, domain.ErrInvalidStateTransition
	}
	return s.failPayout(ctx, request, "cancelled_by_creator")
}

// ProcessPayoutBatch runs on the weekly cadence: promotes Requested to
// Queued, then drives each Queued request through the provider with bounded
// retries. Safe to resume after a crash; requests stuck in Processing from a
// dead run are picked up again and the provider call repeated.
func (s *Service) ProcessPayoutBatch(ctx context.Context) (int, error) {
	if s.runLock != nil {
		acquired, err := s.runLock.Acquire(ctx, "payout-batch", s.cfg.RunLockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire payout run lock: %w", err)
		}
		if !acquired {
			return 0, domain.ErrBatchAlreadyRunning
		}
		defer func() { _ = s.runLock.Release(ctx, "payout-batch") }()
	}

	requested, err := s.payouts.ListByState(ctx, domain.PayoutStateRequested, 500)
	if err != nil {
		return 0, err
	}
	for _, request := range requested {
		now := s.nowFn()
		request.State = domain.PayoutStateQueued
		request.QueuedAt = &now
		request.UpdatedAt = now
		if err := s.payouts.Update(ctx, request, domain.PayoutStateRequested); err != nil {
			// Cancelled or quarantined since the listing; leave it be.
			if errors.Is(err, domain.ErrInvalidStateTransition) {
				continue
			}
			return 0, err
		}
	}

	queued, err := s.payouts.ListByState(ctx, domain.PayoutStateQueued, 500)
	if err != nil {
		return 0, err
	}
	stale, err := s.payouts.ListByState(ctx, domain.PayoutStateProcessing, 500)
	if err != nil {
		return 0, err
	}
	queued = append(queued, stale...)

	settled := 0
	for _, request := range queued {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		paid, err := s.processPayout(ctx, request)
		if err != nil {
			return settled, err
		}
		if paid {
			settled++
		}
	}
	return settled, nil
}

func (s *Service) processPayout(ctx context.Context, request domain.PayoutRequest) (bool, error) {
	if request.State == domain.PayoutStateQueued {
		now := s.nowFn()
		request.State = domain.PayoutStateProcessing
		request.ProcessingAt = &now
		request.UpdatedAt = now
		if err := s.payouts.Update(ctx, request, domain.PayoutStateQueued); err != nil {
			if errors.Is(err, domain.ErrInvalidStateTransition) {
				return false, nil
			}
			return false, err
		}
	}

	var providerErr error
	for attempt := 1; attempt <= s.cfg.ProviderMaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		providerErr = s.provider.SubmitPayout(callCtx, request)
		cancel()
		if providerErr == nil {
			break
		}
		request.Attempts++
		s.logger.ErrorContext(ctx, "provider payout attempt failed", "request_id", request.RequestID, "attempt", attempt, "error", providerErr)
		if attempt < s.cfg.ProviderMaxAttempts {
			s.sleepFn(s.cfg.ProviderBackoff * time.Duration(attempt))
		}
	}

	s.creatorLocks.Lock(request.CreatorID)
	defer s.creatorLocks.Unlock(request.CreatorID)

	if providerErr != nil {
		_, err := s.failPayout(ctx, request, providerErr.Error())
		return false, err
	}

	now := s.nowFn()
	request.State = domain.PayoutStatePaid
	request.SettledAt = &now
	request.UpdatedAt = now
	if err := s.payouts.Update(ctx, request, domain.PayoutStateProcessing); err != nil {
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			// Quarantined while the provider call was in flight. The
			// reservation stays held; settlement needs manual reconciliation.
			s.logger.ErrorContext(ctx, "provider settled but request left processing", "request_id", request.RequestID)
			return false, nil
		}
		return false, err
	}
	// Finalize: the reserved amount leaves the ledger for good.
	if err := s.balances.ApplyDelta(ctx, request.CreatorID, request.Amount.Currency, ports.BalanceDelta{Reserved: -request.Amount.Amount}, now); err != nil {
		return false, fmt.Errorf("finalize reservation: %w", err)
	}
	if err := s.enqueuePayoutEvent(ctx, domain.EventPayoutPaid, request); err != nil {
		return false, err
	}
	return true, nil
}

// failPayout transitions to Failed and returns the reservation to Available.
// Callers hold the creator lock.
func (s *Service) failPayout(ctx context.Context, request domain.PayoutRequest, reason string) (domain.PayoutRequest, error) {
	from := request.State
	now := s.nowFn()
	request.State = domain.PayoutStateFailed
	request.FailureReason = reason
	request.FailedAt = &now
	request.UpdatedAt = now
	if err := s.payouts.Update(ctx, request, from); err != nil {
		return domain.PayoutRequest{}, err
	}
	if err := s.balances.ApplyDelta(ctx, request.CreatorID, request.Amount.Currency, ports.BalanceDelta{Reserved: -request.Amount.Amount, Available: request.Amount.Amount}, now); err != nil {
		return domain.PayoutRequest{}, fmt.Errorf("release reservation: %w", err)
	}
	if err := s.enqueuePayoutEvent(ctx, domain.EventPayoutFailed, request); err != nil {
		return domain.PayoutRequest{}, err
	}
	return request, nil
}

// RetryPayout re-queues a failed request. The reservation was released on
// failure, so the full precondition set is re-checked and re-reserved.
func (s *Service) RetryPayout(ctx context.Context, actor Actor, requestID string) (domain.PayoutRequest, error) {
	if !actor.IsAdmin() {
		return domain.PayoutRequest{}, domain.ErrForbidden
	}
	request, err := s.payouts.GetByID(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return domain.PayoutRequest{}, err
	}

	s.creatorLocks.Lock(request.CreatorID)
	defer s.creatorLocks.Unlock(request.CreatorID)

	request, err = s.payouts.GetByID(ctx, request.RequestID)
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	if !domain.CanTransitionPayout(request.State, domain.PayoutStateQueued) || request.State != domain.PayoutStateFailed {
		return domain.PayoutRequest{}, domain.ErrInvalidStateTransition
	}
	if _, err := s.payouts.FindActiveByCreator(ctx, request.CreatorID); err == nil {
		return domain.PayoutRequest{}, domain.ErrRequestAlreadyPending
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.PayoutRequest{}, err
	}
	snapshot, err := s.balances.Get(ctx, request.CreatorID, request.Amount.Currency)
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	if request.Amount.Amount > snapshot.Available {
		return domain.PayoutRequest{}, domain.ErrInsufficientBalance
	}

	now := s.nowFn()
	if err := s.balances.ApplyDelta(ctx, request.CreatorID, request.Amount.Currency, ports.BalanceDelta{Available: -request.Amount.Amount, Reserved: request.Amount.Amount}, now); err != nil {
		return domain.PayoutRequest{}, fmt.Errorf("reserve balance: %w", err)
	}
	request.State = domain.PayoutStateQueued
	request.FailureReason = ""
	request.Attempts = 0
	request.QueuedAt = &now
	request.FailedAt = nil
	request.UpdatedAt = now
	if err := s.payouts.Update(ctx, request, domain.PayoutStateFailed); err != nil {
		return domain.PayoutRequest{}, err
	}
	return request, nil
}

// QuarantinePayout parks a request under a fraud or compliance hold. The
// reservation stays in place; only manual clearance resumes the request.
func (s *Service) QuarantinePayout(ctx context.Context, actor Actor, requestID, reason string) (domain.PayoutRequest, error) {
	if !actor.IsAdmin() {
		return domain.PayoutRequest{}, domain.ErrForbidden
	}
	request, err := s.payouts.GetByID(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return domain.PayoutRequest{}, err
	}

	s.creatorLocks.Lock(request.CreatorID)
	defer s.creatorLocks.Unlock(request.CreatorID)

	request, err = s.payouts.GetByID(ctx, request.RequestID)
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	if !domain.CanTransitionPayout(request.State, domain.PayoutStateQuarantined) {
		return domain.PayoutRequest{}, domain.ErrInvalidStateTransition
	}
	from := request.State
	now := s.nowFn()
	request.State = domain.PayoutStateQuarantined
	request.FailureReason = reason
	request.QuarantinedAt = &now
	request.UpdatedAt = now
	if err := s.payouts.Update(ctx, request, from); err != nil {
		return domain.PayoutRequest{}, err
	}
	if err := s.enqueuePayoutEvent(ctx, domain.EventPayoutQuarantined, request); err != nil {
		return domain.PayoutRequest{}, err
	}
	return request, nil
}

// ClearQuarantine resumes a cleared request into the queue with its
// reservation intact.
func (s *Service) ClearQuarantine(ctx context.Context, actor Actor, requestID string) (domain.PayoutRequest, error) {
	if !actor.IsAdmin() {
		return domain.PayoutRequest{}, domain.ErrForbidden
	}
	request, err := s.payouts.GetByID(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return domain.PayoutRequest{}, err
	}

	s.creatorLocks.Lock(request.CreatorID)
	defer s.creatorLocks.Unlock(request.CreatorID)

	request, err = s.payouts.GetByID(ctx, request.RequestID)
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	if request.State != domain.PayoutStateQuarantined {
		return domain.PayoutRequest{}, domain.ErrInvalidStateTransition
	}
	now := s.nowFn()
	request.State = domain.PayoutStateQueued
	request.FailureReason = ""
	request.QueuedAt = &now
	request.UpdatedAt = now
	if err := s.payouts.Update(ctx, request, domain.PayoutStateQuarantined); err != nil {
		return domain.PayoutRequest{}, err
	}
	return request, nil
}

func (s *Service) getIdempotentPayout(ctx context.Context, key, requestHash string) (domain.PayoutRequest, bool, error) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return domain.PayoutRequest{}, false, nil
	}
	rec, err := s.idempotency.Get(ctx, key, s.nowFn())
	if err != nil || rec == nil {
		return domain.PayoutRequest{}, false, err
	}
	if rec.RequestHash != requestHash {
		return domain.PayoutRequest{}, false, domain.ErrIdempotencyConflict
	}
	if len(rec.ResponseBody) == 0 {
		return domain.PayoutRequest{}, false, nil
	}
	var out domain.PayoutRequest
	if err := json.Unmarshal(rec.ResponseBody, &out); err != nil {
		return domain.PayoutRequest{}, false, nil
	}
	return out, true, nil
}
