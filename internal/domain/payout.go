package domain

import (
	"strings"
	"time"
)

type PayoutState string
type PayoutMethod string

const (
	PayoutStateRequested   PayoutState = "requested"
	PayoutStateQueued      PayoutState = "queued"
	PayoutStateProcessing  PayoutState = "processing"
	PayoutStatePaid        PayoutState = "paid"
	PayoutStateFailed      PayoutState = "failed"
	PayoutStateQuarantined PayoutState = "quarantined"
)

const (
	PayoutMethodSEPA   PayoutMethod = "sepa"
	PayoutMethodPayPal PayoutMethod = "paypal"
)

// MinimumPayoutMinor is the smallest withdrawable amount (10.00 in the
// platform currency).
const MinimumPayoutMinor = 1000

func (m PayoutMethod) Valid() bool {
	return m == PayoutMethodSEPA || m == PayoutMethodPayPal
}

// Terminal reports whether the state releases the creator's single-pending
// slot. Failed requests have had their reservation returned, so a fresh
// request may be opened alongside them; a retry re-checks the balance.
func (s PayoutState) Terminal() bool {
	return s == PayoutStatePaid || s == PayoutStateFailed
}

func CanTransitionPayout(from, to PayoutState) bool {
	if to == PayoutStateQuarantined {
		return !from.Terminal() && from != PayoutStateQuarantined
	}
	switch from {
	case PayoutStateRequested:
		return to == PayoutStateQueued || to == PayoutStateFailed
	case PayoutStateQueued:
		return to == PayoutStateProcessing || to == PayoutStateFailed
	case PayoutStateProcessing:
		return to == PayoutStatePaid || to == PayoutStateFailed
	case PayoutStateFailed:
		return to == PayoutStateQueued
	case PayoutStateQuarantined:
		return to == PayoutStateQueued || to == PayoutStateFailed
	default:
		return false
	}
}

// PayoutRequest converts available ledger balance into an external transfer.
// The reserved amount is tracked in the balance projection, not as a ledger
// entry, from acceptance until the request settles or fails.
type PayoutRequest struct {
	RequestID     string       `json:"request_id"`
	CreatorID     string       `json:"creator_id"`
	Amount        Money        `json:"requested_amount"`
	Method        PayoutMethod `json:"method"`
	State         PayoutState  `json:"state"`
	KYCVerified   bool         `json:"kyc_verified"`
	FailureReason string       `json:"failure_reason,omitempty"`
	Attempts      int          `json:"attempts"`
	RequestedAt   time.Time    `json:"requested_at"`
	QueuedAt      *time.Time   `json:"queued_at,omitempty"`
	ProcessingAt  *time.Time   `json:"processing_at,omitempty"`
	SettledAt     *time.Time   `json:"settled_at,omitempty"`
	FailedAt      *time.Time   `json:"failed_at,omitempty"`
	QuarantinedAt *time.Time   `json:"quarantined_at,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func ValidatePayoutInput(creatorID string, amount Money, method PayoutMethod) error {
	if strings.TrimSpace(creatorID) == "" {
		return ErrInvalidInput
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !method.Valid() {
		return ErrInvalidInput
	}
	return nil
}
