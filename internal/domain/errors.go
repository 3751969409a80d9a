package domain

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrIdempotencyRequired = errors.New("idempotency key required")
	ErrIdempotencyConflict = errors.New("idempotency conflict")

	ErrInvalidAmount            = errors.New("invalid amount")
	ErrUnknownChannel           = errors.New("unknown channel")
	ErrDuplicateEvent           = errors.New("duplicate event")
	ErrCurrencyMismatch         = errors.New("currency mismatch")
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrKYCRequired              = errors.New("kyc verification required")
	ErrBelowThreshold           = errors.New("amount below payout threshold")
	ErrRequestAlreadyPending    = errors.New("payout request already pending")
	ErrHoldClosed               = errors.New("escrow hold closed")
	ErrDeliveryAlreadySubmitted = errors.New("delivery already submitted")
	ErrRefundWindowExpired      = errors.New("refund window expired")
	ErrDisputeUnresolved        = errors.New("dispute requires mediator decision")
	ErrProviderTimeout          = errors.New("payment provider timeout")
	ErrProviderRejected         = errors.New("payment provider rejected")
	ErrBatchAlreadyRunning      = errors.New("batch already running")
	ErrRateChangeNotice         = errors.New("rate change notice period too short")
	ErrRateChangeSignature      = errors.New("rate change signature invalid")
)
