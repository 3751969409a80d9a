package http

import (
	"encoding/json"
	"net/http"

	"github.com/viralforge/revenue-ledger/internal/contracts"
	"github.com/viralforge/revenue-ledger/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, contracts.SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, contracts.ErrorResponse{
		Status: "error",
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

func mapDomainError(err error) (status int, code string) {
	switch err {
	case nil:
		return http.StatusOK, ""
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case domain.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case domain.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case domain.ErrInvalidInput:
		return http.StatusBadRequest, "invalid_input"
	case domain.ErrInvalidAmount:
		return http.StatusBadRequest, "invalid_amount"
	case domain.ErrUnknownChannel:
		return http.StatusBadRequest, "unknown_channel"
	case domain.ErrCurrencyMismatch:
		return http.StatusBadRequest, "currency_mismatch"
	case domain.ErrIdempotencyRequired:
		return http.StatusBadRequest, "idempotency_key_required"
	case domain.ErrIdempotencyConflict:
		return http.StatusConflict, "idempotency_conflict"
	case domain.ErrConflict, domain.ErrDuplicateEvent:
		return http.StatusConflict, "conflict"
	case domain.ErrInvalidStateTransition:
		return http.StatusConflict, "invalid_state_transition"
	case domain.ErrHoldClosed:
		return http.StatusConflict, "hold_closed"
	case domain.ErrDeliveryAlreadySubmitted:
		return http.StatusConflict, "delivery_already_submitted"
	case domain.ErrDisputeUnresolved:
		return http.StatusConflict, "dispute_unresolved"
	case domain.ErrRefundWindowExpired:
		return http.StatusUnprocessableEntity, "refund_window_expired"
	case domain.ErrInsufficientBalance:
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case domain.ErrBelowThreshold:
		return http.StatusUnprocessableEntity, "below_minimum_payout"
	case domain.ErrKYCRequired:
		return http.StatusUnprocessableEntity, "kyc_required"
	case domain.ErrRequestAlreadyPending:
		return http.StatusConflict, "payout_already_pending"
	case domain.ErrBatchAlreadyRunning:
		return http.StatusConflict, "batch_already_running"
	case domain.ErrRateChangeNotice:
		return http.StatusUnprocessableEntity, "rate_change_notice"
	case domain.ErrRateChangeSignature:
		return http.StatusBadRequest, "rate_change_signature"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
