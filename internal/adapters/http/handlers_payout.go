package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/revenue-ledger/internal/application"
	"github.com/viralforge/revenue-ledger/internal/contracts"
	"github.com/viralforge/revenue-ledger/internal/domain"
)

func (h *Handler) requestPayout(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.RequestPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	payout, err := h.service.RequestPayout(r.Context(), actor, application.RequestPayoutInput{
		CreatorID:   strings.TrimSpace(req.CreatorID),
		AmountMinor: req.AmountMinor,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Method:      domain.PayoutMethod(strings.ToLower(strings.TrimSpace(req.Method))),
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", payout)
}

func (h *Handler) payoutStatus(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	payout, err := h.service.PayoutStatus(r.Context(), actor, chi.URLParam(r, "requestID"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", payout)
}

func (h *Handler) cancelPayout(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	payout, err := h.service.CancelPayout(r.Context(), actor, chi.URLParam(r, "requestID"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", payout)
}

func (h *Handler) retryPayout(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	payout, err := h.service.RetryPayout(r.Context(), actor, chi.URLParam(r, "requestID"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", payout)
}

func (h *Handler) quarantinePayout(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.QuarantinePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	payout, err := h.service.QuarantinePayout(r.Context(), actor, chi.URLParam(r, "requestID"), strings.TrimSpace(req.Reason))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", payout)
}

func (h *Handler) clearQuarantine(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	payout, err := h.service.ClearQuarantine(r.Context(), actor, chi.URLParam(r, "requestID"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", payout)
}
