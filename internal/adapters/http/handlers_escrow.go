package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/revenue-ledger/internal/application"
	"github.com/viralforge/revenue-ledger/internal/contracts"
)

func (h *Handler) createEscrowOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.CreateEscrowOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	hold, err := h.service.CreateEscrowOrder(r.Context(), actor, application.CreateEscrowOrderInput{
		OrderID:          strings.TrimSpace(req.OrderID),
		BuyerID:          strings.TrimSpace(req.BuyerID),
		CreatorID:        strings.TrimSpace(req.CreatorID),
		AmountMinor:      req.AmountMinor,
		Currency:         strings.ToUpper(strings.TrimSpace(req.Currency)),
		AutoReleaseHours: req.AutoReleaseHours,
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", hold)
}

func (h *Handler) getEscrowOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	hold, err := h.service.GetEscrowOrder(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", hold)
}

func (h *Handler) submitDelivery(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	hold, err := h.service.SubmitDelivery(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", hold)
}

func (h *Handler) acceptDelivery(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	hold, err := h.service.AcceptDelivery(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", hold)
}

func (h *Handler) requestRefund(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	hold, err := h.service.RequestRefund(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", hold)
}

func (h *Handler) disputeOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.DisputeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	hold, err := h.service.DisputeOrder(r.Context(), actor, chi.URLParam(r, "orderID"), strings.TrimSpace(req.Reason))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", hold)
}

func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.ResolveDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	hold, err := h.service.ResolveDispute(r.Context(), actor, chi.URLParam(r, "orderID"), strings.ToLower(strings.TrimSpace(req.Decision)))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", hold)
}
