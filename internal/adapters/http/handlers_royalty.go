package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/revenue-ledger/internal/application"
	"github.com/viralforge/revenue-ledger/internal/contracts"
)

func (h *Handler) recordStream(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.RecordStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	stream, err := h.service.RecordStream(r.Context(), actor, application.RecordStreamInput{
		TrackID:         strings.TrimSpace(req.TrackID),
		CreatorID:       strings.TrimSpace(req.CreatorID),
		ListenerID:      strings.TrimSpace(req.ListenerID),
		DurationSeconds: req.DurationSeconds,
		StreamedAt:      req.StreamedAt,
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", stream)
}

func (h *Handler) closeRoyaltyPeriod(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.CloseRoyaltyPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	entries, err := h.service.CloseRoyaltyPeriod(r.Context(), actor, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *Handler) listRoyaltyPeriods(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	periods, err := h.service.ListRoyaltyPeriods(r.Context(), actor, chi.URLParam(r, "creatorID"), parseIntOrDefault(r.URL.Query().Get("limit"), 50))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{"items": periods})
}
