package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/revenue-ledger/internal/application"
	"github.com/viralforge/revenue-ledger/internal/contracts"
	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
)

func (h *Handler) recordRevenueEvent(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.RecordRevenueEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	entry, err := h.service.RecordRevenueEvent(r.Context(), actor, application.RecordEventInput{
		CreatorID:         strings.TrimSpace(req.CreatorID),
		Channel:           domain.Channel(strings.ToLower(strings.TrimSpace(req.Channel))),
		GrossMinor:        req.GrossMinor,
		Currency:          strings.ToUpper(strings.TrimSpace(req.Currency)),
		SourceRef:         strings.TrimSpace(req.SourceRef),
		CommissionRateBPS: req.CommissionRateBPS,
		OccurredAt:        req.OccurredAt,
		Metadata:          req.Metadata,
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", entry)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	creatorID := chi.URLParam(r, "creatorID")
	filter := ports.EntryFilter{
		Channel: domain.Channel(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("channel")))),
		Status:  domain.EntryStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))),
		From:    parseTimeOrZero(r.URL.Query().Get("from")),
		To:      parseTimeOrZero(r.URL.Query().Get("to")),
		Limit:   parseIntOrDefault(r.URL.Query().Get("limit"), 50),
		Offset:  parseIntOrDefault(r.URL.Query().Get("offset"), 0),
	}
	entries, err := h.service.ListEntries(r.Context(), actor, creatorID, filter)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"items": entries,
		"pagination": contracts.Pagination{
			Limit:  filter.Limit,
			Offset: filter.Offset,
			Total:  len(entries),
		},
	})
}

func (h *Handler) ledgerSummary(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	summary, err := h.service.LedgerSummary(r.Context(), actor, chi.URLParam(r, "creatorID"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", summary)
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.ReverseEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	entry, err := h.service.ReverseEntry(r.Context(), actor, chi.URLParam(r, "entryID"), strings.TrimSpace(req.Reason))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", entry)
}

func (h *Handler) withholdEntry(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.ReverseEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	entry, err := h.service.WithholdEntry(r.Context(), actor, chi.URLParam(r, "entryID"), strings.TrimSpace(req.Reason))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", entry)
}

func (h *Handler) scheduleRateChange(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.ScheduleRateChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	change, err := h.service.ScheduleRateChange(
		r.Context(),
		actor,
		domain.Channel(strings.ToLower(strings.TrimSpace(req.Channel))),
		req.RateBPS,
		req.EffectiveAt,
		strings.TrimSpace(req.Signature),
	)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", change)
}

func (h *Handler) listRateChanges(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	channel := domain.Channel(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "channel"))))
	changes, err := h.service.ListRateChanges(r.Context(), actor, channel)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{"items": changes})
}

func parseIntOrDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func parseTimeOrZero(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return value
}
