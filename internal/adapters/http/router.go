package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/revenue-ledger/internal/adapters/security"
	"github.com/viralforge/revenue-ledger/internal/application"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

func NewRouter(handler *Handler, verifier *security.TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(verifier))

			r.Post("/revenue/events", handler.recordRevenueEvent)
			r.Get("/ledger/{creatorID}/entries", handler.listEntries)
			r.Get("/ledger/{creatorID}/summary", handler.ledgerSummary)
			r.Post("/ledger/entries/{entryID}/reverse", handler.reverseEntry)
			r.Post("/ledger/entries/{entryID}/withhold", handler.withholdEntry)

			r.Post("/escrow/orders", handler.createEscrowOrder)
			r.Get("/escrow/orders/{orderID}", handler.getEscrowOrder)
			r.Post("/escrow/orders/{orderID}/deliver", handler.submitDelivery)
			r.Post("/escrow/orders/{orderID}/accept", handler.acceptDelivery)
			r.Post("/escrow/orders/{orderID}/refund", handler.requestRefund)
			r.Post("/escrow/orders/{orderID}/dispute", handler.disputeOrder)
			r.Post("/escrow/orders/{orderID}/resolve", handler.resolveDispute)

			r.Post("/streams", handler.recordStream)
			r.Post("/royalties/close", handler.closeRoyaltyPeriod)
			r.Get("/royalties/{creatorID}/periods", handler.listRoyaltyPeriods)

			r.Post("/payouts/request", handler.requestPayout)
			r.Get("/payouts/{requestID}", handler.payoutStatus)
			r.Post("/payouts/{requestID}/cancel", handler.cancelPayout)
			r.Post("/payouts/{requestID}/retry", handler.retryPayout)
			r.Post("/payouts/{requestID}/quarantine", handler.quarantinePayout)
			r.Post("/payouts/{requestID}/release", handler.clearQuarantine)

			r.Post("/rates/changes", handler.scheduleRateChange)
			r.Get("/rates/{channel}/changes", handler.listRateChanges)
		})
	})
	return r
}
