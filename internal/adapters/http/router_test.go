package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	eventadapter "github.com/viralforge/revenue-ledger/internal/adapters/events"
	grpcadapter "github.com/viralforge/revenue-ledger/internal/adapters/grpc"
	"github.com/viralforge/revenue-ledger/internal/adapters/memory"
	"github.com/viralforge/revenue-ledger/internal/adapters/security"
	"github.com/viralforge/revenue-ledger/internal/application"
	"github.com/viralforge/revenue-ledger/internal/contracts"
)

func newTestRouter(t *testing.T, verifier *security.TokenVerifier) http.Handler {
	t.Helper()
	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Config:       application.Config{RateChangeSecret: []byte("router-secret")},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Ledger:       repos.Ledger,
		Balances:     repos.Balances,
		Holds:        repos.Holds,
		Streams:      repos.Streams,
		Royalties:    repos.Royalties,
		Payouts:      repos.Payouts,
		RateChanges:  repos.RateChanges,
		Idempotency:  repos.Idempotency,
		Outbox:       repos.Outbox,
		KYC:          grpcadapter.NewKYCClient(""),
		Provider:     grpcadapter.NewPaymentProviderClient(""),
		RunLock:      memory.NewRunLock(),
		DomainEvents: eventadapter.NewMemoryDomainPublisher(),
		Analytics:    eventadapter.NewMemoryAnalyticsPublisher(),
		DLQ:          eventadapter.NewMemoryDLQPublisher(),
	})
	return NewRouter(NewHandler(svc), verifier)
}

func doJSON(t *testing.T, router http.Handler, method, path, bearer, idemKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, router, http.MethodGet, path, "", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s = %d, want 200", path, rec.Code)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/ledger/c1/summary", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing bearer = %d, want 401", rec.Code)
	}
	var resp contracts.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Status != "error" || resp.Error.Code != "unauthorized" {
		t.Fatalf("error body = %+v", resp)
	}
}

func TestRecordEventAndSummaryFlow(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/revenue/events", "user:creator-1", "evt-1", contracts.RecordRevenueEventRequest{
		CreatorID:  "creator-1",
		Channel:    "tip",
		GrossMinor: 500,
		SourceRef:  "tip:1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record event = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/ledger/creator-1/summary", "user:creator-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status string                          `json:"status"`
		Data   contracts.LedgerSummaryResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if resp.Data.Available.AmountMinor != 450 {
		t.Fatalf("available = %d, want 450", resp.Data.Available.AmountMinor)
	}
	if resp.Data.Available.Display != "4.50 EUR" {
		t.Fatalf("display = %q, want %q", resp.Data.Available.Display, "4.50 EUR")
	}
}

func TestDomainErrorMapping(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil)

	// Missing idempotency key.
	rec := doJSON(t, router, http.MethodPost, "/v1/revenue/events", "user:creator-1", "", contracts.RecordRevenueEventRequest{
		CreatorID:  "creator-1",
		Channel:    "tip",
		GrossMinor: 500,
		SourceRef:  "tip:x",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key = %d, want 400", rec.Code)
	}

	// Unknown channel.
	rec = doJSON(t, router, http.MethodPost, "/v1/revenue/events", "user:creator-1", "evt-x", contracts.RecordRevenueEventRequest{
		CreatorID:  "creator-1",
		Channel:    "lottery",
		GrossMinor: 500,
		SourceRef:  "l:1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown channel = %d, want 400", rec.Code)
	}

	// Cross-creator read.
	rec = doJSON(t, router, http.MethodGet, "/v1/ledger/creator-1/summary", "user:creator-2", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-creator = %d, want 403", rec.Code)
	}

	// Admin-only operation as a regular user.
	rec = doJSON(t, router, http.MethodPost, "/v1/rates/changes", "user:creator-1", "", contracts.ScheduleRateChangeRequest{
		Channel:     "sale",
		RateBPS:     2000,
		EffectiveAt: time.Now().Add(40 * 24 * time.Hour),
		Signature:   "sig",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin rate change = %d, want 403", rec.Code)
	}

	// Below minimum payout.
	rec = doJSON(t, router, http.MethodPost, "/v1/payouts/request", "user:creator-1", "pay-1", contracts.RequestPayoutRequest{
		CreatorID:   "creator-1",
		AmountMinor: 999,
		Method:      "sepa",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("below threshold = %d, want 422", rec.Code)
	}
	var resp contracts.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Error.Code != "below_minimum_payout" {
		t.Fatalf("error code = %q, want below_minimum_payout", resp.Error.Code)
	}

	// Unknown payout.
	rec = doJSON(t, router, http.MethodGet, "/v1/payouts/nope", "admin:root", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown payout = %d, want 404", rec.Code)
	}
}

func TestAdminPrefixFallback(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil)

	// admin: prefixed bearer grants the admin role without a verifier and may
	// read any creator's summary.
	rec := doJSON(t, router, http.MethodGet, "/v1/ledger/creator-9/summary", "admin:ops-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin read = %d, want 200", rec.Code)
	}
}

func TestJWTVerifier(t *testing.T) {
	t.Parallel()
	verifier, err := security.NewTokenVerifier([]byte("jwt-secret"))
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	router := newTestRouter(t, verifier)

	token, err := verifier.Sign("creator-7", "creator", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	rec := doJSON(t, router, http.MethodGet, "/v1/ledger/creator-7/summary", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/ledger/creator-7/summary", "not-a-token", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token = %d, want 401", rec.Code)
	}

	other, err := security.NewTokenVerifier([]byte("different-secret"))
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	forged, err := other.Sign("creator-7", "creator", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	rec = doJSON(t, router, http.MethodGet, "/v1/ledger/creator-7/summary", forged, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token = %d, want 401", rec.Code)
	}
}

func TestEscrowEndpoints(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/escrow/orders", "user:buyer-1", "esc-1", contracts.CreateEscrowOrderRequest{
		OrderID:     "order-1",
		BuyerID:     "buyer-1",
		CreatorID:   "creator-1",
		AmountMinor: 5000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/escrow/orders/order-1/deliver", "user:creator-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deliver = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/escrow/orders/order-1/accept", "user:buyer-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept = %d, body %s", rec.Code, rec.Body.String())
	}

	// The terminal hold rejects further actions with a conflict.
	rec = doJSON(t, router, http.MethodPost, "/v1/escrow/orders/order-1/refund", "user:buyer-1", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("refund after release = %d, want 409", rec.Code)
	}
}
