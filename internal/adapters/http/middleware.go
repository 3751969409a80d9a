package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/revenue-ledger/internal/adapters/security"
	"github.com/viralforge/revenue-ledger/internal/application"
)

type contextKey string

const actorKey contextKey = "actor"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), contextKey("request_id"), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware resolves the calling actor from the bearer token. With a
// verifier configured the token must be a valid platform JWT; without one the
// raw bearer value is taken as the subject, which keeps local setups and
// contract tests free of token plumbing.
func authMiddleware(verifier *security.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", requestIDFromContext(r.Context()))
				return
			}
			raw := strings.TrimSpace(auth[7:])
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "empty bearer token", requestIDFromContext(r.Context()))
				return
			}

			var subject, role string
			if verifier != nil {
				claims, err := verifier.ParseAndValidate(raw)
				if err != nil {
					writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token", requestIDFromContext(r.Context()))
					return
				}
				subject = claims.SubjectID
				role = strings.ToLower(claims.Role)
			} else {
				subject = raw
				role = strings.ToLower(strings.TrimSpace(r.Header.Get("X-Actor-Role")))
				if role == "" {
					if strings.HasPrefix(subject, "admin:") {
						role = "admin"
						subject = strings.TrimPrefix(subject, "admin:")
					} else {
						role = "user"
						subject = strings.TrimPrefix(subject, "user:")
					}
				}
			}

			actor := application.Actor{
				SubjectID:      subject,
				Role:           role,
				RequestID:      requestIDFromContext(r.Context()),
				IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
			}
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFromContext(ctx context.Context) application.Actor {
	if v := ctx.Value(actorKey); v != nil {
		if a, ok := v.(application.Actor); ok {
			return a
		}
	}
	return application.Actor{}
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(contextKey("request_id")); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
