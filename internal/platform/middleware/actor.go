// Package middleware carries request-scoped identity into the context.
// Authorization happens upstream; these handlers only propagate what the
// gateway already established.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"masterdata/pkg/requestcontext"
)

// HeaderActorID names the header carrying the pre-authorized actor id.
const HeaderActorID = "X-Actor-ID"

const maxActorIDLength = 128

// RequestContext copies the chi request id into requestcontext so services
// can log it without depending on net/http.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reqID := chimw.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActor rejects requests without an actor id header and stores the id
// in the context otherwise.
func RequireActor(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actorID := strings.TrimSpace(r.Header.Get(HeaderActorID))
			if actorID == "" || len(actorID) > maxActorIDLength {
				logger.WarnContext(ctx, "request without actor id",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"missing or invalid X-Actor-ID header"}`)); err != nil {
					logger.ErrorContext(ctx, "failed to write unauthorized response",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActorID(ctx, actorID)))
		})
	}
}
