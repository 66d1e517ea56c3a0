package testutil

import (
	"context"
	"net/http"
	"time"

	"masterdata/pkg/requestcontext"
)

// ActorHeader mirrors the header the actor middleware reads.
const ActorHeader = "X-Actor-ID"

// WithActor marks the request as coming from actorID, both as the header the
// middleware expects and as the context value it would set.
func WithActor(req *http.Request, actorID string) *http.Request {
	req.Header.Set(ActorHeader, actorID)
	return req.WithContext(requestcontext.WithActorID(req.Context(), actorID))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
