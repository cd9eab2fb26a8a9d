package middleware

import (
	"context"
	"net/http"

	"github.com/iho/stockledger/internal/domain"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// ActorContextKey is the context key for the acting user id
	ActorContextKey ContextKey = "actor"

	// ActorHeader carries the user id set by the upstream gateway.
	ActorHeader = "X-User-ID"
)

// Actor requires the gateway-provided user id and stores it in the request
// context. Authentication happens upstream.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := r.Header.Get(ActorHeader)
		if actor == "" {
			http.Error(w, "missing "+ActorHeader+" header", http.StatusUnauthorized)
			return
		}

		if err := domain.ValidateID(actor); err != nil {
			http.Error(w, "invalid "+ActorHeader+" header", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorContextKey, actor)
}

// ActorFromContext retrieves the acting user id from context.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(ActorContextKey).(string)
	return actor, ok && actor != ""
}
