// Package identity carries the authenticated staff actor through request
// context. Authentication itself lives outside this service; the middleware
// only extracts verified claims.
package identity

import "context"

// Actor is the authenticated principal behind a request.
type Actor struct {
	UserID string
	Role   string
}

type ctxKey struct{}

// WithActor returns a context carrying the actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFromContext returns the actor attached to ctx, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}

// ActorID returns the actor's user ID or "system" when no actor is attached.
// Internal chains like auto-call-next run without a request actor.
func ActorID(ctx context.Context) string {
	if a, ok := ActorFromContext(ctx); ok && a.UserID != "" {
		return a.UserID
	}
	return "system"
}
