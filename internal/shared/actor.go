package shared

import "context"

// Actor is the authenticated user attached to a request. Ledger and workflow
// calls take an explicit actor id parameter; this context carrier only bridges
// the auth middleware and the HTTP handlers.
type Actor struct {
	ID    int64
	Email string
	Role  string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context, nil when unauthenticated.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}

// ActorID returns the actor id or zero when no actor is attached.
func ActorID(ctx context.Context) int64 {
	if actor := ActorFromContext(ctx); actor != nil {
		return actor.ID
	}
	return 0
}
