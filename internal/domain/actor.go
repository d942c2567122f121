package domain

import "context"

// Actor is the administrator identity resolved from the session store for
// the current request. It travels as an explicit context value so audit
// attribution never depends on ambient state shared between requests.
type Actor struct {
	ID     uint64 `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting administrator, if one was resolved for this
// request.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
