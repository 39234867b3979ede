package audit

import "context"

// Actor identifies who performed an audited action.
type Actor struct {
	Username  string
	Role      string
	IPAddress string
	UserAgent string
	RequestID string
}

type actorKey struct{}

func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorKey{}).(Actor)
	return actor
}
