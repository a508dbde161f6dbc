package domain

import "context"

// Actor identifies who is driving the terminal. Authentication happens
// outside the engine; the identity just rides the context so drawer memos
// and notifications can name the operator.
type Actor struct {
	Username string
	Role     string
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
