package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hylla/tavla/internal/domain"
)

// actorContextKey stores context keys for the acting team member.
type actorContextKey struct{}

// WithActor attaches the acting team member to context.
func WithActor(ctx context.Context, actor domain.TeamMember) context.Context {
	actor.ID = strings.TrimSpace(actor.ID)
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the acting team member when present.
func ActorFromContext(ctx context.Context) (domain.TeamMember, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.TeamMember)
	if !ok || actor.ID == "" {
		return domain.TeamMember{}, false
	}
	return actor, true
}

// actorID returns the id recorded on writes made from ctx.
func actorID(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.ID
	}
	return domain.LocalActorID
}

// authorize checks action against the context actor. Calls without an actor run as the local operator.
func authorize(ctx context.Context, action domain.Action, task *domain.Task) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil
	}
	if !domain.CanPerform(actor, action, domain.PolicyContext{Task: task}) {
		return fmt.Errorf("%w: %s (%s) may not %s", ErrForbidden, actor.ID, actor.Role, action)
	}
	return nil
}
