package authz

import (
	"context"
	"strings"
)

type ctxKey string

const (
	actorIDKey ctxKey = "authz_actor_id"
	rolesKey   ctxKey = "authz_roles"
)

// ContextWithActor stores the acting user's identity in the context. Audit
// logging and outbound API calls read it back.
func ContextWithActor(ctx context.Context, userID string, roles []Role) context.Context {
	ctx = context.WithValue(ctx, actorIDKey, strings.TrimSpace(userID))
	if len(roles) > 0 {
		out := make([]Role, len(roles))
		copy(out, roles)
		ctx = context.WithValue(ctx, rolesKey, out)
	}
	return ctx
}

// ActorFromContext extracts the acting user id from context.
func ActorFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(actorIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// RolesFromContext returns the roles stored in context.
func RolesFromContext(ctx context.Context) []Role {
	v, ok := ctx.Value(rolesKey).([]Role)
	if !ok || len(v) == 0 {
		return nil
	}
	out := make([]Role, len(v))
	copy(out, v)
	return out
}
