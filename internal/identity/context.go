// Package identity carries the authenticated actor through request context.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Role classifies the authenticated caller.
type Role string

const (
	RoleParent Role = "parent"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// Actor is the authenticated principal for a request. ClinicID is set only
// for medical staff and scopes their actions to their own clinic.
type Actor struct {
	ID       uuid.UUID
	Role     Role
	ClinicID uuid.UUID
}

// IsParent reports whether the actor is a parent.
func (a Actor) IsParent() bool { return a.Role == RoleParent }

// IsStaff reports whether the actor is medical staff.
func (a Actor) IsStaff() bool { return a.Role == RoleStaff }

// IsAdmin reports whether the actor is a platform admin.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type contextKey struct{}

// WithActor stores the actor on the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFromContext returns the actor previously stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}
