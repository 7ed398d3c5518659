package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is the authenticated caller. Staff marks an elevated account that may
// manage doctors without holding the admin role.
type Actor struct {
	UserID uuid.UUID
	Role   Role
	Staff  bool
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type contextKey string

const actorKey contextKey = "actor"

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the caller set by the auth middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
