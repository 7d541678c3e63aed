package auth

import (
	"context"
)

type ctxKey string

const (
	userKey ctxKey = "userClaims"
)

type Claims struct {
	Subject  string
	Username string
	JWTID    string
	Roles    []string
}

func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the claims carry at least one of roles.
func (c Claims) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if c.HasRole(r) {
			return true
		}
	}
	return false
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func Subject(ctx context.Context) string {
	return FromContext(ctx).Subject
}

// Actor is the authenticated identity handed to mutating operations. It is
// only ever built from verified token claims, never from request payloads.
type Actor struct {
	ID       string
	Username string
	Roles    []string
}

func (a Actor) Authenticated() bool { return a.ID != "" }

func (a Actor) HasAnyRole(roles ...string) bool {
	return Claims{Roles: a.Roles}.HasAnyRole(roles...)
}

func ActorFrom(ctx context.Context) Actor {
	c := FromContext(ctx)
	return Actor{ID: c.Subject, Username: c.Username, Roles: c.Roles}
}
