package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient    Role = "patient"
	RoleDoctor     Role = "doctor"
	RoleDispatcher Role = "dispatcher"
	RoleAdmin      Role = "admin"
)

var (
	ErrUnauthenticated = errors.New("no authenticated principal")
	ErrForbidden       = errors.New("principal role not permitted")
)

// Principal is the authenticated caller. Identity verification happens
// upstream; the gateway forwards the result in trusted headers.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

type contextKey string

const principalKey contextKey = "principal"

// Middleware extracts the forwarded principal into the request context.
// Requests without one pass through unauthenticated; guards at the
// operation level decide what that means.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get("X-Principal-ID"))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		p := Principal{ID: id, Role: Role(r.Header.Get("X-Principal-Role"))}
		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Require returns the principal if present and holding one of the given
// roles. Admin passes every check.
func Require(ctx context.Context, roles ...Role) (Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	if p.Role == RoleAdmin {
		return p, nil
	}
	for _, role := range roles {
		if p.Role == role {
			return p, nil
		}
	}
	return Principal{}, ErrForbidden
}
