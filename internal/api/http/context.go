package http

import (
	"context"
	"net/http"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/security"
)

type contextKey string

const (
	claimsKey    contextKey = "claims"
	requestIDKey contextKey = "request_id"
)

func withClaims(ctx context.Context, c *security.UserClaims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the validated token claims, or nil on public routes.
func ClaimsFromContext(ctx context.Context) *security.UserClaims {
	c, _ := ctx.Value(claimsKey).(*security.UserClaims)
	return c
}

// RequestIDFromContext returns the id assigned by the request id middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// actorFromRequest builds the acting user from the token claims. Handlers
// behind the auth middleware always have one.
func actorFromRequest(r *http.Request) *domain.User {
	c := ClaimsFromContext(r.Context())
	if c == nil {
		return nil
	}
	role := domain.UserRoleUser
	if c.IsAdmin() {
		role = domain.UserRoleAdmin
	}
	return &domain.User{ID: c.UserID, Email: c.Email, Role: role}
}
