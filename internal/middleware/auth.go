package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/pkg/jwt"
	"github.com/jcq/jcq-api/internal/pkg/response"
)

type contextKey string

const (
	ActorIDKey  contextKey = "actor_id"
	TenantIDKey contextKey = "tenant_id"
)

// Auth returns middleware that validates the player JWT
func Auth(jwtService *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateAccessToken(parts[1])
			if err != nil {
				if errors.Is(err, jwt.ErrExpiredToken) {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.ActorID, claims.TenantID)))
		})
	}
}

// WithActor stores the authenticated actor on ctx.
func WithActor(ctx context.Context, actorID uuid.UUID, tenantID string) context.Context {
	ctx = context.WithValue(ctx, ActorIDKey, actorID)
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// GetActorID extracts the actor ID from context
func GetActorID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(ActorIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetTenantID extracts the tenant from context
func GetTenantID(ctx context.Context) string {
	if tenant, ok := ctx.Value(TenantIDKey).(string); ok {
		return tenant
	}
	return ""
}
