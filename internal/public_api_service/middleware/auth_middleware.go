package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	AuthenticatedUserContextKey = ContextKey("authenticatedUser")
)

// AuthenticatedUser holds the caller identity extracted from the access token.
type AuthenticatedUser struct {
	ID       uuid.UUID
	OrgID    uuid.UUID
	Username string
	Role     string
}

type accessClaims struct {
	OrgID    string `json:"org_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the Bearer access token and stores the caller
// identity in the request context.
func AuthMiddleware(accessSecret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing")
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			claims := &accessClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(accessSecret), nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				logger.WarnContext(r.Context(), "Token subject is not a valid user ID", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			orgID, err := uuid.Parse(claims.OrgID)
			if err != nil {
				logger.WarnContext(r.Context(), "Token org claim is not a valid org ID", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			authUser := AuthenticatedUser{
				ID:       userID,
				OrgID:    orgID,
				Username: claims.Username,
				Role:     claims.Role,
			}

			ctx := context.WithValue(r.Context(), AuthenticatedUserContextKey, authUser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated caller, if AuthMiddleware ran.
func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	u, ok := ctx.Value(AuthenticatedUserContextKey).(AuthenticatedUser)
	return u, ok
}

// RequireRole rejects requests whose caller does not hold one of the given
// roles. AuthMiddleware must run first.
func RequireRole(logger *slog.Logger, roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authUser, ok := UserFromContext(r.Context())
			if !ok {
				logger.ErrorContext(r.Context(), "AuthenticatedUser not found in context. AuthMiddleware must run first.")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			for _, role := range roles {
				if authUser.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.WarnContext(r.Context(), "Role check failed",
				"userID", authUser.ID,
				"role", authUser.Role,
				"required_roles", strings.Join(roles, ","))
			http.Error(w, "Forbidden: You don't have permission to perform this action.", http.StatusForbidden)
		})
	}
}
