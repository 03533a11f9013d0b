// Package middleware provides HTTP middleware for the console API.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/capitalize-ai/support-console/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// AgentIDKey is the context key for the authenticated agent id.
	AgentIDKey ContextKey = "agent_id"
	// ScopesKey is the context key for JWT scopes.
	ScopesKey ContextKey = "scopes"
)

// Scopes understood by the console API.
const (
	ScopeRead  = "console:read"
	ScopeWrite = "console:write"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents JWT claims of an agent token.
type Claims struct {
	jwt.RegisteredClaims
	Name   string   `json:"name,omitempty"`
	Scopes []string `json:"scope"`
}

// Agent returns the agent profile carried by the claims.
func (c *Claims) Agent() model.Agent {
	return model.Agent{ID: c.Subject, Name: c.Name}
}

// ParseToken verifies an HMAC-signed token and returns its claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

// AgentProfile resolves the agent profile from the configured agent token.
// It returns nil when no token is configured or it does not verify, so the
// live channel falls back to a generated identity.
func AgentProfile(tokenString, secret string) *model.Agent {
	if tokenString == "" || secret == "" {
		return nil
	}
	claims, err := ParseToken(tokenString, secret)
	if err != nil || claims.Subject == "" {
		return nil
	}
	agent := claims.Agent()
	return &agent
}

// Auth creates JWT authentication middleware.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := ParseToken(parts[1], jwtSecret)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if meta, ok := r.Context().Value(requestMetaKey).(*requestMeta); ok {
				meta.agentID = claims.Subject
			}
			ctx := context.WithValue(r.Context(), AgentIDKey, claims.Subject)
			ctx = context.WithValue(ctx, ScopesKey, claims.Scopes)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAgentID gets the agent id from context.
func GetAgentID(ctx context.Context) string {
	if v, ok := ctx.Value(AgentIDKey).(string); ok {
		return v
	}
	return ""
}

// GetScopes gets scopes from context.
func GetScopes(ctx context.Context) []string {
	if v, ok := ctx.Value(ScopesKey).([]string); ok {
		return v
	}
	return nil
}

// HasScope checks if the context has a specific scope.
func HasScope(ctx context.Context, scope string) bool {
	return slices.Contains(GetScopes(ctx), scope)
}

// RequireScope creates middleware that requires a specific scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasScope(r.Context(), scope) {
				writeJSONError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
