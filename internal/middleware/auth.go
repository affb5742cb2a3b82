package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/openboard/server/internal/auth"
	"github.com/openboard/server/internal/model"
	"github.com/openboard/server/internal/repo"
)

type contextKey string

const claimsKey contextKey = "session_claims"

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "token"

// GuestCookieName is the cookie carrying the guest identifier.
const GuestCookieName = "guest_id"

// TokenFromRequest extracts the session token: cookie first, then the
// Authorization Bearer header. Empty string means unauthenticated.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// GuestKeyFromRequest extracts the guest identifier: cookie first, then the
// X-Guest-Key header.
func GuestKeyFromRequest(r *http.Request) string {
	if c, err := r.Cookie(GuestCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get("X-Guest-Key")
}

// ResolveClaims validates the request's session token, if any. A missing or
// invalid token both yield nil claims.
func ResolveClaims(tokens *auth.TokenService, r *http.Request) *auth.SessionClaims {
	token := TokenFromRequest(r)
	if token == "" {
		return nil
	}
	claims, err := tokens.Validate(token)
	if err != nil {
		return nil
	}
	return claims
}

// RequireAuth rejects requests without a valid session token and attaches
// the claims to the context.
func RequireAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ResolveClaims(tokens, r)
			if claims == nil {
				respondWithError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin re-fetches the caller's role from the users table and rejects
// non-admins. It must be stacked after RequireAuth. Roles are never read from
// the token payload, so a revoked role takes effect immediately.
func RequireAdmin(users repo.UserRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil || user.Role != model.RoleAdmin {
				respondWithError(w, http.StatusForbidden, "admin only")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims returns the session claims attached by RequireAuth.
func GetClaims(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.SessionClaims)
	return claims, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
