package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/auth"
)

const (
	// UserIDHeader and UserRoleHeader identify the caller when bearer
	// authentication is disabled.
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Authenticate requires a valid bearer token and stores the caller's
// principal in the request context.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeAuthError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := verifier.Verify(parts[1])
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, domain.ErrExpiredToken) {
					msg = "token has expired"
				}
				writeAuthError(w, http.StatusUnauthorized, msg)
				return
			}

			ctx := domain.ContextWithPrincipal(r.Context(), claims.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HeaderIdentity trusts X-User-ID and X-User-Role. Only for deployments
// where an upstream gateway has already authenticated the caller.
func HeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if id == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
			return
		}

		role := domain.RolePlayer
		if raw := r.Header.Get(UserRoleHeader); raw != "" {
			role = domain.Role(strings.ToLower(raw))
		}
		if !role.IsValid() {
			writeAuthError(w, http.StatusUnauthorized, "unknown role")
			return
		}

		ctx := domain.ContextWithPrincipal(r.Context(), &domain.Principal{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role fails allowed.
func RequireRole(allowed func(domain.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := domain.PrincipalFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !allowed(p.Role) {
				writeAuthError(w, http.StatusForbidden, domain.ErrInsufficientRole.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSettler allows admins and operators.
func RequireSettler(next http.Handler) http.Handler {
	return RequireRole(domain.Role.CanSettle)(next)
}

// RequireAdmin allows admins only.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(domain.Role.CanAdjustBalances)(next)
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	writeJSONError(w, status, http.StatusText(status), msg, "")
}
