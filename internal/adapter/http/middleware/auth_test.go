package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/auth"
)

func principalEcho(t *testing.T, got **domain.Principal) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := domain.PrincipalFromContext(r.Context())
		require.True(t, ok)
		*got = p
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	jwt := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwt.Generate(&domain.Principal{ID: "u1", Email: "u1@example.com", Role: domain.RoleOperator})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid token", header: "Bearer " + token, want: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + token, want: http.StatusNoContent},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *domain.Principal
			req := httptest.NewRequest(http.MethodGet, "/api/v1/entries", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			Authenticate(jwt)(principalEcho(t, &got)).ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusNoContent {
				require.NotNil(t, got)
				assert.Equal(t, "u1", got.ID)
				assert.Equal(t, domain.RoleOperator, got.Role)
			}
		})
	}
}

func TestHeaderIdentity(t *testing.T) {
	var got *domain.Principal
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, "u7")
	req.Header.Set(UserRoleHeader, "ADMIN")
	rr := httptest.NewRecorder()

	HeaderIdentity(principalEcho(t, &got)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, domain.RoleAdmin, got.Role)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, "u8")
	rr = httptest.NewRecorder()
	HeaderIdentity(principalEcho(t, &got)).ServeHTTP(rr, req)
	assert.Equal(t, domain.RolePlayer, got.Role)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rr = httptest.NewRecorder()
	HeaderIdentity(http.NotFoundHandler()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, "u9")
	req.Header.Set(UserRoleHeader, "root")
	rr = httptest.NewRecorder()
	HeaderIdentity(http.NotFoundHandler()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name  string
		role  domain.Role
		guard func(http.Handler) http.Handler
		want  int
	}{
		{name: "admin settles", role: domain.RoleAdmin, guard: RequireSettler, want: http.StatusOK},
		{name: "operator settles", role: domain.RoleOperator, guard: RequireSettler, want: http.StatusOK},
		{name: "player cannot settle", role: domain.RolePlayer, guard: RequireSettler, want: http.StatusForbidden},
		{name: "operator cannot adjust", role: domain.RoleOperator, guard: RequireAdmin, want: http.StatusForbidden},
		{name: "admin adjusts", role: domain.RoleAdmin, guard: RequireAdmin, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = req.WithContext(domain.ContextWithPrincipal(req.Context(), &domain.Principal{ID: "x", Role: tt.role}))
			rr := httptest.NewRecorder()
			tt.guard(ok).ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}

	t.Run("anonymous", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RequireAdmin(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
