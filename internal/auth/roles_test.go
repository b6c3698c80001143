package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/domain"
)

func readJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func signClaims(t *testing.T, claims *Claims, subject string) string {
	t.Helper()
	claims.Subject = subject
	claims.Issuer = "auth-service"
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestPolicy_Permits(t *testing.T) {
	admin := domain.NewRoleSet(domain.RoleAdmin)
	customer := domain.NewRoleSet(domain.RoleCustomer)

	assert.True(t, AnyRole.Permits(nil))
	assert.True(t, AllowRoles().Permits(customer))
	assert.True(t, AllowRoles(domain.RoleAdmin).Permits(admin))
	assert.False(t, AllowRoles(domain.RoleAdmin).Permits(customer))
	assert.False(t, AllowRoles(domain.RoleCustomer).Permits(admin), "admin does not imply customer")
	assert.True(t, AllowRoles(domain.RoleAdmin, domain.RoleCustomer).Permits(customer))
	assert.False(t, Policy{}.Permits(admin))
}

func guardedApp(users ...*domain.User) (*fiber.App, *TokenManager) {
	tokens := newTestTokenManager()
	mw := NewAuthMiddleware(tokens, NewTransport(TransportBearer, CookieConfig{}), newStubIdentities(users...), RoleSourceClaims, nil)

	ok := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) }
	app := newTestApp()
	app.Get("/admin", mw.Handle, RequireRoles(domain.RoleAdmin), ok)
	app.Get("/any", mw.Handle, RequireAuthenticated(), ok)
	app.Get("/unguarded-session", RequireRoles(domain.RoleAdmin), ok)
	return app, tokens
}

func TestRequireRoles(t *testing.T) {
	app, tokens := guardedApp(customerUser())

	tests := []struct {
		name  string
		path  string
		roles []domain.Role
		want  int
	}{
		{"customer on admin route", "/admin", []domain.Role{domain.RoleCustomer}, http.StatusForbidden},
		{"admin on admin route", "/admin", []domain.Role{domain.RoleAdmin}, http.StatusOK},
		{"both roles on admin route", "/admin", []domain.Role{domain.RoleCustomer, domain.RoleAdmin}, http.StatusOK},
		{"no roles on authenticated route", "/any", nil, http.StatusOK},
		{"customer on authenticated route", "/any", []domain.Role{domain.RoleCustomer}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := tokens.GenerateToken(domain.Identity{ID: "user-123"}, domain.NewRoleSet(tt.roles...))
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRequireRoles_ForbiddenBody(t *testing.T) {
	app, tokens := guardedApp(customerUser())
	token, _, err := tokens.GenerateToken(domain.Identity{ID: "user-123"}, domain.NewRoleSet(domain.RoleCustomer))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body := decodeError(t, resp)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)
}

func TestRequire_WithoutSessionIsUnauthorized(t *testing.T) {
	app, _ := guardedApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/unguarded-session", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
