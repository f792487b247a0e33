package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

func newTestApp(mw *AuthMiddleware, optional bool, extra ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(apperrors.ToDomainError(err).HTTPStatus).SendString(err.Error())
		},
	})
	handlers := []fiber.Handler{mw.Handle}
	if optional {
		handlers = []fiber.Handler{mw.Optional}
	}
	handlers = append(handlers, extra...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return c.SendString("guest")
		}
		return c.SendString(principal.ID + ":" + string(principal.Role))
	})
	app.Get("/", handlers...)
	return app
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestHandleWithBearerToken(t *testing.T) {
	tokens := NewTokenManager("secret", time.Minute)
	token, _, err := tokens.GenerateToken(domain.Principal{ID: "u-1", Role: domain.RoleDeveloper})
	require.NoError(t, err)

	app := newTestApp(NewAuthMiddleware(tokens, false), false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u-1:developer", body(t, resp))
}

func TestHandleRejectsMissingAndForeignTokens(t *testing.T) {
	app := newTestApp(NewAuthMiddleware(NewTokenManager("secret", time.Minute), false), false)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, _, err := NewTokenManager("other", time.Minute).GenerateToken(domain.Principal{ID: "u-1", Role: domain.RoleAdmin})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOptionalAllowsGuests(t *testing.T) {
	app := newTestApp(NewAuthMiddleware(NewTokenManager("secret", time.Minute), false), true)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "guest", body(t, resp))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayHeaders(t *testing.T) {
	tokens := NewTokenManager("secret", time.Minute)

	trusted := newTestApp(NewAuthMiddleware(tokens, true), false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "77")
	req.Header.Set(HeaderUserRole, "Moderator")
	resp, err := trusted.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "77:moderator", body(t, resp))

	untrusted := newTestApp(NewAuthMiddleware(tokens, false), false)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "77")
	req.Header.Set(HeaderUserRole, "admin")
	resp, err = untrusted.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequirePrivileged(t *testing.T) {
	tokens := NewTokenManager("secret", time.Minute)
	app := newTestApp(NewAuthMiddleware(tokens, false), false, RequirePrivileged())

	for role, want := range map[domain.Role]int{
		domain.RoleUser:      http.StatusForbidden,
		domain.RoleDeveloper: http.StatusForbidden,
		domain.RoleModerator: http.StatusOK,
		domain.RoleAdmin:     http.StatusOK,
	} {
		token, _, err := tokens.GenerateToken(domain.Principal{ID: "x", Role: role})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, role)
	}
}
