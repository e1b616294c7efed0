package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrix/chatgate/pkg/middleware"
)

func newAuthApp(token string) *fiber.App {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	app := fiber.New()
	app.Use(middleware.NewAdminAuthMiddleware(logger, token).Middleware())
	app.Get("/admin/keys", func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAdminAuth_DisabledWithoutConfiguredToken(t *testing.T) {
	app := newAuthApp("")

	req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	req.Header.Set("X-Admin-Token", "anything")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAdminAuth_MissingToken(t *testing.T) {
	app := newAuthApp("secret")

	req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminAuth_InvalidToken(t *testing.T) {
	app := newAuthApp("secret")

	req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	req.Header.Set("X-Admin-Token", "wrong")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminAuth_ValidToken(t *testing.T) {
	app := newAuthApp("secret")

	req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	req.Header.Set("X-Admin-Token", "secret")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
