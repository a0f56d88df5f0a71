package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

func newRoleApp(uid string, role interface{}) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, uid)
		c.Locals(LocalRole, role)
		return c.Next()
	})
	app.Use(RequireRole(models.RoleTeacher))
	app.Get("/papers", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRoleAllowsAuthorizedRoles(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/papers", nil)
	resp, err := newRoleApp("u1", "Teacher").Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireRoleRejectsUnauthorizedRoles(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/papers", nil)
	resp, err := newRoleApp("u1", models.RoleStudent).Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireRoleRejectsAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/papers", nil)
	resp, err := newRoleApp("", "teacher").Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
