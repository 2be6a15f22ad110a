package user

import (
	"testing"

	usersvc "impact-lending-backend/internal/application/user"
	"impact-lending-backend/internal/auth"
	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/middleware"
	"impact-lending-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRoutes(t *testing.T) {
	db := testutil.OpenDB(t)
	me := testutil.CreateInvestor(t, db)
	n := &domain.Notification{UserID: me.ID, Type: domain.NotificationLoanCompleted, Title: "t", Message: "m"}
	require.NoError(t, db.Create(n).Error)
	h := &Handlers{Service: &usersvc.Service{DB: db}}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetIdentity(c, &auth.Identity{UserID: me.ID, Role: me.Role})
		return c.Next()
	})
	app.Get("/users/me", h.Me)
	app.Put("/users/me", h.UpdateMe)
	app.Get("/users/me/notifications", h.Notifications)
	app.Patch("/users/me/notifications/:id/read", h.MarkNotificationRead)
	app.Get("/users/:id", h.GetUser)

	status, resp := testutil.DoJSON(t, app, "GET", "/users/me", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, me.Email, testutil.Data(t, resp)["email"])

	status, resp = testutil.DoJSON(t, app, "PUT", "/users/me", map[string]interface{}{"location": "Quito"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Quito", testutil.Data(t, resp)["location"])

	status, resp = testutil.DoJSON(t, app, "GET", "/users/"+me.ID, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, testutil.Data(t, resp), "email")

	status, resp = testutil.DoJSON(t, app, "GET", "/users/me/notifications", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, resp["data"], 1)

	status, resp = testutil.DoJSON(t, app, "PATCH", "/users/me/notifications/"+n.ID+"/read", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, testutil.Data(t, resp)["read"])

	status, resp = testutil.DoJSON(t, app, "PATCH", "/users/me/notifications/other/read", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Notification not found", resp["message"])

	status, resp = testutil.DoJSON(t, app, "GET", "/users/abc", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "User not found", resp["message"])

	status, resp = testutil.DoJSON(t, app, "GET", "/users/"+uuid.NewString(), nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "User not found", resp["message"])
}

func TestMe_RequiresIdentity(t *testing.T) {
	h := &Handlers{Service: &usersvc.Service{DB: testutil.OpenDB(t)}}
	app := fiber.New()
	app.Get("/users/me", h.Me)
	status, resp := testutil.DoJSON(t, app, "GET", "/users/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, false, resp["success"])
}
