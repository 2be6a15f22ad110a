package user

import (
	usersvc "impact-lending-backend/internal/application/user"
	"impact-lending-backend/internal/middleware"
	"impact-lending-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *usersvc.Service
}

// Me GET /api/users/me
func (h *Handlers) Me(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)
	if id == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	u, err := h.Service.Me(c.UserContext(), id.UserID)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, u)
}

// GetUser GET /api/users/:id: public profile.
func (h *Handlers) GetUser(c *fiber.Ctx) error {
	userID := c.Params("id")
	if _, err := uuid.Parse(userID); err != nil {
		return response.Error(c, "User not found", fiber.StatusNotFound)
	}
	u, err := h.Service.PublicProfile(c.UserContext(), userID)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, u)
}

// UpdateMe PUT /api/users/me
func (h *Handlers) UpdateMe(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)
	if id == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	var req usersvc.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}
	u, err := h.Service.UpdateProfile(c.UserContext(), id.UserID, req)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, u)
}

// Notifications GET /api/users/me/notifications
func (h *Handlers) Notifications(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)
	if id == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	list, err := h.Service.Notifications(c.UserContext(), id.UserID)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, list)
}

// MarkNotificationRead PATCH /api/users/me/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)
	if id == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	notificationID := c.Params("id")
	if _, err := uuid.Parse(notificationID); err != nil {
		return response.Error(c, "Notification not found", fiber.StatusNotFound)
	}
	n, err := h.Service.MarkNotificationRead(c.UserContext(), id.UserID, notificationID)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, n)
}
