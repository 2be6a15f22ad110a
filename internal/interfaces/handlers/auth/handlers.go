package auth

import (
	authsvc "impact-lending-backend/internal/application/auth"
	"impact-lending-backend/internal/middleware"
	"impact-lending-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	Service *authsvc.Service
}

// Register POST /api/auth/register: 201 with { user, token }.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req authsvc.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}
	sess, err := h.Service.Register(c.UserContext(), req)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.Created(c, sess)
}

// Login POST /api/auth/login: { user, token } for a registered Stellar account.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req authsvc.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}
	sess, err := h.Service.Login(c.UserContext(), req)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, sess)
}

// Logout POST /api/auth/logout: revokes the bearer token's session.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)
	if id == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	if err := h.Service.Logout(c.UserContext(), id); err != nil {
		return response.Fail(c, err)
	}
	return response.Message(c, "Logged out successfully", nil)
}
