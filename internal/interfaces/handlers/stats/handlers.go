package stats

import (
	statssvc "impact-lending-backend/internal/application/stats"
	"impact-lending-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *statssvc.Service
}

// Overview GET /api/stats/overview
func (h *Handlers) Overview(c *fiber.Ctx) error {
	o, err := h.Service.Overview(c.UserContext())
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, o)
}

// Impact GET /api/stats/impact
func (h *Handlers) Impact(c *fiber.Ctx) error {
	groups, err := h.Service.Impact(c.UserContext())
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, groups)
}

// Leaderboard GET /api/stats/leaderboard
func (h *Handlers) Leaderboard(c *fiber.Ctx) error {
	top, err := h.Service.Leaderboard(c.UserContext())
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, top)
}
