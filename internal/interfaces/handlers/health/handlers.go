package health

import (
	"context"
	"time"

	healthsvc "impact-lending-backend/internal/application/health"
	"impact-lending-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const serviceName = "impact-lending-api"

// collectTimeout bounds the dependency probes of one /health/json call.
const collectTimeout = 5 * time.Second

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Rdb            *redis.Client
	DB             healthsvc.Pinger
	Ledger         healthsvc.Pinger
	HealthAdminKey string
}

// Live GET /health: liveness only, no dependency checks.
func (h *Handlers) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "message": "Impact lending API is running"})
}

// JSON GET /health/json: dependency status and traffic counters.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), collectTimeout)
	defer cancel()
	result := healthsvc.CollectHealth(ctx, h.Rdb, h.DB, h.Ledger)
	return c.JSON(fiber.Map{
		"service":      serviceName,
		"status":       result.Status,
		"runtime":      result.Runtime,
		"traffic":      result.Traffic,
		"dependencies": result.Dependencies,
	})
}

// Reset GET /health/reset?key=: clears traffic counters. Requires HEALTH_ADMIN_KEY.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" || key != h.HealthAdminKey {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden)
	}
	if h.Rdb == nil {
		return response.Error(c, "Traffic stats are disabled", fiber.StatusServiceUnavailable)
	}
	if err := healthsvc.ResetTraffic(c.UserContext(), h.Rdb); err != nil {
		return response.Error(c, "Failed to reset stats", fiber.StatusInternalServerError)
	}
	return response.Message(c, "Stats reset successfully", nil)
}

// Errors GET /health/errors: the last logged 5xx responses.
func (h *Handlers) Errors(c *fiber.Ctx) error {
	if h.Rdb == nil {
		return c.JSON([]interface{}{})
	}
	entries, err := healthsvc.RecentErrors(c.UserContext(), h.Rdb)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON([]interface{}{})
	}
	return c.JSON(entries)
}
