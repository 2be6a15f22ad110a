package admin

import (
	"impact-lending-backend/internal/application/reconciliation"
	"impact-lending-backend/internal/middleware"
	"impact-lending-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Reconciler *reconciliation.Service
}

// Reconcile POST /api/admin/reconcile: runs one pass and returns its report.
func (h *Handlers) Reconcile(c *fiber.Ctx) error {
	if id := middleware.GetIdentity(c); id != nil {
		log.Info().Str("user_id", id.UserID).Str("trace_id", middleware.GetTraceID(c)).Msg("manual reconciliation requested")
	}
	return response.OK(c, h.Reconciler.Run(c.UserContext()))
}
