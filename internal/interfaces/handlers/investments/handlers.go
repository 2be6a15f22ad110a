package investments

import (
	investmentsvc "impact-lending-backend/internal/application/investments"
	"impact-lending-backend/internal/middleware"
	"impact-lending-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *investmentsvc.Service
}

// AddLiquidityRequest is the POST /api/investments body.
type AddLiquidityRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	InvestorSecret string          `json:"investorSecret"`
}

// AddLiquidity POST /api/investments: 201 with { investment, poolBalance }.
func (h *Handlers) AddLiquidity(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)
	if id == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	var req AddLiquidityRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}
	res, err := h.Service.AddLiquidity(c.UserContext(), investmentsvc.AddLiquidityInput{
		InvestorID:     id.UserID,
		Amount:         req.Amount,
		InvestorSecret: req.InvestorSecret,
	})
	if err != nil {
		return response.Fail(c, err)
	}
	return response.Created(c, res)
}

// MyInvestments GET /api/investments/me
func (h *Handlers) MyInvestments(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)
	if id == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	p, err := h.Service.MyInvestments(c.UserContext(), id.UserID)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, p)
}
