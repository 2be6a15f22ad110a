package validations

import (
	validationsvc "impact-lending-backend/internal/application/validations"
	"impact-lending-backend/internal/middleware"
	"impact-lending-backend/internal/pkg/response"
	"impact-lending-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *validationsvc.Service
}

var validate = validation.New()

// ValidateMilestoneRequest is the POST /api/validations body.
type ValidateMilestoneRequest struct {
	LoanID          string          `json:"loanId" validate:"required"`
	MilestoneIndex  *int            `json:"milestoneIndex" validate:"required,min=0"`
	ImpactDelivered decimal.Decimal `json:"impactDelivered" validate:"gte=0"`
	ValidatorSecret string          `json:"validatorSecret" validate:"required"`
	ProofHash       *string         `json:"proofHash"`
	ProofImages     []string        `json:"proofImages" validate:"omitempty,max=20,dive,max=2048"`
	Notes           *string         `json:"notes" validate:"omitempty,max=2000"`
}

// ValidateMilestone POST /api/validations: 201 with { validation, loan, completed }.
func (h *Handlers) ValidateMilestone(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)
	if id == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	var req ValidateMilestoneRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}
	if err := validate.Struct(req); err != nil {
		return response.Fail(c, err)
	}
	if _, err := uuid.Parse(req.LoanID); err != nil {
		return response.Error(c, "loanId must be a valid id", fiber.StatusBadRequest)
	}
	res, err := h.Service.ValidateMilestone(c.UserContext(), validationsvc.ValidateInput{
		LoanID:          req.LoanID,
		MilestoneIndex:  *req.MilestoneIndex,
		ValidatorID:     id.UserID,
		ValidatorSecret: req.ValidatorSecret,
		ImpactDelivered: req.ImpactDelivered,
		ProofHash:       req.ProofHash,
		ProofImages:     req.ProofImages,
		Notes:           req.Notes,
	})
	if err != nil {
		return response.Fail(c, err)
	}
	return response.Created(c, res)
}

// LoanValidations GET /api/validations/loan/:loanId
func (h *Handlers) LoanValidations(c *fiber.Ctx) error {
	loanID := c.Params("loanId")
	if _, err := uuid.Parse(loanID); err != nil {
		return response.Error(c, "Loan not found", fiber.StatusNotFound)
	}
	list, err := h.Service.GetLoanValidations(c.UserContext(), loanID)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, list)
}

// ValidatorValidations GET /api/validations/validator/:validatorId
func (h *Handlers) ValidatorValidations(c *fiber.Ctx) error {
	validatorID := c.Params("validatorId")
	if _, err := uuid.Parse(validatorID); err != nil {
		return response.Error(c, "Validator not found", fiber.StatusNotFound)
	}
	list, err := h.Service.GetValidatorValidations(c.UserContext(), validatorID)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, list)
}
