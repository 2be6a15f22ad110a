package loans

import (
	"strconv"

	loansvc "impact-lending-backend/internal/application/loans"
	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/middleware"
	"impact-lending-backend/internal/pkg/response"
	"impact-lending-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *loansvc.Service
}

var validate = validation.New()

// CreateLoanRequest is the POST /api/loans body. borrowerSecret signs the ledger call and is never stored.
type CreateLoanRequest struct {
	TotalAmount       decimal.Decimal `json:"totalAmount" validate:"gt=0"`
	NumMilestones     int             `json:"numMilestones" validate:"min=1,max=100"`
	ImpactDescription string          `json:"impactDescription" validate:"required"`
	ImpactUnit        string          `json:"impactUnit" validate:"required,max=64"`
	ImpactTarget      decimal.Decimal `json:"impactTarget" validate:"gte=0"`
	BorrowerSecret    string          `json:"borrowerSecret" validate:"required"`
}

// LoanDetail is a loan with its derived progress.
type LoanDetail struct {
	*domain.Loan
	Progress loansvc.Progress `json:"progress"`
}

// CreateLoan POST /api/loans: 201 with the stored loan.
func (h *Handlers) CreateLoan(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)
	if id == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	var req CreateLoanRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}
	if err := validate.Struct(req); err != nil {
		return response.Fail(c, err)
	}
	loan, err := h.Service.CreateLoan(c.UserContext(), loansvc.CreateLoanInput{
		BorrowerID:        id.UserID,
		TotalAmount:       req.TotalAmount,
		NumMilestones:     req.NumMilestones,
		ImpactDescription: req.ImpactDescription,
		ImpactUnit:        req.ImpactUnit,
		ImpactTarget:      req.ImpactTarget,
		BorrowerSecret:    req.BorrowerSecret,
	})
	if err != nil {
		return response.Fail(c, err)
	}
	return response.Created(c, loan)
}

// ListLoans GET /api/loans?status=&borrowerId=&limit=&offset=
func (h *Handlers) ListLoans(c *fiber.Ctx) error {
	status := c.Query("status")
	if status != "" && status != domain.LoanStatusActive && status != domain.LoanStatusCompleted {
		return response.Error(c, "status must be one of ACTIVE COMPLETED", fiber.StatusBadRequest)
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return response.Error(c, "limit must be a number", fiber.StatusBadRequest)
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return response.Error(c, "offset must be a number", fiber.StatusBadRequest)
	}
	borrowerID := c.Query("borrowerId")
	if borrowerID != "" {
		if _, err := uuid.Parse(borrowerID); err != nil {
			return response.Error(c, "borrowerId must be a valid id", fiber.StatusBadRequest)
		}
	}
	res, err := h.Service.ListLoans(c.UserContext(), loansvc.ListFilter{
		Status:     status,
		BorrowerID: borrowerID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, res)
}

// GetLoan GET /api/loans/:id: loan plus progress.
func (h *Handlers) GetLoan(c *fiber.Ctx) error {
	loanID := c.Params("id")
	if _, err := uuid.Parse(loanID); err != nil {
		return response.Error(c, "Loan not found", fiber.StatusNotFound)
	}
	loan, err := h.Service.GetLoan(c.UserContext(), loanID)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, LoanDetail{Loan: loan, Progress: loansvc.CalculateProgress(loan)})
}

// GetUserLoans GET /api/loans/user/:userId
func (h *Handlers) GetUserLoans(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if _, err := uuid.Parse(userID); err != nil {
		return response.Error(c, "User not found", fiber.StatusNotFound)
	}
	loans, err := h.Service.GetUserLoans(c.UserContext(), userID)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, loans)
}

// MilestoneQR GET /api/loans/:id/qr/:milestoneIndex
func (h *Handlers) MilestoneQR(c *fiber.Ctx) error {
	loanID := c.Params("id")
	if _, err := uuid.Parse(loanID); err != nil {
		return response.Error(c, "Loan not found", fiber.StatusNotFound)
	}
	idx, err := strconv.Atoi(c.Params("milestoneIndex"))
	if err != nil || idx < 0 {
		return response.Error(c, "milestoneIndex must be a non-negative integer", fiber.StatusBadRequest)
	}
	res, err := h.Service.GenerateMilestoneQR(c.UserContext(), loanID, idx)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, res)
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
