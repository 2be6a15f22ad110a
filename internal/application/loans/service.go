package loans

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"impact-lending-backend/internal/application/ledger"
	"impact-lending-backend/internal/application/qr"
	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/apperrors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// PublicUserColumns are the user fields exposed alongside loans.
var PublicUserColumns = []string{"id", "name", "role", "stellar_public_key", "location", "profile_image", "verified"}

// Service owns loan creation, reads and progress.
type Service struct {
	DB     *gorm.DB
	Ledger ledger.Gateway
	QR     qr.Encoder
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CreateLoanInput struct {
	BorrowerID        string
	TotalAmount       decimal.Decimal
	NumMilestones     int
	ImpactDescription string
	ImpactUnit        string
	ImpactTarget      decimal.Decimal
	BorrowerSecret    string
}

// CreateLoan registers the loan on the ledger, then stores it with numMilestones equal shares.
// Nothing is stored when the ledger call fails.
func (s *Service) CreateLoan(ctx context.Context, in CreateLoanInput) (*domain.Loan, error) {
	if !in.TotalAmount.IsPositive() {
		return nil, apperrors.ValidationFailed("totalAmount must be greater than 0")
	}
	if in.NumMilestones < 1 {
		return nil, apperrors.ValidationFailed("numMilestones must be at least 1")
	}
	if in.ImpactTarget.IsNegative() {
		return nil, apperrors.ValidationFailed("impactTarget must be at least 0")
	}

	var borrower domain.User
	if err := s.DB.WithContext(ctx).Where("id = ?", in.BorrowerID).First(&borrower).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Borrower not found")
		}
		return nil, apperrors.Internal("Failed to load borrower", err)
	}

	receipt, err := s.Ledger.SubmitLoanCreation(ctx, ledger.LoanCreation{
		Borrower:          ledger.Signer{PublicKey: borrower.StellarPublicKey, Secret: in.BorrowerSecret},
		Amount:            in.TotalAmount,
		NumMilestones:     in.NumMilestones,
		ImpactDescription: in.ImpactDescription,
		ImpactUnit:        in.ImpactUnit,
		ImpactTarget:      in.ImpactTarget,
	})
	if err != nil {
		log.Error().Err(err).Str("borrower_id", borrower.ID).Str("amount", in.TotalAmount.String()).Msg("ledger loan creation failed")
		return nil, apperrors.Ledger(err)
	}

	approvedAt := s.now()
	loan := &domain.Loan{
		LoanIDOnChain:     receipt.LoanID,
		BorrowerID:        borrower.ID,
		TotalAmount:       in.TotalAmount,
		NumMilestones:     in.NumMilestones,
		ImpactDescription: in.ImpactDescription,
		ImpactUnit:        in.ImpactUnit,
		ImpactTarget:      in.ImpactTarget,
		AmountReleased:    decimal.Zero,
		ImpactAchieved:    decimal.Zero,
		Status:            domain.LoanStatusActive,
		TxHash:            receipt.TxHash,
		ApprovedAt:        &approvedAt,
	}
	amountShare, impactShare := SplitEqually(in.TotalAmount, in.ImpactTarget, in.NumMilestones)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(loan).Error; err != nil {
			return err
		}
		milestones := make([]domain.Milestone, in.NumMilestones)
		for i := range milestones {
			milestones[i] = domain.Milestone{
				LoanID:         loan.ID,
				Index:          i,
				Amount:         amountShare,
				ImpactRequired: impactShare,
			}
		}
		return tx.Create(&milestones).Error
	})
	if err != nil {
		// The loan exists on chain but not locally; reconciliation cannot see it, so log the hash.
		log.Error().Err(err).Str("tx_hash", receipt.TxHash).Uint64("loan_id_on_chain", receipt.LoanID).Msg("loan registered on ledger but not stored")
		return nil, apperrors.Internal("Failed to store loan", err)
	}

	log.Info().Str("loan_id", loan.ID).Str("tx_hash", loan.TxHash).Int("milestones", loan.NumMilestones).Msg("loan created")
	return loan, nil
}

// SplitEqually returns the per-milestone amount and impact: plain division, no remainder redistribution.
func SplitEqually(totalAmount, impactTarget decimal.Decimal, n int) (decimal.Decimal, decimal.Decimal) {
	d := decimal.NewFromInt(int64(n))
	return totalAmount.Div(d), impactTarget.Div(d)
}

func publicUser(db *gorm.DB) *gorm.DB {
	return db.Select(PublicUserColumns)
}

func orderedMilestones(db *gorm.DB) *gorm.DB {
	return db.Order("milestone_index ASC")
}

// GetLoan returns the loan with public borrower fields, ordered milestones and validations.
func (s *Service) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	var loan domain.Loan
	err := s.DB.WithContext(ctx).
		Preload("Borrower", publicUser).
		Preload("Milestones", orderedMilestones).
		Preload("Validations", func(db *gorm.DB) *gorm.DB { return db.Order("validated_at ASC") }).
		Preload("Validations.Validator", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name") }).
		Where("id = ?", id).
		First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Loan not found")
		}
		return nil, apperrors.Internal("Failed to load loan", err)
	}
	return &loan, nil
}

type ListFilter struct {
	Status     string
	BorrowerID string
	Limit      int
	Offset     int
}

type ListResult struct {
	Loans  []domain.Loan `json:"loans"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListLoans pages loans newest first. Total comes from a separate count query.
func (s *Service) ListLoans(ctx context.Context, f ListFilter) (*ListResult, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	scope := func(db *gorm.DB) *gorm.DB {
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		if f.BorrowerID != "" {
			db = db.Where("borrower_id = ?", f.BorrowerID)
		}
		return db
	}

	out := &ListResult{Loans: []domain.Loan{}, Limit: f.Limit, Offset: f.Offset}
	db := s.DB.WithContext(ctx)
	if err := db.Model(&domain.Loan{}).Scopes(scope).
		Preload("Borrower", publicUser).
		Order("created_at DESC").
		Limit(f.Limit).Offset(f.Offset).
		Find(&out.Loans).Error; err != nil {
		return nil, apperrors.Internal("Failed to list loans", err)
	}
	if err := db.Model(&domain.Loan{}).Scopes(scope).Count(&out.Total).Error; err != nil {
		return nil, apperrors.Internal("Failed to count loans", err)
	}
	return out, nil
}

// GetUserLoans returns every loan of a borrower with milestones, newest first.
func (s *Service) GetUserLoans(ctx context.Context, userID string) ([]domain.Loan, error) {
	loans := []domain.Loan{}
	if err := s.DB.WithContext(ctx).
		Preload("Milestones", orderedMilestones).
		Where("borrower_id = ?", userID).
		Order("created_at DESC").
		Find(&loans).Error; err != nil {
		return nil, apperrors.Internal("Failed to list user loans", err)
	}
	return loans, nil
}

type Progress struct {
	ValidatedMilestones int             `json:"validatedMilestones"`
	TotalMilestones     int             `json:"totalMilestones"`
	ProgressPercentage  int             `json:"progressPercentage"`
	AmountReleased      decimal.Decimal `json:"amountReleased"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	ImpactAchieved      decimal.Decimal `json:"impactAchieved"`
	ImpactTarget        decimal.Decimal `json:"impactTarget"`
}

// CalculateProgress summarizes a loan snapshot. It reads loan.Milestones and has no side effects.
func CalculateProgress(loan *domain.Loan) Progress {
	validated := 0
	for _, m := range loan.Milestones {
		if m.Validated {
			validated++
		}
	}
	pct := 0
	if loan.NumMilestones > 0 {
		pct = int(math.Round(float64(validated) / float64(loan.NumMilestones) * 100))
	}
	return Progress{
		ValidatedMilestones: validated,
		TotalMilestones:     loan.NumMilestones,
		ProgressPercentage:  pct,
		AmountReleased:      loan.AmountReleased,
		TotalAmount:         loan.TotalAmount,
		ImpactAchieved:      loan.ImpactAchieved,
		ImpactTarget:        loan.ImpactTarget,
	}
}

type qrPayload struct {
	LoanID         string `json:"loanId"`
	MilestoneIndex int    `json:"milestoneIndex"`
	Timestamp      int64  `json:"timestamp"`
}

type MilestoneSummary struct {
	ID         string            `json:"id"`
	Borrower   *domain.User      `json:"borrower"`
	ImpactUnit string            `json:"impactUnit"`
	Milestone  *domain.Milestone `json:"milestone"`
}

type QRResult struct {
	QRCode   string           `json:"qrCode"`
	LoanData MilestoneSummary `json:"loanData"`
}

// GenerateMilestoneQR encodes {loanId, milestoneIndex, timestamp} for on-site validation.
func (s *Service) GenerateMilestoneQR(ctx context.Context, loanID string, milestoneIndex int) (*QRResult, error) {
	var loan domain.Loan
	err := s.DB.WithContext(ctx).
		Preload("Borrower", publicUser).
		Preload("Milestones", orderedMilestones).
		Where("id = ?", loanID).
		First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Loan not found")
		}
		return nil, apperrors.Internal("Failed to load loan", err)
	}
	if milestoneIndex < 0 || milestoneIndex >= len(loan.Milestones) {
		return nil, apperrors.NotFound("Milestone not found")
	}

	payload, err := json.Marshal(qrPayload{LoanID: loan.ID, MilestoneIndex: milestoneIndex, Timestamp: s.now().UnixMilli()})
	if err != nil {
		return nil, apperrors.Internal("Failed to encode QR payload", err)
	}
	uri, err := s.QR.Encode(string(payload))
	if err != nil {
		return nil, apperrors.Internal("Failed to generate QR code", err)
	}
	return &QRResult{
		QRCode: uri,
		LoanData: MilestoneSummary{
			ID:         loan.ID,
			Borrower:   loan.Borrower,
			ImpactUnit: loan.ImpactUnit,
			Milestone:  &loan.Milestones[milestoneIndex],
		},
	}, nil
}
