package validations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"impact-lending-backend/internal/application/ledger"
	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/apperrors"
	"impact-lending-backend/internal/pkg/constants"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttemptStore tracks in-flight validation attempts by idempotency key.
type AttemptStore interface {
	// Begin marks the attempt pending; false means another attempt with this key is still pending.
	Begin(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key, reason string) error
	Complete(ctx context.Context, key, txHash string) error
}

// ReputationUpdater is invoked once, by the validation that completes a loan.
type ReputationUpdater interface {
	UpdateBorrowerReputation(ctx context.Context, borrowerID string, loan *domain.Loan) (*domain.Reputation, error)
}

// Notifier tells the borrower about released funds and completed loans.
type Notifier interface {
	MilestoneValidated(ctx context.Context, loan *domain.Loan, milestone *domain.Milestone, validationID string) error
	LoanCompleted(ctx context.Context, loan *domain.Loan, rep *domain.Reputation) error
}

type Service struct {
	DB         *gorm.DB
	Ledger     ledger.Gateway
	Attempts   AttemptStore
	Reputation ReputationUpdater
	Notifier   Notifier
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type ValidateInput struct {
	LoanID          string
	MilestoneIndex  int
	ValidatorID     string
	ValidatorSecret string
	ImpactDelivered decimal.Decimal
	ProofHash       *string
	ProofImages     []string
	Notes           *string
}

type Result struct {
	Validation *domain.Validation `json:"validation"`
	Loan       *domain.Loan       `json:"loan"`
	Completed  bool               `json:"completed"`
}

// IdempotencyKey identifies one validator's attempt at one milestone.
func IdempotencyKey(loanID string, milestoneIndex int, validatorID string) string {
	sum := sha256.Sum256([]byte(loanID + "|" + strconv.Itoa(milestoneIndex) + "|" + validatorID))
	return hex.EncodeToString(sum[:])
}

// ValidateMilestone confirms a milestone on the ledger and releases its share of the loan.
//
// The milestone is claimed with a conditional write before the ledger is called, so two attempts on the
// same milestone cannot both reach the ledger. A ledger failure releases the claim. Steps after the
// ledger call commit one by one; a failure there is returned without undoing earlier steps and is left
// for reconciliation.
func (s *Service) ValidateMilestone(ctx context.Context, in ValidateInput) (*Result, error) {
	if in.ImpactDelivered.IsNegative() {
		return nil, apperrors.ValidationFailed("impactDelivered must be at least 0")
	}
	db := s.DB.WithContext(ctx)

	var loan domain.Loan
	if err := db.Where("id = ?", in.LoanID).First(&loan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Loan not found")
		}
		return nil, apperrors.Internal("Failed to load loan", err)
	}
	if loan.Status != domain.LoanStatusActive {
		return nil, apperrors.InvalidState("Loan is not active")
	}

	var milestone domain.Milestone
	if err := db.Where("loan_id = ? AND milestone_index = ?", loan.ID, in.MilestoneIndex).First(&milestone).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Milestone not found")
		}
		return nil, apperrors.Internal("Failed to load milestone", err)
	}
	if milestone.Validated {
		return nil, apperrors.Conflict("Milestone already validated")
	}

	var validator domain.User
	err := db.Where("id = ?", in.ValidatorID).First(&validator).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal("Failed to load validator", err)
	}
	if err != nil || validator.Role != constants.Validator {
		return nil, apperrors.Forbidden("Invalid validator")
	}

	key := IdempotencyKey(loan.ID, in.MilestoneIndex, validator.ID)
	if s.Attempts != nil {
		started, err := s.Attempts.Begin(ctx, key)
		if err != nil {
			return nil, apperrors.Internal("Failed to record validation attempt", err)
		}
		if !started {
			return nil, apperrors.Conflict("Validation already in progress")
		}
	}

	claimedAt := s.now()
	claimed, err := ClaimMilestone(db, milestone.ID, validator.ID, claimedAt)
	if err != nil {
		s.failAttempt(ctx, key, "claim failed")
		return nil, apperrors.Internal("Failed to claim milestone", err)
	}
	if !claimed {
		s.failAttempt(ctx, key, "already validated")
		return nil, apperrors.Conflict("Milestone already validated")
	}

	receipt, err := s.Ledger.SubmitMilestoneValidation(ctx, ledger.MilestoneValidation{
		Validator:       ledger.Signer{PublicKey: validator.StellarPublicKey, Secret: in.ValidatorSecret},
		LoanIDOnChain:   loan.LoanIDOnChain,
		MilestoneIndex:  in.MilestoneIndex,
		ImpactDelivered: in.ImpactDelivered,
		IdempotencyKey:  key,
	})
	if err != nil {
		log.Error().Err(err).Str("loan_id", loan.ID).Int("milestone_index", in.MilestoneIndex).
			Str("validator_id", validator.ID).Msg("ledger milestone validation failed")
		// A cancelled request must still release its claim and its attempt.
		cleanup := context.Background()
		if rerr := ReleaseClaim(s.DB.WithContext(cleanup), milestone.ID, validator.ID); rerr != nil {
			log.Error().Err(rerr).Str("milestone_id", milestone.ID).Msg("failed to release milestone claim")
		}
		s.failAttempt(cleanup, key, err.Error())
		return nil, apperrors.Ledger(err)
	}

	if err := db.Model(&domain.Milestone{}).Where("id = ?", milestone.ID).Update("tx_hash", receipt.TxHash).Error; err != nil {
		return nil, s.afterLedger(err, "record milestone tx hash", &loan, in.MilestoneIndex, receipt.TxHash)
	}
	milestone.Validated = true
	milestone.ValidatorID = &validator.ID
	milestone.ValidationTimestamp = &claimedAt
	milestone.TxHash = receipt.TxHash

	images, err := json.Marshal(nonNil(in.ProofImages))
	if err != nil {
		return nil, apperrors.ValidationFailed("proofImages must be a list of strings")
	}
	validation := &domain.Validation{
		LoanID:          loan.ID,
		MilestoneID:     milestone.ID,
		ValidatorID:     validator.ID,
		ImpactDelivered: in.ImpactDelivered,
		ProofHash:       in.ProofHash,
		ProofImages:     datatypes.JSON(images),
		Notes:           in.Notes,
		TxHash:          receipt.TxHash,
		IdempotencyKey:  key,
		ValidatedAt:     claimedAt,
	}
	if err := db.Create(validation).Error; err != nil {
		return nil, s.afterLedger(err, "store validation", &loan, in.MilestoneIndex, receipt.TxHash)
	}
	validation.Validator = &domain.User{ID: validator.ID, Name: validator.Name, StellarPublicKey: validator.StellarPublicKey}
	validation.Milestone = &milestone

	if err := AddReleasedTotals(db, loan.ID, milestone.Amount, in.ImpactDelivered); err != nil {
		return nil, s.afterLedger(err, "increment loan totals", &loan, in.MilestoneIndex, receipt.TxHash)
	}

	completed, err := s.CompleteIfFullyValidated(ctx, loan.ID)
	if err != nil {
		return nil, s.afterLedger(err, "check loan completion", &loan, in.MilestoneIndex, receipt.TxHash)
	}

	updated, err := s.loadLoanWithMilestones(ctx, loan.ID)
	if err != nil {
		return nil, s.afterLedger(err, "reload loan", &loan, in.MilestoneIndex, receipt.TxHash)
	}

	if s.Notifier != nil {
		if err := s.Notifier.MilestoneValidated(ctx, updated, &milestone, validation.ID); err != nil {
			return nil, s.afterLedger(err, "notify borrower", &loan, in.MilestoneIndex, receipt.TxHash)
		}
	}

	if s.Attempts != nil {
		if err := s.Attempts.Complete(ctx, key, receipt.TxHash); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to complete validation attempt")
		}
	}

	log.Info().Str("loan_id", loan.ID).Str("milestone_id", milestone.ID).Str("tx_hash", receipt.TxHash).
		Bool("completed", completed).Msg("milestone validated")
	return &Result{Validation: validation, Loan: updated, Completed: completed}, nil
}

// CompleteIfFullyValidated moves an ACTIVE loan to COMPLETED once every milestone is confirmed.
// Only the caller whose conditional write succeeds runs the reputation update and completion notice.
func (s *Service) CompleteIfFullyValidated(ctx context.Context, loanID string) (bool, error) {
	db := s.DB.WithContext(ctx)
	var pending int64
	if err := db.Model(&domain.Milestone{}).
		Where("loan_id = ? AND (validated = ? OR tx_hash IS NULL OR tx_hash = '')", loanID, false).
		Count(&pending).Error; err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}

	res := db.Model(&domain.Loan{}).
		Where("id = ? AND status = ?", loanID, domain.LoanStatusActive).
		Updates(map[string]interface{}{"status": domain.LoanStatusCompleted, "completed_at": s.now()})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// Another validation completed it first.
		return true, nil
	}

	var loan domain.Loan
	if err := db.Where("id = ?", loanID).First(&loan).Error; err != nil {
		return true, err
	}
	log.Info().Str("loan_id", loan.ID).Msg("loan completed")

	var rep *domain.Reputation
	if s.Reputation != nil {
		var err error
		if rep, err = s.Reputation.UpdateBorrowerReputation(ctx, loan.BorrowerID, &loan); err != nil {
			return true, err
		}
	}
	if s.Notifier != nil {
		if err := s.Notifier.LoanCompleted(ctx, &loan, rep); err != nil {
			log.Warn().Err(err).Str("loan_id", loan.ID).Msg("loan completion notice failed")
		}
	}
	return true, nil
}

// afterLedger logs a failure that happened after the ledger accepted the validation.
func (s *Service) afterLedger(err error, step string, loan *domain.Loan, idx int, txHash string) error {
	log.Error().Err(err).Str("step", step).Str("loan_id", loan.ID).Int("milestone_index", idx).
		Str("tx_hash", txHash).Msg("validation step failed after ledger confirmation")
	return apperrors.Internal("Failed to "+step, err)
}

func (s *Service) failAttempt(ctx context.Context, key, reason string) {
	if s.Attempts == nil {
		return
	}
	if err := s.Attempts.Fail(ctx, key, reason); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to mark validation attempt failed")
	}
}

func (s *Service) loadLoanWithMilestones(ctx context.Context, loanID string) (*domain.Loan, error) {
	var loan domain.Loan
	err := s.DB.WithContext(ctx).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("milestone_index ASC") }).
		Where("id = ?", loanID).First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// ClaimMilestone sets validated=true only if the milestone is still unvalidated.
// It returns false when another attempt got there first.
func ClaimMilestone(db *gorm.DB, milestoneID, validatorID string, at time.Time) (bool, error) {
	res := db.Model(&domain.Milestone{}).
		Where("id = ? AND validated = ?", milestoneID, false).
		Updates(map[string]interface{}{
			"validated":            true,
			"validator_id":         validatorID,
			"validation_timestamp": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseClaim undoes a claim that never reached the ledger. Confirmed milestones are never touched.
func ReleaseClaim(db *gorm.DB, milestoneID, validatorID string) error {
	return db.Model(&domain.Milestone{}).
		Where("id = ? AND validated = ? AND validator_id = ? AND (tx_hash IS NULL OR tx_hash = '')", milestoneID, true, validatorID).
		Updates(map[string]interface{}{
			"validated":            false,
			"validator_id":         nil,
			"validation_timestamp": nil,
		}).Error
}

// AddReleasedTotals increments the loan's released amount and achieved impact in the store,
// never from a value read earlier.
func AddReleasedTotals(db *gorm.DB, loanID string, amount, impact decimal.Decimal) error {
	return db.Model(&domain.Loan{}).Where("id = ?", loanID).Updates(map[string]interface{}{
		"amount_released": gorm.Expr("amount_released + ?", amount),
		"impact_achieved": gorm.Expr("impact_achieved + ?", impact),
	}).Error
}

// GetLoanValidations lists a loan's validations, oldest first.
func (s *Service) GetLoanValidations(ctx context.Context, loanID string) ([]domain.Validation, error) {
	out := []domain.Validation{}
	err := s.DB.WithContext(ctx).
		Preload("Validator", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "stellar_public_key") }).
		Preload("Milestone").
		Where("loan_id = ?", loanID).
		Order("validated_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Internal("Failed to list validations", err)
	}
	return out, nil
}

// GetValidatorValidations lists what a validator confirmed, newest first.
func (s *Service) GetValidatorValidations(ctx context.Context, validatorID string) ([]domain.Validation, error) {
	out := []domain.Validation{}
	err := s.DB.WithContext(ctx).
		Preload("Loan").
		Preload("Loan.Borrower", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name") }).
		Preload("Milestone").
		Where("validator_id = ?", validatorID).
		Order("validated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Internal("Failed to list validations", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
