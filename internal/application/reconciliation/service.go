package reconciliation

import (
	"context"
	"fmt"
	"time"

	"impact-lending-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultStaleAfter   = 10 * time.Minute
	DefaultTxCheckLimit = 50
)

// Completer finishes a loan whose milestones are all confirmed.
type Completer interface {
	CompleteIfFullyValidated(ctx context.Context, loanID string) (bool, error)
}

// TxChecker looks a transaction hash up on the ledger.
type TxChecker interface {
	TransactionExists(ctx context.Context, txHash string) (bool, error)
}

// Service compares local state with itself and with the ledger. It repairs only missed loan
// completions; everything else is reported for an operator.
type Service struct {
	DB           *gorm.DB
	Completer    Completer
	Ledger       TxChecker
	StaleAfter   time.Duration
	TxCheckLimit int
	Now          func() time.Time
}

type StaleClaim struct {
	MilestoneID    string     `json:"milestoneId"`
	LoanID         string     `json:"loanId"`
	MilestoneIndex int        `json:"milestoneIndex"`
	ValidatorID    *string    `json:"validatorId"`
	ClaimedAt      *time.Time `json:"claimedAt"`
}

type AmountMismatch struct {
	LoanID         string          `json:"loanId"`
	AmountReleased decimal.Decimal `json:"amountReleased"`
	ConfirmedTotal decimal.Decimal `json:"confirmedTotal"`
}

type MissingTransaction struct {
	ValidationID string `json:"validationId"`
	LoanID       string `json:"loanId"`
	TxHash       string `json:"txHash"`
}

type Report struct {
	StartedAt           time.Time            `json:"startedAt"`
	FinishedAt          time.Time            `json:"finishedAt"`
	StaleClaims         []StaleClaim         `json:"staleClaims"`
	CompletedLoans      []string             `json:"completedLoans"`
	AmountMismatches    []AmountMismatch     `json:"amountMismatches"`
	MissingTransactions []MissingTransaction `json:"missingTransactions"`
	TransactionsChecked int                  `json:"transactionsChecked"`
	Errors              []string             `json:"errors"`
}

// Clean reports whether the pass found nothing to look at.
func (r *Report) Clean() bool {
	return len(r.StaleClaims) == 0 && len(r.AmountMismatches) == 0 && len(r.MissingTransactions) == 0 && len(r.Errors) == 0
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run performs one reconciliation pass. Step failures are collected in the report, not returned.
func (s *Service) Run(ctx context.Context) *Report {
	r := &Report{
		StartedAt:           s.now(),
		StaleClaims:         []StaleClaim{},
		CompletedLoans:      []string{},
		AmountMismatches:    []AmountMismatch{},
		MissingTransactions: []MissingTransaction{},
		Errors:              []string{},
	}
	steps := []struct {
		name string
		fn   func(context.Context, *Report) error
	}{
		{"stale claims", s.findStaleClaims},
		{"missed completions", s.completeMissed},
		{"amount released", s.checkAmounts},
		{"ledger transactions", s.checkTransactions},
	}
	for _, step := range steps {
		if err := step.fn(ctx, r); err != nil {
			log.Error().Err(err).Str("step", step.name).Msg("reconciliation step failed")
			r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", step.name, err))
		}
	}
	r.FinishedAt = s.now()

	ev := log.Info()
	if !r.Clean() {
		ev = log.Warn()
	}
	ev.Int("stale_claims", len(r.StaleClaims)).
		Int("completed_loans", len(r.CompletedLoans)).
		Int("amount_mismatches", len(r.AmountMismatches)).
		Int("missing_transactions", len(r.MissingTransactions)).
		Int("errors", len(r.Errors)).
		Msg("reconciliation finished")
	return r
}

func (s *Service) findStaleClaims(ctx context.Context, r *Report) error {
	staleAfter := s.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	var ms []domain.Milestone
	err := s.DB.WithContext(ctx).
		Where("validated = ? AND (tx_hash IS NULL OR tx_hash = '') AND validation_timestamp < ?", true, s.now().Add(-staleAfter)).
		Order("validation_timestamp ASC").
		Find(&ms).Error
	if err != nil {
		return err
	}
	for _, m := range ms {
		r.StaleClaims = append(r.StaleClaims, StaleClaim{
			MilestoneID:    m.ID,
			LoanID:         m.LoanID,
			MilestoneIndex: m.Index,
			ValidatorID:    m.ValidatorID,
			ClaimedAt:      m.ValidationTimestamp,
		})
	}
	return nil
}

func (s *Service) completeMissed(ctx context.Context, r *Report) error {
	if s.Completer == nil {
		return nil
	}
	var ids []string
	err := s.DB.WithContext(ctx).Model(&domain.Loan{}).
		Where("status = ?", domain.LoanStatusActive).
		Where(`NOT EXISTS (SELECT 1 FROM "Milestones" m WHERE m.loan_id = "Loans".id AND (m.validated = ? OR m.tx_hash IS NULL OR m.tx_hash = ''))`, false).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	for _, id := range ids {
		done, err := s.Completer.CompleteIfFullyValidated(ctx, id)
		if err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("complete loan %s: %v", id, err))
			continue
		}
		if done {
			log.Info().Str("loan_id", id).Msg("reconciliation completed loan")
			r.CompletedLoans = append(r.CompletedLoans, id)
		}
	}
	return nil
}

func (s *Service) checkAmounts(ctx context.Context, r *Report) error {
	db := s.DB.WithContext(ctx)
	var sums []struct {
		LoanID    string
		Confirmed decimal.Decimal
	}
	if err := db.Model(&domain.Milestone{}).
		Select("loan_id, COALESCE(SUM(amount), 0) AS confirmed").
		Where("validated = ? AND tx_hash IS NOT NULL AND tx_hash <> ''", true).
		Group("loan_id").
		Scan(&sums).Error; err != nil {
		return err
	}
	confirmed := make(map[string]decimal.Decimal, len(sums))
	for _, row := range sums {
		confirmed[row.LoanID] = row.Confirmed
	}

	var loans []domain.Loan
	if err := db.Select("id", "amount_released").Order("created_at ASC").Find(&loans).Error; err != nil {
		return err
	}
	for _, l := range loans {
		want := confirmed[l.ID]
		if !l.AmountReleased.Equal(want) {
			r.AmountMismatches = append(r.AmountMismatches, AmountMismatch{
				LoanID:         l.ID,
				AmountReleased: l.AmountReleased,
				ConfirmedTotal: want,
			})
		}
	}
	return nil
}

func (s *Service) checkTransactions(ctx context.Context, r *Report) error {
	if s.Ledger == nil {
		return nil
	}
	limit := s.TxCheckLimit
	if limit <= 0 {
		limit = DefaultTxCheckLimit
	}
	var vs []domain.Validation
	if err := s.DB.WithContext(ctx).Order("validated_at DESC").Limit(limit).Find(&vs).Error; err != nil {
		return err
	}
	for _, v := range vs {
		ok, err := s.Ledger.TransactionExists(ctx, v.TxHash)
		if err != nil {
			// Stop at the first lookup error.
			return err
		}
		r.TransactionsChecked++
		if !ok {
			r.MissingTransactions = append(r.MissingTransactions, MissingTransaction{ValidationID: v.ID, LoanID: v.LoanID, TxHash: v.TxHash})
		}
	}
	return nil
}
