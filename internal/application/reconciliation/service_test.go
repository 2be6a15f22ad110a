package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"impact-lending-backend/internal/application/reputation"
	"impact-lending-backend/internal/application/validations"
	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedLoan(t *testing.T, db *gorm.DB, borrowerID string, released int64) (*domain.Loan, []domain.Milestone) {
	t.Helper()
	loan := &domain.Loan{
		LoanIDOnChain:     9,
		BorrowerID:        borrowerID,
		TotalAmount:       decimal.NewFromInt(1000),
		NumMilestones:     2,
		ImpactDescription: "Biodigesters",
		ImpactUnit:        "units",
		ImpactTarget:      decimal.NewFromInt(20),
		AmountReleased:    decimal.NewFromInt(released),
		ImpactAchieved:    decimal.Zero,
		Status:            domain.LoanStatusActive,
	}
	require.NoError(t, db.Create(loan).Error)
	ms := make([]domain.Milestone, 2)
	for i := range ms {
		ms[i] = domain.Milestone{LoanID: loan.ID, Index: i, Amount: decimal.NewFromInt(500), ImpactRequired: decimal.NewFromInt(10)}
		require.NoError(t, db.Create(&ms[i]).Error)
	}
	return loan, ms
}

func confirm(t *testing.T, db *gorm.DB, m domain.Milestone, validatorID, txHash string) {
	t.Helper()
	at := now.Add(-time.Hour)
	require.NoError(t, db.Model(&domain.Milestone{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
		"validated": true, "validator_id": validatorID, "validation_timestamp": at, "tx_hash": txHash,
	}).Error)
}

func TestRun(t *testing.T) {
	db := testutil.OpenDB(t)
	fl := testutil.NewFakeLedger()
	borrower := testutil.CreateProducer(t, db)
	validator := testutil.CreateValidator(t, db)
	completer := &validations.Service{DB: db, Reputation: &reputation.Service{DB: db}, Now: func() time.Time { return now }}
	svc := &Service{DB: db, Completer: completer, Ledger: fl, Now: func() time.Time { return now }}

	// Both milestones confirmed but the completion step never ran.
	done, doneMs := seedLoan(t, db, borrower.ID, 1000)
	confirm(t, db, doneMs[0], validator.ID, "known-1")
	confirm(t, db, doneMs[1], validator.ID, "known-2")
	fl.KnownTx["known-1"] = true

	// Claimed an hour ago with no ledger confirmation.
	stale, staleMs := seedLoan(t, db, borrower.ID, 0)
	_, err := validations.ClaimMilestone(db, staleMs[0].ID, validator.ID, now.Add(-time.Hour))
	require.NoError(t, err)

	// Released funds without any confirmed milestone.
	drift, _ := seedLoan(t, db, borrower.ID, 500)

	for i, h := range []string{"known-1", "lost-tx"} {
		require.NoError(t, db.Create(&domain.Validation{
			LoanID: done.ID, MilestoneID: doneMs[i].ID, ValidatorID: validator.ID,
			ImpactDelivered: decimal.NewFromInt(10), TxHash: h, ValidatedAt: now.Add(-time.Duration(i) * time.Minute),
		}).Error)
	}

	r := svc.Run(context.Background())
	assert.False(t, r.Clean())
	assert.Empty(t, r.Errors)

	assert.Equal(t, []string{done.ID}, r.CompletedLoans)
	var loan domain.Loan
	require.NoError(t, db.First(&loan, "id = ?", done.ID).Error)
	assert.Equal(t, domain.LoanStatusCompleted, loan.Status)
	var rep domain.Reputation
	require.NoError(t, db.Where("user_id = ?", borrower.ID).First(&rep).Error)
	assert.Equal(t, 1, rep.CompletedLoans)

	require.Len(t, r.StaleClaims, 1)
	assert.Equal(t, stale.ID, r.StaleClaims[0].LoanID)
	assert.Equal(t, 0, r.StaleClaims[0].MilestoneIndex)

	require.Len(t, r.AmountMismatches, 1)
	assert.Equal(t, drift.ID, r.AmountMismatches[0].LoanID)
	assert.True(t, r.AmountMismatches[0].ConfirmedTotal.IsZero())

	assert.Equal(t, 2, r.TransactionsChecked)
	require.Len(t, r.MissingTransactions, 1)
	assert.Equal(t, "lost-tx", r.MissingTransactions[0].TxHash)

	// A second pass has nothing left to complete.
	r = svc.Run(context.Background())
	assert.Empty(t, r.CompletedLoans)
	require.NoError(t, db.Where("user_id = ?", borrower.ID).First(&rep).Error)
	assert.Equal(t, 1, rep.CompletedLoans)
}

func TestRun_FreshClaimIsNotStale(t *testing.T) {
	db := testutil.OpenDB(t)
	borrower := testutil.CreateProducer(t, db)
	validator := testutil.CreateValidator(t, db)
	_, ms := seedLoan(t, db, borrower.ID, 0)
	_, err := validations.ClaimMilestone(db, ms[0].ID, validator.ID, now.Add(-time.Minute))
	require.NoError(t, err)

	svc := &Service{DB: db, Now: func() time.Time { return now }}
	r := svc.Run(context.Background())
	assert.Empty(t, r.StaleClaims)
	assert.True(t, r.Clean())
}

func TestRun_LedgerLookupFailure(t *testing.T) {
	db := testutil.OpenDB(t)
	fl := testutil.NewFakeLedger()
	fl.TxLookupErr = errors.New("horizon unavailable")
	borrower := testutil.CreateProducer(t, db)
	validator := testutil.CreateValidator(t, db)
	loan, ms := seedLoan(t, db, borrower.ID, 0)
	require.NoError(t, db.Create(&domain.Validation{
		LoanID: loan.ID, MilestoneID: ms[0].ID, ValidatorID: validator.ID, ImpactDelivered: decimal.Zero, TxHash: "x",
	}).Error)

	svc := &Service{DB: db, Ledger: fl, Now: func() time.Time { return now }}
	r := svc.Run(context.Background())
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0], "ledger transactions")
	assert.Zero(t, r.TransactionsChecked)
}
