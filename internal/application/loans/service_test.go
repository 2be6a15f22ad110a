package loans

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/apperrors"
	"impact-lending-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeQR struct{ payloads []string }

func (f *fakeQR) Encode(payload string) (string, error) {
	f.payloads = append(f.payloads, payload)
	return "data:image/png;base64,AAAA", nil
}

func setupLoans(t *testing.T) (*Service, *gorm.DB, *testutil.FakeLedger, *fakeQR) {
	db := testutil.OpenDB(t)
	fl := testutil.NewFakeLedger()
	q := &fakeQR{}
	svc := &Service{DB: db, Ledger: fl, QR: q, Now: func() time.Time { return time.UnixMilli(1700000000000) }}
	return svc, db, fl, q
}

func createInput(borrowerID string, total int64, n int) CreateLoanInput {
	return CreateLoanInput{
		BorrowerID:        borrowerID,
		TotalAmount:       decimal.NewFromInt(total),
		NumMilestones:     n,
		ImpactDescription: "Plant native trees",
		ImpactUnit:        "trees",
		ImpactTarget:      decimal.NewFromInt(300),
		BorrowerSecret:    "SSECRET",
	}
}

func TestCreateLoan_SplitsIntoEqualMilestones(t *testing.T) {
	svc, db, fl, _ := setupLoans(t)
	borrower := testutil.CreateProducer(t, db)

	loan, err := svc.CreateLoan(context.Background(), createInput(borrower.ID, 3000, 3))
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, loan.Status)
	assert.NotEmpty(t, loan.TxHash)
	assert.NotNil(t, loan.ApprovedAt)
	assert.Empty(t, loan.Milestones)
	assert.True(t, loan.AmountReleased.IsZero())

	require.Len(t, fl.Loans, 1)
	assert.Equal(t, borrower.StellarPublicKey, fl.Loans[0].Borrower.PublicKey)
	assert.Equal(t, "SSECRET", fl.Loans[0].Borrower.Secret)

	var milestones []domain.Milestone
	require.NoError(t, db.Where("loan_id = ?", loan.ID).Order("milestone_index").Find(&milestones).Error)
	require.Len(t, milestones, 3)
	for i, m := range milestones {
		assert.Equal(t, i, m.Index)
		assert.True(t, m.Amount.Equal(decimal.NewFromInt(1000)), "milestone %d amount %s", i, m.Amount)
		assert.True(t, m.ImpactRequired.Equal(decimal.NewFromInt(100)))
		assert.False(t, m.Validated)
	}
}

func TestSplitEqually_NoRemainderRedistribution(t *testing.T) {
	total := decimal.NewFromInt(1000)
	amount, impact := SplitEqually(total, decimal.NewFromInt(10), 3)
	assert.True(t, amount.Equal(total.Div(decimal.NewFromInt(3))))
	assert.True(t, impact.Equal(decimal.NewFromInt(10).Div(decimal.NewFromInt(3))))
	assert.False(t, amount.Mul(decimal.NewFromInt(3)).Equal(total))

	amount, _ = SplitEqually(decimal.NewFromInt(3000), decimal.Zero, 3)
	assert.True(t, amount.Mul(decimal.NewFromInt(3)).Equal(decimal.NewFromInt(3000)))
}

func TestCreateLoan_LedgerFailureStoresNothing(t *testing.T) {
	svc, db, fl, _ := setupLoans(t)
	borrower := testutil.CreateProducer(t, db)
	fl.LoanErr = errors.New("relay timeout")

	_, err := svc.CreateLoan(context.Background(), createInput(borrower.ID, 3000, 3))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindLedger))

	var loans, milestones int64
	db.Model(&domain.Loan{}).Count(&loans)
	db.Model(&domain.Milestone{}).Count(&milestones)
	assert.Zero(t, loans)
	assert.Zero(t, milestones)
}

func TestCreateLoan_Preconditions(t *testing.T) {
	svc, db, fl, _ := setupLoans(t)
	borrower := testutil.CreateProducer(t, db)
	ctx := context.Background()

	_, err := svc.CreateLoan(ctx, createInput("missing", 3000, 3))
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = svc.CreateLoan(ctx, createInput(borrower.ID, 0, 3))
	assert.True(t, apperrors.Is(err, apperrors.KindValidationFailed))

	_, err = svc.CreateLoan(ctx, createInput(borrower.ID, 3000, 0))
	assert.True(t, apperrors.Is(err, apperrors.KindValidationFailed))

	in := createInput(borrower.ID, 3000, 3)
	in.ImpactTarget = decimal.NewFromInt(-1)
	_, err = svc.CreateLoan(ctx, in)
	assert.True(t, apperrors.Is(err, apperrors.KindValidationFailed))

	assert.Empty(t, fl.Loans)
}

func TestGetLoan(t *testing.T) {
	svc, db, _, _ := setupLoans(t)
	borrower := testutil.CreateProducer(t, db)
	created, err := svc.CreateLoan(context.Background(), createInput(borrower.ID, 3000, 3))
	require.NoError(t, err)

	loan, err := svc.GetLoan(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, loan.Borrower)
	assert.Equal(t, borrower.Name, loan.Borrower.Name)
	assert.Empty(t, loan.Borrower.Email)
	require.Len(t, loan.Milestones, 3)
	assert.Equal(t, 0, loan.Milestones[0].Index)
	assert.Equal(t, 2, loan.Milestones[2].Index)

	_, err = svc.GetLoan(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestListLoans_FiltersAndCounts(t *testing.T) {
	svc, db, _, _ := setupLoans(t)
	a := testutil.CreateProducer(t, db)
	b := testutil.CreateProducer(t, db)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.CreateLoan(ctx, createInput(a.ID, 1000, 1))
		require.NoError(t, err)
	}
	done, err := svc.CreateLoan(ctx, createInput(b.ID, 1000, 1))
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.Loan{}).Where("id = ?", done.ID).Update("status", domain.LoanStatusCompleted).Error)

	res, err := svc.ListLoans(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Total)
	assert.Equal(t, DefaultLimit, res.Limit)
	assert.Len(t, res.Loans, 4)

	res, err = svc.ListLoans(ctx, ListFilter{BorrowerID: a.ID, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Len(t, res.Loans, 2)
	require.NotNil(t, res.Loans[0].Borrower)

	res, err = svc.ListLoans(ctx, ListFilter{Status: domain.LoanStatusCompleted, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, MaxLimit, res.Limit)

	mine, err := svc.GetUserLoans(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
	assert.Len(t, mine[0].Milestones, 1)
}

func TestCalculateProgress_IsPure(t *testing.T) {
	loan := &domain.Loan{
		NumMilestones:  3,
		TotalAmount:    decimal.NewFromInt(3000),
		AmountReleased: decimal.NewFromInt(1000),
		ImpactTarget:   decimal.NewFromInt(300),
		ImpactAchieved: decimal.NewFromInt(120),
		Milestones: []domain.Milestone{
			{Index: 0, Validated: true, TxHash: "h"},
			{Index: 1},
			{Index: 2},
		},
	}
	first := CalculateProgress(loan)
	second := CalculateProgress(loan)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, first.ValidatedMilestones)
	assert.Equal(t, 3, first.TotalMilestones)
	assert.Equal(t, 33, first.ProgressPercentage)
	assert.True(t, first.AmountReleased.Equal(decimal.NewFromInt(1000)))

	loan.Milestones[1].Validated = true
	assert.Equal(t, 67, CalculateProgress(loan).ProgressPercentage)
}

func TestGenerateMilestoneQR(t *testing.T) {
	svc, db, _, q := setupLoans(t)
	borrower := testutil.CreateProducer(t, db)
	loan, err := svc.CreateLoan(context.Background(), createInput(borrower.ID, 3000, 3))
	require.NoError(t, err)

	res, err := svc.GenerateMilestoneQR(context.Background(), loan.ID, 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.QRCode, "data:image/png;base64,"))
	assert.Equal(t, loan.ID, res.LoanData.ID)
	assert.Equal(t, "trees", res.LoanData.ImpactUnit)
	assert.Equal(t, 1, res.LoanData.Milestone.Index)

	require.Len(t, q.payloads, 1)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(q.payloads[0]), &payload))
	assert.Equal(t, loan.ID, payload["loanId"])
	assert.Equal(t, float64(1), payload["milestoneIndex"])
	assert.Equal(t, float64(1700000000000), payload["timestamp"])

	_, err = svc.GenerateMilestoneQR(context.Background(), loan.ID, 3)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	_, err = svc.GenerateMilestoneQR(context.Background(), "missing", 0)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
