package reputation

import (
	"context"
	"testing"

	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateReputationScore(t *testing.T) {
	assert.Equal(t, 100, CalculateReputationScore(0, decimal.Zero, 100))
	assert.Equal(t, 113, CalculateReputationScore(1, decimal.NewFromInt(300), 100))
	// 2*10 + 250/100 + 90 = 112.5 rounds up
	assert.Equal(t, 113, CalculateReputationScore(2, decimal.NewFromInt(250), 90))
	assert.Equal(t, MaxScore, CalculateReputationScore(50, decimal.NewFromInt(100000), 100))
	assert.Equal(t, 0, CalculateReputationScore(0, decimal.NewFromInt(-100000), 0))
}

func TestCalculateReputationScore_BoundedAndMonotonic(t *testing.T) {
	prev := -1
	for loans := 0; loans <= 120; loans += 3 {
		score := CalculateReputationScore(loans, decimal.NewFromInt(500), 100)
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, MaxScore)
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}
	prev = -1
	for impact := int64(0); impact <= 200000; impact += 7500 {
		score := CalculateReputationScore(4, decimal.NewFromInt(impact), 80)
		assert.GreaterOrEqual(t, score, prev)
		assert.LessOrEqual(t, score, MaxScore)
		prev = score
	}
}

func TestUpdateBorrowerReputation_CreatesThenIncrements(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := &Service{DB: db}
	borrower := testutil.CreateProducer(t, db)
	ctx := context.Background()

	rep, err := svc.UpdateBorrowerReputation(ctx, borrower.ID, &domain.Loan{LoanIDOnChain: 7, ImpactAchieved: decimal.NewFromInt(300)})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.CompletedLoans)
	assert.True(t, rep.TotalImpact.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, []uint64{7}, rep.NFTIDList())
	assert.Equal(t, 113, rep.ReputationScore)

	rep, err = svc.UpdateBorrowerReputation(ctx, borrower.ID, &domain.Loan{LoanIDOnChain: 9, ImpactAchieved: decimal.NewFromInt(200)})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.CompletedLoans)
	assert.True(t, rep.TotalImpact.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, []uint64{7, 9}, rep.NFTIDList())
	assert.Equal(t, 125, rep.ReputationScore)

	var count int64
	require.NoError(t, db.Model(&domain.Reputation{}).Where("user_id = ?", borrower.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored, err := svc.Get(ctx, borrower.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 125, stored.ReputationScore)
}

func TestGet_None(t *testing.T) {
	db := testutil.OpenDB(t)
	rep, err := (&Service{DB: db}).Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rep)
}
