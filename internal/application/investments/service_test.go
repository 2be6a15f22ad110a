package investments

import (
	"context"
	"errors"
	"testing"

	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/apperrors"
	"impact-lending-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddLiquidity(t *testing.T) {
	db := testutil.OpenDB(t)
	fl := testutil.NewFakeLedger()
	fl.PoolBalance = decimal.NewFromInt(500)
	svc := &Service{DB: db, Ledger: fl}
	investor := testutil.CreateInvestor(t, db)
	ctx := context.Background()

	res, err := svc.AddLiquidity(ctx, AddLiquidityInput{InvestorID: investor.ID, Amount: decimal.NewFromInt(250), InvestorSecret: "SINV"})
	require.NoError(t, err)
	assert.True(t, res.PoolBalance.Equal(decimal.NewFromInt(750)))
	assert.Equal(t, investor.ID, res.Investment.InvestorID)
	assert.NotEmpty(t, res.Investment.TxHash)

	require.Len(t, fl.Liquidity, 1)
	assert.Equal(t, investor.StellarPublicKey, fl.Liquidity[0].Investor.PublicKey)
	assert.Equal(t, "SINV", fl.Liquidity[0].Investor.Secret)

	_, err = svc.AddLiquidity(ctx, AddLiquidityInput{InvestorID: investor.ID, Amount: decimal.RequireFromString("49.5"), InvestorSecret: "SINV"})
	require.NoError(t, err)

	p, err := svc.MyInvestments(ctx, investor.ID)
	require.NoError(t, err)
	assert.Len(t, p.Investments, 2)
	assert.True(t, p.TotalInvested.Equal(decimal.RequireFromString("299.5")))
}

func TestAddLiquidity_Rejections(t *testing.T) {
	db := testutil.OpenDB(t)
	fl := testutil.NewFakeLedger()
	svc := &Service{DB: db, Ledger: fl}
	investor := testutil.CreateInvestor(t, db)
	ctx := context.Background()

	_, err := svc.AddLiquidity(ctx, AddLiquidityInput{InvestorID: investor.ID, Amount: decimal.Zero, InvestorSecret: "S"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidationFailed))

	_, err = svc.AddLiquidity(ctx, AddLiquidityInput{InvestorID: investor.ID, Amount: decimal.NewFromInt(1)})
	assert.Equal(t, "investorSecret is required", apperrors.Message(err))

	_, err = svc.AddLiquidity(ctx, AddLiquidityInput{InvestorID: "missing", Amount: decimal.NewFromInt(1), InvestorSecret: "S"})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	fl.LiquidityErr = errors.New("relay down")
	_, err = svc.AddLiquidity(ctx, AddLiquidityInput{InvestorID: investor.ID, Amount: decimal.NewFromInt(1), InvestorSecret: "S"})
	assert.True(t, apperrors.Is(err, apperrors.KindLedger))

	var n int64
	require.NoError(t, db.Model(&domain.Investment{}).Count(&n).Error)
	assert.Zero(t, n)

	p, err := svc.MyInvestments(ctx, investor.ID)
	require.NoError(t, err)
	assert.Empty(t, p.Investments)
	assert.True(t, p.TotalInvested.IsZero())
}
