package investments

import (
	"context"
	"errors"

	"impact-lending-backend/internal/application/ledger"
	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/apperrors"
	"impact-lending-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service records liquidity investors add to the lending pool.
type Service struct {
	DB     *gorm.DB
	Ledger ledger.Gateway
}

var validate = validation.New()

type AddLiquidityInput struct {
	InvestorID     string          `json:"-"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	InvestorSecret string          `json:"investorSecret" validate:"required"`
}

type AddLiquidityResult struct {
	Investment  *domain.Investment `json:"investment"`
	PoolBalance decimal.Decimal    `json:"poolBalance"`
}

type Portfolio struct {
	Investments   []domain.Investment `json:"investments"`
	TotalInvested decimal.Decimal     `json:"totalInvested"`
}

// AddLiquidity submits the deposit to the ledger and records it once confirmed.
func (s *Service) AddLiquidity(ctx context.Context, in AddLiquidityInput) (*AddLiquidityResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	var investor domain.User
	if err := db.Where("id = ?", in.InvestorID).First(&investor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Investor not found")
		}
		return nil, apperrors.Internal("Failed to load investor", err)
	}

	receipt, err := s.Ledger.SubmitLiquidityAddition(ctx, ledger.LiquidityAddition{
		Investor: ledger.Signer{PublicKey: investor.StellarPublicKey, Secret: in.InvestorSecret},
		Amount:   in.Amount,
	})
	if err != nil {
		log.Error().Err(err).Str("investor_id", investor.ID).Str("amount", in.Amount.String()).Msg("ledger add liquidity failed")
		return nil, apperrors.Ledger(err)
	}

	inv := &domain.Investment{InvestorID: investor.ID, Amount: in.Amount, TxHash: receipt.TxHash}
	if err := db.Create(inv).Error; err != nil {
		log.Error().Err(err).Str("tx_hash", receipt.TxHash).Msg("investment confirmed on ledger but not recorded")
		return nil, apperrors.Internal("Failed to record investment", err)
	}
	log.Info().Str("investor_id", investor.ID).Str("amount", in.Amount.String()).Str("tx_hash", receipt.TxHash).Msg("liquidity added")
	return &AddLiquidityResult{Investment: inv, PoolBalance: receipt.PoolBalance}, nil
}

// MyInvestments lists the investor's deposits newest first with their sum.
func (s *Service) MyInvestments(ctx context.Context, investorID string) (*Portfolio, error) {
	out := &Portfolio{Investments: []domain.Investment{}, TotalInvested: decimal.Zero}
	if err := s.DB.WithContext(ctx).Where("investor_id = ?", investorID).
		Order("created_at DESC").Find(&out.Investments).Error; err != nil {
		return nil, apperrors.Internal("Failed to list investments", err)
	}
	for _, inv := range out.Investments {
		out.TotalInvested = out.TotalInvested.Add(inv.Amount)
	}
	return out, nil
}
