package reputation

import (
	"context"
	"encoding/json"

	"impact-lending-backend/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxScore is the upper bound of a reputation score.
const MaxScore = 1000

// Service maintains borrower reputations. Only loan completion writes here.
type Service struct {
	DB *gorm.DB
}

// CalculateReputationScore returns min(round(completedLoans*10 + totalImpact/100 + onTimeRate), 1000), floored at 0.
func CalculateReputationScore(completedLoans int, totalImpact decimal.Decimal, onTimeRate int) int {
	raw := decimal.NewFromInt(int64(completedLoans) * 10).
		Add(totalImpact.Div(decimal.NewFromInt(100))).
		Add(decimal.NewFromInt(int64(onTimeRate))).
		Round(0).
		IntPart()
	if raw > MaxScore {
		return MaxScore
	}
	if raw < 0 {
		return 0
	}
	return int(raw)
}

// UpdateBorrowerReputation records one completed loan for the borrower, creating the row on first completion.
// Counters are incremented store-side; nftIds gets the loan's on-chain id appended.
func (s *Service) UpdateBorrowerReputation(ctx context.Context, borrowerID string, loan *domain.Loan) (*domain.Reputation, error) {
	var out domain.Reputation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := json.Marshal([]uint64{loan.LoanIDOnChain})
		if err != nil {
			return err
		}
		fresh := domain.Reputation{
			UserID:         borrowerID,
			CompletedLoans: 1,
			TotalImpact:    loan.ImpactAchieved,
			NFTIDs:         datatypes.JSON(ids),
			OnTimeRate:     domain.DefaultOnTimeRate,
		}
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).Create(&fresh)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			if err := tx.Model(&domain.Reputation{}).Where("user_id = ?", borrowerID).Updates(map[string]interface{}{
				"completed_loans": gorm.Expr("completed_loans + ?", 1),
				"total_impact":    gorm.Expr("total_impact + ?", loan.ImpactAchieved),
			}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", borrowerID).First(&out).Error; err != nil {
				return err
			}
			list, err := json.Marshal(append(out.NFTIDList(), loan.LoanIDOnChain))
			if err != nil {
				return err
			}
			out.NFTIDs = datatypes.JSON(list)
			if err := tx.Model(&domain.Reputation{}).Where("id = ?", out.ID).Update("nft_ids", out.NFTIDs).Error; err != nil {
				return err
			}
		} else {
			out = fresh
		}

		out.ReputationScore = CalculateReputationScore(out.CompletedLoans, out.TotalImpact, out.OnTimeRate)
		return tx.Model(&domain.Reputation{}).Where("id = ?", out.ID).Update("reputation_score", out.ReputationScore).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns the user's reputation or nil when none exists yet.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Reputation, error) {
	var rep domain.Reputation
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&rep).Error
	if err != nil {
		return nil, err
	}
	if rep.ID == "" {
		return nil, nil
	}
	return &rep, nil
}
