package stats

import (
	"context"

	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LeaderboardSize is how many borrowers the leaderboard shows.
const LeaderboardSize = 10

// Service serves read-only marketplace aggregates.
type Service struct {
	DB *gorm.DB
}

type LoanCounts struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
}

type Overview struct {
	Loans         LoanCounts      `json:"loans"`
	TotalUsers    int64           `json:"totalUsers"`
	TotalInvested decimal.Decimal `json:"totalInvested"`
	TotalImpact   decimal.Decimal `json:"totalImpact"`
}

// ImpactGroup sums loans sharing an impact unit.
type ImpactGroup struct {
	ImpactUnit     string          `json:"impactUnit"`
	ImpactAchieved decimal.Decimal `json:"impactAchieved"`
	ImpactTarget   decimal.Decimal `json:"impactTarget"`
	Count          int64           `json:"count"`
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	db := s.DB.WithContext(ctx)
	out := &Overview{}
	counts := []struct {
		dst   *int64
		model interface{}
		where []interface{}
	}{
		{&out.Loans.Total, &domain.Loan{}, nil},
		{&out.Loans.Active, &domain.Loan{}, []interface{}{"status = ?", domain.LoanStatusActive}},
		{&out.Loans.Completed, &domain.Loan{}, []interface{}{"status = ?", domain.LoanStatusCompleted}},
		{&out.TotalUsers, &domain.User{}, nil},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != nil {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, apperrors.Internal("Failed to load stats", err)
		}
	}

	var sum struct{ Total decimal.Decimal }
	if err := db.Model(&domain.Investment{}).Select("COALESCE(SUM(amount), 0) AS total").Scan(&sum).Error; err != nil {
		return nil, apperrors.Internal("Failed to load stats", err)
	}
	out.TotalInvested = sum.Total

	sum.Total = decimal.Zero
	if err := db.Model(&domain.Loan{}).Select("COALESCE(SUM(impact_achieved), 0) AS total").Scan(&sum).Error; err != nil {
		return nil, apperrors.Internal("Failed to load stats", err)
	}
	out.TotalImpact = sum.Total
	return out, nil
}

// Impact groups loans by impact unit.
func (s *Service) Impact(ctx context.Context) ([]ImpactGroup, error) {
	out := []ImpactGroup{}
	err := s.DB.WithContext(ctx).Model(&domain.Loan{}).
		Select("impact_unit, COALESCE(SUM(impact_achieved), 0) AS impact_achieved, COALESCE(SUM(impact_target), 0) AS impact_target, COUNT(*) AS count").
		Group("impact_unit").
		Order("impact_unit ASC").
		Scan(&out).Error
	if err != nil {
		return nil, apperrors.Internal("Failed to load impact stats", err)
	}
	return out, nil
}

// Leaderboard returns the highest reputation scores with minimal user info.
func (s *Service) Leaderboard(ctx context.Context) ([]domain.Reputation, error) {
	out := []domain.Reputation{}
	err := s.DB.WithContext(ctx).
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "location") }).
		Order("reputation_score DESC").
		Limit(LeaderboardSize).
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Internal("Failed to load leaderboard", err)
	}
	return out, nil
}
