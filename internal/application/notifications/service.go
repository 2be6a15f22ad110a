package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"impact-lending-backend/internal/application/emails"
	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/apperrors"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ListLimit is how many notifications a user sees.
const ListLimit = 50

const mailTimeout = 15 * time.Second

// Service stores in-app notifications and mirrors them by email when a Mailer is set.
type Service struct {
	DB     *gorm.DB
	Mailer emails.Mailer
}

// Notify persists one notification for userID.
func (s *Service) Notify(ctx context.Context, userID, typ, title, message string, metadata map[string]interface{}) (*domain.Notification, error) {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	n := &domain.Notification{UserID: userID, Type: typ, Title: title, Message: message, Metadata: datatypes.JSON(meta)}
	if err := s.DB.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// MilestoneValidated tells the borrower how much a validated milestone released.
func (s *Service) MilestoneValidated(ctx context.Context, loan *domain.Loan, milestone *domain.Milestone, validationID string) error {
	number := milestone.Index + 1
	amount := milestone.Amount.StringFixedBank(2) + " USDC"
	_, err := s.Notify(ctx, loan.BorrowerID, domain.NotificationMilestoneValidated, "Milestone Validated",
		fmt.Sprintf("Your milestone %d has been validated. %s was released.", number, amount),
		map[string]interface{}{"loanId": loan.ID, "milestoneIndex": milestone.Index, "validationId": validationID})
	if err != nil {
		return err
	}
	s.mail(loan.BorrowerID, fmt.Sprintf("Milestone %d validated", number), func(u *domain.User) string {
		return emails.MilestoneValidatedContent(u.Name, loan.ImpactDescription, number, amount)
	})
	return nil
}

// LoanCompleted tells the borrower every milestone is done.
func (s *Service) LoanCompleted(ctx context.Context, loan *domain.Loan, rep *domain.Reputation) error {
	score := 0
	if rep != nil {
		score = rep.ReputationScore
	}
	_, err := s.Notify(ctx, loan.BorrowerID, domain.NotificationLoanCompleted, "Loan Completed",
		fmt.Sprintf("All milestones of \"%s\" are validated. Your reputation score is now %d.", loan.ImpactDescription, score),
		map[string]interface{}{"loanId": loan.ID, "loanIdOnChain": loan.LoanIDOnChain, "reputationScore": score})
	if err != nil {
		return err
	}
	s.mail(loan.BorrowerID, "Your loan is complete", func(u *domain.User) string {
		return emails.LoanCompletedContent(u.Name, loan.ImpactDescription, score)
	})
	return nil
}

// mail sends in the background; failures are logged only.
func (s *Service) mail(userID, subject string, content func(*domain.User) string) {
	if s.Mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		var u domain.User
		if err := s.DB.WithContext(ctx).Select("id", "name", "email").Where("id = ?", userID).First(&u).Error; err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("notification email: user lookup failed")
			return
		}
		if err := s.Mailer.Send(ctx, u.Email, u.Name, subject, content(&u)); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("notification email failed")
		}
	}()
}

// List returns the user's latest notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	out := []domain.Notification{}
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(ListLimit).Find(&out).Error; err != nil {
		return nil, apperrors.Internal("Failed to list notifications", err)
	}
	return out, nil
}

// MarkRead flags one of the user's notifications as read. Other users' notifications read as missing.
func (s *Service) MarkRead(ctx context.Context, userID, id string) (*domain.Notification, error) {
	db := s.DB.WithContext(ctx)
	var n domain.Notification
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Notification not found")
		}
		return nil, apperrors.Internal("Failed to load notification", err)
	}
	if !n.Read {
		if err := db.Model(&domain.Notification{}).Where("id = ?", n.ID).Update("read", true).Error; err != nil {
			return nil, apperrors.Internal("Failed to update notification", err)
		}
		n.Read = true
	}
	return &n, nil
}
