package user

import (
	"context"
	"errors"
	"strings"

	"impact-lending-backend/internal/application/notifications"
	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/apperrors"
	"impact-lending-backend/internal/pkg/validation"

	"gorm.io/gorm"
)

// ActiveLoansOnProfile caps the active loans returned with the caller's own profile.
const ActiveLoansOnProfile = 5

var publicProfileColumns = []string{"id", "name", "role", "stellar_public_key", "location", "verified", "created_at"}

// Service holds DB access for profile reads and updates.
type Service struct {
	DB    *gorm.DB
	Inbox *notifications.Service
}

var validate = validation.New()

// ProfileUpdate carries the editable profile fields. Nil or blank values leave the field unchanged.
type ProfileUpdate struct {
	Name         *string `json:"name" validate:"omitempty,max=120"`
	Phone        *string `json:"phone" validate:"omitempty,max=40"`
	Location     *string `json:"location" validate:"omitempty,max=200"`
	ProfileImage *string `json:"profileImage" validate:"omitempty,max=2048"`
}

// Me returns the caller with reputation and a few active loans.
func (s *Service) Me(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := s.DB.WithContext(ctx).
		Preload("Reputation").
		Preload("Loans", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", domain.LoanStatusActive).Order("created_at DESC").Limit(ActiveLoansOnProfile)
		}).
		Where("id = ?", userID).First(&u).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &u, nil
}

// PublicProfile returns what anyone may see of a user.
func (s *Service) PublicProfile(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := s.DB.WithContext(ctx).
		Select(publicProfileColumns).
		Preload("Reputation").
		Where("id = ?", userID).First(&u).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &u, nil
}

// UpdateProfile applies the non-empty fields of in. Role and account id are never editable.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*domain.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	upd := map[string]interface{}{}
	set := func(col string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			upd[col] = strings.TrimSpace(*v)
		}
	}
	set("name", in.Name)
	set("phone", in.Phone)
	set("location", in.Location)
	set("profile_image", in.ProfileImage)

	db := s.DB.WithContext(ctx)
	if len(upd) > 0 {
		res := db.Model(&domain.User{}).Where("id = ?", userID).Updates(upd)
		if res.Error != nil {
			return nil, apperrors.Internal("Failed to update profile", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, apperrors.NotFound("User not found")
		}
	}
	var u domain.User
	if err := db.Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &u, nil
}

// Notifications returns the caller's latest notifications.
func (s *Service) Notifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.inbox().List(ctx, userID)
}

// MarkNotificationRead marks one of the caller's notifications read.
func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	return s.inbox().MarkRead(ctx, userID, notificationID)
}

func (s *Service) inbox() *notifications.Service {
	if s.Inbox == nil {
		return &notifications.Service{DB: s.DB}
	}
	return s.Inbox
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("User not found")
	}
	return apperrors.Internal("Failed to load user", err)
}
