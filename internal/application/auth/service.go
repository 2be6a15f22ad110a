package auth

import (
	"context"
	"errors"
	"strings"

	tokenauth "impact-lending-backend/internal/auth"
	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/apperrors"
	"impact-lending-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 10

// AccountProber checks whether a Stellar account exists on the ledger.
type AccountProber interface {
	AccountExists(ctx context.Context, publicKey string) bool
}

// Sessions records issued tokens so they can be revoked.
type Sessions interface {
	Save(ctx context.Context, id *tokenauth.Identity) error
	Revoke(ctx context.Context, sessionID string) error
}

// Service registers and signs in users.
type Service struct {
	DB       *gorm.DB
	Tokens   *tokenauth.TokenManager
	Sessions Sessions
	Ledger   AccountProber
}

var validate = validation.New()

type RegisterInput struct {
	Email            string  `json:"email" validate:"required,email"`
	Name             string  `json:"name" validate:"required,max=120"`
	Role             string  `json:"role" validate:"required,oneof=PRODUCER VALIDATOR INVESTOR"`
	StellarPublicKey string  `json:"stellarPublicKey" validate:"required,stellarkey"`
	Password         string  `json:"password,omitempty" validate:"omitempty,password"`
	Phone            *string `json:"phone,omitempty"`
	Location         *string `json:"location,omitempty"`
}

type LoginInput struct {
	StellarPublicKey string `json:"stellarPublicKey" validate:"required"`
	Password         string `json:"password,omitempty"`
}

// Session is the user plus a freshly issued bearer token.
type Session struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// Register creates a user. The ledger account probe is informational only.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.StellarPublicKey = strings.TrimSpace(in.StellarPublicKey)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	if s.Ledger != nil && !s.Ledger.AccountExists(ctx, in.StellarPublicKey) {
		log.Warn().Str("stellar_public_key", in.StellarPublicKey).Msg("registering account not found on ledger")
	}

	db := s.DB.WithContext(ctx)
	var n int64
	if err := db.Model(&domain.User{}).Where("stellar_public_key = ?", in.StellarPublicKey).Count(&n).Error; err != nil {
		return nil, apperrors.Internal("Failed to register user", err)
	}
	if n > 0 {
		return nil, apperrors.Conflict("User already registered with this Stellar account")
	}
	if err := db.Model(&domain.User{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
		return nil, apperrors.Internal("Failed to register user", err)
	}
	if n > 0 {
		return nil, apperrors.Conflict("Email already registered")
	}

	u := &domain.User{
		Email:            in.Email,
		Name:             in.Name,
		Role:             in.Role,
		StellarPublicKey: in.StellarPublicKey,
		Phone:            in.Phone,
		Location:         in.Location,
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
		if err != nil {
			return nil, apperrors.Internal("Failed to register user", err)
		}
		u.PasswordHash = string(hash)
	}
	if err := db.Create(u).Error; err != nil {
		return nil, apperrors.Internal("Failed to register user", err)
	}
	log.Info().Str("user_id", u.ID).Str("role", u.Role).Msg("user registered")

	return s.startSession(ctx, u)
}

// Login signs in by Stellar account. A password is required only when the account has one.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.StellarPublicKey = strings.TrimSpace(in.StellarPublicKey)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	var u domain.User
	err := s.DB.WithContext(ctx).Preload("Reputation").
		Where("stellar_public_key = ?", in.StellarPublicKey).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal("Failed to load user", err)
	}
	if u.PasswordHash != "" {
		if in.Password == "" {
			return nil, apperrors.Unauthorized("Password is required")
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
			return nil, apperrors.Unauthorized("Incorrect password")
		}
	}
	return s.startSession(ctx, &u)
}

// Logout revokes the caller's session.
func (s *Service) Logout(ctx context.Context, id *tokenauth.Identity) error {
	if id == nil || s.Sessions == nil {
		return nil
	}
	if err := s.Sessions.Revoke(ctx, id.SessionID); err != nil {
		return apperrors.Internal("Failed to end session", err)
	}
	return nil
}

func (s *Service) startSession(ctx context.Context, u *domain.User) (*Session, error) {
	token, id, err := s.Tokens.Issue(u.ID, u.Role, u.Email)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token", err)
	}
	if s.Sessions != nil {
		if err := s.Sessions.Save(ctx, id); err != nil {
			return nil, apperrors.Internal("Failed to create session", err)
		}
	}
	return &Session{User: u, Token: token}, nil
}
