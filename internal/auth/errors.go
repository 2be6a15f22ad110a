package auth

import "errors"

var (
	ErrMissingToken = errors.New("Access token required")
	ErrInvalidToken = errors.New("Invalid token")
	ErrExpiredToken = errors.New("Token expired")
	ErrNoSecret     = errors.New("JWT_SECRET is not configured")
)
