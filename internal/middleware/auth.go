package middleware

import (
	"errors"

	"impact-lending-backend/internal/auth"
	"impact-lending-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const identityLocal = "auth"

// RequireAuth verifies the bearer token and, when sessions are tracked, that it was not revoked.
func RequireAuth(tokens *auth.TokenManager, sessions *SessionStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return response.Unauthorized(c, auth.ErrMissingToken.Error())
		}
		id, err := tokens.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				return response.Unauthorized(c, "Token expired")
			}
			return response.Unauthorized(c, "Invalid or expired token")
		}
		active, err := sessions.Active(c.UserContext(), id.SessionID)
		if err != nil {
			// Fails open when Redis is unreachable.
			log.Warn().Err(err).Str("trace_id", GetTraceID(c)).Msg("session lookup failed")
		} else if !active {
			return response.Unauthorized(c, "Session expired or revoked")
		}
		c.Locals(identityLocal, id)
		return c.Next()
	}
}

// SetIdentity stores the caller identity; used by RequireAuth and by handler tests.
func SetIdentity(c *fiber.Ctx, id *auth.Identity) {
	c.Locals(identityLocal, id)
}

// GetIdentity returns the authenticated caller, or nil.
func GetIdentity(c *fiber.Ctx) *auth.Identity {
	id, _ := c.Locals(identityLocal).(*auth.Identity)
	return id
}
