package middleware

import (
	"impact-lending-backend/internal/constants"
	"impact-lending-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthorizePermission checks the caller's role against PermissionRoles.
// Unconfigured permission -> 500 "Permission configuration error"; role not allowed -> 403.
func AuthorizePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := GetIdentity(c)
		if id == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		if id.Role == "" {
			return response.Error(c, "Authorization error", fiber.StatusInternalServerError)
		}
		roles, ok := constants.PermissionRoles[permission]
		if !ok || len(roles) == 0 {
			return response.Error(c, "Permission configuration error", fiber.StatusInternalServerError)
		}
		if !constants.AllowedRole(permission, id.Role) {
			return response.Error(c, "Insufficient permissions", fiber.StatusForbidden)
		}
		return c.Next()
	}
}
