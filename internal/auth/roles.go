package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// RequireAdmin ensures the principal loaded by Guard.Handle is an admin,
// both by signed claim and by stored role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if err := RequireRole(principal.Claims, domain.RoleAdmin); err != nil {
			return apperrors.MapError(err)
		}
		if !principal.Credential.IsAdmin() {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}
