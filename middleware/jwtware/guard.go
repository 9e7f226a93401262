package jwtware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequireRoles lets the request through when the verified claims carry
// any of roles. Errors are returned to fiber's error handler.
func RequireRoles(contextKey string, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := claimsFromLocals(c, contextKey)
		if err != nil {
			return err
		}
		for _, role := range roles {
			if claims.HasRole(role) {
				return c.Next()
			}
		}
		return fmt.Errorf("%w: one of [%s] required", ErrInsufficientRole, strings.Join(roles, ", "))
	}
}

// RequireMinimumRole lets the request through when any role of the
// verified claims is at least minRole in the role hierarchy.
func RequireMinimumRole(contextKey, minRole string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := claimsFromLocals(c, contextKey)
		if err != nil {
			return err
		}
		if !claims.IsAtLeast(minRole) {
			return fmt.Errorf("%w: minimum role '%s' required", ErrInsufficientRole, minRole)
		}
		return c.Next()
	}
}

func claimsFromLocals(c *fiber.Ctx, contextKey string) (AuthClaims, error) {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}
	claims, ok := c.Locals(contextKey).(AuthClaims)
	if !ok || claims == nil {
		return nil, ErrNoIdentity
	}
	return claims, nil
}
