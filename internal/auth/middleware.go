package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cityworks/addressing-service/internal/domain"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

const claimsContextKey = "auth_claims"

// RequireAuth validates the bearer token and stores its claims on the
// request context.
func RequireAuth(tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return apperrors.NewUnauthorized("missing authorization header")
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("malformed authorization header")
		}

		claims, err := tokens.Verify(parts[1])
		if err != nil {
			return err
		}
		c.Locals(claimsContextKey, claims)
		return c.Next()
	}
}

// RequirePermission gates a route by role permission. Must run after
// RequireAuth.
func RequirePermission(perm Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := ClaimsFromContext(c)
		if claims == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !HasPermission(domain.StaffRole(claims.Role), perm) {
			return apperrors.NewForbidden("insufficient permissions")
		}
		return c.Next()
	}
}

// ClaimsFromContext returns the authenticated claims, or nil.
func ClaimsFromContext(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(claimsContextKey).(*Claims)
	return claims
}

// ActorID returns the authenticated staff id, or the system sentinel
// when the request is unauthenticated (internal triggers).
func ActorID(c *fiber.Ctx) string {
	if claims := ClaimsFromContext(c); claims != nil {
		return claims.StaffID
	}
	return domain.SystemActorID
}
