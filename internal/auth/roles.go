package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// Policy is a route's allow-list. The zero value admits nobody; use AnyRole for
// "authenticated only".
type Policy struct {
	allowed domain.RoleSet
	any     bool
}

// AnyRole admits every authenticated session.
var AnyRole = Policy{any: true}

// AllowRoles admits sessions holding at least one of roles. No roles means AnyRole.
func AllowRoles(roles ...domain.Role) Policy {
	if len(roles) == 0 {
		return AnyRole
	}
	return Policy{allowed: domain.NewRoleSet(roles...)}
}

// Permits reports whether a session with roles passes the policy. Membership is exact.
func (p Policy) Permits(roles domain.RoleSet) bool {
	if p.any {
		return true
	}
	return roles.Intersects(p.allowed)
}

// Require guards a route with the policy. It must run after AuthMiddleware.Handle.
func Require(policy Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !policy.Permits(session.Roles) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireRoles ensures the session has one of the allowed roles.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	return Require(AllowRoles(allowed...))
}

// RequireAuthenticated ensures a session exists, whatever its roles.
func RequireAuthenticated() fiber.Handler {
	return Require(AnyRole)
}
