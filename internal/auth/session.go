package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
)

const sessionKey = "auth_session"

type sessionCtxKey struct{}

// Session is the per-request authenticated context. It is built once by the middleware
// and must not be mutated afterwards.
type Session struct {
	Identity domain.Identity
	Roles    domain.RoleSet
	Source   TokenSource
}

// SessionFromContext retrieves the session stored by AuthMiddleware.
func SessionFromContext(c *fiber.Ctx) (*Session, bool) {
	val := c.Locals(sessionKey)
	if val == nil {
		return nil, false
	}
	session, ok := val.(*Session)
	return session, ok
}

// WithSession stores the session in a standard context for code below the HTTP layer.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, session)
}

// SessionFrom reads the session from a standard context.
func SessionFrom(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionCtxKey{}).(*Session)
	return session, ok && session != nil
}

func attachSession(c *fiber.Ctx, session *Session) {
	c.Locals(sessionKey, session)
	c.SetUserContext(WithSession(c.UserContext(), session))
}
