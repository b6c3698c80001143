package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// RoleSource selects where the session's roles come from.
type RoleSource string

const (
	// RoleSourceClaims trusts the roles signed into the token; role changes apply at next login.
	RoleSourceClaims RoleSource = "claims"
	// RoleSourceStore reads roles from the identity store on every request.
	RoleSourceStore RoleSource = "store"
)

// IdentityStore resolves a token subject to the current account.
type IdentityStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// AuthMiddleware validates tokens and loads sessions.
type AuthMiddleware struct {
	tokens     *TokenManager
	transport  *Transport
	identities IdentityStore
	roleSource RoleSource
	logger     *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, transport *Transport, identities IdentityStore, roleSource RoleSource, logger *zap.Logger) *AuthMiddleware {
	if roleSource != RoleSourceStore {
		roleSource = RoleSourceClaims
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		tokens:     tokens,
		transport:  transport,
		identities: identities,
		roleSource: roleSource,
		logger:     logger,
	}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, source := m.transport.Extract(c)
	if raw == "" {
		return apperrors.NewUnauthorized("missing token")
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		m.logger.Debug("token rejected",
			zap.String("path", c.Path()),
			zap.String("source", string(source)),
			zap.Error(err))
		return apperrors.NewUnauthorized("invalid or expired token")
	}
	claimRoles, err := claims.RoleSet()
	if err != nil {
		return apperrors.NewUnauthorized("invalid or expired token")
	}

	user, err := m.identities.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.NewInternalError(err)
	}
	if !user.Active() {
		return apperrors.NewUnauthorized("account suspended")
	}

	roles := claimRoles
	if m.roleSource == RoleSourceStore {
		roles = user.Roles
	}
	identity := user.Identity()
	identity.Roles = roles

	attachSession(c, &Session{Identity: identity, Roles: roles, Source: source})
	return c.Next()
}
