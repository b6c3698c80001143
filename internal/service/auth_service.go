package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// Login outcome labels.
const (
	loginSuccess = "success"
	loginFailure = "failure"
)

// AuthService coordinates registration, login and self-service account flows.
type AuthService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	hasher     *auth.PasswordHasher
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	// dummyHash is compared against on unknown emails so both failure paths cost one bcrypt run.
	dummyHash string
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	RoleRepo   repository.RoleRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// LoginResult is a verified identity plus its freshly issued token.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}

	svc := &AuthService{
		users:  deps.UserRepo,
		roles:  deps.RoleRepo,
		hasher: hasher,
		tokenMgr: auth.NewTokenManager(auth.TokenConfig{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.Issuer,
			TTL:    cfg.Auth.AccessTokenTTL(),
		}),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		dummyHash:  dummy,
	}
	if svc.dispatcher == nil {
		svc.dispatcher = events.Nop{}
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc, nil
}

// Register creates an account with the default role. No token is issued; the client logs in next.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if err := auth.CheckPasswordPolicy(password); err != nil {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"password": err.Error()})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	role, err := s.roles.FindOrCreate(ctx, domain.DefaultRole)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Roles:        domain.NewRoleSet(role.Name),
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventUserRegistered, user.ID, user.ID, nil))
	return user, nil
}

// Login verifies the credentials and issues a token. Unknown email, wrong password and
// suspended account are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		s.hasher.Matches(s.dummyHash, password)
		return nil, s.loginFailed(ctx, "", email, "unknown email")
	}
	if !s.hasher.Matches(user.PasswordHash, password) {
		return nil, s.loginFailed(ctx, user.ID, email, "password mismatch")
	}
	if !user.Active() {
		return nil, s.loginFailed(ctx, user.ID, email, "account suspended")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.Identity(), user.Roles)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.metrics.RecordLogin(loginSuccess)
	s.publish(ctx, events.New(events.EventLoginSucceeded, user.ID, user.ID, events.LoginSucceededPayload{
		Roles:     user.Roles.Strings(),
		ExpiresAt: exp,
	}))
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID, email, reason string) error {
	s.metrics.RecordLogin(loginFailure)
	s.publish(ctx, events.New(events.EventLoginFailed, userID, "", events.LoginFailedPayload{
		Email:  email,
		Reason: reason,
	}))
	return apperrors.NewInvalidCredentials()
}

// Logout records the logout. Tokens stay valid until expiry.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	s.publish(ctx, events.New(events.EventLoggedOut, userID, userID, nil))
}

// Me returns the current account.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile changes the display name.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, name string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Name = strings.TrimSpace(name)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventProfileUpdated, user.ID, user.ID, nil))
	return user, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Matches(user.PasswordHash, currentPassword) {
		return apperrors.NewInvalidCredentials()
	}
	if err := auth.CheckPasswordPolicy(newPassword); err != nil {
		return apperrors.NewValidationError("validation failed", map[string]any{"new_password": err.Error()})
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.publish(ctx, events.New(events.EventPasswordChanged, user.ID, user.ID, nil))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.logger, event)
}

// publish delivers event and logs handler failures; the triggering operation has already
// committed and is not rolled back.
func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}
}
