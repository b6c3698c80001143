package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
)

// Seeder bootstraps the role table and, optionally, the first administrator.
type Seeder struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	hasher *auth.PasswordHasher
	logger *zap.Logger
}

// NewSeeder builds a seeder hashing with the configured bcrypt cost.
func NewSeeder(users repository.UserRepository, roles repository.RoleRepository, bcryptCost int, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{users: users, roles: roles, hasher: auth.NewPasswordHasher(bcryptCost), logger: logger}
}

// Run ensures every known role exists and creates the admin account when configured and absent.
// An existing account with the admin email is left untouched.
func (s *Seeder) Run(ctx context.Context, cfg config.SeedConfig) error {
	for _, role := range domain.KnownRoles() {
		if _, err := s.roles.FindOrCreate(ctx, role); err != nil {
			return fmt.Errorf("seed role %s: %w", role, err)
		}
	}

	email := domain.NormalizeEmail(cfg.AdminEmail)
	if email == "" {
		return nil
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.Info("seed admin already present", zap.String("email", email))
		return nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return fmt.Errorf("lookup seed admin: %w", err)
	}

	if err := auth.CheckPasswordPolicy(cfg.AdminPassword); err != nil {
		return fmt.Errorf("SEED_ADMIN_PASSWORD: %w", err)
	}
	hash, err := s.hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash seed admin password: %w", err)
	}

	admin := &domain.User{
		Name:         strings.TrimSpace(cfg.AdminName),
		Email:        email,
		PasswordHash: hash,
		Roles:        domain.NewRoleSet(domain.RoleAdmin),
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}
	s.logger.Info("seed admin created", zap.String("email", email), zap.String("user_id", admin.ID))
	return nil
}
