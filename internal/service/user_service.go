package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// Page bounds for admin listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// UserService implements the administrative account operations.
type UserService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, roles repository.RoleRepository, dispatcher events.Dispatcher, logger *zap.Logger) *UserService {
	if dispatcher == nil {
		dispatcher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, roles: roles, dispatcher: dispatcher, logger: logger}
}

// UserPage is one page of an admin listing.
type UserPage struct {
	Users   []*domain.User
	Page    int
	PerPage int
	Total   int
}

// List returns one page of accounts. page is 1-based; out-of-range values are clamped.
func (s *UserService) List(ctx context.Context, page, perPage int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}

	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Page: page, PerPage: perPage, Total: total}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// SetRoles replaces the roles of id. At least one role is required.
func (s *UserService) SetRoles(ctx context.Context, actorID, id string, roles domain.RoleSet) (*domain.User, error) {
	if len(roles) == 0 {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"roles": "at least one role is required"})
	}

	before, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if _, err := s.roles.FindOrCreate(ctx, role); err != nil {
			return nil, err
		}
	}
	if err := s.users.SetRoles(ctx, id, roles); err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, s.logger, events.New(events.EventRolesChanged, id, actorID, events.RolesChangedPayload{
		OldRoles: before.Roles.Strings(),
		NewRoles: roles.Strings(),
	}))
	return s.users.GetByID(ctx, id)
}

// SetStatus activates or suspends id. Administrators cannot suspend themselves.
func (s *UserService) SetStatus(ctx context.Context, actorID, id string, status domain.UserStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"status": "must be ACTIVE or SUSPENDED"})
	}
	if actorID == id && status == domain.UserStatusSuspended {
		return nil, apperrors.NewConflict("cannot suspend your own account", nil)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	old := user.Status
	if old == status {
		return user, nil
	}

	user.Status = status
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventStatusChanged, id, actorID, events.StatusChangedPayload{
		OldStatus: string(old),
		NewStatus: string(status),
	}))
	return user, nil
}

// Delete removes id. Administrators cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return apperrors.NewConflict("cannot delete your own account", nil)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventUserDeleted, id, actorID, nil))
	return nil
}
