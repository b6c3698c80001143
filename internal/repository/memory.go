package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/auth-service/internal/domain"
)

// MemoryUserRepository keeps accounts in process memory. It backs the service when no
// database is configured and doubles as a test fake.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

// NewMemoryUserRepository returns an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func cloneUser(u *domain.User) *domain.User {
	copied := *u
	copied.Roles = append(domain.RoleSet(nil), u.Roles...)
	return &copied
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return domain.ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}

	r.byID[user.ID] = cloneUser(user)
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if owner, taken := r.byEmail[user.Email]; taken && owner != user.ID {
		return domain.ErrEmailTaken
	}

	user.UpdatedAt = time.Now().UTC()
	updated := cloneUser(user)
	updated.Roles = existing.Roles
	updated.CreatedAt = existing.CreatedAt

	delete(r.byEmail, existing.Email)
	r.byEmail[updated.Email] = updated.ID
	r.byID[updated.ID] = updated
	return nil
}

func (r *MemoryUserRepository) SetRoles(_ context.Context, userID string, roles domain.RoleSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	existing.Roles = append(domain.RoleSet(nil), roles...)
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	delete(r.byEmail, existing.Email)
	delete(r.byID, id)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryUserRepository) List(_ context.Context, limit, offset int) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*domain.User{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*domain.User, 0, end-offset)
	for _, u := range all[offset:end] {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (r *MemoryUserRepository) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

// MemoryRoleRepository is the in-process role store.
type MemoryRoleRepository struct {
	mu    sync.Mutex
	roles map[domain.Role]domain.RoleRecord
}

// NewMemoryRoleRepository returns an empty role store.
func NewMemoryRoleRepository() *MemoryRoleRepository {
	return &MemoryRoleRepository{roles: make(map[domain.Role]domain.RoleRecord)}
}

func (r *MemoryRoleRepository) FindByName(_ context.Context, name domain.Role) (*domain.RoleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[name]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	return &role, nil
}

func (r *MemoryRoleRepository) FindOrCreate(_ context.Context, name domain.Role) (*domain.RoleRecord, error) {
	if _, err := domain.ParseRole(string(name)); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[name]
	if !ok {
		role = domain.RoleRecord{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
		r.roles[name] = role
	}
	return &role, nil
}

func (r *MemoryRoleRepository) List(context.Context) ([]domain.RoleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.RoleRecord, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
