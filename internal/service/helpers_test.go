package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
)

// recordingDispatcher captures published events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

func (d *recordingDispatcher) last() events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events[len(d.events)-1]
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			Issuer:                "auth-service",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            bcrypt.MinCost,
		},
	}
}

type authFixture struct {
	svc        *AuthService
	users      *repository.MemoryUserRepository
	roles      *repository.MemoryRoleRepository
	dispatcher *recordingDispatcher
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := repository.NewMemoryUserRepository()
	roles := repository.NewMemoryRoleRepository()
	dispatcher := &recordingDispatcher{}

	svc, err := NewAuthService(testConfig(), AuthDependencies{
		UserRepo:   users,
		RoleRepo:   roles,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return &authFixture{svc: svc, users: users, roles: roles, dispatcher: dispatcher}
}

func (f *authFixture) register(t *testing.T, email string) *domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), "Test", email, "Secret#123")
	require.NoError(t, err)
	return user
}
