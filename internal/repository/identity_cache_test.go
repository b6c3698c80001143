package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
)

type countingReader struct {
	inner IdentityReader
	calls int
}

func (r *countingReader) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.calls++
	return r.inner.GetByID(ctx, id)
}

// invalidatingReader simulates an account change landing while the store read is in flight.
type invalidatingReader struct {
	inner IdentityReader
	cache *IdentityCache
}

func (r *invalidatingReader) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Invalidate(ctx, id); err != nil {
		return nil, err
	}
	return user, nil
}

func newCacheFixture(t *testing.T) (*IdentityCache, *countingReader, *MemoryUserRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := NewMemoryUserRepository()
	reader := &countingReader{inner: users}
	return NewIdentityCache(reader, client, 30*time.Second, nil), reader, users, mr
}

func TestIdentityCache_ReadThrough(t *testing.T) {
	cache, reader, users, mr := newCacheFixture(t)
	ctx := context.Background()

	u := &domain.User{Name: "Alice", Email: "a@x.com", PasswordHash: "secret-hash", Roles: domain.NewRoleSet(domain.RoleCustomer)}
	require.NoError(t, users.Create(ctx, u))

	first, err := cache.GetByID(ctx, u.ID)
	require.NoError(t, err)
	second, err := cache.GetByID(ctx, u.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, reader.calls)
	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, domain.NewRoleSet(domain.RoleCustomer), second.Roles)
	assert.Empty(t, second.PasswordHash)

	raw, err := mr.Get(identityKey(u.ID))
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret-hash")
	assert.Equal(t, 30*time.Second, mr.TTL(identityKey(u.ID)))
}

func TestIdentityCache_MissingUserIsNotCached(t *testing.T) {
	cache, _, _, mr := newCacheFixture(t)

	_, err := cache.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.False(t, mr.Exists(identityKey("missing")))
}

func TestIdentityCache_CorruptEntryFallsThrough(t *testing.T) {
	cache, reader, users, mr := newCacheFixture(t)
	ctx := context.Background()

	u := &domain.User{Email: "a@x.com"}
	require.NoError(t, users.Create(ctx, u))
	require.NoError(t, mr.Set(identityKey(u.ID), "{not json"))

	got, err := cache.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, 1, reader.calls)
}

func TestIdentityCache_RedisDownFallsThrough(t *testing.T) {
	cache, reader, users, mr := newCacheFixture(t)
	ctx := context.Background()

	u := &domain.User{Email: "a@x.com"}
	require.NoError(t, users.Create(ctx, u))
	mr.Close()

	got, err := cache.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, 1, reader.calls)
}

func TestIdentityCache_InvalidatedByEvents(t *testing.T) {
	cache, reader, users, mr := newCacheFixture(t)
	ctx := context.Background()

	dispatcher := events.NewInMemoryDispatcher()
	cache.Subscribe(dispatcher)

	u := &domain.User{Email: "a@x.com", Roles: domain.NewRoleSet(domain.RoleCustomer)}
	require.NoError(t, users.Create(ctx, u))
	_, err := cache.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(identityKey(u.ID)))

	require.NoError(t, users.SetRoles(ctx, u.ID, domain.NewRoleSet(domain.RoleAdmin)))
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventRolesChanged, u.ID, "admin-1", nil)))
	assert.False(t, mr.Exists(identityKey(u.ID)))

	got, err := cache.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Roles.Has(domain.RoleAdmin))
	assert.Equal(t, 2, reader.calls)

	// Unrelated events leave entries alone.
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventLoginSucceeded, u.ID, u.ID, nil)))
	assert.True(t, mr.Exists(identityKey(u.ID)))
}

func TestIdentityCache_InvalidationDuringLoadIsNotOverwritten(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	users := NewMemoryUserRepository()
	u := &domain.User{Email: "a@x.com", Roles: domain.NewRoleSet(domain.RoleCustomer)}
	require.NoError(t, users.Create(ctx, u))

	reader := &invalidatingReader{inner: users}
	cache := NewIdentityCache(reader, client, 30*time.Second, nil)
	reader.cache = cache

	got, err := cache.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, mr.Exists(identityKey(u.ID)), "entry loaded before the invalidation must not be cached")

	// Without a concurrent invalidation the next read caches normally.
	counting := &countingReader{inner: users}
	cache.inner = counting
	_, err = cache.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(identityKey(u.ID)))
	assert.Equal(t, 1, counting.calls)
}
