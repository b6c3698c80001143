package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
)

const (
	identityKeyPrefix   = "auth:identity:"
	generationKeyPrefix = "auth:identity-gen:"
)

// IdentityReader is the lookup the cache sits in front of.
type IdentityReader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// IdentityCache is a read-through Redis cache for the authentication middleware's
// subject lookup. Cached entries never contain the password hash. Redis failures fall
// through to the underlying reader.
type IdentityCache struct {
	inner  IdentityReader
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

type cachedIdentity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewIdentityCache wraps inner with a cache of the given TTL.
func NewIdentityCache(inner IdentityReader, client *redis.Client, ttl time.Duration, logger *zap.Logger) *IdentityCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

func identityKey(id string) string {
	return identityKeyPrefix + id
}

// generationKey is bumped on every invalidation. Read-through writes WATCH it so an
// entry loaded before an invalidation is never stored after it.
func generationKey(id string) string {
	return generationKeyPrefix + id
}

// GetByID returns the cached identity or loads and caches it.
func (c *IdentityCache) GetByID(ctx context.Context, id string) (*domain.User, error) {
	raw, err := c.client.Get(ctx, identityKey(id)).Bytes()
	switch {
	case err == nil:
		user, decodeErr := decodeIdentity(raw)
		if decodeErr == nil {
			return user, nil
		}
		c.logger.Warn("discarding undecodable identity cache entry", zap.String("user_id", id), zap.Error(decodeErr))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("identity cache read failed", zap.String("user_id", id), zap.Error(err))
	}

	var (
		user    *domain.User
		loadErr error
	)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		user, loadErr = c.inner.GetByID(ctx, id)
		if loadErr != nil {
			return nil
		}
		payload, err := encodeIdentity(user)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, identityKey(id), payload, c.ttl)
			return nil
		})
		return err
	}, generationKey(id))
	if loadErr != nil {
		return nil, loadErr
	}
	if user == nil {
		// WATCH itself failed, so the store was never consulted.
		c.logger.Warn("identity cache write skipped", zap.String("user_id", id), zap.Error(err))
		return c.inner.GetByID(ctx, id)
	}
	switch {
	case errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("identity invalidated during load, not caching", zap.String("user_id", id))
	case err != nil:
		c.logger.Warn("identity cache write failed", zap.String("user_id", id), zap.Error(err))
	}
	return user, nil
}

// Invalidate drops the cached identity for id.
func (c *IdentityCache) Invalidate(ctx context.Context, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(id))
		pipe.Expire(ctx, generationKey(id), c.ttl)
		pipe.Del(ctx, identityKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate identity %s: %w", id, err)
	}
	return nil
}

// Subscribe drops cache entries whenever an account changes.
func (c *IdentityCache) Subscribe(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventRolesChanged,
		events.EventStatusChanged,
		events.EventProfileUpdated,
		events.EventPasswordChanged,
		events.EventUserDeleted,
	} {
		dispatcher.Subscribe(eventType, c.handleAccountChanged)
	}
}

func (c *IdentityCache) handleAccountChanged(ctx context.Context, event events.Event) error {
	if event.UserID == "" {
		return nil
	}
	return c.Invalidate(ctx, event.UserID)
}

func encodeIdentity(user *domain.User) ([]byte, error) {
	return json.Marshal(cachedIdentity{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Roles:     user.Roles.Strings(),
		Status:    string(user.Status),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
}

func decodeIdentity(raw []byte) (*domain.User, error) {
	var cached cachedIdentity
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, err
	}
	roles, err := domain.ParseRoles(cached.Roles)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:        cached.ID,
		Name:      cached.Name,
		Email:     cached.Email,
		Roles:     roles,
		Status:    domain.UserStatus(cached.Status),
		CreatedAt: cached.CreatedAt,
		UpdatedAt: cached.UpdatedAt,
	}, nil
}
