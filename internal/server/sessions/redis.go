package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gqlauth:sess:"

// RedisStore keeps sessions as JSON values with native key expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type redisRecord struct {
	Identity  *models.Identity `json:"identity,omitempty"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// NewRedisStore wraps client. An empty prefix selects the default.
func NewRedisStore(client *redis.Client, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Create(ctx context.Context, sess *models.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(redisRecord{Identity: sess.Identity, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", common.ErrSessionStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, id string) (*models.Session, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: redis get: %w", common.ErrSessionStoreUnavailable, err)
	}
	var rec redisRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &models.Session{ID: id, Identity: rec.Identity, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %w", common.ErrSessionStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %w", common.ErrSessionStoreUnavailable, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
