package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"brokerhub/internal/session/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
)

// sessionTTL bounds how long establishment state outlives activity. State
// expiring is equivalent to no-session, which the machine treats as the
// start state, so expiry is safe.
const sessionTTL = 24 * time.Hour

const keyPrefix = "session_state:"

// RedisStore persists session state in Redis, one JSON value per principal.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

// WithTTL overrides the default session state TTL.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: sessionTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sessionKey(principalID id.PrincipalID) string {
	return keyPrefix + principalID.String()
}

func (s *RedisStore) Get(ctx context.Context, principalID id.PrincipalID) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(principalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session state: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Put(ctx context.Context, sess *models.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.PrincipalID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("put session state: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, principalID id.PrincipalID) error {
	if err := s.client.Del(ctx, sessionKey(principalID)).Err(); err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}
