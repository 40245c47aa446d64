package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"certo/internal/platform/redis"
)

// RedisStore keeps session state in Redis with a TTL. Single use is enforced
// with GETDEL, so concurrent sign calls for one token race for at most one win.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, st State) (uuid.UUID, error) {
	token := uuid.New()
	payload, err := json.Marshal(st)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal session state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), payload, s.ttl).Err(); err != nil {
		return uuid.Nil, fmt.Errorf("store session state: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Take(ctx context.Context, token uuid.UUID) (State, error) {
	payload, err := s.client.GetDel(ctx, s.key(token)).Bytes()
	if err == goredis.Nil {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("load session state: %w", err)
	}
	var st State
	if err := json.Unmarshal(payload, &st); err != nil {
		return State{}, fmt.Errorf("decode session state: %w", err)
	}
	return st, nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// key namespaces the raw UUID bytes under the configured prefix so unrelated
// deployments can share one Redis database.
func (s *RedisStore) key(token uuid.UUID) string {
	return s.prefix + ":" + string(token[:])
}
