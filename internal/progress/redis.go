package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "progress:"

// RedisStore mirrors snapshots server-side with a sliding TTL.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, id SessionID) (*Snapshot, error) {
	data, err := s.client.Get(ctx, keyPrefix+string(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("loading progress: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding progress: %w", err)
	}
	return &snap, nil
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+string(snap.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id SessionID) error {
	if err := s.client.Del(ctx, keyPrefix+string(id)).Err(); err != nil {
		return fmt.Errorf("deleting progress: %w", err)
	}
	return nil
}
