package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists throttle state.
type Store interface {
	// Get returns the current state, or nil when none is recorded.
	Get(ctx context.Context) (*ThrottleState, error)

	// Set records state. It expires once the cool-down is over.
	Set(ctx context.Context, state *ThrottleState) error
}

// MemoryStore keeps state for the lifetime of the process.
type MemoryStore struct {
	mu    sync.Mutex
	state *ThrottleState
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context) (*ThrottleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	state := *m.state
	return &state, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, state *ThrottleState) error {
	if state == nil {
		return fmt.Errorf("throttle state cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.state = &copied
	return nil
}

// RedisStore shares state between processes through Redis.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
		key:   RedisKeyThrottleState,
	}
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context) (*ThrottleState, error) {
	data, err := r.redis.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var state ThrottleState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode throttle state: %w", err)
	}
	return &state, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, state *ThrottleState) error {
	if state == nil {
		return fmt.Errorf("throttle state cannot be nil")
	}

	ttl := time.Until(state.BlockedUntil)
	if ttl <= 0 {
		// Nothing to wait for; drop any stale cool-down.
		if err := r.redis.Del(ctx, r.key).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal throttle state: %w", err)
	}

	if err := r.redis.Set(ctx, r.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
