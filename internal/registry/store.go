package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

// ErrNotFound indicates an unknown or expired task id.
var ErrNotFound = errors.New("task not found")

// Store persists task records with a TTL. Expiration policy lives here, not
// in the registry.
type Store interface {
	Put(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id string) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	ttl  time.Duration
	stop chan struct{}
}

type memoryEntry struct {
	task      *domain.Task
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store with the given TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &MemoryStore{
		data: make(map[string]memoryEntry),
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Put stores a task, refreshing its TTL.
func (s *MemoryStore) Put(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[task.ID] = memoryEntry{
		task:      cloneTask(task),
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Get retrieves a task.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.data[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return cloneTask(entry.task), nil
}

// Delete removes a task.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	close(s.stop)
	return nil
}

// cleanup periodically removes expired entries.
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for id, entry := range s.data {
				if now.After(entry.expiresAt) {
					delete(s.data, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// cloneTask deep-copies a task so callers cannot mutate stored state.
func cloneTask(t *domain.Task) *domain.Task {
	out := *t
	if t.StartedAt != nil {
		v := *t.StartedAt
		out.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		out.CompletedAt = &v
	}
	if t.Error != nil {
		v := *t.Error
		out.Error = &v
	}
	if t.Result != nil {
		r := *t.Result
		r.Elements = append([]domain.ParsedElement(nil), t.Result.Elements...)
		out.Result = &r
	}
	return &out
}

// RedisStore persists task records in Redis with SETEX-style expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

// NewRedisStore creates a Redis-backed task store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
		prefix: "smartdoc:task:",
	}, nil
}

// Put stores a task, refreshing its TTL.
func (s *RedisStore) Put(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+task.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get retrieves a task.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// Delete removes a task.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
