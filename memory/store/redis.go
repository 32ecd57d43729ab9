package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/datatalk-ai/datatalk/memory"
	"github.com/datatalk-ai/datatalk/message"
)

// RedisStore persists thread histories as Redis string keys plus a set
// indexing the known thread ids.
type RedisStore struct {
	client *redis.Client
	prefix string // Key prefix for namespacing
	ttl    time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	Prefix   string        // Key prefix for namespacing
	TTL      time.Duration // Time-to-live for keys (0 means no expiration)
}

// NewRedisStore builds a store over a new Redis client. A nil config
// targets a local Redis with the default key prefix.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "datatalk:threads:",
			TTL:    0,
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

func (s *RedisStore) key(threadID string) string {
	return s.prefix + threadID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// Load returns the history for a thread, or an empty history when unknown.
func (s *RedisStore) Load(ctx context.Context, threadID string) (*memory.History, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread id cannot be empty")
	}

	data, err := s.client.Get(ctx, s.key(threadID)).Result()
	if err != nil {
		if err == redis.Nil {
			return memory.NewHistory(), nil
		}
		return nil, fmt.Errorf("failed to load thread history: %w", err)
	}

	var msgs []*message.Message
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread history: %w", err)
	}
	return memory.NewHistory(msgs...), nil
}

// Save persists the history for a thread and indexes the thread id.
func (s *RedisStore) Save(ctx context.Context, threadID string, h *memory.History) error {
	if threadID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("history cannot be nil")
	}

	data, err := json.Marshal(h.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal thread history: %w", err)
	}

	if err := s.client.Set(ctx, s.key(threadID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store thread history: %w", err)
	}

	if err := s.client.SAdd(ctx, s.indexKey(), threadID).Err(); err != nil {
		return fmt.Errorf("failed to index thread id: %w", err)
	}

	return nil
}

// Delete removes a thread's history and its index entry.
func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	if err := s.client.Del(ctx, s.key(threadID)).Err(); err != nil {
		return fmt.Errorf("failed to delete thread history: %w", err)
	}
	if err := s.client.SRem(ctx, s.indexKey(), threadID).Err(); err != nil {
		return fmt.Errorf("failed to remove thread index entry: %w", err)
	}
	return nil
}

// List returns all indexed thread identifiers, dropping entries whose keys
// have expired.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list thread ids: %w", err)
	}

	alive := make([]string, 0, len(ids))
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check thread key: %w", err)
		}
		if exists == 0 {
			// Key expired, clean the index lazily.
			s.client.SRem(ctx, s.indexKey(), id)
			continue
		}
		alive = append(alive, id)
	}
	return alive, nil
}

// Count returns the number of indexed threads.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Exists reports whether a thread has persisted history.
func (s *RedisStore) Exists(ctx context.Context, threadID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(threadID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check thread existence: %w", err)
	}
	return n > 0, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping verifies the connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
