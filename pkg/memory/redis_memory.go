package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/run-bigpig/healthchat/pkg/interfaces"
	"github.com/run-bigpig/healthchat/pkg/retry"
)

// RedisMemory stores conversation transcripts as one Redis list per conversation
type RedisMemory struct {
	client         redis.UniversalClient
	ttl            time.Duration
	keyPrefix      string
	maxMessageSize int
	retryExecutor  *retry.Executor
}

// RedisOption represents an option for configuring the Redis memory
type RedisOption func(*RedisMemory)

// WithTTL sets the TTL for Redis keys
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisMemory) {
		r.ttl = ttl
	}
}

// WithKeyPrefix sets a custom prefix for Redis keys
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisMemory) {
		r.keyPrefix = prefix
	}
}

// WithMaxMessageSize sets the maximum encoded size of a stored message
func WithMaxMessageSize(size int) RedisOption {
	return func(r *RedisMemory) {
		r.maxMessageSize = size
	}
}

// WithRedisRetry configures retry behavior for writes
func WithRedisRetry(opts ...retry.Option) RedisOption {
	return func(r *RedisMemory) {
		r.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// RedisConfig contains configuration for Redis
type RedisConfig struct {
	// URL is either a redis:// URL or a bare address (e.g., "localhost:6379")
	URL string

	// Password is the Redis password
	Password string

	// DB is the Redis database number
	DB int
}

// NewRedisMemory creates a new Redis-backed transcript store
func NewRedisMemory(client redis.UniversalClient, options ...RedisOption) *RedisMemory {
	memory := &RedisMemory{
		client:         client,
		ttl:            24 * time.Hour,
		keyPrefix:      "healthchat:transcript:",
		maxMessageSize: 64 * 1024,
		retryExecutor: retry.NewExecutor(retry.NewPolicy(
			retry.WithInitialInterval(100*time.Millisecond),
			retry.WithMaximumInterval(time.Second),
			retry.WithMaxAttempts(3),
		)),
	}

	for _, option := range options {
		option(memory)
	}

	return memory
}

func (r *RedisMemory) key(id string) string {
	return r.keyPrefix + id
}

// AddMessage appends a message to the conversation's list and refreshes its TTL
func (r *RedisMemory) AddMessage(ctx context.Context, message interfaces.Message) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if r.maxMessageSize > 0 && len(payload) > r.maxMessageSize {
		return fmt.Errorf("message size exceeds maximum allowed size of %d bytes", r.maxMessageSize)
	}

	key := r.key(id)
	operation := func() error {
		pipe := r.client.TxPipeline()
		pipe.RPush(ctx, key, payload)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		_, err := pipe.Exec(ctx)
		return err
	}

	if err := r.retryExecutor.Execute(ctx, operation); err != nil {
		return fmt.Errorf("failed to add message to Redis: %w", err)
	}
	return nil
}

// GetMessages retrieves the conversation's messages, oldest first
func (r *RedisMemory) GetMessages(ctx context.Context, options ...interfaces.GetMessagesOption) ([]interfaces.Message, error) {
	id, err := conversationID(ctx)
	if err != nil {
		return nil, err
	}

	results, err := r.client.LRange(ctx, r.key(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from Redis: %w", err)
	}

	messages := make([]interfaces.Message, 0, len(results))
	for _, result := range results {
		var message interfaces.Message
		if err := json.Unmarshal([]byte(result), &message); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, message)
	}

	return applyOptions(messages, options...), nil
}

// Clear deletes the conversation's list
func (r *RedisMemory) Clear(ctx context.Context) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to clear memory in Redis: %w", err)
	}
	return nil
}

// NewRedisMemoryFromConfig connects to Redis and creates a transcript store
func NewRedisMemoryFromConfig(ctx context.Context, config RedisConfig, options ...RedisOption) (*RedisMemory, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		opts = &redis.Options{Addr: config.URL}
	}
	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB != 0 {
		opts.DB = config.DB
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisMemory(client, options...), nil
}

// Close closes the underlying Redis connection
func (r *RedisMemory) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
