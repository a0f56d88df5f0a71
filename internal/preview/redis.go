package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

const defaultRedisTTL = 2 * time.Hour

// RedisRegistry stores preview payloads in Redis so that every API replica
// can serve a handle issued by any other. Keys expire after ttl.
type RedisRegistry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type redisEntry struct {
	MediaType string `json:"media_type"`
	Bytes     []byte `json:"bytes"`
}

// NewRedisRegistry constructs a Redis-backed registry.
func NewRedisRegistry(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisRegistry {
	keyPrefix = strings.TrimRight(keyPrefix, ":")
	if keyPrefix == "" {
		keyPrefix = "intelligrade"
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisRegistry{client: client, prefix: keyPrefix, ttl: ttl}
}

func (r *RedisRegistry) key(handle string) string {
	return fmt.Sprintf("%s:%s", r.prefix, handle)
}

func (r *RedisRegistry) Issue(ctx context.Context, attachment models.Attachment) (string, error) {
	payload, err := json.Marshal(redisEntry{MediaType: attachment.MediaType, Bytes: attachment.Bytes})
	if err != nil {
		return "", err
	}

	handle := newHandle()
	if err := r.client.Set(ctx, r.key(handle), payload, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("store preview: %w", err)
	}
	return handle, nil
}

func (r *RedisRegistry) Resolve(ctx context.Context, handle string) (models.Attachment, error) {
	raw, err := r.client.Get(ctx, r.key(handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Attachment{}, ErrHandleNotFound
		}
		return models.Attachment{}, fmt.Errorf("load preview: %w", err)
	}

	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.Attachment{}, fmt.Errorf("decode preview: %w", err)
	}
	return models.Attachment{Bytes: entry.Bytes, MediaType: entry.MediaType}, nil
}

func (r *RedisRegistry) Release(ctx context.Context, handle string) error {
	if err := r.client.Del(ctx, r.key(handle)).Err(); err != nil {
		return fmt.Errorf("release preview: %w", err)
	}
	return nil
}
