package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "chat:answer:"

// ConstructKey derives the cache key of a question over a repository set.
// Repository order does not matter.
func ConstructKey(query string, repositoryIDs []string) string {
	ids := append([]string(nil), repositoryIDs...)
	sort.Strings(ids)
	return strings.Join(ids, ";") + ":" + query
}

// ResponseCache stores generated answers in Redis.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResponseCache instantiates the cache with a default ttl.
func NewResponseCache(client *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl}
}

func storageKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached answer for key.
func (c *ResponseCache) Get(ctx context.Context, key string) (*Answer, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, storageKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("chat: cache get: %w", err)
	}
	var ans Answer
	if err := json.Unmarshal(raw, &ans); err != nil {
		return nil, false, fmt.Errorf("chat: cache decode: %w", err)
	}
	return &ans, true, nil
}

// Put stores ans under key. A non-positive ttl uses the cache default.
func (c *ResponseCache) Put(ctx context.Context, key string, ans Answer, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	raw, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("chat: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, storageKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("chat: cache put: %w", err)
	}
	return nil
}
