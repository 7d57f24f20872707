package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const recipientCacheKey = "notify:recipient-emails"

// RecipientCache stores the opted-in email recipient list with a TTL.
// Invalidation is purely time based: the key expires, the next read misses.
type RecipientCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRecipientCache(client *goredis.Client, ttl time.Duration) (*RecipientCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &RecipientCache{
		client: client,
		ttl:    ttl,
	}, nil
}

// Get returns the cached recipient list, or ok=false on a miss.
func (c *RecipientCache) Get(ctx context.Context) ([]string, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := c.client.Get(ctx, recipientCacheKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read recipient cache: %w", err)
	}

	var emails []string
	if err := json.Unmarshal(raw, &emails); err != nil {
		return nil, false, fmt.Errorf("failed to decode recipient cache: %w", err)
	}

	return emails, true, nil
}

// Set stores the recipient list and re-stamps the TTL.
func (c *RecipientCache) Set(ctx context.Context, emails []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := json.Marshal(emails)
	if err != nil {
		return fmt.Errorf("failed to encode recipient cache: %w", err)
	}

	if err := c.client.Set(ctx, recipientCacheKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write recipient cache: %w", err)
	}

	return nil
}
