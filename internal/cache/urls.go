package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Signed URLs stay valid for an hour; entries are dropped well before that so
// callers never receive an expired signature.
const urlTTL = 45 * time.Minute

const keyPrefix = "signedurl:"

// URLCache keeps presigned photo URLs in redis to avoid re-signing on every
// listing. A nil *URLCache is valid and behaves as an always-miss cache, so
// deployments without redis need no special casing.
type URLCache struct {
	rdb *redis.Client
}

// NewURLCache connects to redis at addr. An empty addr or a failed ping
// returns nil: caching is disabled and the caller degrades gracefully.
func NewURLCache(addr string) *URLCache {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis unavailable, url cache disabled: %v", err)
		return nil
	}
	return &URLCache{rdb: rdb}
}

func (c *URLCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	url, err := c.rdb.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return url, true
}

func (c *URLCache) Set(ctx context.Context, key, url string) {
	if c == nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, url, urlTTL).Err(); err != nil {
		log.Printf("failed to cache signed url: %v", err)
	}
}
