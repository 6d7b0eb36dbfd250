// Package cache keeps fully hydrated posts in Redis so the post page does
// not hit the database on every view.
//
// The cache is cache-aside: the post service reads it first, loads from
// the database on a miss and writes the result back. Every write to a post
// or its comments deletes the entry. Callers treat every error here as a
// miss; a broken Redis slows the site down but never breaks it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/blog/internal/model"
)

const DefaultTTL = 30 * time.Minute

// PostKey is the Redis key of a cached post.
func PostKey(id int64) string {
	return "post:" + strconv.FormatInt(id, 10)
}

// RedisPostCache stores posts as JSON under PostKey.
type RedisPostCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPostCache connects to addr, which is either a redis:// URL or a
// bare host:port, and checks the connection.
func NewRedisPostCache(ctx context.Context, addr string, ttl time.Duration) (*RedisPostCache, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("cache: invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: pinging redis: %w", err)
	}

	return &RedisPostCache{client: client, ttl: ttl}, nil
}

// Get returns the cached post. A miss is (nil, false, nil).
func (c *RedisPostCache) Get(ctx context.Context, id int64) (*model.Post, bool, error) {
	raw, err := c.client.Get(ctx, PostKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get post %d: %w", id, err)
	}

	var post model.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, false, fmt.Errorf("cache: decoding post %d: %w", id, err)
	}
	return &post, true, nil
}

func (c *RedisPostCache) Set(ctx context.Context, post model.Post) error {
	raw, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("cache: encoding post %d: %w", post.ID, err)
	}
	if err := c.client.Set(ctx, PostKey(post.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set post %d: %w", post.ID, err)
	}
	return nil
}

func (c *RedisPostCache) Invalidate(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, PostKey(id)).Err(); err != nil {
		return fmt.Errorf("cache: delete post %d: %w", id, err)
	}
	return nil
}

func (c *RedisPostCache) Close() error {
	return c.client.Close()
}

// Nop never stores anything. Used when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, int64) (*model.Post, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, model.Post) error                 { return nil }
func (Nop) Invalidate(context.Context, int64) error               { return nil }
func (Nop) Close() error                                          { return nil }
