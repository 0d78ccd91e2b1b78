// Package redis provides the dispatch idempotency claims.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tuition-notify/internal/config"
)

const keyPrefix = "notify:event:"

var (
	ErrFailedToParseURL = errors.New("failed to parse redis connection url")
	ErrNotReady         = errors.New("redis did not become ready")
)

// Connect parses cfg.URL and pings until the server answers or the attempts run out.
func Connect(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}

	for range max(cfg.RetryAttempts, 1) {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, ErrNotReady
}

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Claimer marks event IDs as dispatched. The first Claim for an ID wins
// until the TTL expires.
type Claimer struct {
	client setNXer
	ttl    time.Duration
	now    func() time.Time
}

func NewClaimer(client setNXer, ttl time.Duration) *Claimer {
	return &Claimer{client: client, ttl: ttl, now: time.Now}
}

func (c *Claimer) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := c.client.SetNX(ctx, keyPrefix+eventID, c.now().UTC().Format(time.RFC3339), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}
