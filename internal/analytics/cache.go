package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stocksavvy/stocksavvy/internal/inventory"
)

const (
	versionKey = "analytics:version"
	// BumpChannel carries version bumps after in-process ledger writes.
	BumpChannel = "inventory.bump"
	// ReloadChannel carries bumps for changes made outside the API process.
	ReloadChannel = "inventory.reload"
)

// Cache stores computed aggregates in Redis under keys that embed a global
// version. Bumping the version orphans every cached aggregate at once; the
// orphans expire with the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	onBump func(version string)
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) disabled() bool {
	return c == nil || c.client == nil
}

// OnBump registers a callback run for every version bump received by
// ListenForInvalidation.
func (c *Cache) OnBump(fn func(version string)) {
	if c != nil {
		c.onBump = fn
	}
}

// Version returns the current cache version, starting at 1.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c.disabled() {
		return 0, nil
	}
	if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
		return 0, err
	}
	return c.client.Get(ctx, versionKey).Int64()
}

// fetch returns the aggregate cached under parts, computing and storing it
// on a miss. A disabled cache always computes.
func fetch[T any](ctx context.Context, c *Cache, build func() T, parts ...string) (T, error) {
	var zero T
	if c.disabled() {
		return build(), nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return zero, err
	}
	key := fmt.Sprintf("%s:v%d", strings.Join(parts, ":"), ver)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var hit T
		if json.Unmarshal(raw, &hit) == nil {
			return hit, nil
		}
	case !errors.Is(err, redis.Nil):
		return zero, err
	}

	value := build()
	if raw, err = json.Marshal(value); err != nil {
		return zero, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return zero, err
	}
	return value, nil
}

// Bump invalidates every cached aggregate and notifies BumpChannel.
func (c *Cache) Bump(ctx context.Context) error {
	return c.bump(ctx, BumpChannel)
}

// AnnounceReload bumps the version and tells API processes to reload their
// ledger snapshot.
func (c *Cache) AnnounceReload(ctx context.Context) error {
	return c.bump(ctx, ReloadChannel)
}

func (c *Cache) bump(ctx context.Context, channel string) error {
	if c.disabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, channel, strconv.FormatInt(ver, 10)).Err()
}

// HandleInventoryChanged invalidates every cached aggregate after a ledger mutation.
func (c *Cache) HandleInventoryChanged(ctx context.Context, _ inventory.ChangedEvent) error {
	return c.Bump(ctx)
}

// ListenForInvalidation subscribes to channel and runs the OnBump callback
// for each message until ctx ends. It returns once the subscription is live.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c.disabled() {
		return nil
	}
	if channel == "" {
		channel = BumpChannel
	}
	sub := c.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	go func() {
		defer func() { _ = sub.Close() }()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if c.onBump != nil {
					c.onBump(msg.Payload)
				}
			}
		}
	}()
	return nil
}
