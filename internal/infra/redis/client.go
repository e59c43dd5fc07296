package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/slicks/internal/core/domain"
)

// Client keeps the queues of time ranges that a run could not answer.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewClient creates a new Redis client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func queueKey(kind domain.RunKind, dataset string) string {
	return fmt.Sprintf("slicks:incomplete:%s:%s", kind, dataset)
}

func lockKey(kind domain.RunKind, dataset string) string {
	return fmt.Sprintf("slicks:lock:%s:%s", kind, dataset)
}

// score orders ranges by start time.
func score(r domain.TimeRange) float64 {
	return float64(r.Start.Unix())
}

// PushRange queues r. Pushing the same range twice keeps one entry.
func (c *Client) PushRange(ctx context.Context, kind domain.RunKind, dataset string, r domain.TimeRange) error {
	z := redis.Z{Score: score(r), Member: r.String()}
	if err := c.rdb.ZAdd(ctx, queueKey(kind, dataset), z).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// PushRanges queues every range in one round trip.
func (c *Client) PushRanges(ctx context.Context, kind domain.RunKind, dataset string, ranges []domain.TimeRange) error {
	if len(ranges) == 0 {
		return nil
	}
	members := make([]redis.Z, len(ranges))
	for i, r := range ranges {
		members[i] = redis.Z{Score: score(r), Member: r.String()}
	}
	if err := c.rdb.ZAdd(ctx, queueKey(kind, dataset), members...).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// PopRange removes and returns the earliest queued range.
func (c *Client) PopRange(ctx context.Context, kind domain.RunKind, dataset string) (domain.TimeRange, bool, error) {
	results, err := c.rdb.ZPopMin(ctx, queueKey(kind, dataset), 1).Result()
	if err != nil {
		return domain.TimeRange{}, false, fmt.Errorf("zpopmin failed: %w", err)
	}
	if len(results) == 0 {
		return domain.TimeRange{}, false, nil
	}

	member, ok := results[0].Member.(string)
	if !ok {
		return domain.TimeRange{}, false, fmt.Errorf("unexpected member type %T", results[0].Member)
	}
	r, err := domain.ParseTimeRange(member)
	if err != nil {
		return domain.TimeRange{}, false, fmt.Errorf("invalid range format: %w", err)
	}
	return r, true, nil
}

// GetAllRanges returns every queued range, earliest first. Members that do
// not parse are skipped.
func (c *Client) GetAllRanges(ctx context.Context, kind domain.RunKind, dataset string) ([]domain.TimeRange, error) {
	members, err := c.rdb.ZRange(ctx, queueKey(kind, dataset), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	out := make([]domain.TimeRange, 0, len(members))
	for _, m := range members {
		r, err := domain.ParseTimeRange(m)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Len returns the number of queued ranges.
func (c *Client) Len(ctx context.Context, kind domain.RunKind, dataset string) (int64, error) {
	n, err := c.rdb.ZCard(ctx, queueKey(kind, dataset)).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return n, nil
}

// ClearQueue removes all ranges from the queue.
func (c *Client) ClearQueue(ctx context.Context, kind domain.RunKind, dataset string) error {
	return c.rdb.Del(ctx, queueKey(kind, dataset)).Err()
}

// AcquireLock takes the drain lock for a queue. It returns false when
// another process holds it.
func (c *Client) AcquireLock(ctx context.Context, kind domain.RunKind, dataset string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockKey(kind, dataset), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// RefreshLock extends the TTL of a held lock.
func (c *Client) RefreshLock(ctx context.Context, kind domain.RunKind, dataset string, ttl time.Duration) error {
	ok, err := c.rdb.Expire(ctx, lockKey(kind, dataset), ttl).Result()
	if err != nil {
		return fmt.Errorf("expire failed: %w", err)
	}
	if !ok {
		return ErrLockLost
	}
	return nil
}

// ReleaseLock releases the drain lock.
func (c *Client) ReleaseLock(ctx context.Context, kind domain.RunKind, dataset string) error {
	return c.rdb.Del(ctx, lockKey(kind, dataset)).Err()
}

// ErrLockLost is returned when a lock expired before it was refreshed.
var ErrLockLost = errors.New("lock no longer held")
