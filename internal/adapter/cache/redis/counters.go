package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefixClicks = "clicks:"

// dailyCounterTTL keeps per-day counters around long enough for dashboards.
const dailyCounterTTL = 30 * 24 * time.Hour

// ClickCounterKey returns the key of the running click total for a code.
func ClickCounterKey(shortCode string) string {
	return keyPrefixClicks + shortCode + ":count"
}

// DailyClickCounterKey returns the key of the per-day click counter.
func DailyClickCounterKey(shortCode string, day time.Time) string {
	return keyPrefixClicks + shortCode + ":" + day.UTC().Format("2006-01-02")
}

// ClickCounters maintains the real-time click counters the aggregator bumps
// for each consumed event.
type ClickCounters struct {
	client *redis.Client
}

func NewClickCounters(client *redis.Client) *ClickCounters {
	return &ClickCounters{client: client}
}

func (c *ClickCounters) Increment(ctx context.Context, shortCode string, clickedAt time.Time) error {
	const op = "adapter.cache.redis.ClickCounters.Increment"

	dailyKey := DailyClickCounterKey(shortCode, clickedAt)

	pipe := c.client.Pipeline()
	pipe.Incr(ctx, ClickCounterKey(shortCode))
	pipe.Incr(ctx, dailyKey)
	pipe.Expire(ctx, dailyKey, dailyCounterTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: failed to increment click counters: %w", op, err)
	}

	return nil
}

func (c *ClickCounters) Total(ctx context.Context, shortCode string) (int64, error) {
	const op = "adapter.cache.redis.ClickCounters.Total"

	val, err := c.client.Get(ctx, ClickCounterKey(shortCode)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}

		return 0, fmt.Errorf("%s: failed to get click counter: %w", op, err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: malformed click counter value: %w", op, err)
	}

	return count, nil
}
