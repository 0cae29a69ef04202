// Package notifier provides a best-effort Redis wake-up signal for
// multi-instance dueue deployments: when one instance accepts a message on
// a queue, it publishes to a Redis channel so other instances polling the
// same queue can shorten their next poll interval. Dropped publishes never
// lose a message.
package notifier

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "dueue:queue:notify:"

// Notifier publishes a wake-up signal when a queue receives a message.
type Notifier interface {
	Notify(ctx context.Context, queueName string) error
	Close() error
}

// RedisNotifier is a distributed Notifier backed by Redis PUBLISH.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier constructs a RedisNotifier against addr (host:port).
func NewRedisNotifier(addr, password string, db int) *RedisNotifier {
	return &RedisNotifier{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Notify publishes to the channel for queueName. Errors are the caller's
// to log and ignore; a dropped notification never loses a message.
func (n *RedisNotifier) Notify(ctx context.Context, queueName string) error {
	return n.client.Publish(ctx, channelPrefix+queueName, "1").Err()
}

// Close releases the underlying Redis client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// Noop is a Notifier that does nothing, used when no Redis address is
// configured.
type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }
func (Noop) Close() error                         { return nil }
