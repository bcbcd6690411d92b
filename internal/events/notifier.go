package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// publishTimeout bounds a single delivery attempt. Publication is best-effort
// and at-most-once: a failure is logged, never propagated, and never rolls
// back the mutation it describes.
const publishTimeout = 2 * time.Second

// Notifier publishes a committed mutation to its private channel. Callers
// invoke it strictly after the store transaction commits.
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

// RedisNotifier fans events out over redis pub/sub; the relay holding the
// client websockets subscribes to the user channels and forwards to every
// session except the one matching the envelope's socket id.
type RedisNotifier struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisNotifier creates a notifier on an existing redis client.
func NewRedisNotifier(client *redis.Client, logger *logrus.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		logger: logger,
	}
}

// Publish sends the event to its channel. The delivery context is detached
// from the request: cancelling the request after commit must not suppress the
// notification, only the publish timeout bounds it.
func (n *RedisNotifier) Publish(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.WithError(err).WithField("event", ev.Name).Error("failed to encode event")
		return
	}

	if err := n.client.Publish(ctx, ev.Channel, payload).Err(); err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"event":   ev.Name,
			"channel": ev.Channel,
		}).Warn("event publish failed")
	}
}

// NopNotifier drops every event. Used when no pub/sub transport is configured
// and by tests that do not assert on notifications.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) {}
