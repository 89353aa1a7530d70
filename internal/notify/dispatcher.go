// Package notify hands committed attendance changes to the outside world.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-attendance/internal/config"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type Broadcaster interface {
	Publish(n models.Notification)
}

// Dispatcher publishes each notification to the Kafka topic of its type, keyed by event id.
// Without a producer it feeds the local stream broker directly. Failures are logged and
// never reach the caller.
type Dispatcher struct {
	Producer Publisher
	Topics   config.TopicConfig
	Local    Broadcaster
	Logger   *logger.Logger
}

func NewDispatcher(producer Publisher, topics config.TopicConfig, local Broadcaster, log *logger.Logger) *Dispatcher {
	return &Dispatcher{Producer: producer, Topics: topics, Local: local, Logger: log}
}

func (d *Dispatcher) Notify(ctx context.Context, notifications ...models.Notification) {
	for _, n := range notifications {
		if d.Producer == nil {
			if d.Local != nil {
				d.Local.Publish(n)
			}
			continue
		}

		value, err := json.Marshal(n)
		if err != nil {
			d.Logger.Error("NOTIFY", fmt.Sprintf("Failed to marshal %s for %s: %v", n.Type, n.EventID, err))
			continue
		}

		topic := d.Topics.ForType(n.Type)
		if err := d.Producer.Publish(ctx, topic, n.EventID, value); err != nil {
			d.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for event %s: %v", n.Type, n.EventID, err))
			continue
		}
		d.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%s user=%s", n.EventID, n.UserID))
	}
}
