package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

// Consumer reads notifications from every attendance topic as one consumer group.
type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

func NewConsumer(brokers, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

// Start consumes until ctx is cancelled, handing every decoded notification to handler.
// Undecodable messages are logged and skipped.
func (c *Consumer) Start(ctx context.Context, handler func(models.Notification)) {
	c.logger.LogKafka("CONSUME", "attendance", "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.LogKafka("CONSUME", "attendance", "consumer stopped")
				return
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		notification, err := DecodeNotification(msg.Value)
		if err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message from %s: %v", msg.Topic, err))
			continue
		}

		c.logger.Debug("KAFKA", fmt.Sprintf("Received %s for event %s", notification.Type, notification.EventID))
		handler(notification)
	}
}

// DecodeNotification parses one message value.
func DecodeNotification(value []byte) (models.Notification, error) {
	var n models.Notification
	if err := json.Unmarshal(value, &n); err != nil {
		return n, err
	}
	if n.Type == "" || n.EventID == "" {
		return n, fmt.Errorf("notification is missing type or event id")
	}
	return n, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
