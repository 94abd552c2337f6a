package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"useraccounts/internal/kafka"
	"useraccounts/internal/logger"
	"useraccounts/internal/models"
	"useraccounts/internal/services"
)

// Dispatcher delivers one outbox event; an error leaves it for a retry.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.OutboxEvent) error
}

func decode(event *models.OutboxEvent) (models.Notification, error) {
	var n models.Notification
	if err := json.Unmarshal(event.Payload, &n); err != nil {
		return n, fmt.Errorf("decode payload of event %d: %w", event.ID, err)
	}
	return n, nil
}

type MailDispatcher struct {
	mail services.EmailService
}

func NewMailDispatcher(mail services.EmailService) *MailDispatcher {
	return &MailDispatcher{mail: mail}
}

func (d *MailDispatcher) Dispatch(ctx context.Context, event *models.OutboxEvent) error {
	n, err := decode(event)
	if err != nil {
		return err
	}
	subject, body, err := services.RenderNotification(event.EventType, n)
	if err != nil {
		return err
	}
	return d.mail.Send(ctx, n.Recipient, subject, body)
}

type KafkaDispatcher struct {
	producer kafka.Producer
}

func NewKafkaDispatcher(producer kafka.Producer) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, event *models.OutboxEvent) error {
	var payload map[string]any
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload of event %d: %w", event.ID, err)
	}
	payload["event_id"] = event.ID
	payload["event_type"] = event.EventType

	return d.producer.ProduceMessage(ctx, event.Topic, event.AggregateID, payload)
}

// LogDispatcher only writes the event to the log. Used when no SMTP server
// or broker is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(l *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: l}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, event *models.OutboxEvent) error {
	n, err := decode(event)
	if err != nil {
		return err
	}
	logger.Info(ctx, d.logger, "notification",
		zap.Int64("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("recipient", n.Recipient),
		zap.String("link", n.Link),
	)
	return nil
}
