package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"useraccounts/internal/models"
	"useraccounts/internal/repositories"
)

// Notifier writes account events to the outbox of the caller's transaction.
type Notifier struct {
	topic string
}

func NewNotifier(topic string) *Notifier {
	return &Notifier{topic: topic}
}

func (n *Notifier) Enqueue(ctx context.Context, tx repositories.Store, eventType string, user *models.User, link string) error {
	payload, err := json.Marshal(models.Notification{
		UserID:    user.ID,
		Recipient: user.Email,
		FirstName: user.FirstName,
		Link:      link,
	})
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return tx.Outbox().Save(ctx, &models.OutboxEvent{
		AggregateType: models.AggregateAccount,
		AggregateID:   user.ID.String(),
		EventType:     eventType,
		Payload:       payload,
		Topic:         n.topic,
	})
}

// RenderNotification builds the email subject and HTML body for an event.
func RenderNotification(eventType string, n models.Notification) (subject, body string, err error) {
	name := html.EscapeString(n.FirstName)
	if name == "" {
		name = html.EscapeString(n.Recipient)
	}
	link := html.EscapeString(n.Link)

	switch eventType {
	case models.EventAccountRegistered:
		subject = "Activate your account"
		body = fmt.Sprintf(`
		<h2>Welcome, %s!</h2>
		<p>Thank you for registering. Please confirm your account by following the link below.</p>
		<p><a href="%s">%s</a></p>
	`, name, link, link)
	case models.EventPasswordResetRequested:
		subject = "Password reset request"
		body = fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your account.</p>
		<p><a href="%s">Reset your password</a></p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, link)
	case models.EventEmailChangeRequested:
		subject = "Confirm your new email"
		body = fmt.Sprintf(`
		<h3>Hello, %s</h3>
		<p>Please confirm this address by following the link below.</p>
		<p><a href="%s">%s</a></p>
	`, name, link, link)
	case models.EventPasswordChanged:
		subject = "Your password was changed"
		body = fmt.Sprintf(`
		<h3>Hello, %s</h3>
		<p>The password of your account has just been changed.</p>
		<p>If it wasn't you, reset your password immediately.</p>
	`, name)
	default:
		return "", "", fmt.Errorf("no template for event %q", eventType)
	}
	return subject, body, nil
}
