package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const AggregateAccount = "account"

const (
	EventAccountRegistered      = "account.registered"
	EventPasswordResetRequested = "account.password_reset_requested"
	EventPasswordChanged        = "account.password_changed"
	EventEmailChangeRequested   = "account.email_change_requested"
)

type OutboxEvent struct {
	ID            int64           `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Topic         string          `json:"topic"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
	Attempts      int             `json:"attempts"`
	LastError     *string         `json:"last_error,omitempty"`
	// до этого момента событие закреплено за воркером
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// Notification is the outbox payload of every account event.
type Notification struct {
	UserID    uuid.UUID `json:"user_id"`
	Recipient string    `json:"recipient"`
	FirstName string    `json:"first_name,omitempty"`
	Link      string    `json:"link,omitempty"`
}
