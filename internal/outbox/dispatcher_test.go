package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"useraccounts/internal/models"
)

type sentMail struct {
	to, subject, body string
}

type fakeMail struct {
	sent []sentMail
	err  error
}

func (m *fakeMail) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type fakeProducer struct {
	topic, key string
	message    interface{}
	err        error
}

func (p *fakeProducer) ProduceMessage(_ context.Context, topic, key string, message interface{}) error {
	p.topic, p.key, p.message = topic, key, message
	return p.err
}

func (p *fakeProducer) Close() error { return nil }

func event(t *testing.T, eventType string) *models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	payload, err := json.Marshal(models.Notification{UserID: id, Recipient: "a@x.com", Link: "http://h/l"})
	require.NoError(t, err)
	return &models.OutboxEvent{
		ID:          42,
		AggregateID: id.String(),
		EventType:   eventType,
		Payload:     payload,
		Topic:       "account_events",
	}
}

func TestMailDispatcher(t *testing.T) {
	mail := &fakeMail{}
	d := NewMailDispatcher(mail)

	require.NoError(t, d.Dispatch(context.Background(), event(t, models.EventAccountRegistered)))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "a@x.com", mail.sent[0].to)
	assert.Equal(t, "Activate your account", mail.sent[0].subject)
	assert.Contains(t, mail.sent[0].body, "http://h/l")

	assert.Error(t, d.Dispatch(context.Background(), event(t, "unknown.event")))

	bad := event(t, models.EventAccountRegistered)
	bad.Payload = []byte("{")
	assert.Error(t, d.Dispatch(context.Background(), bad))

	mail.err = errors.New("smtp down")
	assert.Error(t, d.Dispatch(context.Background(), event(t, models.EventPasswordChanged)))
}

func TestKafkaDispatcher(t *testing.T) {
	p := &fakeProducer{}
	d := NewKafkaDispatcher(p)

	e := event(t, models.EventPasswordResetRequested)
	require.NoError(t, d.Dispatch(context.Background(), e))
	assert.Equal(t, "account_events", p.topic)
	assert.Equal(t, e.AggregateID, p.key)

	msg, ok := p.message.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg["event_id"])
	assert.Equal(t, models.EventPasswordResetRequested, msg["event_type"])
	assert.Equal(t, "a@x.com", msg["recipient"])

	p.err = errors.New("broker down")
	assert.Error(t, d.Dispatch(context.Background(), e))
}

func TestLogDispatcher(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	d := NewLogDispatcher(zap.New(core))

	require.NoError(t, d.Dispatch(context.Background(), event(t, models.EventAccountRegistered)))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "a@x.com", logs.All()[0].ContextMap()["recipient"])
}
