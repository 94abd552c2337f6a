package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"useraccounts/internal/models"
)

type outboxRepository struct {
	DB     DBTX
	tracer trace.Tracer
}

func NewOutboxRepository(db DBTX) OutboxRepository {
	return &outboxRepository{
		DB:     db,
		tracer: otel.Tracer("repositories/outbox"),
	}
}

func (r *outboxRepository) Save(ctx context.Context, event *models.OutboxEvent) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("aggregate_id", event.AggregateID),
		attribute.String("event_type", event.EventType),
	)

	const q = `
		INSERT INTO outbox (aggregate_type, aggregate_id, event_type, payload, topic)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	// payload уходит строкой: lib/pq кодирует []byte как bytea
	err := r.DB.QueryRowContext(ctx, q,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		string(event.Payload),
		event.Topic,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("save outbox event: %w", err)
	}
	return nil
}

// ClaimBatch picks pending rows with FOR UPDATE SKIP LOCKED and stamps a
// lease in the same statement, so no transaction stays open while events
// are delivered.
func (r *outboxRepository) ClaimBatch(ctx context.Context, batchSize, maxAttempts int, lease time.Duration) ([]*models.OutboxEvent, error) {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.ClaimBatch")
	defer span.End()

	span.SetAttributes(attribute.Int("batch_size", batchSize))

	const q = `
		WITH batch AS (
			SELECT id FROM outbox
			WHERE published_at IS NULL
			  AND attempts < $1
			  AND (locked_until IS NULL OR locked_until < NOW())
			ORDER BY created_at ASC, id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox o
		SET locked_until = NOW() + make_interval(secs => $3)
		FROM batch
		WHERE o.id = batch.id
		RETURNING o.id, o.aggregate_type, o.aggregate_id, o.event_type, o.payload, o.topic, o.created_at, o.attempts, o.locked_until
	`
	rows, err := r.DB.QueryContext(ctx, q, maxAttempts, batchSize, lease.Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer rows.Close()

	var events []*models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		var lockedUntil time.Time
		if err := rows.Scan(
			&e.ID,
			&e.AggregateType,
			&e.AggregateID,
			&e.EventType,
			&e.Payload,
			&e.Topic,
			&e.CreatedAt,
			&e.Attempts,
			&lockedUntil,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		e.LockedUntil = &lockedUntil
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}

	// RETURNING не гарантирует порядок
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})

	span.SetAttributes(attribute.Int("result_count", len(events)))
	return events, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id int64) error {
	const q = `
		UPDATE outbox
		SET published_at = NOW(), last_error = NULL, locked_until = NULL
		WHERE id = $1
	`
	if _, err := r.DB.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("mark event %d published: %w", id, err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	const q = `
		UPDATE outbox
		SET last_error = $1, attempts = attempts + 1, locked_until = NULL
		WHERE id = $2
	`
	if _, err := r.DB.ExecContext(ctx, q, reason, id); err != nil {
		return fmt.Errorf("mark event %d failed: %w", id, err)
	}
	return nil
}
