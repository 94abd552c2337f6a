package outbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"useraccounts/internal/logger"
	"useraccounts/internal/metrics"
	"useraccounts/internal/repositories"
)

type Options struct {
	BatchSize   int
	Interval    time.Duration
	MaxAttempts int
	// сколько событие закреплено за воркером, пока идёт отправка
	Lease time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.Interval <= 0 {
		o.Interval = 500 * time.Millisecond
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.Lease <= 0 {
		o.Lease = 2 * time.Minute
	}
	return o
}

type Worker struct {
	store      repositories.Store
	dispatcher Dispatcher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	opts       Options
	tracer     trace.Tracer
}

func NewWorker(store repositories.Store, dispatcher Dispatcher, l *zap.Logger, m *metrics.Metrics, opts Options) *Worker {
	return &Worker{
		store:      store,
		dispatcher: dispatcher,
		logger:     l,
		metrics:    m,
		opts:       opts.withDefaults(),
		tracer:     otel.Tracer("outbox-worker"),
	}
}

// Start polls the outbox until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	logger.Info(ctx, w.logger, "starting outbox worker", zap.Duration("interval", w.opts.Interval))

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(context.WithoutCancel(ctx), w.logger, "outbox worker stopping")
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				logger.Error(ctx, w.logger, "error processing outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch delivers one batch and returns how many events were published.
// Events are claimed with a lease, sent with no transaction open, and the
// results are written in one short transaction afterwards.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := w.tracer.Start(ctx, "OutboxWorker.ProcessBatch")
	defer span.End()

	events, err := w.store.Outbox().ClaimBatch(ctx, w.opts.BatchSize, w.opts.MaxAttempts, w.opts.Lease)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	span.SetAttributes(attribute.Int("batch.count", len(events)))

	failures := make([]error, len(events))
	for i, event := range events {
		if err := w.dispatcher.Dispatch(ctx, event); err != nil {
			logger.Warn(ctx, w.logger, "outbox dispatch failed",
				zap.Int64("id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Int("attempt", event.Attempts+1),
				zap.Error(err),
			)
			failures[i] = err
		}
	}

	published := 0
	err = w.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		for i, event := range events {
			if failures[i] != nil {
				if err := tx.Outbox().MarkFailed(ctx, event.ID, failures[i].Error()); err != nil {
					return err
				}
				continue
			}
			if err := tx.Outbox().MarkPublished(ctx, event.ID); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err != nil {
		// аренда истечёт, и события уйдут повторно
		span.RecordError(err)
		return 0, err
	}

	for i, event := range events {
		w.metrics.OutboxDispatched(failures[i] == nil)
		if failures[i] == nil {
			logger.Debug(ctx, w.logger, "outbox event published", zap.Int64("id", event.ID))
		}
	}
	return published, nil
}
