// Package worker relays audit events from the postgres outbox to Kafka.
// Events are produced keyed by aggregate id so per-account ordering holds,
// then marked published so crashes at worst re-deliver.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"brokerhub/pkg/platform/audit/store/postgres"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Source is the outbox side of the relay.
type Source interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer is the Kafka side of the relay.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

type Worker struct {
	source   Source
	producer Producer
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

type Option func(*Worker)

func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.interval = interval
	}
}

func WithBatchSize(batch int) Option {
	return func(w *Worker) {
		w.batch = batch
	}
}

func NewWorker(source Source, producer Producer, topic string, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		source:   source,
		producer: producer,
		topic:    topic,
		interval: defaultInterval,
		batch:    defaultBatchSize,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls the outbox until the context is cancelled. Publish failures are
// logged and retried on the next tick; the outbox row stays unpublished
// until its record is acked.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.relayOnce(ctx); err != nil {
				w.logger.Error("outbox relay pass failed", "error", err.Error())
			}
		}
	}
}

func (w *Worker) relayOnce(ctx context.Context) error {
	entries, err := w.source.FetchUnpublished(ctx, w.batch)
	if err != nil {
		return err
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if err := w.producer.Produce(ctx, w.topic, []byte(entry.AggregateID), entry.Payload); err != nil {
			w.logger.Error("failed to publish outbox entry",
				"entry_id", entry.ID,
				"event_type", entry.EventType,
				"error", err.Error(),
			)
			break
		}
		published = append(published, entry.ID)
	}

	if len(published) == 0 {
		return nil
	}
	return w.source.MarkPublished(ctx, published)
}
