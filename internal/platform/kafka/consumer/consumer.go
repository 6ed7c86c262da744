// Package consumer wraps franz-go group consumption behind a small handler
// interface so domain packages never see Kafka types.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record, decoupled from the Kafka client types.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes consumed messages. A returned error leaves the record's
// offset uncommitted so it is delivered again; handlers that want
// at-most-once semantics should swallow errors.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// pollBackoff spaces retries after a handler failure so a struggling store
// is not hammered with the same record.
const pollBackoff = time.Second

// Consumer reads a topic as part of a consumer group and dispatches each
// record to a handler. Offsets are committed after the handler returns.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

func New(brokers []string, group, topic string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run consumes until the context is cancelled. A handler failure never ends
// the loop: the failing record's offset stays uncommitted so the group
// redelivers it, and polling resumes after a short backoff.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fetchErr := range errs {
				c.logger.Error("kafka fetch error",
					"topic", fetchErr.Topic,
					"error", fetchErr.Err.Error(),
				)
			}
		}

		handled, failed := c.handleFetches(ctx, fetches)

		if failed != nil {
			c.logger.Error("kafka handler failed, leaving offset uncommitted",
				"error", failed.Error(),
			)
			// Commit only what succeeded before the failure so the failed
			// record and everything after it come back.
			if len(handled) > 0 {
				if err := c.client.CommitRecords(ctx, handled...); err != nil {
					c.logger.Error("kafka commit failed", "error", err.Error())
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollBackoff):
			}
			continue
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Error("kafka commit failed", "error", err.Error())
		}
	}
}

// handleFetches dispatches records in order, stopping at the first handler
// error. It returns the records handled before the failure.
func (c *Consumer) handleFetches(ctx context.Context, fetches kgo.Fetches) ([]*kgo.Record, error) {
	var handled []*kgo.Record
	var failed error
	fetches.EachRecord(func(record *kgo.Record) {
		if failed != nil {
			return
		}
		msg := &Message{
			Topic:     record.Topic,
			Key:       record.Key,
			Value:     record.Value,
			Timestamp: record.Timestamp,
		}
		if err := c.handler.Handle(ctx, msg); err != nil {
			failed = err
			return
		}
		handled = append(handled, record)
	})
	return handled, failed
}

func (c *Consumer) Close() {
	c.client.Close()
}
