// Package publisher emits structured audit events. It persists through an
// audit.Store so tests can swap sinks, and optionally decouples emitters
// from storage latency with a bounded async buffer.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "brokerhub/pkg/platform/audit"
)

// ErrBufferFull is returned when the async buffer cannot accept more events.
var ErrBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	sampler *Sampler

	inbox chan audit.Event
	done  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking: events are queued on a channel of
// the given size and persisted by a background goroutine. When the buffer is
// full events are dropped rather than stalling the saga that emits them.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithSampler applies sampling to operations-category events. Compliance and
// security events always bypass it.
func WithSampler(s *Sampler) Option {
	return func(p *Publisher) {
		p.sampler = s
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an audit event. The category is always derived from the
// action so emitters cannot misfile events.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	if p.sampler != nil && event.Category == audit.CategoryOperations && !p.sampler.ShouldKeep(event.Action) {
		p.incDropped("sampled")
		return nil
	}

	if p.inbox == nil {
		return p.persist(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		p.incDropped("context_cancelled")
		return ctx.Err()
	default:
		p.incDropped("buffer_full")
		p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		return ErrBufferFull
	}
}

func (p *Publisher) List(ctx context.Context, accountID string) ([]audit.Event, error) {
	return p.store.ListByAccount(ctx, accountID)
}

// Close stops the background goroutine after draining any queued events.
// Safe to call multiple times.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.inbox:
			p.persistBackground(event)
		case <-p.done:
			for {
				select {
				case event := <-p.inbox:
					p.persistBackground(event)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) persistBackground(event audit.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.persist(ctx, event)
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		p.logger.Error("failed to persist audit event",
			"action", event.Action,
			"error", err.Error(),
		)
		return err
	}
	if p.metrics != nil {
		p.metrics.IncEmitted(string(event.Category))
	}
	return nil
}

func (p *Publisher) incDropped(reason string) {
	if p.metrics != nil {
		p.metrics.IncDropped(reason)
	}
}
