package audit

import "context"

// Store is an append-only sink for audit events. The memory store backs
// tests; the postgres store writes to the transactional outbox so events
// reach Kafka exactly once per saga step.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, accountID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
