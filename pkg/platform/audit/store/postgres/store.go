// Package postgres implements audit.Store using the transactional outbox
// pattern. Events are written to the outbox table in the same transaction as
// the domain mutation; the relay worker publishes them to Kafka and the
// consumer materializes them into the audit_events table for querying.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "brokerhub/pkg/platform/audit"
	txcontext "brokerhub/pkg/platform/tx"
)

// Schema is the DDL for the outbox and audit_events tables. Statements are
// idempotent so it can be applied on every startup.
//
//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event so the consumer can deserialize without a separate mapping.
type outboxPayload struct {
	ID             string `json:"ID"`
	Category       string `json:"Category"`
	Timestamp      string `json:"Timestamp"`
	Subject        string `json:"Subject"`
	Action         string `json:"Action"`
	Reason         string `json:"Reason,omitempty"`
	AccountID      string `json:"AccountID,omitempty"`
	OwnerUserID    string `json:"OwnerUserID,omitempty"`
	SubscriptionID string `json:"SubscriptionID,omitempty"`
	PrincipalID    string `json:"PrincipalID,omitempty"`
	Email          string `json:"Email,omitempty"`
	RequestID      string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// The category is always derived from the action so the eventCategories
	// map stays the single source of truth.
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:             eventID.String(),
		Category:       string(category),
		Timestamp:      event.Timestamp.Format(time.RFC3339Nano),
		Subject:        event.Subject,
		Action:         event.Action,
		Reason:         event.Reason,
		AccountID:      event.AccountID,
		OwnerUserID:    event.OwnerUserID,
		SubscriptionID: event.SubscriptionID,
		PrincipalID:    event.PrincipalID,
		Email:          event.Email,
		RequestID:      event.RequestID,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Aggregate by account when known so per-account events keep their
	// relative order on the Kafka partition.
	aggregateType := "audit"
	aggregateID := eventID.String()
	if event.AccountID != "" {
		aggregateType = "account"
		aggregateID = event.AccountID
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID inserts an audit event into the audit_events table with a
// specific ID. Used by the Kafka consumer to materialize events for
// querying. Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, subject, action, reason,
			account_id, owner_user_id, subscription_id, principal_id,
			email, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		event.Subject,
		event.Action,
		event.Reason,
		event.AccountID,
		event.OwnerUserID,
		event.SubscriptionID,
		event.PrincipalID,
		event.Email,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByAccount returns events for a specific account, newest first.
func (s *Store) ListByAccount(ctx context.Context, accountID string) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, subject, action, reason,
			   account_id, owner_user_id, subscription_id, principal_id,
			   email, request_id
		FROM audit_events
		WHERE account_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, subject, action, reason,
			   account_id, owner_user_id, subscription_id, principal_id,
			   email, request_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			category string
			event    audit.Event
		)

		err := rows.Scan(
			&category,
			&event.Timestamp,
			&event.Subject,
			&event.Action,
			&event.Reason,
			&event.AccountID,
			&event.OwnerUserID,
			&event.SubscriptionID,
			&event.PrincipalID,
			&event.Email,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// OutboxEntry is one unpublished row handed to the relay worker.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
}

// FetchUnpublished returns up to limit outbox entries that have not been
// published yet, oldest first.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given outbox entries as published.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	published := make([]string, len(ids))
	for i, entryID := range ids {
		published[i] = entryID.String()
	}

	query := `
		UPDATE outbox
		SET published_at = $1
		WHERE id = ANY($2::uuid[])
	`
	if _, err := s.db.ExecContext(ctx, query, time.Now(), pq.Array(published)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
