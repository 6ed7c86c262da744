// Package consumer materializes audit events from Kafka into the
// audit_events table. Kafka is the source of truth; inserts are idempotent
// so redelivered records are harmless.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	kafkaconsumer "brokerhub/internal/platform/kafka/consumer"
	audit "brokerhub/pkg/platform/audit"
)

// EventStore is the materialized side of the pipeline.
type EventStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Handler consumes audit records and writes them to the event store.
type Handler struct {
	store  EventStore
	logger *slog.Logger
}

func NewHandler(store EventStore, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// payload matches the JSON shape written by the postgres outbox store.
type payload struct {
	ID             string `json:"ID"`
	Category       string `json:"Category"`
	Timestamp      string `json:"Timestamp"`
	Subject        string `json:"Subject"`
	Action         string `json:"Action"`
	Reason         string `json:"Reason"`
	AccountID      string `json:"AccountID"`
	OwnerUserID    string `json:"OwnerUserID"`
	SubscriptionID string `json:"SubscriptionID"`
	PrincipalID    string `json:"PrincipalID"`
	Email          string `json:"Email"`
	RequestID      string `json:"RequestID"`
}

// Handle materializes one audit record. Malformed records are logged and
// skipped so a poison message never wedges the partition.
func (h *Handler) Handle(ctx context.Context, msg *kafkaconsumer.Message) error {
	var p payload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		h.logger.Warn("skipping malformed audit record",
			"key", string(msg.Key),
			"error", err.Error(),
		)
		return nil
	}

	eventID, err := uuid.Parse(p.ID)
	if err != nil {
		h.logger.Warn("skipping audit record without event id",
			"key", string(msg.Key),
			"action", p.Action,
		)
		return nil
	}

	event := audit.Event{
		Category:       audit.EventCategory(p.Category),
		Subject:        p.Subject,
		Action:         p.Action,
		Reason:         p.Reason,
		AccountID:      p.AccountID,
		OwnerUserID:    p.OwnerUserID,
		SubscriptionID: p.SubscriptionID,
		PrincipalID:    p.PrincipalID,
		Email:          p.Email,
		RequestID:      p.RequestID,
	}
	event.Timestamp, err = time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		event.Timestamp = msg.Timestamp
	}

	// Security events get surfaced immediately; the table is for forensics.
	if event.Category == audit.CategorySecurity {
		h.logger.Warn("security audit event",
			"action", event.Action,
			"subject", event.Subject,
			"reason", event.Reason,
			"request_id", event.RequestID,
		)
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		// Returning the error leaves the offset uncommitted so the record
		// is redelivered once storage recovers.
		return err
	}
	return nil
}
