package consumer

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkaconsumer "brokerhub/internal/platform/kafka/consumer"
	audit "brokerhub/pkg/platform/audit"
)

type fakeStore struct {
	appended  map[uuid.UUID]audit.Event
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{appended: make(map[uuid.UUID]audit.Event)}
}

func (f *fakeStore) AppendWithID(_ context.Context, eventID uuid.UUID, event audit.Event) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended[eventID] = event
	return nil
}

func message(value string) *kafkaconsumer.Message {
	return &kafkaconsumer.Message{
		Topic:     "brokerhub.audit",
		Key:       []byte(uuid.NewString()),
		Value:     []byte(value),
		Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandlerMaterializesEvent(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, slog.Default())

	eventID := uuid.New()
	err := h.Handle(context.Background(), message(`{
		"ID": "`+eventID.String()+`",
		"Category": "compliance",
		"Timestamp": "2025-03-10T11:59:00Z",
		"Subject": "sub-1",
		"Action": "subscription_cancelled",
		"AccountID": "acct-1",
		"RequestID": "req-1"
	}`))
	require.NoError(t, err)

	event, ok := store.appended[eventID]
	require.True(t, ok)
	assert.Equal(t, audit.CategoryCompliance, event.Category)
	assert.Equal(t, "subscription_cancelled", event.Action)
	assert.Equal(t, "acct-1", event.AccountID)
	assert.Equal(t, time.Date(2025, 3, 10, 11, 59, 0, 0, time.UTC), event.Timestamp)
}

func TestHandlerSkipsMalformedPayload(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, slog.Default())

	require.NoError(t, h.Handle(context.Background(), message(`{not json`)))
	assert.Empty(t, store.appended)
}

func TestHandlerSkipsMissingEventID(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, slog.Default())

	require.NoError(t, h.Handle(context.Background(), message(`{"Action":"signup_completed"}`)))
	assert.Empty(t, store.appended)
}

func TestHandlerFallsBackToRecordTimestamp(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, slog.Default())

	eventID := uuid.New()
	msg := message(`{"ID": "` + eventID.String() + `", "Action": "signup_completed"}`)
	require.NoError(t, h.Handle(context.Background(), msg))

	event := store.appended[eventID]
	assert.Equal(t, msg.Timestamp, event.Timestamp)
}

func TestHandlerReturnsStoreErrorForRedelivery(t *testing.T) {
	store := newFakeStore()
	store.appendErr = errors.New("db down")
	h := NewHandler(store, slog.Default())

	msg := message(`{"ID": "` + uuid.NewString() + `", "Action": "signup_completed"}`)
	require.Error(t, h.Handle(context.Background(), msg))
}
