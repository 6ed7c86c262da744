// Package subscription stores Subscription rows.
package subscription

import (
	"context"
	"sync"
	"time"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
)

// InMemory is a map-backed subscription store for tests and local development.
type InMemory struct {
	mu   sync.RWMutex
	subs map[id.SubscriptionID]*models.Subscription
}

func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[id.SubscriptionID]*models.Subscription)}
}

func (s *InMemory) Create(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subs[sub.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

// FindByID returns the row whether or not it is tombstoned. Cancellation
// must see tombstoned rows to stay idempotent.
func (s *InMemory) FindByID(_ context.Context, subID id.SubscriptionID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

// FindLiveByAccount returns the non-tombstoned subscription for the account.
func (s *InMemory) FindLiveByAccount(_ context.Context, accountID id.AccountID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.AccountID == accountID && !sub.IsDeleted() {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Update(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

// SetDeletedAt writes the tombstone column; nil restores the row.
func (s *InMemory) SetDeletedAt(_ context.Context, subID id.SubscriptionID, deletedAt *time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subID]
	if !ok {
		return sentinel.ErrNotFound
	}
	sub.DeletedAt = deletedAt
	sub.UpdatedAt = now
	return nil
}

// Delete physically removes the row. Used only by saga compensation.
func (s *InMemory) Delete(_ context.Context, subID id.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[subID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.subs, subID)
	return nil
}
