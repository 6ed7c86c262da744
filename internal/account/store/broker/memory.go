// Package broker stores Broker rows. Email is the join key session
// establishment resolves against; it is unique among non-tombstoned rows.
package broker

import (
	"context"
	"strings"
	"sync"
	"time"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
)

// InMemory is a map-backed broker store for tests and local development.
type InMemory struct {
	mu      sync.RWMutex
	brokers map[id.BrokerID]*models.Broker
}

func NewInMemory() *InMemory {
	return &InMemory{brokers: make(map[id.BrokerID]*models.Broker)}
}

// Create inserts the row, rejecting live-row email/tax-id duplicates with
// sentinel.ErrAlreadyUsed just like the partial unique indexes do.
func (s *InMemory) Create(_ context.Context, broker *models.Broker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.brokers[broker.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.brokers {
		if existing.IsDeleted() {
			continue
		}
		if strings.EqualFold(existing.Email, broker.Email) {
			return sentinel.ErrAlreadyUsed
		}
		if existing.TaxID != "" && existing.TaxID == broker.TaxID {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *broker
	s.brokers[broker.ID] = &cp
	return nil
}

// FindByID returns the row whether or not it is tombstoned.
func (s *InMemory) FindByID(_ context.Context, brokerID id.BrokerID) (*models.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	broker, ok := s.brokers[brokerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *broker
	return &cp, nil
}

// FindByEmail returns the live row with the given email, case-insensitively.
func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, broker := range s.brokers {
		if !broker.IsDeleted() && strings.EqualFold(broker.Email, email) {
			cp := *broker
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ExistsByEmail reports whether a live row carries the given email.
func (s *InMemory) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if err != nil {
		if err == sentinel.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExistsByTaxID reports whether a live row carries the given tax id.
func (s *InMemory) ExistsByTaxID(_ context.Context, taxID string) (bool, error) {
	if taxID == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, broker := range s.brokers {
		if !broker.IsDeleted() && broker.TaxID == taxID {
			return true, nil
		}
	}
	return false, nil
}

// CountLiveOwners counts non-tombstoned owner-role brokers for the account.
func (s *InMemory) CountLiveOwners(_ context.Context, accountID id.AccountID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, broker := range s.brokers {
		if broker.AccountID == accountID && broker.IsOwner() && !broker.IsDeleted() {
			count++
		}
	}
	return count, nil
}

// SetDeletedAt writes the tombstone column; nil restores the row.
func (s *InMemory) SetDeletedAt(_ context.Context, brokerID id.BrokerID, deletedAt *time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	broker, ok := s.brokers[brokerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	broker.DeletedAt = deletedAt
	broker.UpdatedAt = now
	return nil
}

// Delete physically removes the row. Used only by saga compensation.
func (s *InMemory) Delete(_ context.Context, brokerID id.BrokerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brokers[brokerID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.brokers, brokerID)
	return nil
}
