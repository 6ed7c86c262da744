// Package owneruser stores OwnerUser rows. Email and tax id uniqueness is
// enforced among non-tombstoned rows only, so a tombstoned account never
// blocks a fresh signup.
package owneruser

import (
	"context"
	"strings"
	"sync"
	"time"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
)

// InMemory is a map-backed owner-user store for tests and local development.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.OwnerUserID]*models.OwnerUser
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.OwnerUserID]*models.OwnerUser)}
}

// Create inserts the row, rejecting live-row email/tax-id duplicates with
// sentinel.ErrAlreadyUsed just like the partial unique indexes do.
func (s *InMemory) Create(_ context.Context, user *models.OwnerUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.users {
		if existing.IsDeleted() {
			continue
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return sentinel.ErrAlreadyUsed
		}
		if existing.TaxID != "" && existing.TaxID == user.TaxID {
			return sentinel.ErrAlreadyUsed
		}
		if user.PrincipalID != nil && existing.PrincipalID != nil && *existing.PrincipalID == *user.PrincipalID {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// FindByID returns the row whether or not it is tombstoned. Cancellation
// must see tombstoned rows to stay idempotent.
func (s *InMemory) FindByID(_ context.Context, userID id.OwnerUserID) (*models.OwnerUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// FindByPrincipal returns the live row linked to the given principal.
func (s *InMemory) FindByPrincipal(_ context.Context, principalID id.PrincipalID) (*models.OwnerUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.IsDeleted() || user.PrincipalID == nil {
			continue
		}
		if *user.PrincipalID == principalID {
			cp := *user
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// FindByEmail returns the live row for the given email.
func (s *InMemory) FindByEmail(_ context.Context, emailAddr string) (*models.OwnerUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if !user.IsDeleted() && user.Email == emailAddr {
			cp := *user
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ExistsByPhone reports whether a live row carries the given phone number.
func (s *InMemory) ExistsByPhone(_ context.Context, phone string) (bool, error) {
	if phone == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if !user.IsDeleted() && user.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) Update(_ context.Context, user *models.OwnerUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// SetDeletedAt writes the tombstone column; nil restores the row.
func (s *InMemory) SetDeletedAt(_ context.Context, userID id.OwnerUserID, deletedAt *time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	user.DeletedAt = deletedAt
	user.UpdatedAt = now
	return nil
}

// Delete physically removes the row. Used only by saga compensation.
func (s *InMemory) Delete(_ context.Context, userID id.OwnerUserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.users, userID)
	return nil
}
