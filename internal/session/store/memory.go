// Package store persists per-principal session state. The memory store
// backs tests and single-node development; the redis store is the shared
// production backend.
package store

import (
	"context"
	"sync"

	"brokerhub/internal/session/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
)

// InMemory is a map-backed session store.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[id.PrincipalID]*models.Session
}

func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[id.PrincipalID]*models.Session)}
}

func (s *InMemory) Get(_ context.Context, principalID id.PrincipalID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[principalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *InMemory) Put(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.PrincipalID] = &cp
	return nil
}

func (s *InMemory) Delete(_ context.Context, principalID id.PrincipalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, principalID)
	return nil
}
