// Package plan stores plan reference data.
package plan

import (
	"context"
	"strings"
	"sync"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
)

// InMemory is a map-backed plan store for tests and local development.
type InMemory struct {
	mu    sync.RWMutex
	plans map[string]*models.Plan
}

func NewInMemory() *InMemory {
	return &InMemory{plans: make(map[string]*models.Plan)}
}

// Upsert inserts or replaces a plan, keyed by code.
func (s *InMemory) Upsert(_ context.Context, plan *models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *plan
	s.plans[strings.ToLower(plan.Code)] = &cp
	return nil
}

// FindByCode returns the plan with the given code, case-insensitively.
// Active filtering is the caller's business rule, not the store's.
func (s *InMemory) FindByCode(_ context.Context, code string) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[strings.ToLower(code)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *plan
	return &cp, nil
}

// FindByID returns the plan with the given id.
func (s *InMemory) FindByID(_ context.Context, planID id.PlanID) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, plan := range s.plans {
		if plan.ID == planID {
			cp := *plan
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
