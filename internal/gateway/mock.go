package gateway

import (
	"context"
	"sync"
	"time"

	dErrors "brokerhub/pkg/domain-errors"
)

// Mock is a deterministic Notifier with configurable latency and outcome,
// for local development and tests that do not need call-level expectations.
type Mock struct {
	Latency    time.Duration
	FailWith   error
	CustomerID string

	mu         sync.Mutex
	provisions []CustomerData
	cancels    []SubscriptionData
}

func (m *Mock) ProvisionCustomer(_ context.Context, data CustomerData) (*ProvisionResult, error) {
	time.Sleep(m.Latency)
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	m.provisions = append(m.provisions, data)
	m.mu.Unlock()

	customerID := m.CustomerID
	if customerID == "" {
		customerID = "cus_mock"
	}
	return &ProvisionResult{CustomerID: customerID}, nil
}

func (m *Mock) CancelSubscription(_ context.Context, _ CustomerData, sub SubscriptionData) error {
	time.Sleep(m.Latency)
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	m.cancels = append(m.cancels, sub)
	m.mu.Unlock()
	return nil
}

// Provisions returns the provision calls recorded so far.
func (m *Mock) Provisions() []CustomerData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CustomerData(nil), m.provisions...)
}

// Cancels returns the cancellation calls recorded so far.
func (m *Mock) Cancels() []SubscriptionData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SubscriptionData(nil), m.cancels...)
}

// ErrGatewayDown is a ready-made failure for tests exercising the
// gateway-first guarantee.
var ErrGatewayDown = dErrors.New(dErrors.CodeGatewayUnavailable, "gateway returned status 500: no detail")
