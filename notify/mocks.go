package notify

import (
	"context"
	"errors"
	"sync"
)

// MockEnqueuer captures intents for assertions in tests
type MockEnqueuer struct {
	mu         sync.Mutex
	intents    []Intent
	shouldFail bool
}

// NewMockEnqueuer creates a mock enqueuer
func NewMockEnqueuer() *MockEnqueuer {
	return &MockEnqueuer{}
}

// Enqueue records the intent, or fails when configured to
func (m *MockEnqueuer) Enqueue(ctx context.Context, intent Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFail {
		return errors.New("mock enqueue failure")
	}
	m.intents = append(m.intents, intent)
	return nil
}

// SetShouldFail toggles simulated enqueue failures
func (m *MockEnqueuer) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
}

// Intents returns a copy of the captured intents
func (m *MockEnqueuer) Intents() []Intent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Intent, len(m.intents))
	copy(out, m.intents)
	return out
}

// IntentsFor returns the captured intents for a given alert ID
func (m *MockEnqueuer) IntentsFor(alertID string) []Intent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Intent
	for _, intent := range m.intents {
		if intent.AlertID == alertID {
			out = append(out, intent)
		}
	}
	return out
}
