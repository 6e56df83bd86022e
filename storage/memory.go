package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"vigil/core"
)

// MemoryStore is an in-memory implementation of EventRepository and
// AlertRepository. It backs tests and single-node deployments where an
// external database is not configured. All methods are safe for concurrent
// use; UpdateAlert enforces the same version check as the Mongo store so the
// merge path behaves identically under either backend.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]*core.LogEvent
	alerts map[string]*core.Alert
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]*core.LogEvent),
		alerts: make(map[string]*core.Alert),
	}
}

// AddEvent stores an event. Used by ingestion shims and tests.
func (m *MemoryStore) AddEvent(event *core.LogEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.events[event.ID] = &cp
}

// QueryUnprocessed returns unprocessed events at or after since
func (m *MemoryStore) QueryUnprocessed(ctx context.Context, since time.Time) ([]*core.LogEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*core.LogEvent
	for _, event := range m.events {
		if event.Processed || event.Timestamp.Before(since) {
			continue
		}
		cp := *event
		results = append(results, &cp)
	}
	sortEventsByTime(results)
	return results, nil
}

// QueryEvents returns all events at or after since
func (m *MemoryStore) QueryEvents(ctx context.Context, since time.Time) ([]*core.LogEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*core.LogEvent
	for _, event := range m.events {
		if event.Timestamp.Before(since) {
			continue
		}
		cp := *event
		results = append(results, &cp)
	}
	sortEventsByTime(results)
	return results, nil
}

// MarkProcessed flips the processed flag on the given event IDs
func (m *MemoryStore) MarkProcessed(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if event, ok := m.events[id]; ok {
			event.Processed = true
		}
	}
	return nil
}

// QueryAlerts returns alerts matching the filter, newest first
func (m *MemoryStore) QueryAlerts(ctx context.Context, filter AlertFilter) ([]*core.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*core.Alert
	for _, alert := range m.alerts {
		if !matchesFilter(alert, filter) {
			continue
		}
		cp := *alert
		results = append(results, &cp)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

// FindOpenByDedupKey returns the open alert with the given dedup key created
// at or after windowStart
func (m *MemoryStore) FindOpenByDedupKey(ctx context.Context, key string, windowStart time.Time) (*core.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, alert := range m.alerts {
		if !alert.Status.IsOpen() {
			continue
		}
		if alert.DedupKey() != key {
			continue
		}
		if alert.CreatedAt.Before(windowStart) {
			continue
		}
		cp := *alert
		return &cp, nil
	}
	return nil, ErrAlertNotFound
}

// InsertAlert persists a new alert
func (m *MemoryStore) InsertAlert(ctx context.Context, alert *core.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *alert
	m.alerts[alert.ID] = &cp
	return nil
}

// UpdateAlert persists a mutated alert with an optimistic version check
func (m *MemoryStore) UpdateAlert(ctx context.Context, alert *core.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.alerts[alert.ID]
	if !ok {
		return ErrAlertNotFound
	}
	if existing.Version != alert.Version {
		return ErrConflict
	}

	cp := *alert
	cp.Version++
	m.alerts[alert.ID] = &cp
	alert.Version = cp.Version
	return nil
}

// GetAlert returns an alert by ID. Test helper.
func (m *MemoryStore) GetAlert(id string) (*core.Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, ok := m.alerts[id]
	if !ok {
		return nil, false
	}
	cp := *alert
	return &cp, true
}

func matchesFilter(alert *core.Alert, filter AlertFilter) bool {
	if filter.Status != "" && alert.Status != filter.Status {
		return false
	}
	if filter.Severity != "" && alert.Severity != filter.Severity {
		return false
	}
	if !filter.CreatedBefore.IsZero() && !alert.CreatedAt.Before(filter.CreatedBefore) {
		return false
	}
	if !filter.CreatedAfter.IsZero() && alert.CreatedAt.Before(filter.CreatedAfter) {
		return false
	}
	return true
}

func sortEventsByTime(events []*core.LogEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].ID < events[j].ID
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
