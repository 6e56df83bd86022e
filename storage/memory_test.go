package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/core"
)

func TestMemoryStore_QueryUnprocessed(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()

	old := core.NewLogEvent()
	old.Timestamp = now.Add(-2 * time.Hour)
	store.AddEvent(old)

	processed := core.NewLogEvent()
	processed.Timestamp = now
	processed.Processed = true
	store.AddEvent(processed)

	fresh := core.NewLogEvent()
	fresh.Timestamp = now
	store.AddEvent(fresh)

	events, err := store.QueryUnprocessed(context.Background(), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fresh.ID, events[0].ID)
}

func TestMemoryStore_MarkProcessed(t *testing.T) {
	store := NewMemoryStore()
	event := core.NewLogEvent()
	event.Timestamp = time.Now().UTC()
	store.AddEvent(event)

	require.NoError(t, store.MarkProcessed(context.Background(), []string{event.ID, "missing-id"}))

	events, err := store.QueryUnprocessed(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryStore_FindOpenByDedupKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	alert := core.NewAlert()
	alert.Type = core.TypeBruteForce
	alert.SourceIP = "203.0.113.10"
	require.NoError(t, store.InsertAlert(ctx, alert))

	found, err := store.FindOpenByDedupKey(ctx, "brute_force|203.0.113.10", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, alert.ID, found.ID)

	// Outside the window
	_, err = store.FindOpenByDedupKey(ctx, "brute_force|203.0.113.10", time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlertNotFound)

	// Resolved alerts never match
	require.NoError(t, alert.TransitionTo(core.StatusResolved, "analyst"))
	require.NoError(t, store.UpdateAlert(ctx, alert))
	_, err = store.FindOpenByDedupKey(ctx, "brute_force|203.0.113.10", time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestMemoryStore_UpdateAlert_VersionConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	alert := core.NewAlert()
	alert.Type = core.TypeInjection
	alert.Confidence = 85
	require.NoError(t, store.InsertAlert(ctx, alert))

	// Two readers get the same version
	first, ok := store.GetAlert(alert.ID)
	require.True(t, ok)
	second, ok := store.GetAlert(alert.ID)
	require.True(t, ok)

	first.Confidence = 90
	require.NoError(t, store.UpdateAlert(ctx, first))

	second.Confidence = 95
	err := store.UpdateAlert(ctx, second)
	assert.ErrorIs(t, err, ErrConflict)

	// Fresh read succeeds
	fresh, ok := store.GetAlert(alert.ID)
	require.True(t, ok)
	fresh.Confidence = 95
	assert.NoError(t, store.UpdateAlert(ctx, fresh))
}

func TestMemoryStore_QueryAlerts_Filter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	active := core.NewAlert()
	active.Severity = core.SeverityCritical
	require.NoError(t, store.InsertAlert(ctx, active))

	resolved := core.NewAlert()
	resolved.Severity = core.SeverityCritical
	require.NoError(t, resolved.TransitionTo(core.StatusResolved, "analyst"))
	require.NoError(t, store.InsertAlert(ctx, resolved))

	alerts, err := store.QueryAlerts(ctx, AlertFilter{Status: core.StatusActive, Severity: core.SeverityCritical})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, active.ID, alerts[0].ID)
}
