package escalate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vigil/core"
	"vigil/notify"
	"vigil/storage"
)

func newTestMonitor(t *testing.T, store *storage.MemoryStore, queue notify.Enqueuer) (*Monitor, *MemoryLedger) {
	t.Helper()
	ledger, err := NewMemoryLedger(128)
	require.NoError(t, err)
	return NewMonitor(store, queue, ledger, DefaultTiers(), zap.NewNop().Sugar()), ledger
}

func agedAlert(severity core.AlertSeverity, age time.Duration) *core.Alert {
	alert := core.NewAlert()
	alert.Title = "Test Alert"
	alert.Type = core.TypeBruteForce
	alert.Severity = severity
	alert.Confidence = 80
	alert.CreatedAt = time.Now().UTC().Add(-age)
	return alert
}

func TestMonitor_RunScan_EscalatesOverdueCritical(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := notify.NewMockEnqueuer()
	monitor, _ := newTestMonitor(t, store, queue)
	ctx := context.Background()

	alert := agedAlert(core.SeverityCritical, 6*time.Minute)
	require.NoError(t, store.InsertAlert(ctx, alert))

	require.NoError(t, monitor.RunScan(ctx))

	intents := queue.IntentsFor(alert.ID)
	require.Len(t, intents, 1)
	assert.Equal(t, "escalation:critical", intents[0].Reason)
	assert.Equal(t, []notify.Channel{notify.ChannelPagerDuty, notify.ChannelSlack, notify.ChannelEmail}, intents[0].Channels)
}

func TestMonitor_RunScan_FreshAlertNotEscalated(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := notify.NewMockEnqueuer()
	monitor, _ := newTestMonitor(t, store, queue)
	ctx := context.Background()

	require.NoError(t, store.InsertAlert(ctx, agedAlert(core.SeverityCritical, 2*time.Minute)))
	require.NoError(t, monitor.RunScan(ctx))
	assert.Empty(t, queue.Intents())
}

func TestMonitor_RunScan_TierTimeouts(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := notify.NewMockEnqueuer()
	monitor, _ := newTestMonitor(t, store, queue)
	ctx := context.Background()

	// 20 minutes old: past the high tier's 15m, short of medium's 30m.
	high := agedAlert(core.SeverityHigh, 20*time.Minute)
	medium := agedAlert(core.SeverityMedium, 20*time.Minute)
	require.NoError(t, store.InsertAlert(ctx, high))
	require.NoError(t, store.InsertAlert(ctx, medium))

	require.NoError(t, monitor.RunScan(ctx))

	assert.Len(t, queue.IntentsFor(high.ID), 1)
	assert.Empty(t, queue.IntentsFor(medium.ID))
}

func TestMonitor_RunScan_IdempotentAcrossScans(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := notify.NewMockEnqueuer()
	monitor, _ := newTestMonitor(t, store, queue)
	ctx := context.Background()

	alert := agedAlert(core.SeverityCritical, 10*time.Minute)
	require.NoError(t, store.InsertAlert(ctx, alert))

	require.NoError(t, monitor.RunScan(ctx))
	require.NoError(t, monitor.RunScan(ctx))
	require.NoError(t, monitor.RunScan(ctx))

	assert.Len(t, queue.IntentsFor(alert.ID), 1, "one escalation per alert and tier")
}

func TestMonitor_RunScan_LowSeverityNeverEscalates(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := notify.NewMockEnqueuer()
	monitor, _ := newTestMonitor(t, store, queue)
	ctx := context.Background()

	require.NoError(t, store.InsertAlert(ctx, agedAlert(core.SeverityLow, 24*time.Hour)))
	require.NoError(t, monitor.RunScan(ctx))
	assert.Empty(t, queue.Intents())
}

func TestMonitor_RunScan_InvestigatingAlertsNotEscalated(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := notify.NewMockEnqueuer()
	monitor, _ := newTestMonitor(t, store, queue)
	ctx := context.Background()

	alert := agedAlert(core.SeverityCritical, time.Hour)
	require.NoError(t, alert.TransitionTo(core.StatusInvestigating, "analyst"))
	require.NoError(t, store.InsertAlert(ctx, alert))

	require.NoError(t, monitor.RunScan(ctx))
	assert.Empty(t, queue.Intents(), "acknowledged alerts are someone's problem already")
}

func TestMonitor_RunScan_EnqueueFailureRetriedNextScan(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := notify.NewMockEnqueuer()
	monitor, _ := newTestMonitor(t, store, queue)
	ctx := context.Background()

	alert := agedAlert(core.SeverityCritical, 10*time.Minute)
	require.NoError(t, store.InsertAlert(ctx, alert))

	queue.SetShouldFail(true)
	require.NoError(t, monitor.RunScan(ctx), "enqueue failure never aborts the scan")
	assert.Empty(t, queue.Intents())

	queue.SetShouldFail(false)
	require.NoError(t, monitor.RunScan(ctx))
	assert.Len(t, queue.IntentsFor(alert.ID), 1, "ledger not marked on failure, so the next scan retries")
}

func TestMonitor_RunScan_SweepForgetsResolvedAlerts(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := notify.NewMockEnqueuer()
	monitor, ledger := newTestMonitor(t, store, queue)
	ctx := context.Background()

	alert := agedAlert(core.SeverityCritical, 10*time.Minute)
	require.NoError(t, store.InsertAlert(ctx, alert))
	require.NoError(t, monitor.RunScan(ctx))
	assert.Equal(t, 1, ledger.Len())

	// Resolve the alert and rescan; the sweep reclaims the ledger entry.
	stored, ok := store.GetAlert(alert.ID)
	require.True(t, ok)
	require.NoError(t, stored.TransitionTo(core.StatusInvestigating, "analyst"))
	require.NoError(t, stored.TransitionTo(core.StatusResolved, "analyst"))
	require.NoError(t, store.UpdateAlert(ctx, stored))

	require.NoError(t, monitor.RunScan(ctx))
	assert.Equal(t, 0, ledger.Len())
	assert.Len(t, queue.IntentsFor(alert.ID), 1, "resolved alert is not re-escalated")
}

func TestMonitor_RunScan_EachAlertEscalatedIndependently(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := notify.NewMockEnqueuer()
	monitor, _ := newTestMonitor(t, store, queue)
	ctx := context.Background()

	first := agedAlert(core.SeverityCritical, 10*time.Minute)
	second := agedAlert(core.SeverityHigh, 20*time.Minute)
	require.NoError(t, store.InsertAlert(ctx, first))
	require.NoError(t, store.InsertAlert(ctx, second))

	require.NoError(t, monitor.RunScan(ctx))

	assert.Len(t, queue.IntentsFor(first.ID), 1)
	assert.Len(t, queue.IntentsFor(second.ID), 1)
	assert.Equal(t, "escalation:high", queue.IntentsFor(second.ID)[0].Reason)
}
