package correlate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vigil/alerting"
	"vigil/core"
	"vigil/notify"
	"vigil/storage"
)

type failingRule struct {
	ruleBase
}

func (r *failingRule) Evaluate([]*core.LogEvent, []*core.Alert) ([]*core.Candidate, error) {
	return nil, errors.New("synthetic rule failure")
}

type panickingRule struct {
	ruleBase
}

func (r *panickingRule) Evaluate([]*core.LogEvent, []*core.Alert) ([]*core.Candidate, error) {
	panic("synthetic rule panic")
}

func newTestEngine(store *storage.MemoryStore, rules []Rule) *Engine {
	mat := alerting.NewMaterializer(store, notify.NewMockEnqueuer(), zap.NewNop().Sugar())
	return NewEngine(store, store, mat, rules, zap.NewNop().Sugar())
}

func defaultRules() []Rule {
	return []Rule{
		NewAttackChainRule(2*time.Hour, true),
		NewCoordinatedAttackRule(time.Hour, true),
		NewLateralMovementRule(time.Hour, true),
		NewDataBreachRule(50*1024*1024, time.Hour, true),
	}
}

func chainEvents(sourceIP string) []*core.LogEvent {
	return []*core.LogEvent{
		securityEvent("Nmap scan detected against perimeter", sourceIP),
		securityEvent("Failed password for admin", sourceIP),
		securityEvent("User became root via sudo", sourceIP),
	}
}

func TestEngine_RunCycle_AttackChainEndToEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := newTestEngine(store, defaultRules())
	ctx := context.Background()

	for _, event := range chainEvents("203.0.113.10") {
		store.AddEvent(event)
	}
	require.NoError(t, engine.RunCycle(ctx))

	alerts, err := store.QueryAlerts(ctx, storage.AlertFilter{Status: core.StatusActive})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, core.TypeAttackChain, alert.Type)
	assert.Equal(t, core.MethodCorrelation, alert.Method)
	assert.Equal(t, 90, alert.Confidence)
	assert.NotEmpty(t, alert.CorrelationID)
	// One asset (the shared event source is empty, so only stages counted);
	// confidence 90 with <3 assets maps to high.
	assert.Equal(t, core.SeverityHigh, alert.Severity)
}

func TestEngine_RunCycle_RepeatedCyclesDedupOnCorrelationID(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := newTestEngine(store, defaultRules())
	ctx := context.Background()

	for _, event := range chainEvents("203.0.113.10") {
		store.AddEvent(event)
	}
	require.NoError(t, engine.RunCycle(ctx))
	require.NoError(t, engine.RunCycle(ctx), "correlation re-reads the same window")

	alerts, err := store.QueryAlerts(ctx, storage.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 1, "deterministic correlation IDs keep repeated cycles idempotent")
}

func TestEngine_RunCycle_CoordinatedOverDetectionAlerts(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := newTestEngine(store, defaultRules())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		alert := detectionAlert(core.TypeBruteForce, fmt.Sprintf("203.0.113.%d", 10+i))
		alert.CreatedAt = time.Now().UTC().Truncate(coordinatedBucket)
		require.NoError(t, store.InsertAlert(ctx, alert))
	}
	require.NoError(t, engine.RunCycle(ctx))

	alerts, err := store.QueryAlerts(ctx, storage.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 4, "three detections plus one composite")

	var composite *core.Alert
	for _, alert := range alerts {
		if alert.Type == core.TypeCoordinatedAttack {
			composite = alert
		}
	}
	require.NotNil(t, composite)
	assert.Equal(t, 80, composite.Confidence)
}

func TestEngine_RunCycle_SeverityMappedFromConfidenceAndAssets(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := newTestEngine(store, defaultRules())
	ctx := context.Background()

	// Three systems and confidence 85 put lateral movement at critical.
	for i := 0; i < 3; i++ {
		event := securityEvent("SSH session opened", "10.0.0.5")
		event.Details["user"] = "svc-deploy"
		event.Details["target_system"] = fmt.Sprintf("host-%d", i)
		store.AddEvent(event)
	}
	require.NoError(t, engine.RunCycle(ctx))

	alerts, err := store.QueryAlerts(ctx, storage.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, core.SeverityCritical, alerts[0].Severity, "confidence 85 with 3 assets")
	assert.InDelta(t, 8.5, alerts[0].RiskScore, 0.001, "10*85/100")
}

func TestEngine_RunCycle_RuleErrorDoesNotAbortCycle(t *testing.T) {
	store := storage.NewMemoryStore()
	failing := &failingRule{}
	failing.init("failing", time.Hour, true)
	engine := newTestEngine(store, append([]Rule{failing}, defaultRules()...))
	ctx := context.Background()

	for _, event := range chainEvents("203.0.113.10") {
		store.AddEvent(event)
	}
	require.NoError(t, engine.RunCycle(ctx))

	alerts, err := store.QueryAlerts(ctx, storage.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestEngine_RunCycle_RulePanicContained(t *testing.T) {
	store := storage.NewMemoryStore()
	panicking := &panickingRule{}
	panicking.init("panicking", time.Hour, true)
	engine := newTestEngine(store, append([]Rule{panicking}, defaultRules()...))
	ctx := context.Background()

	for _, event := range chainEvents("203.0.113.10") {
		store.AddEvent(event)
	}
	require.NoError(t, engine.RunCycle(ctx))

	alerts, err := store.QueryAlerts(ctx, storage.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestEngine_RunCycle_AllRulesDisabledIsNoop(t *testing.T) {
	store := storage.NewMemoryStore()
	rules := defaultRules()
	for _, rule := range rules {
		rule.SetEnabled(false)
	}
	engine := newTestEngine(store, rules)

	for _, event := range chainEvents("203.0.113.10") {
		store.AddEvent(event)
	}
	require.NoError(t, engine.RunCycle(context.Background()))

	alerts, err := store.QueryAlerts(context.Background(), storage.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEngine_RunCycle_ProcessedEventsStillCorrelate(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := newTestEngine(store, defaultRules())
	ctx := context.Background()

	events := chainEvents("203.0.113.10")
	var ids []string
	for _, event := range events {
		store.AddEvent(event)
		ids = append(ids, event.ID)
	}
	require.NoError(t, store.MarkProcessed(ctx, ids))

	require.NoError(t, engine.RunCycle(ctx))

	alerts, err := store.QueryAlerts(ctx, storage.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 1, "correlation reads all events, not just unprocessed ones")
}
