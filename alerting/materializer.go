// Package alerting converts detection and correlation candidates into
// persisted alerts, merging into an existing open alert with the same dedup
// key instead of duplicating it.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"vigil/core"
	"vigil/metrics"
	"vigil/notify"
	"vigil/storage"
)

// lockStripes is the number of striped mutexes guarding the merge-or-create
// critical section. Candidates with the same dedup key always hash to the
// same stripe.
const lockStripes = 64

// defaultDedupWindow bounds the merge lookup when a candidate carries none
const defaultDedupWindow = time.Hour

// Materializer persists candidates as alerts with merge-or-create semantics.
// All detection and correlation cycles funnel their candidates through a
// single Materializer so the per-key critical section holds across cycles.
type Materializer struct {
	alerts   storage.AlertRepository
	enqueuer notify.Enqueuer
	logger   *zap.SugaredLogger
	locks    [lockStripes]sync.Mutex
}

// NewMaterializer creates a materializer over the given alert repository
func NewMaterializer(alerts storage.AlertRepository, enqueuer notify.Enqueuer, logger *zap.SugaredLogger) *Materializer {
	return &Materializer{
		alerts:   alerts,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// Materialize persists the candidate: merge into an open alert with the same
// dedup key inside the candidate's window, or create a new one. Returns the
// resulting alert.
func (m *Materializer) Materialize(ctx context.Context, cand *core.Candidate) (*core.Alert, error) {
	key := cand.DedupKey()
	stripe := m.stripeFor(key)
	stripe.Lock()
	defer stripe.Unlock()

	alert, err := m.merge(ctx, cand, key)
	if errors.Is(err, storage.ErrConflict) {
		// Lost an optimistic race against another instance. One retry with a
		// fresh read; on repeat failure the next cycle re-detects and merges.
		metrics.DedupConflicts.Inc()
		m.logger.Warnw("Alert merge conflict, retrying with fresh read", "dedup_key", key)
		alert, err = m.merge(ctx, cand, key)
	}
	if err != nil {
		return nil, err
	}

	if alert.Severity == core.SeverityHigh || alert.Severity == core.SeverityCritical {
		m.notifyNew(ctx, alert)
	}
	return alert, nil
}

// merge performs one read-modify-write attempt for the candidate
func (m *Materializer) merge(ctx context.Context, cand *core.Candidate, key string) (*core.Alert, error) {
	window := cand.Window
	if window <= 0 {
		window = defaultDedupWindow
	}
	windowStart := time.Now().UTC().Add(-window)

	existing, err := m.alerts.FindOpenByDedupKey(ctx, key, windowStart)
	switch {
	case err == nil:
		return m.mergeInto(ctx, existing, cand)
	case errors.Is(err, storage.ErrAlertNotFound):
		return m.create(ctx, cand)
	default:
		return nil, fmt.Errorf("dedup lookup failed for key %q: %w", key, err)
	}
}

// mergeInto folds the candidate into an existing open alert
func (m *Materializer) mergeInto(ctx context.Context, alert *core.Alert, cand *core.Candidate) (*core.Alert, error) {
	if cand.Confidence > alert.Confidence {
		alert.Confidence = cand.Confidence
	}
	added := alert.AddRelatedLogs(cand.RelatedLogIDs)
	alert.AddAffectedAssets(cand.AffectedAssets)
	alert.UpdatedAt = time.Now().UTC()
	alert.RecomputeRiskScore()
	alert.AppendTimeline("merged",
		fmt.Sprintf("merged candidate: %d new related events, confidence %d", added, alert.Confidence),
		"system")

	if err := m.alerts.UpdateAlert(ctx, alert); err != nil {
		return nil, err
	}

	metrics.AlertsMerged.WithLabelValues(string(alert.Type)).Inc()
	m.logger.Debugw("Merged candidate into existing alert",
		"alert_id", alert.ID,
		"type", alert.Type,
		"confidence", alert.Confidence,
		"related_events", len(alert.RelatedLogIDs))
	return alert, nil
}

// create persists a brand new alert from the candidate
func (m *Materializer) create(ctx context.Context, cand *core.Candidate) (*core.Alert, error) {
	alert := cand.ToAlert()
	if err := m.alerts.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	metrics.AlertsCreated.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
	m.logger.Infow("Created alert",
		"alert_id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity,
		"source_ip", alert.SourceIP,
		"confidence", alert.Confidence)
	return alert, nil
}

// notifyNew enqueues a fire-and-forget notification for a high or critical
// alert. Enqueue failures are logged, never retried here; the escalation
// monitor is the backstop.
func (m *Materializer) notifyNew(ctx context.Context, alert *core.Alert) {
	intent := notify.Intent{
		AlertID:  alert.ID,
		Channels: channelsForSeverity(alert.Severity),
		Reason:   "new_alert",
	}
	if err := m.enqueuer.Enqueue(ctx, intent); err != nil {
		m.logger.Errorw("Failed to enqueue alert notification",
			"alert_id", alert.ID,
			"severity", alert.Severity,
			"error", err)
	}
}

func channelsForSeverity(severity core.AlertSeverity) []notify.Channel {
	if severity == core.SeverityCritical {
		return []notify.Channel{notify.ChannelPagerDuty, notify.ChannelSlack, notify.ChannelEmail}
	}
	return []notify.Channel{notify.ChannelSlack, notify.ChannelEmail}
}

// stripeFor returns the mutex guarding the given dedup key
func (m *Materializer) stripeFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &m.locks[h.Sum32()%lockStripes]
}
