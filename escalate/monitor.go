package escalate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vigil/core"
	"vigil/metrics"
	"vigil/notify"
	"vigil/storage"
)

// Tier binds a severity to an acknowledgement deadline and the channels an
// overdue alert is re-raised through
type Tier struct {
	Severity core.AlertSeverity
	Timeout  time.Duration
	Channels []notify.Channel
}

// DefaultTiers returns the standard escalation ladder. Low severity alerts
// are never escalated.
func DefaultTiers() []Tier {
	return []Tier{
		{
			Severity: core.SeverityCritical,
			Timeout:  5 * time.Minute,
			Channels: []notify.Channel{notify.ChannelPagerDuty, notify.ChannelSlack, notify.ChannelEmail},
		},
		{
			Severity: core.SeverityHigh,
			Timeout:  15 * time.Minute,
			Channels: []notify.Channel{notify.ChannelSlack, notify.ChannelEmail},
		},
		{
			Severity: core.SeverityMedium,
			Timeout:  30 * time.Minute,
			Channels: []notify.Channel{notify.ChannelEmail},
		},
	}
}

// sweepLookback bounds the resolved-alert sweep each scan
const sweepLookback = 24 * time.Hour

// Monitor scans for active alerts that nobody acknowledged within their
// tier's timeout and re-raises them through the tier's channels. The ledger
// makes scans idempotent: one escalation per (alert, tier).
type Monitor struct {
	alerts storage.AlertRepository
	queue  notify.Enqueuer
	ledger Ledger
	tiers  []Tier
	logger *zap.SugaredLogger

	now func() time.Time
}

// NewMonitor creates an escalation monitor
func NewMonitor(alerts storage.AlertRepository, queue notify.Enqueuer, ledger Ledger, tiers []Tier, logger *zap.SugaredLogger) *Monitor {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	return &Monitor{
		alerts: alerts,
		queue:  queue,
		ledger: ledger,
		tiers:  tiers,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RunScan executes one escalation scan: re-raise overdue active alerts, then
// sweep ledger entries whose alerts reached a terminal state. A repository
// error aborts the scan; enqueue and ledger errors affect only the alert at
// hand and leave it eligible for the next scan.
func (m *Monitor) RunScan(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("escalation").Observe(time.Since(start).Seconds())
	}()

	active, err := m.alerts.QueryAlerts(ctx, storage.AlertFilter{Status: core.StatusActive})
	if err != nil {
		return fmt.Errorf("escalation scan aborted, failed to fetch active alerts: %w", err)
	}

	now := m.now()
	escalated := 0
	for _, alert := range active {
		tier, ok := m.tierFor(alert.Severity)
		if !ok {
			continue
		}
		if now.Sub(alert.CreatedAt) < tier.Timeout {
			continue
		}
		if m.escalate(ctx, alert, tier) {
			escalated++
		}
	}

	m.sweep(ctx, now)

	if escalated > 0 {
		m.logger.Infow("Escalation scan completed",
			"active", len(active),
			"escalated", escalated,
			"duration", time.Since(start))
	}
	return nil
}

// escalate re-raises one overdue alert through its tier, returning whether a
// new escalation was enqueued
func (m *Monitor) escalate(ctx context.Context, alert *core.Alert, tier Tier) bool {
	tierName := string(tier.Severity)
	notified, err := m.ledger.Notified(ctx, alert.ID, tierName)
	if err != nil {
		m.logger.Errorw("Failed to consult escalation ledger",
			"alert_id", alert.ID,
			"tier", tierName,
			"error", err)
		return false
	}
	if notified {
		return false
	}

	intent := notify.Intent{
		AlertID:   alert.ID,
		Channels:  tier.Channels,
		Reason:    "escalation:" + tierName,
		CreatedAt: m.now(),
	}
	if err := m.queue.Enqueue(ctx, intent); err != nil {
		// Not marked in the ledger, so the next scan retries.
		m.logger.Warnw("Failed to enqueue escalation notification",
			"alert_id", alert.ID,
			"tier", tierName,
			"error", err)
		return false
	}
	if err := m.ledger.MarkNotified(ctx, alert.ID, tierName); err != nil {
		// Worst case the next scan escalates once more; duplicates beat silence.
		m.logger.Warnw("Failed to record escalation in ledger",
			"alert_id", alert.ID,
			"tier", tierName,
			"error", err)
	}

	metrics.EscalationsEnqueued.WithLabelValues(tierName).Inc()
	m.logger.Warnw("Alert escalated",
		"alert_id", alert.ID,
		"severity", alert.Severity,
		"age", m.now().Sub(alert.CreatedAt),
		"channels", tier.Channels)
	return true
}

// sweep drops ledger entries for alerts that recently reached a terminal
// state. Sweep failures are logged only; the ledger is bounded regardless.
func (m *Monitor) sweep(ctx context.Context, now time.Time) {
	for _, status := range []core.AlertStatus{core.StatusResolved, core.StatusFalsePositive} {
		closed, err := m.alerts.QueryAlerts(ctx, storage.AlertFilter{
			Status:       status,
			CreatedAfter: now.Add(-sweepLookback),
		})
		if err != nil {
			m.logger.Warnw("Escalation ledger sweep query failed",
				"status", status,
				"error", err)
			continue
		}
		for _, alert := range closed {
			if err := m.ledger.Forget(ctx, alert.ID); err != nil {
				m.logger.Warnw("Failed to sweep escalation ledger entry",
					"alert_id", alert.ID,
					"error", err)
			}
		}
	}
}

func (m *Monitor) tierFor(severity core.AlertSeverity) (Tier, bool) {
	for _, tier := range m.tiers {
		if tier.Severity == severity {
			return tier, true
		}
	}
	return Tier{}, false
}
