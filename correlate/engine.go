package correlate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vigil/core"
	"vigil/metrics"
	"vigil/storage"
)

// Materializer is the single merge path every composite candidate is
// serialized through. Implemented by alerting.Materializer.
type Materializer interface {
	Materialize(ctx context.Context, cand *core.Candidate) (*core.Alert, error)
}

// Engine runs correlation cycles: fetch the recent window of events and
// alerts, evaluate every enabled rule over both, map composite confidence to
// severity, and hand candidates to the materializer. Unlike detection,
// correlation never consumes events; the same window is re-examined each
// cycle and dedup keeps the output stable.
type Engine struct {
	events       storage.EventRepository
	alerts       storage.AlertRepository
	materializer Materializer
	rules        []Rule
	logger       *zap.SugaredLogger
}

// NewEngine creates a correlation engine over the given rule set
func NewEngine(events storage.EventRepository, alerts storage.AlertRepository, materializer Materializer, rules []Rule, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		events:       events,
		alerts:       alerts,
		materializer: materializer,
		rules:        rules,
		logger:       logger,
	}
}

// Rules returns the engine's rule set for runtime enable/disable toggling
func (e *Engine) Rules() []Rule {
	return e.rules
}

// RunCycle executes one correlation cycle. The fetch window is the widest
// window across enabled rules; each rule sees the full fetch and applies its
// own narrower semantics. A repository error aborts the cycle; rule-local
// failures are logged and skipped.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("correlation").Observe(time.Since(start).Seconds())
	}()

	window := e.maxWindow()
	if window == 0 {
		return nil
	}
	since := time.Now().UTC().Add(-window)

	events, err := e.events.QueryEvents(ctx, since)
	if err != nil {
		return fmt.Errorf("correlation cycle aborted, failed to fetch events: %w", err)
	}
	alerts, err := e.alerts.QueryAlerts(ctx, storage.AlertFilter{CreatedAfter: since})
	if err != nil {
		return fmt.Errorf("correlation cycle aborted, failed to fetch alerts: %w", err)
	}
	if len(events) == 0 && len(alerts) == 0 {
		return nil
	}

	for _, rule := range e.rules {
		if !rule.Enabled() {
			continue
		}
		candidates, err := e.evaluateRule(rule, events, alerts)
		if err != nil {
			metrics.RuleEvaluationErrors.WithLabelValues(rule.Name()).Inc()
			e.logger.Errorw("Correlation rule evaluation failed",
				"rule", rule.Name(),
				"events", len(events),
				"alerts", len(alerts),
				"error", err)
			continue
		}

		for _, cand := range candidates {
			cand.Severity = MapSeverity(cand.Confidence, len(cand.AffectedAssets))
			if _, err := e.materializer.Materialize(ctx, cand); err != nil {
				return fmt.Errorf("correlation cycle aborted, failed to materialize %s candidate: %w", cand.Type, err)
			}
		}
	}

	e.logger.Debugw("Correlation cycle completed",
		"events", len(events),
		"alerts", len(alerts),
		"duration", time.Since(start))
	return nil
}

// evaluateRule runs one rule with panic containment
func (e *Engine) evaluateRule(rule Rule, events []*core.LogEvent, alerts []*core.Alert) (candidates []*core.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.Name(), r)
		}
	}()
	return rule.Evaluate(events, alerts)
}

func (e *Engine) maxWindow() time.Duration {
	var max time.Duration
	for _, rule := range e.rules {
		if rule.Enabled() && rule.Window() > max {
			max = rule.Window()
		}
	}
	return max
}
