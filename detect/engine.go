package detect

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vigil/core"
	"vigil/metrics"
	"vigil/storage"
)

// Materializer is the single merge path every candidate is serialized
// through. Implemented by alerting.Materializer.
type Materializer interface {
	Materialize(ctx context.Context, cand *core.Candidate) (*core.Alert, error)
}

// Engine runs detection cycles: fetch the window of events, evaluate every
// enabled rule over it, hand candidates to the materializer, and mark the
// previously unprocessed events processed. The engine is cadence-agnostic; a
// scheduler triggers RunCycle.
type Engine struct {
	events       storage.EventRepository
	materializer Materializer
	rules        []Rule
	window       time.Duration
	scorer       Scorer
	logger       *zap.SugaredLogger
}

// NewEngine creates a detection engine over the given rule set
func NewEngine(events storage.EventRepository, materializer Materializer, rules []Rule, window time.Duration, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		events:       events,
		materializer: materializer,
		rules:        rules,
		window:       window,
		scorer:       NopScorer{},
		logger:       logger,
	}
}

// SetScorer replaces the candidate scorer. The default is a no-op.
func (e *Engine) SetScorer(scorer Scorer) {
	if scorer != nil {
		e.scorer = scorer
	}
}

// Rules returns the engine's rule set for runtime enable/disable toggling
func (e *Engine) Rules() []Rule {
	return e.rules
}

// RunCycle executes one detection cycle. A repository error aborts the whole
// cycle without marking anything processed, so the next trigger retries the
// same window; rule evaluation and the merge path are idempotent, making the
// wholesale retry safe.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("detection").Observe(time.Since(start).Seconds())
	}()

	// Rules always see the full window, not just the unprocessed tail, so
	// per-IP counts and sums stay window-wide after earlier cycles consumed
	// part of it: one new failed login on top of six already-processed ones
	// must re-fire brute force with count 7. Dedup keeps the re-evaluation
	// idempotent.
	since := time.Now().UTC().Add(-e.window)
	batch, err := e.events.QueryEvents(ctx, since)
	if err != nil {
		return fmt.Errorf("detection cycle aborted, failed to fetch events: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	for _, rule := range e.rules {
		if !rule.Enabled() {
			continue
		}
		candidates, err := e.evaluateRule(rule, batch)
		if err != nil {
			// Rule-local failure: log and continue with the remaining rules.
			metrics.RuleEvaluationErrors.WithLabelValues(rule.Name()).Inc()
			e.logger.Errorw("Detection rule evaluation failed",
				"rule", rule.Name(),
				"batch_size", len(batch),
				"error", err)
			continue
		}

		for _, cand := range candidates {
			e.scorer.Score(cand)
			if _, err := e.materializer.Materialize(ctx, cand); err != nil {
				return fmt.Errorf("detection cycle aborted, failed to materialize %s candidate: %w", cand.Type, err)
			}
		}
	}

	// Newly fetched events are marked processed regardless of rule outcomes;
	// the processed flag tracks consumption, not the evaluation window.
	fresh := unprocessedIDs(batch)
	if len(fresh) > 0 {
		if err := e.events.MarkProcessed(ctx, fresh); err != nil {
			return fmt.Errorf("detection cycle aborted, failed to mark events processed: %w", err)
		}
		metrics.EventsProcessed.Add(float64(len(fresh)))
	}

	e.logger.Debugw("Detection cycle completed",
		"events", len(batch),
		"new_events", len(fresh),
		"duration", time.Since(start))
	return nil
}

// evaluateRule runs one rule with panic containment, converting a panicking
// rule into an ordinary evaluation error
func (e *Engine) evaluateRule(rule Rule, batch []*core.LogEvent) (candidates []*core.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.Name(), r)
		}
	}()
	return rule.Evaluate(batch)
}

func unprocessedIDs(batch []*core.LogEvent) []string {
	var ids []string
	for _, event := range batch {
		if !event.Processed {
			ids = append(ids, event.ID)
		}
	}
	return ids
}
