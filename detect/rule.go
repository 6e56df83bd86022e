// Package detect evaluates single-signal detection rules against batches of
// recent log events and turns matches into alert candidates.
package detect

import (
	"sync/atomic"
	"time"

	"vigil/core"
)

// Rule is a single-signal detection rule. The rule set is a closed variant
// collection assembled at startup; Enabled is a runtime field flip, not a
// structural reload.
type Rule interface {
	// Name returns the rule's stable identifier for logging and metrics.
	Name() string

	// Type returns the attack category of alerts this rule produces.
	Type() core.AlertType

	// Window returns the deduplication window for this rule's candidates.
	Window() time.Duration

	// Enabled reports whether the rule participates in detection cycles.
	Enabled() bool

	// SetEnabled toggles the rule in place.
	SetEnabled(enabled bool)

	// Evaluate inspects the batch and returns zero or more candidates.
	// Evaluation is side-effect-free; an error never aborts the cycle.
	Evaluate(batch []*core.LogEvent) ([]*core.Candidate, error)
}

// ruleBase carries the state shared by every rule implementation
type ruleBase struct {
	name    string
	window  time.Duration
	enabled atomic.Bool
}

func (r *ruleBase) init(name string, window time.Duration, enabled bool) {
	r.name = name
	r.window = window
	r.enabled.Store(enabled)
}

func (r *ruleBase) Name() string           { return r.name }
func (r *ruleBase) Window() time.Duration  { return r.window }
func (r *ruleBase) Enabled() bool          { return r.enabled.Load() }
func (r *ruleBase) SetEnabled(enabled bool) { r.enabled.Store(enabled) }

// groupBySourceIP buckets events by their source IP, skipping events
// without one
func groupBySourceIP(batch []*core.LogEvent) map[string][]*core.LogEvent {
	groups := make(map[string][]*core.LogEvent)
	for _, event := range batch {
		if event.SourceIP == "" {
			continue
		}
		groups[event.SourceIP] = append(groups[event.SourceIP], event)
	}
	return groups
}

// eventIDs collects the IDs of the given events
func eventIDs(events []*core.LogEvent) []string {
	ids := make([]string, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}
	return ids
}
