// Package correlate evaluates cross-signal rules over a window of events and
// alerts, producing composite alert candidates for activity that looks
// benign signal-by-signal but malicious in aggregate.
package correlate

import (
	"strings"
	"sync/atomic"
	"time"

	"vigil/core"
)

// Rule is a cross-signal correlation rule evaluated over a window of both
// events and alerts
type Rule interface {
	// Name returns the rule's stable identifier for logging and metrics.
	Name() string

	// Window returns how far back this rule looks.
	Window() time.Duration

	// Enabled reports whether the rule participates in correlation cycles.
	Enabled() bool

	// SetEnabled toggles the rule in place.
	SetEnabled(enabled bool)

	// Evaluate inspects the window and returns zero or more composite
	// candidates, each carrying a deterministic correlation ID.
	Evaluate(events []*core.LogEvent, alerts []*core.Alert) ([]*core.Candidate, error)
}

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

func (r *ruleBase) Name() string            { return r.name }
func (r *ruleBase) Window() time.Duration   { return r.window }
func (r *ruleBase) Enabled() bool           { return r.enabled.Load() }
func (r *ruleBase) SetEnabled(enabled bool) { r.enabled.Store(enabled) }

// MapSeverity maps a composite candidate's confidence and affected-asset
// count onto an alert severity
func MapSeverity(confidence, assetCount int) core.AlertSeverity {
	switch {
	case confidence >= 80 && assetCount >= 3:
		return core.SeverityCritical
	case confidence >= 70 || assetCount >= 2:
		return core.SeverityHigh
	case confidence >= 60:
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}

// sanitizeKeyPart makes an identifier safe for use inside a correlation ID.
// The '|' byte is the detection dedup-key separator; a correlation ID that
// carried one would be misrouted as a (type, source IP) key, so it is
// replaced along with IP punctuation.
func sanitizeKeyPart(part string) string {
	replacer := strings.NewReplacer(".", "-", ":", "-", "|", "-")
	return replacer.Replace(part)
}

// messageContainsAny reports a case-insensitive substring hit
func messageContainsAny(message string, keywords []string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
