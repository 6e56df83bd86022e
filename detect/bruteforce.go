package detect

import (
	"fmt"
	"strings"
	"time"

	"vigil/core"
)

// failureIndicators mark an authentication or access failure in an event
// message. Matched case-insensitively.
var failureIndicators = []string{
	"failed",
	"failure",
	"invalid",
	"unauthorized",
	"denied",
	"incorrect password",
}

// BruteForceRule flags source IPs with repeated failed access attempts.
// Confidence is 60+5 per attempt, capped at 95.
type BruteForceRule struct {
	ruleBase
	threshold int
}

// NewBruteForceRule creates a brute force rule firing at the given attempt
// threshold within the window
func NewBruteForceRule(threshold int, window time.Duration, enabled bool) *BruteForceRule {
	if threshold <= 0 {
		threshold = 5
	}
	r := &BruteForceRule{threshold: threshold}
	r.init("brute_force", window, enabled)
	return r
}

// Type returns the attack category
func (r *BruteForceRule) Type() core.AlertType { return core.TypeBruteForce }

// Evaluate groups failed security events by source IP and flags groups that
// reach the attempt threshold
func (r *BruteForceRule) Evaluate(batch []*core.LogEvent) ([]*core.Candidate, error) {
	var failures []*core.LogEvent
	for _, event := range batch {
		if event.Category != core.CategorySecurity || event.SourceIP == "" {
			continue
		}
		if containsAny(event.Message, failureIndicators) {
			failures = append(failures, event)
		}
	}

	var candidates []*core.Candidate
	for sourceIP, events := range groupBySourceIP(failures) {
		count := len(events)
		if count < r.threshold {
			continue
		}

		confidence := 60 + 5*count
		if confidence > 95 {
			confidence = 95
		}

		candidates = append(candidates, &core.Candidate{
			Title:         "Brute Force Attack Detected",
			Description:   fmt.Sprintf("%d failed authentication attempts from %s within the detection window", count, sourceIP),
			Severity:      core.SeverityHigh,
			Type:          core.TypeBruteForce,
			SourceIP:      sourceIP,
			Confidence:    confidence,
			Method:        core.MethodSignature,
			RelatedLogIDs: eventIDs(events),
			Window:        r.Window(),
		})
	}
	return candidates, nil
}

// containsAny reports whether the message contains any of the given
// indicators, case-insensitively
func containsAny(message string, indicators []string) bool {
	lower := strings.ToLower(message)
	for _, indicator := range indicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
