package correlate

import (
	"fmt"
	"time"

	"vigil/core"
)

// LateralMovementRule detects one (user, source IP) pair touching three or
// more distinct target systems within the window
type LateralMovementRule struct {
	ruleBase
	minSystems int
}

// NewLateralMovementRule creates a lateral movement rule
func NewLateralMovementRule(window time.Duration, enabled bool) *LateralMovementRule {
	r := &LateralMovementRule{minSystems: 3}
	r.init("lateral_movement", window, enabled)
	return r
}

// Evaluate groups security events by (user, source IP) and counts distinct
// target systems. The target system is the target_system detail when
// present, otherwise the producing source.
func (r *LateralMovementRule) Evaluate(events []*core.LogEvent, alerts []*core.Alert) ([]*core.Candidate, error) {
	type movement struct {
		systems map[string]struct{}
		logIDs  []string
	}
	type movementKey struct {
		user     string
		sourceIP string
	}
	movements := make(map[movementKey]*movement)

	for _, event := range events {
		if event.Category != core.CategorySecurity || event.SourceIP == "" {
			continue
		}
		user := event.DetailString("user")
		if user == "" {
			continue
		}
		system := event.DetailString("target_system")
		if system == "" {
			system = event.Source
		}
		if system == "" {
			continue
		}

		key := movementKey{user, event.SourceIP}
		m, ok := movements[key]
		if !ok {
			m = &movement{systems: make(map[string]struct{})}
			movements[key] = m
		}
		m.systems[system] = struct{}{}
		m.logIDs = append(m.logIDs, event.ID)
	}

	var candidates []*core.Candidate
	for key, m := range movements {
		systemCount := len(m.systems)
		if systemCount < r.minSystems {
			continue
		}

		confidence := 40 + 15*systemCount
		if confidence > 85 {
			confidence = 85
		}

		candidates = append(candidates, &core.Candidate{
			Title:          "Lateral Movement Detected",
			Description:    fmt.Sprintf("user %q from %s accessed %d distinct systems", key.user, key.sourceIP, systemCount),
			Type:           core.TypeLateralMovement,
			SourceIP:       key.sourceIP,
			Confidence:     confidence,
			Method:         core.MethodCorrelation,
			RelatedLogIDs:  m.logIDs,
			AffectedAssets: setToSlice(m.systems),
			CorrelationID:  fmt.Sprintf("LATERAL-%s-%s", sanitizeKeyPart(key.user), sanitizeKeyPart(key.sourceIP)),
			Window:         r.Window(),
		})
	}
	return candidates, nil
}
