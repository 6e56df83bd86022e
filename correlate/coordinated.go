package correlate

import (
	"fmt"
	"time"

	"vigil/core"
)

// coordinatedBucket is the time quantum for grouping alerts when looking
// for synchronized activity
const coordinatedBucket = 5 * time.Minute

// CoordinatedAttackRule detects the same attack type launched from three or
// more distinct source IPs within the same five-minute bucket
type CoordinatedAttackRule struct {
	ruleBase
	minSources int
}

// NewCoordinatedAttackRule creates a coordinated attack rule
func NewCoordinatedAttackRule(window time.Duration, enabled bool) *CoordinatedAttackRule {
	r := &CoordinatedAttackRule{minSources: 3}
	r.init("coordinated_attack", window, enabled)
	return r
}

// Evaluate buckets alerts by (type, 5-minute bucket) and flags buckets with
// enough distinct source IPs
func (r *CoordinatedAttackRule) Evaluate(events []*core.LogEvent, alerts []*core.Alert) ([]*core.Candidate, error) {
	type bucket struct {
		sourceIPs map[string]struct{}
		logIDs    []string
		assets    map[string]struct{}
	}
	type bucketKey struct {
		alertType core.AlertType
		slot      int64
	}
	buckets := make(map[bucketKey]*bucket)

	for _, alert := range alerts {
		if alert.SourceIP == "" {
			continue
		}
		// Composite alerts are excluded so a coordinated finding never
		// feeds back into itself on the next cycle.
		if alert.Method == core.MethodCorrelation {
			continue
		}
		key := bucketKey{alert.Type, alert.CreatedAt.Truncate(coordinatedBucket).Unix()}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{sourceIPs: make(map[string]struct{}), assets: make(map[string]struct{})}
			buckets[key] = b
		}
		b.sourceIPs[alert.SourceIP] = struct{}{}
		b.logIDs = append(b.logIDs, alert.RelatedLogIDs...)
		for _, asset := range alert.AffectedAssets {
			b.assets[asset] = struct{}{}
		}
	}

	var candidates []*core.Candidate
	for key, b := range buckets {
		ipCount := len(b.sourceIPs)
		if ipCount < r.minSources {
			continue
		}

		confidence := 50 + 10*ipCount
		if confidence > 90 {
			confidence = 90
		}

		candidates = append(candidates, &core.Candidate{
			Title:          "Coordinated Attack Detected",
			Description:    fmt.Sprintf("%s alerts from %d distinct source IPs within a %s interval", key.alertType, ipCount, coordinatedBucket),
			Type:           core.TypeCoordinatedAttack,
			Confidence:     confidence,
			Method:         core.MethodCorrelation,
			RelatedLogIDs:  b.logIDs,
			AffectedAssets: setToSlice(b.assets),
			CorrelationID:  fmt.Sprintf("COORD-%s-%d", key.alertType, key.slot),
			Window:         r.Window(),
		})
	}
	return candidates, nil
}
