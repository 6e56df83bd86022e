package detect

import (
	"fmt"
	"time"

	"vigil/core"
)

// AnomalousVolumeRule flags source IPs whose request volume exceeds the
// population mean by a configurable number of standard deviations and an
// absolute floor. Pure statistical thresholding; the ML scoring hook stays
// a stub behind the Scorer interface.
type AnomalousVolumeRule struct {
	ruleBase
	multiplier  float64
	minRequests int
}

// NewAnomalousVolumeRule creates an anomalous volume rule. multiplier is the
// stddev multiplier k (default 3), minRequests the absolute floor at or
// below which no IP is flagged regardless of spread (default 50).
func NewAnomalousVolumeRule(multiplier float64, minRequests int, window time.Duration, enabled bool) *AnomalousVolumeRule {
	if multiplier <= 0 {
		multiplier = 3
	}
	if minRequests <= 0 {
		minRequests = 50
	}
	r := &AnomalousVolumeRule{
		multiplier:  multiplier,
		minRequests: minRequests,
	}
	r.init("anomalous_volume", window, enabled)
	return r
}

// Type returns the attack category
func (r *AnomalousVolumeRule) Type() core.AlertType { return core.TypeAnomalousTraffic }

// Evaluate counts application events per source IP and flags statistical
// outliers. With fewer than two distinct IPs the spread is zero and nothing
// fires.
func (r *AnomalousVolumeRule) Evaluate(batch []*core.LogEvent) ([]*core.Candidate, error) {
	var appEvents []*core.LogEvent
	for _, event := range batch {
		if event.Category == core.CategoryApplication && event.SourceIP != "" {
			appEvents = append(appEvents, event)
		}
	}

	groups := groupBySourceIP(appEvents)
	if len(groups) < 2 {
		return nil, nil
	}

	counts := make([]float64, 0, len(groups))
	for _, events := range groups {
		counts = append(counts, float64(len(events)))
	}
	threshold := AnomalyThreshold(counts, r.multiplier)

	var candidates []*core.Candidate
	for sourceIP, events := range groups {
		count := float64(len(events))
		// Both bounds are strict: the count must exceed the statistical
		// threshold and exceed the absolute floor.
		if count <= threshold || len(events) <= r.minRequests {
			continue
		}

		// Confidence grows with the relative excess over the threshold
		excess := (count - threshold) / threshold
		confidence := 60 + int(excess*30)
		if confidence > 90 {
			confidence = 90
		}

		candidates = append(candidates, &core.Candidate{
			Title:         "Anomalous Request Volume Detected",
			Description:   fmt.Sprintf("%d requests from %s exceed the anomaly threshold of %.1f", len(events), sourceIP, threshold),
			Severity:      core.SeverityMedium,
			Type:          core.TypeAnomalousTraffic,
			SourceIP:      sourceIP,
			Confidence:    confidence,
			Method:        core.MethodAnomaly,
			RelatedLogIDs: eventIDs(events),
			Window:        r.Window(),
		})
	}
	return candidates, nil
}
