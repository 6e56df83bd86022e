package detect

import (
	"fmt"
	"time"

	"vigil/core"
)

// exfiltrationConfidence is a fixed calibration for volume-based hits
const exfiltrationConfidence = 70

// DefaultExfiltrationThreshold is the cumulative outbound volume per source
// IP that triggers a data exfiltration finding.
const DefaultExfiltrationThreshold = 100 * 1024 * 1024 // 100MB

// DataExfiltrationRule flags source IPs whose cumulative transferred bytes
// (the size detail on each event) exceed a configurable threshold
type DataExfiltrationRule struct {
	ruleBase
	thresholdBytes int64
}

// NewDataExfiltrationRule creates a data exfiltration rule with the given
// byte threshold
func NewDataExfiltrationRule(thresholdBytes int64, window time.Duration, enabled bool) *DataExfiltrationRule {
	if thresholdBytes <= 0 {
		thresholdBytes = DefaultExfiltrationThreshold
	}
	r := &DataExfiltrationRule{thresholdBytes: thresholdBytes}
	r.init("data_exfiltration", window, enabled)
	return r
}

// Type returns the attack category
func (r *DataExfiltrationRule) Type() core.AlertType { return core.TypeDataExfiltration }

// Evaluate sums the size detail per source IP and flags totals over the
// threshold
func (r *DataExfiltrationRule) Evaluate(batch []*core.LogEvent) ([]*core.Candidate, error) {
	type transfer struct {
		events []*core.LogEvent
		total  int64
	}
	transfers := make(map[string]*transfer)

	for _, event := range batch {
		if event.SourceIP == "" {
			continue
		}
		size := event.DetailInt64("size")
		if size <= 0 {
			continue
		}
		t, ok := transfers[event.SourceIP]
		if !ok {
			t = &transfer{}
			transfers[event.SourceIP] = t
		}
		t.events = append(t.events, event)
		t.total += size
	}

	var candidates []*core.Candidate
	for sourceIP, t := range transfers {
		if t.total <= r.thresholdBytes {
			continue
		}
		candidates = append(candidates, &core.Candidate{
			Title:         "Possible Data Exfiltration Detected",
			Description:   fmt.Sprintf("%d bytes transferred from %s, exceeding the %d byte threshold", t.total, sourceIP, r.thresholdBytes),
			Severity:      core.SeverityHigh,
			Type:          core.TypeDataExfiltration,
			SourceIP:      sourceIP,
			Confidence:    exfiltrationConfidence,
			Method:        core.MethodAnomaly,
			RelatedLogIDs: eventIDs(t.events),
			Window:        r.Window(),
		})
	}
	return candidates, nil
}
