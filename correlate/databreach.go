package correlate

import (
	"fmt"
	"time"

	"vigil/core"
)

// dataMovementKeywords marks events describing data leaving a system
var dataMovementKeywords = []string{
	"database",
	"file",
	"download",
	"export",
	"backup",
}

// DefaultBreachVolumeThreshold is the byte volume that, together with the
// event-count floor, upgrades a breach candidate's confidence.
const DefaultBreachVolumeThreshold = 50 * 1024 * 1024

// DataBreachRule detects sustained data movement from a single source IP:
// either a large total volume or a repeated pattern of movement events
type DataBreachRule struct {
	ruleBase
	volumeThreshold int64
	minEvents       int
}

// NewDataBreachRule creates a data breach rule
func NewDataBreachRule(volumeThreshold int64, window time.Duration, enabled bool) *DataBreachRule {
	if volumeThreshold <= 0 {
		volumeThreshold = DefaultBreachVolumeThreshold
	}
	r := &DataBreachRule{
		volumeThreshold: volumeThreshold,
		minEvents:       5,
	}
	r.init("data_breach", window, enabled)
	return r
}

// Evaluate sums data-movement volume and event counts per source IP. A
// candidate fires on either signal; confidence is higher when both hold.
func (r *DataBreachRule) Evaluate(events []*core.LogEvent, alerts []*core.Alert) ([]*core.Candidate, error) {
	type movement struct {
		totalBytes int64
		logIDs     []string
		assets     map[string]struct{}
		earliest   time.Time
	}
	movements := make(map[string]*movement)

	for _, event := range events {
		if event.SourceIP == "" {
			continue
		}
		if !messageContainsAny(event.Message, dataMovementKeywords) {
			continue
		}
		m, ok := movements[event.SourceIP]
		if !ok {
			m = &movement{assets: make(map[string]struct{}), earliest: event.Timestamp}
			movements[event.SourceIP] = m
		}
		m.totalBytes += event.DetailInt64("size")
		m.logIDs = append(m.logIDs, event.ID)
		if event.Source != "" {
			m.assets[event.Source] = struct{}{}
		}
		if event.Timestamp.Before(m.earliest) {
			m.earliest = event.Timestamp
		}
	}

	var candidates []*core.Candidate
	for sourceIP, m := range movements {
		overVolume := m.totalBytes > r.volumeThreshold
		overCount := len(m.logIDs) >= r.minEvents
		if !overVolume && !overCount {
			continue
		}

		confidence := 60
		if overVolume && overCount {
			confidence = 80
		}

		candidates = append(candidates, &core.Candidate{
			Title:          "Potential Data Breach Detected",
			Description:    fmt.Sprintf("%d data movement events totaling %d bytes from %s", len(m.logIDs), m.totalBytes, sourceIP),
			Type:           core.TypeDataBreach,
			SourceIP:       sourceIP,
			Confidence:     confidence,
			Method:         core.MethodCorrelation,
			RelatedLogIDs:  m.logIDs,
			AffectedAssets: setToSlice(m.assets),
			CorrelationID:  fmt.Sprintf("BREACH-%d-%s", m.earliest.Unix(), sanitizeKeyPart(sourceIP)),
			Window:         r.Window(),
		})
	}
	return candidates, nil
}
