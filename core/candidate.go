package core

import "time"

// Candidate is the transient output of a detection or correlation rule:
// a finding that has not yet been deduplicated against existing alerts.
// Candidates are computation artifacts, never persisted directly.
type Candidate struct {
	Title          string
	Description    string
	Severity       AlertSeverity
	Type           AlertType
	SourceIP       string
	Confidence     int
	Method         DetectionMethod
	RelatedLogIDs  []string
	AffectedAssets []string

	// CorrelationID is set only for cross-signal candidates; when present
	// it replaces (Type, SourceIP) as the dedup key.
	CorrelationID string

	// Window bounds the dedup lookup: only open alerts created within
	// now-Window are merge targets.
	Window time.Duration
}

// DedupKey returns the key governing merge-vs-create for this candidate
func (c *Candidate) DedupKey() string {
	if c.CorrelationID != "" {
		return c.CorrelationID
	}
	return string(c.Type) + "|" + c.SourceIP
}

// ToAlert constructs a new Alert from the candidate with a computed risk
// score and a creation timeline entry
func (c *Candidate) ToAlert() *Alert {
	alert := NewAlert()
	alert.Title = c.Title
	alert.Description = c.Description
	alert.Severity = c.Severity
	alert.Type = c.Type
	alert.SourceIP = c.SourceIP
	alert.Confidence = c.Confidence
	alert.Method = c.Method
	alert.CorrelationID = c.CorrelationID
	alert.AddRelatedLogs(c.RelatedLogIDs)
	alert.AddAffectedAssets(c.AffectedAssets)
	alert.RecomputeRiskScore()
	alert.AppendTimeline("created", "alert materialized from "+string(c.Method)+" candidate", "system")
	return alert
}
