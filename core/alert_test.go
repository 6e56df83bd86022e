package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertSeverity_Weight(t *testing.T) {
	tests := []struct {
		severity AlertSeverity
		weight   float64
	}{
		{SeverityLow, 2},
		{SeverityMedium, 5},
		{SeverityHigh, 8},
		{SeverityCritical, 10},
		{AlertSeverity("bogus"), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.weight, tt.severity.Weight(), "severity %s", tt.severity)
	}
}

func TestAlert_RecomputeRiskScore(t *testing.T) {
	tests := []struct {
		name       string
		severity   AlertSeverity
		confidence int
		expected   float64
	}{
		{"low full confidence", SeverityLow, 100, 2.0},
		{"medium mid confidence", SeverityMedium, 50, 2.5},
		{"high 90 confidence", SeverityHigh, 90, 7.2},
		{"critical capped at 10", SeverityCritical, 100, 10.0},
		{"critical 85 confidence", SeverityCritical, 85, 8.5},
		{"zero confidence", SeverityCritical, 0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := NewAlert()
			alert.Severity = tt.severity
			alert.Confidence = tt.confidence
			alert.RecomputeRiskScore()
			assert.InDelta(t, tt.expected, alert.RiskScore, 0.0001)
		})
	}
}

func TestAlert_RiskScoreHeldAcrossMutations(t *testing.T) {
	alert := NewAlert()
	alert.Severity = SeverityHigh
	alert.Confidence = 70
	alert.RecomputeRiskScore()
	assert.InDelta(t, 5.6, alert.RiskScore, 0.0001)

	// Confidence raised on merge
	alert.Confidence = 95
	alert.RecomputeRiskScore()
	assert.InDelta(t, 7.6, alert.RiskScore, 0.0001)

	// Status transitions recompute as well
	require.NoError(t, alert.TransitionTo(StatusInvestigating, "analyst"))
	assert.InDelta(t, 7.6, alert.RiskScore, 0.0001)
}

func TestAlert_DedupKey(t *testing.T) {
	detection := NewAlert()
	detection.Type = TypeBruteForce
	detection.SourceIP = "203.0.113.10"
	assert.Equal(t, "brute_force|203.0.113.10", detection.DedupKey())

	correlation := NewAlert()
	correlation.Type = TypeAttackChain
	correlation.CorrelationID = "CHAIN-1700000000-203-0-113-10"
	assert.Equal(t, "CHAIN-1700000000-203-0-113-10", correlation.DedupKey())
}

func TestAlert_AddRelatedLogs(t *testing.T) {
	alert := NewAlert()
	added := alert.AddRelatedLogs([]string{"a", "b", "c"})
	assert.Equal(t, 3, added)

	// Union semantics: duplicates ignored
	added = alert.AddRelatedLogs([]string{"b", "c", "d"})
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"a", "b", "c", "d"}, alert.RelatedLogIDs)
}

func TestAlert_AddAffectedAssets(t *testing.T) {
	alert := NewAlert()
	alert.AddAffectedAssets([]string{"web-01", "db-01"})
	alert.AddAffectedAssets([]string{"db-01", "web-02"})
	assert.Equal(t, []string{"web-01", "db-01", "web-02"}, alert.AffectedAssets)
}

func TestCandidate_ToAlert(t *testing.T) {
	cand := &Candidate{
		Title:         "Brute Force Attack Detected",
		Description:   "6 failed login attempts",
		Severity:      SeverityHigh,
		Type:          TypeBruteForce,
		SourceIP:      "203.0.113.10",
		Confidence:    90,
		Method:        MethodSignature,
		RelatedLogIDs: []string{"e1", "e2"},
	}

	alert := cand.ToAlert()
	require.NotEmpty(t, alert.ID)
	assert.Equal(t, StatusActive, alert.Status)
	assert.Equal(t, TypeBruteForce, alert.Type)
	assert.InDelta(t, 7.2, alert.RiskScore, 0.0001)
	assert.Equal(t, []string{"e1", "e2"}, alert.RelatedLogIDs)
	require.Len(t, alert.Timeline, 1)
	assert.Equal(t, "created", alert.Timeline[0].Event)
}
