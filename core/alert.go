package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AlertSeverity represents the severity of an alert
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// IsValid checks if the severity is valid
func (s AlertSeverity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Weight returns the risk weight used in the risk score computation
func (s AlertSeverity) Weight() float64 {
	switch s {
	case SeverityLow:
		return 2
	case SeverityMedium:
		return 5
	case SeverityHigh:
		return 8
	case SeverityCritical:
		return 10
	default:
		return 0
	}
}

// AlertType is the attack-category classification of an alert
type AlertType string

const (
	TypeBruteForce          AlertType = "brute_force"
	TypeInjection           AlertType = "injection"
	TypeAnomalousTraffic    AlertType = "anomalous_traffic"
	TypePrivilegeEscalation AlertType = "privilege_escalation"
	TypeDataExfiltration    AlertType = "data_exfiltration"
	TypeAttackChain         AlertType = "attack_chain"
	TypeCoordinatedAttack   AlertType = "coordinated_attack"
	TypeLateralMovement     AlertType = "lateral_movement"
	TypeDataBreach          AlertType = "data_breach"
)

// AlertStatus represents the lifecycle state of an alert
type AlertStatus string

const (
	// StatusActive indicates a newly materialized, unhandled alert
	StatusActive AlertStatus = "active"
	// StatusInvestigating indicates an analyst has picked up the alert
	StatusInvestigating AlertStatus = "investigating"
	// StatusResolved indicates the alert was confirmed and handled
	StatusResolved AlertStatus = "resolved"
	// StatusFalsePositive indicates the alert was dismissed as benign
	StatusFalsePositive AlertStatus = "false_positive"
)

// String returns the string representation
func (s AlertStatus) String() string {
	return string(s)
}

// IsValid checks if the status is valid
func (s AlertStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusInvestigating, StatusResolved, StatusFalsePositive:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the alert still participates in deduplication.
// Resolved and false-positive alerts never absorb new candidates.
func (s AlertStatus) IsOpen() bool {
	return s == StatusActive || s == StatusInvestigating
}

// DetectionMethod records how an alert was produced
type DetectionMethod string

const (
	MethodSignature   DetectionMethod = "signature"
	MethodAnomaly     DetectionMethod = "anomaly"
	MethodCorrelation DetectionMethod = "correlation"
)

// TimelineEntry is a single entry in an alert's audit timeline
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Event     string    `json:"event" bson:"event"`
	Detail    string    `json:"detail,omitempty" bson:"detail,omitempty"`
	Actor     string    `json:"actor,omitempty" bson:"actor,omitempty"`
}

// Alert is a materialized security finding derived from one or more log events
type Alert struct {
	ID             string          `json:"id" bson:"_id"`
	Title          string          `json:"title" bson:"title"`
	Description    string          `json:"description" bson:"description"`
	Severity       AlertSeverity   `json:"severity" bson:"severity"`
	Type           AlertType       `json:"type" bson:"type"`
	Status         AlertStatus     `json:"status" bson:"status"`
	SourceIP       string          `json:"source_ip,omitempty" bson:"source_ip,omitempty"`
	AffectedAssets []string        `json:"affected_assets,omitempty" bson:"affected_assets,omitempty"`
	Confidence     int             `json:"confidence" bson:"confidence"` // 0-100
	RiskScore      float64         `json:"risk_score" bson:"risk_score"` // derived, 0-10
	RelatedLogIDs  []string        `json:"related_log_ids,omitempty" bson:"related_log_ids,omitempty"`
	CorrelationID  string          `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Method         DetectionMethod `json:"detection_method" bson:"detection_method"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" bson:"updated_at"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
	ResolvedBy     string          `json:"resolved_by,omitempty" bson:"resolved_by,omitempty"`
	Timeline       []TimelineEntry `json:"timeline,omitempty" bson:"timeline,omitempty"`

	// Version supports optimistic concurrency on the merge path.
	// Incremented by the repository on every successful update.
	Version int64 `json:"version" bson:"version"`
}

// NewAlert creates a new active Alert with a generated UUID and timestamps
func NewAlert() *Alert {
	now := time.Now().UTC()
	return &Alert{
		ID:        uuid.New().String(),
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DedupKey returns the key that governs merge-vs-create for this alert.
// Correlation alerts dedup on their correlation ID, detection alerts on
// (type, source IP).
func (a *Alert) DedupKey() string {
	if a.CorrelationID != "" {
		return a.CorrelationID
	}
	return string(a.Type) + "|" + a.SourceIP
}

// SplitDedupKey splits a detection dedup key into its (type, sourceIP)
// parts. Correlation IDs carry no separator and report ok=false.
func SplitDedupKey(key string) (alertType, sourceIP string, ok bool) {
	idx := strings.IndexByte(key, '|')
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

// RecomputeRiskScore recalculates the derived risk score from severity and
// confidence. Must be called after every mutation of either field.
func (a *Alert) RecomputeRiskScore() {
	score := a.Severity.Weight() * float64(a.Confidence) / 100
	if score > 10 {
		score = 10
	}
	a.RiskScore = score
}

// AppendTimeline appends an audit entry to the alert timeline
func (a *Alert) AppendTimeline(event, detail, actor string) {
	a.Timeline = append(a.Timeline, TimelineEntry{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Detail:    detail,
		Actor:     actor,
	})
}

// AddRelatedLogs unions the given log IDs into RelatedLogIDs, preserving
// insertion order. Returns the number of IDs actually added.
func (a *Alert) AddRelatedLogs(ids []string) int {
	seen := make(map[string]struct{}, len(a.RelatedLogIDs))
	for _, id := range a.RelatedLogIDs {
		seen[id] = struct{}{}
	}
	added := 0
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		a.RelatedLogIDs = append(a.RelatedLogIDs, id)
		added++
	}
	return added
}

// AddAffectedAssets unions the given assets into AffectedAssets
func (a *Alert) AddAffectedAssets(assets []string) {
	seen := make(map[string]struct{}, len(a.AffectedAssets))
	for _, asset := range a.AffectedAssets {
		seen[asset] = struct{}{}
	}
	for _, asset := range assets {
		if _, ok := seen[asset]; ok {
			continue
		}
		seen[asset] = struct{}{}
		a.AffectedAssets = append(a.AffectedAssets, asset)
	}
}
