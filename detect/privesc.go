package detect

import (
	"fmt"
	"time"

	"vigil/core"
)

// elevatedAccessPatterns indicate privilege changes in system and security
// event messages
var elevatedAccessPatterns = []string{
	"sudo su",
	"became root",
	"privilege escalation",
	"elevation of privilege",
	"added to sudoers",
	"usermod -ag",
	"setuid",
	"admin rights granted",
	"role changed to admin",
}

// privEscConfidence is a fixed calibration for pattern hits
const privEscConfidence = 75

// PrivilegeEscalationRule matches system and security events against a fixed
// elevated-access pattern list
type PrivilegeEscalationRule struct {
	ruleBase
}

// NewPrivilegeEscalationRule creates a privilege escalation rule
func NewPrivilegeEscalationRule(window time.Duration, enabled bool) *PrivilegeEscalationRule {
	r := &PrivilegeEscalationRule{}
	r.init("privilege_escalation", window, enabled)
	return r
}

// Type returns the attack category
func (r *PrivilegeEscalationRule) Type() core.AlertType { return core.TypePrivilegeEscalation }

// Evaluate flags system/security events whose message matches an
// elevated-access pattern, one candidate per source IP
func (r *PrivilegeEscalationRule) Evaluate(batch []*core.LogEvent) ([]*core.Candidate, error) {
	matched := make(map[string][]*core.LogEvent)
	for _, event := range batch {
		if event.Category != core.CategorySystem && event.Category != core.CategorySecurity {
			continue
		}
		if !containsAny(event.Message, elevatedAccessPatterns) {
			continue
		}
		matched[event.SourceIP] = append(matched[event.SourceIP], event)
	}

	var candidates []*core.Candidate
	for sourceIP, events := range matched {
		candidates = append(candidates, &core.Candidate{
			Title:         "Privilege Escalation Detected",
			Description:   fmt.Sprintf("%d elevated-access events observed", len(events)),
			Severity:      core.SeverityHigh,
			Type:          core.TypePrivilegeEscalation,
			SourceIP:      sourceIP,
			Confidence:    privEscConfidence,
			Method:        core.MethodSignature,
			RelatedLogIDs: eventIDs(events),
			Window:        r.Window(),
		})
	}
	return candidates, nil
}
