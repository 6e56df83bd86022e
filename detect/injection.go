package detect

import (
	"fmt"
	"strings"
	"time"

	"vigil/core"
)

// injectionSignatures is the fixed ordered signature list. First hit wins,
// so more specific patterns come first.
var injectionSignatures = []string{
	"union select",
	"' or '1'='1",
	"' or 1=1",
	"drop table",
	"xp_cmdshell",
	"information_schema",
	"; exec",
	"<script",
	"../../",
	"%27%20or%20",
}

// injectionConfidence is a fixed calibration for signature hits
const injectionConfidence = 85

// InjectionRule matches application and database events against known
// injection attack signatures
type InjectionRule struct {
	ruleBase
}

// NewInjectionRule creates an injection signature rule
func NewInjectionRule(window time.Duration, enabled bool) *InjectionRule {
	r := &InjectionRule{}
	r.init("injection", window, enabled)
	return r
}

// Type returns the attack category
func (r *InjectionRule) Type() core.AlertType { return core.TypeInjection }

// Evaluate scans application/database events for signature hits. Events from
// the same source IP fold into one candidate so a scanner probing many
// payloads yields a single finding.
func (r *InjectionRule) Evaluate(batch []*core.LogEvent) ([]*core.Candidate, error) {
	type hit struct {
		events    []*core.LogEvent
		signature string
	}
	hits := make(map[string]*hit)

	for _, event := range batch {
		if event.Category != core.CategoryApplication && event.Category != core.CategoryDatabase {
			continue
		}
		signature := matchSignature(event.Message)
		if signature == "" {
			continue
		}

		key := event.SourceIP
		if h, ok := hits[key]; ok {
			h.events = append(h.events, event)
		} else {
			hits[key] = &hit{events: []*core.LogEvent{event}, signature: signature}
		}
	}

	var candidates []*core.Candidate
	for sourceIP, h := range hits {
		candidates = append(candidates, &core.Candidate{
			Title:         "Injection Attack Signature Detected",
			Description:   fmt.Sprintf("request matched attack signature %q", h.signature),
			Severity:      core.SeverityHigh,
			Type:          core.TypeInjection,
			SourceIP:      sourceIP,
			Confidence:    injectionConfidence,
			Method:        core.MethodSignature,
			RelatedLogIDs: eventIDs(h.events),
			Window:        r.Window(),
		})
	}
	return candidates, nil
}

// matchSignature returns the first matching signature, or "" for no match
func matchSignature(message string) string {
	lower := strings.ToLower(message)
	for _, signature := range injectionSignatures {
		if strings.Contains(lower, signature) {
			return signature
		}
	}
	return ""
}
