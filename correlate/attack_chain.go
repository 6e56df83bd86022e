package correlate

import (
	"fmt"
	"strings"
	"time"

	"vigil/core"
)

// attackStage is one step in the kill-chain vocabulary
type attackStage struct {
	name     string
	keywords []string
}

// attackStages is the fixed ordered stage vocabulary. Classification is
// first-keyword-match in this order; each stage counts at most once per IP.
var attackStages = []attackStage{
	{"reconnaissance", []string{"scan", "probe", "enumerat", "nmap", "recon"}},
	{"initial_access", []string{"brute force", "injection", "failed password", "login", "authentication"}},
	{"privilege_escalation", []string{"privilege", "sudo", "became root", "admin rights"}},
	{"lateral_movement", []string{"lateral", "remote desktop", "ssh session", "smb", "pivot"}},
	{"data_exfiltration", []string{"exfiltrat", "download", "transfer", "upload", "export"}},
}

// AttackChainRule detects multi-stage attack progressions: a single source
// IP whose combined events and alerts span three or more kill-chain stages
// within the window
type AttackChainRule struct {
	ruleBase
	minStages int
}

// NewAttackChainRule creates an attack chain rule
func NewAttackChainRule(window time.Duration, enabled bool) *AttackChainRule {
	r := &AttackChainRule{minStages: 3}
	r.init("attack_chain", window, enabled)
	return r
}

// Evaluate groups events and alerts by source IP and classifies each item
// into a kill-chain stage
func (r *AttackChainRule) Evaluate(events []*core.LogEvent, alerts []*core.Alert) ([]*core.Candidate, error) {
	type chain struct {
		stages   map[string]struct{}
		logIDs   []string
		assets   map[string]struct{}
		earliest time.Time
	}
	chains := make(map[string]*chain)

	track := func(sourceIP, text string, ts time.Time, logIDs []string, asset string) {
		if sourceIP == "" {
			return
		}
		stage := classifyStage(text)
		if stage == "" {
			return
		}
		c, ok := chains[sourceIP]
		if !ok {
			c = &chain{stages: make(map[string]struct{}), assets: make(map[string]struct{}), earliest: ts}
			chains[sourceIP] = c
		}
		c.stages[stage] = struct{}{}
		c.logIDs = append(c.logIDs, logIDs...)
		if asset != "" {
			c.assets[asset] = struct{}{}
		}
		if ts.Before(c.earliest) {
			c.earliest = ts
		}
	}

	for _, event := range events {
		track(event.SourceIP, event.Message, event.Timestamp, []string{event.ID}, event.Source)
	}
	for _, alert := range alerts {
		track(alert.SourceIP, alert.Title, alert.CreatedAt, alert.RelatedLogIDs, "")
	}

	var candidates []*core.Candidate
	for sourceIP, c := range chains {
		stageCount := len(c.stages)
		if stageCount < r.minStages {
			continue
		}

		confidence := 60 + 10*stageCount
		if confidence > 95 {
			confidence = 95
		}

		candidates = append(candidates, &core.Candidate{
			Title:          "Multi-Stage Attack Chain Detected",
			Description:    fmt.Sprintf("activity from %s spans %d attack stages: %s", sourceIP, stageCount, strings.Join(sortedStages(c.stages), ", ")),
			Type:           core.TypeAttackChain,
			SourceIP:       sourceIP,
			Confidence:     confidence,
			Method:         core.MethodCorrelation,
			RelatedLogIDs:  c.logIDs,
			AffectedAssets: setToSlice(c.assets),
			CorrelationID:  fmt.Sprintf("CHAIN-%d-%s", c.earliest.Unix(), sanitizeKeyPart(sourceIP)),
			Window:         r.Window(),
		})
	}
	return candidates, nil
}

// classifyStage returns the first stage whose keywords match the text, or ""
func classifyStage(text string) string {
	lower := strings.ToLower(text)
	for _, stage := range attackStages {
		for _, keyword := range stage.keywords {
			if strings.Contains(lower, keyword) {
				return stage.name
			}
		}
	}
	return ""
}

// sortedStages returns the matched stages in kill-chain order
func sortedStages(matched map[string]struct{}) []string {
	var out []string
	for _, stage := range attackStages {
		if _, ok := matched[stage.name]; ok {
			out = append(out, stage.name)
		}
	}
	return out
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for item := range set {
		out = append(out, item)
	}
	return out
}
