package bootstrap

import (
	"vigil/config"
	"vigil/correlate"
	"vigil/detect"
	"vigil/escalate"
	"vigil/notify"
)

// detectionRules builds the detection rule set from configuration. Disabled
// rules are still constructed so they can be toggled on at runtime.
func detectionRules(cfg *config.Config) []detect.Rule {
	r := cfg.Rules
	return []detect.Rule{
		detect.NewBruteForceRule(r.BruteForce.Threshold, r.BruteForce.Window, r.BruteForce.Enabled),
		detect.NewInjectionRule(r.Injection.Window, r.Injection.Enabled),
		detect.NewAnomalousVolumeRule(r.Anomaly.StddevMultiplier, r.Anomaly.MinRequests, r.Anomaly.Window, r.Anomaly.Enabled),
		detect.NewPrivilegeEscalationRule(r.PrivilegeEscalation.Window, r.PrivilegeEscalation.Enabled),
		detect.NewDataExfiltrationRule(r.Exfiltration.ThresholdBytes, r.Exfiltration.Window, r.Exfiltration.Enabled),
	}
}

// correlationRules builds the correlation rule set from configuration
func correlationRules(cfg *config.Config) []correlate.Rule {
	r := cfg.CorrelationRules
	return []correlate.Rule{
		correlate.NewAttackChainRule(r.AttackChain.Window, r.AttackChain.Enabled),
		correlate.NewCoordinatedAttackRule(r.Coordinated.Window, r.Coordinated.Enabled),
		correlate.NewLateralMovementRule(r.LateralMovement.Window, r.LateralMovement.Enabled),
		correlate.NewDataBreachRule(r.DataBreach.ThresholdBytes, r.DataBreach.Window, r.DataBreach.Enabled),
	}
}

// escalationTiers builds the escalation ladder from configuration, falling
// back to a tier's default channels when none are configured
func escalationTiers(cfg *config.Config) []escalate.Tier {
	defaults := escalate.DefaultTiers()
	configured := []config.TierConfig{
		cfg.Escalation.Tiers.Critical,
		cfg.Escalation.Tiers.High,
		cfg.Escalation.Tiers.Medium,
	}

	tiers := make([]escalate.Tier, len(defaults))
	for i, tier := range defaults {
		tc := configured[i]
		if tc.Timeout > 0 {
			tier.Timeout = tc.Timeout
		}
		if len(tc.Channels) > 0 {
			tier.Channels = parseChannels(tc.Channels)
		}
		tiers[i] = tier
	}
	return tiers
}

func parseChannels(names []string) []notify.Channel {
	channels := make([]notify.Channel, 0, len(names))
	for _, name := range names {
		channels = append(channels, notify.Channel(name))
	}
	return channels
}
