// Package config loads the engine configuration from a YAML file and
// VIGIL_-prefixed environment variables. Configuration is read once at
// startup; rule toggles flip at runtime through the engines, not here.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageBackend selects the repository implementation
type StorageBackend string

const (
	BackendMemory StorageBackend = "memory"
	BackendMongo  StorageBackend = "mongo"
)

// RuleConfig is the common shape of a toggleable rule
type RuleConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Window  time.Duration `mapstructure:"window"`
}

// TierConfig configures one escalation tier
type TierConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Channels []string      `mapstructure:"channels"`
}

// Config holds all configuration for the Vigil engine
type Config struct {
	Detection struct {
		Interval time.Duration `mapstructure:"interval"`
		Window   time.Duration `mapstructure:"window"`
	} `mapstructure:"detection"`

	Correlation struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"correlation"`

	Escalation struct {
		Interval time.Duration `mapstructure:"interval"`
		Tiers    struct {
			Critical TierConfig `mapstructure:"critical"`
			High     TierConfig `mapstructure:"high"`
			Medium   TierConfig `mapstructure:"medium"`
		} `mapstructure:"tiers"`
		LedgerSize int `mapstructure:"ledger_size"`
	} `mapstructure:"escalation"`

	Rules struct {
		BruteForce struct {
			RuleConfig `mapstructure:",squash"`
			Threshold  int `mapstructure:"threshold"`
		} `mapstructure:"brute_force"`
		Injection RuleConfig `mapstructure:"injection"`
		Anomaly   struct {
			RuleConfig       `mapstructure:",squash"`
			StddevMultiplier float64 `mapstructure:"stddev_multiplier"`
			MinRequests      int     `mapstructure:"min_requests"`
		} `mapstructure:"anomaly"`
		PrivilegeEscalation RuleConfig `mapstructure:"privilege_escalation"`
		Exfiltration        struct {
			RuleConfig     `mapstructure:",squash"`
			ThresholdBytes int64 `mapstructure:"threshold_bytes"`
		} `mapstructure:"exfiltration"`
	} `mapstructure:"rules"`

	CorrelationRules struct {
		AttackChain     RuleConfig `mapstructure:"attack_chain"`
		Coordinated     RuleConfig `mapstructure:"coordinated"`
		LateralMovement RuleConfig `mapstructure:"lateral_movement"`
		DataBreach      struct {
			RuleConfig     `mapstructure:",squash"`
			ThresholdBytes int64 `mapstructure:"threshold_bytes"`
		} `mapstructure:"data_breach"`
	} `mapstructure:"correlation_rules"`

	Storage struct {
		Backend StorageBackend `mapstructure:"backend"`
		Mongo   struct {
			URI      string `mapstructure:"uri"`
			Database string `mapstructure:"database"`
		} `mapstructure:"mongo"`
	} `mapstructure:"storage"`

	Redis struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
		DB      int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Notifications struct {
		QueueSize int `mapstructure:"queue_size"`
	} `mapstructure:"notifications"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("detection.interval", "30s")
	v.SetDefault("detection.window", "1h")
	v.SetDefault("correlation.interval", "60s")

	v.SetDefault("escalation.interval", "60s")
	v.SetDefault("escalation.tiers.critical.timeout", "5m")
	v.SetDefault("escalation.tiers.critical.channels", []string{"pagerduty", "slack", "email"})
	v.SetDefault("escalation.tiers.high.timeout", "15m")
	v.SetDefault("escalation.tiers.high.channels", []string{"slack", "email"})
	v.SetDefault("escalation.tiers.medium.timeout", "30m")
	v.SetDefault("escalation.tiers.medium.channels", []string{"email"})
	v.SetDefault("escalation.ledger_size", 4096)

	v.SetDefault("rules.brute_force.enabled", true)
	v.SetDefault("rules.brute_force.threshold", 5)
	v.SetDefault("rules.brute_force.window", "15m")
	v.SetDefault("rules.injection.enabled", true)
	v.SetDefault("rules.injection.window", "30m")
	v.SetDefault("rules.anomaly.enabled", true)
	v.SetDefault("rules.anomaly.stddev_multiplier", 3.0)
	v.SetDefault("rules.anomaly.min_requests", 50)
	v.SetDefault("rules.anomaly.window", "1h")
	v.SetDefault("rules.privilege_escalation.enabled", true)
	v.SetDefault("rules.privilege_escalation.window", "30m")
	v.SetDefault("rules.exfiltration.enabled", true)
	v.SetDefault("rules.exfiltration.threshold_bytes", 100*1024*1024)
	v.SetDefault("rules.exfiltration.window", "1h")

	v.SetDefault("correlation_rules.attack_chain.enabled", true)
	v.SetDefault("correlation_rules.attack_chain.window", "2h")
	v.SetDefault("correlation_rules.coordinated.enabled", true)
	v.SetDefault("correlation_rules.coordinated.window", "1h")
	v.SetDefault("correlation_rules.lateral_movement.enabled", true)
	v.SetDefault("correlation_rules.lateral_movement.window", "1h")
	v.SetDefault("correlation_rules.data_breach.enabled", true)
	v.SetDefault("correlation_rules.data_breach.threshold_bytes", 50*1024*1024)
	v.SetDefault("correlation_rules.data_breach.window", "1h")

	v.SetDefault("storage.backend", string(BackendMemory))
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "vigil")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("notifications.queue_size", 256)
	v.SetDefault("log.level", "info")
}

// LoadConfig loads configuration from file and environment variables.
// A missing config file is not an error; defaults and env vars apply.
func LoadConfig() (*Config, error) {
	return loadConfig("")
}

// LoadConfigFile loads configuration from an explicit file path
func LoadConfigFile(path string) (*Config, error) {
	return loadConfig(path)
}

func loadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func validateConfig(c *Config) error {
	if c.Detection.Interval <= 0 {
		return fmt.Errorf("detection.interval must be positive, got %s", c.Detection.Interval)
	}
	if c.Detection.Window <= 0 {
		return fmt.Errorf("detection.window must be positive, got %s", c.Detection.Window)
	}
	if c.Correlation.Interval <= 0 {
		return fmt.Errorf("correlation.interval must be positive, got %s", c.Correlation.Interval)
	}
	if c.Escalation.Interval <= 0 {
		return fmt.Errorf("escalation.interval must be positive, got %s", c.Escalation.Interval)
	}
	if c.Rules.BruteForce.Threshold <= 0 {
		return fmt.Errorf("rules.brute_force.threshold must be positive, got %d", c.Rules.BruteForce.Threshold)
	}
	if c.Rules.Anomaly.StddevMultiplier <= 0 {
		return fmt.Errorf("rules.anomaly.stddev_multiplier must be positive, got %g", c.Rules.Anomaly.StddevMultiplier)
	}
	if c.Rules.Exfiltration.ThresholdBytes <= 0 {
		return fmt.Errorf("rules.exfiltration.threshold_bytes must be positive, got %d", c.Rules.Exfiltration.ThresholdBytes)
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendMongo:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendMemory, BackendMongo, c.Storage.Backend)
	}
	if c.Storage.Backend == BackendMongo && c.Storage.Mongo.URI == "" {
		return fmt.Errorf("storage.mongo.uri is required when storage.backend is %q", BackendMongo)
	}
	return nil
}
