package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the ledger service
type Config struct {
	// Server Configuration
	HTTPPort        string        `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Logging
	LogLevel string `mapstructure:"log_level"`

	// Chain simulation
	ConfirmMinDelay time.Duration `mapstructure:"confirm_min_delay"`
	ConfirmMaxDelay time.Duration `mapstructure:"confirm_max_delay"`
	FailureRate     float64       `mapstructure:"failure_rate"`

	// Ledger
	SeedParticipants  bool `mapstructure:"seed_participants"`
	RequiredApprovals int  `mapstructure:"required_approvals"`
}

// EnvPrefix prefixes every environment override, e.g. LEDGER_HTTP_PORT
const EnvPrefix = "LEDGER"

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", "5000")
	v.SetDefault("shutdown_timeout", 15*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("confirm_min_delay", 3*time.Second)
	v.SetDefault("confirm_max_delay", 5*time.Second)
	v.SetDefault("failure_rate", 0.0)
	v.SetDefault("seed_participants", true)
	v.SetDefault("required_approvals", 2)
}

// LoadConfig loads configuration from defaults, an optional config file and
// environment variables, in increasing order of precedence.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http_port is required")
	}
	if c.ConfirmMinDelay < 0 {
		return fmt.Errorf("confirm_min_delay must not be negative")
	}
	if c.ConfirmMaxDelay < c.ConfirmMinDelay {
		return fmt.Errorf("confirm_max_delay (%s) is below confirm_min_delay (%s)", c.ConfirmMaxDelay, c.ConfirmMinDelay)
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("failure_rate must be between 0 and 1, got %v", c.FailureRate)
	}
	if c.RequiredApprovals < 1 {
		return fmt.Errorf("required_approvals must be at least 1")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}
