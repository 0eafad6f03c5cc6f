// Package config loads harness settings from defaults, an optional YAML
// file and PAGECHECK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (PAGECHECK_BASE_URL, ...).
const EnvPrefix = "PAGECHECK"

// Config holds all harness settings.
type Config struct {
	BaseURL  string        `mapstructure:"base_url"`
	Browser  string        `mapstructure:"browser"`
	Headless bool          `mapstructure:"headless"`
	SlowMo   time.Duration `mapstructure:"slow_mo"`

	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout"`
	SettleTimeout     time.Duration `mapstructure:"settle_timeout"`
	AssertTimeout     time.Duration `mapstructure:"assert_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ScenarioTimeout   time.Duration `mapstructure:"scenario_timeout"`

	Parallel       int    `mapstructure:"parallel"`
	DB             string `mapstructure:"db"`
	ScreenshotsDir string `mapstructure:"screenshots_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:3000")
	v.SetDefault("browser", "chromium")
	v.SetDefault("headless", true)
	v.SetDefault("slow_mo", 0)
	v.SetDefault("navigation_timeout", 30*time.Second)
	v.SetDefault("action_timeout", 5*time.Second)
	v.SetDefault("settle_timeout", 500*time.Millisecond)
	v.SetDefault("assert_timeout", 5*time.Second)
	v.SetDefault("poll_interval", 100*time.Millisecond)
	v.SetDefault("scenario_timeout", 60*time.Second)
	v.SetDefault("parallel", 1)
	v.SetDefault("db", "")
	v.SetDefault("screenshots_dir", "")
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults alone always unmarshal.
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads configuration. If path is empty, pagecheck.yaml in the working
// directory is used when present. An explicit path that does not exist is
// an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pagecheck")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Browser) {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("invalid browser %q: must be chromium, firefox or webkit", c.Browser)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	for name, d := range map[string]time.Duration{
		"navigation_timeout": c.NavigationTimeout,
		"action_timeout":     c.ActionTimeout,
		"assert_timeout":     c.AssertTimeout,
		"scenario_timeout":   c.ScenarioTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.SettleTimeout < 0 {
		return fmt.Errorf("settle_timeout must not be negative")
	}
	return nil
}
