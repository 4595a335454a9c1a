package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Tool describes one external tool command the bridge may spawn.
type Tool struct {
	Command     string            `mapstructure:"command"`
	Args        []string          `mapstructure:"args"`
	Env         map[string]string `mapstructure:"env"`
	Description string            `mapstructure:"description"`
	RouteClass  string            `mapstructure:"route_class"`
}

type AuthConfig struct {
	// SharedSecret signs service-caller request bodies. Empty means signed
	// requests are rejected as server_not_configured.
	SharedSecret string `mapstructure:"shared_secret"`
	// APIKeys maps bearer tokens to caller ids for end-user callers.
	APIKeys map[string]string `mapstructure:"api_keys"`
	// VerifyURL, when set, is consulted for bearer tokens not found in
	// APIKeys (external session-token validation).
	VerifyURL     string        `mapstructure:"verify_url"`
	VerifyTimeout time.Duration `mapstructure:"verify_timeout"`
}

type RateLimitConfig struct {
	GeneralLimit  int           `mapstructure:"general_limit"`
	GeneralWindow time.Duration `mapstructure:"general_window"`
	OracleLimit   int           `mapstructure:"oracle_limit"`
	OracleWindow  time.Duration `mapstructure:"oracle_window"`
	HealthLimit   int           `mapstructure:"health_limit"`
	HealthWindow  time.Duration `mapstructure:"health_window"`
}

type BridgeConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes"`
	MaxConcurrent  int64         `mapstructure:"max_concurrent"`
}

type LifecycleConfig struct {
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	ThreadArchiveAge   time.Duration `mapstructure:"thread_archive_age"`
	TelemetryRetention time.Duration `mapstructure:"telemetry_retention"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

type Config struct {
	ListenAddr string          `mapstructure:"listen_addr"`
	LogLevel   string          `mapstructure:"log_level"`
	Auth       AuthConfig      `mapstructure:"auth"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Bridge     BridgeConfig    `mapstructure:"bridge"`
	Lifecycle  LifecycleConfig `mapstructure:"lifecycle"`
	Tools      map[string]Tool `mapstructure:"tools"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8084")
	v.SetDefault("log_level", "info")
	v.SetDefault("auth.verify_timeout", 5*time.Second)
	v.SetDefault("rate_limit.general_limit", 60)
	v.SetDefault("rate_limit.general_window", 10*time.Second)
	v.SetDefault("rate_limit.oracle_limit", 3)
	v.SetDefault("rate_limit.oracle_window", 60*time.Second)
	v.SetDefault("rate_limit.health_limit", 300)
	v.SetDefault("rate_limit.health_window", 10*time.Second)
	v.SetDefault("bridge.timeout", 30*time.Second)
	v.SetDefault("bridge.max_output_bytes", 1<<20)
	v.SetDefault("bridge.max_concurrent", 4)
	v.SetDefault("lifecycle.session_ttl", 30*time.Minute)
	v.SetDefault("lifecycle.thread_archive_age", 24*time.Hour)
	v.SetDefault("lifecycle.telemetry_retention", 7*24*time.Hour)
	v.SetDefault("lifecycle.sweep_interval", 5*time.Minute)
}

// Load reads configuration from the given file (optional), ORACLEGATE_* env
// vars, and built-in defaults, in increasing precedence of env over file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ORACLEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the gateway cannot run with.
func (c *Config) Validate() error {
	if c.Bridge.Timeout <= 0 {
		return fmt.Errorf("bridge.timeout must be positive")
	}
	if c.Bridge.MaxOutputBytes <= 0 {
		return fmt.Errorf("bridge.max_output_bytes must be positive")
	}
	if c.RateLimit.GeneralLimit <= 0 || c.RateLimit.OracleLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	for name, tool := range c.Tools {
		if tool.Command == "" {
			return fmt.Errorf("tool %q has no command", name)
		}
	}
	return nil
}
