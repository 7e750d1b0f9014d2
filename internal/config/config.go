// Package config handles korail-watch configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// searchPathsFunc returns the config file search order. It is a var
// (not a plain function) so tests can override it without racing
// against the real filesystem.
var searchPathsFunc = DefaultSearchPaths

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/korail-watch/config.yaml, /etc/korail-watch/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "korail-watch", "config.yaml"))
	}

	paths = append(paths, "/etc/korail-watch/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches searchPathsFunc() and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range searchPathsFunc() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPathsFunc())
}

// Config holds all session-wide tuning and integration settings: the
// configuration surface table in §6 of the specification, plus HTTP
// retry settings (retry_count, retry_delay), the telemetry block, and
// log_level.
type Config struct {
	Polling      PollingConfig      `yaml:"polling"`
	Session      SessionConfig      `yaml:"session"`
	Notification NotificationConfig `yaml:"notification"`
	HTTP         HTTPConfig         `yaml:"http"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	LogLevel     string             `yaml:"log_level"`
}

// PollingConfig controls the adaptive poll scheduler and rate limiter.
type PollingConfig struct {
	BaseIntervalSec   float64 `yaml:"base_interval"`
	MaxIntervalSec    float64 `yaml:"max_interval"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	JitterRangeSec    float64 `yaml:"jitter_range"`
}

// BaseInterval returns the configured base poll interval as a Duration.
func (c PollingConfig) BaseInterval() time.Duration {
	return time.Duration(c.BaseIntervalSec * float64(time.Second))
}

// MaxInterval returns the configured backoff ceiling as a Duration.
func (c PollingConfig) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalSec * float64(time.Second))
}

// JitterRange returns the configured jitter range as a Duration.
func (c PollingConfig) JitterRange() time.Duration {
	return time.Duration(c.JitterRangeSec * float64(time.Second))
}

// SessionConfig bounds resource usage for the lifetime of one run.
type SessionConfig struct {
	MaxDurationSec        float64 `yaml:"max_session_duration"`
	MaxConsecutiveErrors  int     `yaml:"max_consecutive_errors"`
	MaxRequestsPerSession int     `yaml:"max_requests_per_session"`
	GCInterval            int     `yaml:"gc_interval"`
}

// MaxDuration returns the configured session lifetime cap as a Duration.
func (c SessionConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSec * float64(time.Second))
}

// NotificationConfig controls notifier dedup and channel fan-out.
type NotificationConfig struct {
	CooldownSec float64  `yaml:"notification_cooldown"`
	Methods     []string `yaml:"notification_methods"`
	WebhookURL  string   `yaml:"webhook_url"`
}

// Cooldown returns the configured notification dedup window as a Duration.
func (c NotificationConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSec * float64(time.Second))
}

// HTTPConfig controls the SeatQueryClient's connection pool, timeouts,
// and transient-error retry behavior.
type HTTPConfig struct {
	RequestTimeoutSec float64 `yaml:"request_timeout"`
	ConnectTimeoutSec float64 `yaml:"connect_timeout"`
	MaxConnections    int     `yaml:"max_connections"`
	RetryCount        int     `yaml:"retry_count"`
	RetryDelaySec     float64 `yaml:"retry_delay"`
}

// RequestTimeout returns the configured HTTP total timeout as a Duration.
func (c HTTPConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec * float64(time.Second))
}

// ConnectTimeout returns the configured HTTP dial timeout as a Duration.
func (c HTTPConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec * float64(time.Second))
}

// RetryDelay returns the configured delay between retries as a Duration.
func (c HTTPConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySec * float64(time.Second))
}

// TelemetryConfig optionally exports HealthAgent metrics to an MQTT
// broker for dashboard integration. With MQTTBroker empty, the
// publisher is never constructed and has no effect on the session.
type TelemetryConfig struct {
	MQTTBroker         string `yaml:"mqtt_broker"`
	MQTTUsername       string `yaml:"mqtt_username"`
	MQTTPassword       string `yaml:"mqtt_password"`
	TopicPrefix        string `yaml:"topic_prefix"`
	PublishIntervalSec int    `yaml:"publish_interval_sec"`
}

// Enabled reports whether telemetry export should be started.
func (c TelemetryConfig) Enabled() bool {
	return c.MQTTBroker != ""
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, all fields are usable
// without additional nil/zero checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${WEBHOOK_URL}). Convenience
	// for container deployments; values may also be placed directly.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with the defaults from §6 of
// the specification. Called automatically by Load and Default.
func (c *Config) applyDefaults() {
	if c.Polling.BaseIntervalSec == 0 {
		c.Polling.BaseIntervalSec = 30
	}
	if c.Polling.MaxIntervalSec == 0 {
		c.Polling.MaxIntervalSec = 300
	}
	if c.Polling.BackoffMultiplier == 0 {
		c.Polling.BackoffMultiplier = 1.5
	}
	if c.Polling.JitterRangeSec == 0 {
		c.Polling.JitterRangeSec = 5
	}
	if c.Session.MaxDurationSec == 0 {
		c.Session.MaxDurationSec = 21600
	}
	if c.Session.MaxConsecutiveErrors == 0 {
		c.Session.MaxConsecutiveErrors = 10
	}
	if c.Session.MaxRequestsPerSession == 0 {
		c.Session.MaxRequestsPerSession = 720
	}
	if c.Session.GCInterval == 0 {
		c.Session.GCInterval = 50
	}
	if c.Notification.CooldownSec == 0 {
		c.Notification.CooldownSec = 60
	}
	if len(c.Notification.Methods) == 0 {
		c.Notification.Methods = []string{"desktop", "sound"}
	}
	if c.HTTP.RequestTimeoutSec == 0 {
		c.HTTP.RequestTimeoutSec = 15
	}
	if c.HTTP.ConnectTimeoutSec == 0 {
		c.HTTP.ConnectTimeoutSec = 5
	}
	if c.HTTP.MaxConnections == 0 {
		c.HTTP.MaxConnections = 3
	}
	if c.HTTP.RetryCount == 0 {
		c.HTTP.RetryCount = 2
	}
	if c.HTTP.RetryDelaySec == 0 {
		c.HTTP.RetryDelaySec = 1
	}
	if c.Telemetry.TopicPrefix == "" {
		c.Telemetry.TopicPrefix = "korail-watch"
	}
	if c.Telemetry.PublishIntervalSec == 0 {
		c.Telemetry.PublishIntervalSec = 30
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Polling.BaseIntervalSec <= 0 {
		return fmt.Errorf("polling.base_interval must be positive")
	}
	if c.Polling.MaxIntervalSec < c.Polling.BaseIntervalSec {
		return fmt.Errorf("polling.max_interval must be >= base_interval")
	}
	if c.Polling.BackoffMultiplier <= 1.0 {
		return fmt.Errorf("polling.backoff_multiplier must be > 1.0")
	}
	if c.Session.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("session.max_consecutive_errors must be >= 1")
	}
	if c.Session.MaxRequestsPerSession < 1 {
		return fmt.Errorf("session.max_requests_per_session must be >= 1")
	}
	if c.HTTP.MaxConnections < 1 {
		return fmt.Errorf("http.max_connections must be >= 1")
	}
	if c.HTTP.RetryCount < 0 {
		return fmt.Errorf("http.retry_count must be >= 0")
	}
	for _, m := range c.Notification.Methods {
		switch m {
		case "desktop", "sound", "webhook":
		default:
			return fmt.Errorf("notification.notification_methods: unknown channel %q", m)
		}
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration suitable for local smoke
// testing. All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
