package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("polling:\n  base_interval: 45\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_SearchPath(t *testing.T) {
	// Override searchPathsFunc to avoid finding real config files on
	// developer/deploy machines (~/.config/korail-watch/config.yaml,
	// /etc/korail-watch/config.yaml, etc.).
	dir := t.TempDir()
	orig := searchPathsFunc
	searchPathsFunc = func() []string {
		return []string{filepath.Join(dir, "config.yaml")}
	}
	defer func() { searchPathsFunc = orig }()

	_, err := FindConfig("")
	if err == nil {
		t.Fatal("FindConfig(\"\") with no config files should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("polling:\n  base_interval: 30\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("notification:\n  webhook_url: ${KORAIL_WATCH_TEST_WEBHOOK}\n"), 0600)
	os.Setenv("KORAIL_WATCH_TEST_WEBHOOK", "https://example.com/hook")
	defer os.Unsetenv("KORAIL_WATCH_TEST_WEBHOOK")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Notification.WebhookURL != "https://example.com/hook" {
		t.Errorf("webhook_url = %q, want %q", cfg.Notification.WebhookURL, "https://example.com/hook")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("log_level: debug\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Polling.BaseIntervalSec != 30 {
		t.Errorf("base_interval default = %v, want 30", cfg.Polling.BaseIntervalSec)
	}
	if cfg.Polling.MaxIntervalSec != 300 {
		t.Errorf("max_interval default = %v, want 300", cfg.Polling.MaxIntervalSec)
	}
	if cfg.Session.MaxRequestsPerSession != 720 {
		t.Errorf("max_requests_per_session default = %v, want 720", cfg.Session.MaxRequestsPerSession)
	}
	if len(cfg.Notification.Methods) != 2 || cfg.Notification.Methods[0] != "desktop" {
		t.Errorf("notification_methods default = %v, want [desktop sound]", cfg.Notification.Methods)
	}
}

func TestLoad_CustomOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("polling:\n  base_interval: 15\n  max_interval: 120\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Polling.BaseIntervalSec != 15 {
		t.Errorf("base_interval = %v, want 15", cfg.Polling.BaseIntervalSec)
	}
	if cfg.Polling.MaxIntervalSec != 120 {
		t.Errorf("max_interval = %v, want 120", cfg.Polling.MaxIntervalSec)
	}
}

func TestValidate_MaxIntervalBelowBase(t *testing.T) {
	cfg := Default()
	cfg.Polling.BaseIntervalSec = 100
	cfg.Polling.MaxIntervalSec = 50

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when max_interval < base_interval")
	}
	if !strings.Contains(err.Error(), "max_interval") {
		t.Errorf("error should mention max_interval, got: %v", err)
	}
}

func TestValidate_BackoffMultiplierMustExceedOne(t *testing.T) {
	cfg := Default()
	cfg.Polling.BackoffMultiplier = 1.0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for backoff_multiplier == 1.0")
	}
	if !strings.Contains(err.Error(), "backoff_multiplier") {
		t.Errorf("error should mention backoff_multiplier, got: %v", err)
	}
}

func TestValidate_UnknownNotificationMethod(t *testing.T) {
	cfg := Default()
	cfg.Notification.Methods = []string{"carrier_pigeon"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for unknown notification method")
	}
	if !strings.Contains(err.Error(), "carrier_pigeon") {
		t.Errorf("error should mention the bad method, got: %v", err)
	}
}

func TestValidate_ZeroMaxConnections(t *testing.T) {
	cfg := Default()
	cfg.HTTP.MaxConnections = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for max_connections 0")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for unknown log level")
	}
}

func TestValidate_DefaultPasses(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate cleanly, got: %v", err)
	}
}

func TestTelemetryConfig_Enabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  TelemetryConfig
		want bool
	}{
		{"no broker", TelemetryConfig{}, false},
		{"broker set", TelemetryConfig{MQTTBroker: "tcp://localhost:1883"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if got, want := cfg.Polling.BaseInterval().Seconds(), 30.0; got != want {
		t.Errorf("BaseInterval() = %vs, want %vs", got, want)
	}
	if got, want := cfg.Session.MaxDuration().Seconds(), 21600.0; got != want {
		t.Errorf("MaxDuration() = %vs, want %vs", got, want)
	}
	if got, want := cfg.Notification.Cooldown().Seconds(), 60.0; got != want {
		t.Errorf("Cooldown() = %vs, want %vs", got, want)
	}
}
