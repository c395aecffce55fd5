package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
relays:
  publish:
    - wss://relay.example.com
  profiles:
    - wss://profiles.example.com
  policy:
    connect_timeout_ms: 10000
    retry_backoff_ms: 2000
feed:
  history_limit: 50
  eose_timeout_seconds: 10
display:
  thread_indent: "    "
  max_content_length: 80
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Relays.Publish) != 1 || cfg.Relays.Publish[0] != "wss://relay.example.com" {
		t.Errorf("unexpected publish relays: %v", cfg.Relays.Publish)
	}
	if cfg.Relays.Policy.RetryBackoffMs != 2000 {
		t.Errorf("expected retry_backoff_ms 2000, got %d", cfg.Relays.Policy.RetryBackoffMs)
	}
	if cfg.Feed.HistoryLimit != 50 {
		t.Errorf("expected history_limit 50, got %d", cfg.Feed.HistoryLimit)
	}
	if cfg.Display.ThreadIndent != "    " {
		t.Errorf("expected four-space indent, got %q", cfg.Display.ThreadIndent)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
relays:
  publish:
    - wss://relay.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	defaults := Default()
	if cfg.Feed.HistoryLimit != defaults.Feed.HistoryLimit {
		t.Errorf("expected default history_limit %d, got %d", defaults.Feed.HistoryLimit, cfg.Feed.HistoryLimit)
	}
	if cfg.Relays.Policy.RetryBackoffMs != defaults.Relays.Policy.RetryBackoffMs {
		t.Errorf("expected default retry_backoff_ms %d, got %d", defaults.Relays.Policy.RetryBackoffMs, cfg.Relays.Policy.RetryBackoffMs)
	}
	if len(cfg.Relays.Profiles) == 0 {
		t.Error("expected default profile relays")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %q", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "relays: [not: closed")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoad_NsecFromEnvironmentOnly(t *testing.T) {
	// The secret key must never come from the config file
	path := writeConfig(t, `
relays:
  publish:
    - wss://relay.example.com
identity:
  nsec: nsec1fromfile
`)

	t.Setenv("EMOJICHAT_NSEC", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Identity.Nsec != "" {
		t.Errorf("nsec from config file must be ignored, got %q", cfg.Identity.Nsec)
	}

	t.Setenv("EMOJICHAT_NSEC", "nsec1fromenv")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Identity.Nsec != "nsec1fromenv" {
		t.Errorf("expected nsec from environment, got %q", cfg.Identity.Nsec)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "no publish relays",
			mutate:  func(cfg *Config) { cfg.Relays.Publish = nil },
			wantErr: "relays.publish",
		},
		{
			name:    "http relay url",
			mutate:  func(cfg *Config) { cfg.Relays.Publish = []string{"https://relay.example.com"} },
			wantErr: "wss://",
		},
		{
			name:    "bad profile relay url",
			mutate:  func(cfg *Config) { cfg.Relays.Profiles = []string{"relay.example.com"} },
			wantErr: "wss://",
		},
		{
			name:    "negative history limit",
			mutate:  func(cfg *Config) { cfg.Feed.HistoryLimit = -1 },
			wantErr: "history_limit",
		},
		{
			name:    "invalid npub",
			mutate:  func(cfg *Config) { cfg.Identity.Npub = "npub1garbage" },
			wantErr: "npub",
		},
		{
			name:    "bad log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(cfg *Config) { cfg.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetExampleConfig(t *testing.T) {
	data, err := GetExampleConfig()
	if err != nil {
		t.Fatalf("GetExampleConfig() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty example config")
	}
	if strings.Contains(string(data), "nsec") && !strings.Contains(string(data), "EMOJICHAT_NSEC") {
		t.Error("example config must point at the env var, never an inline key")
	}
}
