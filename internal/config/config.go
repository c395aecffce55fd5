package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"
	"gopkg.in/yaml.v3"
)

//go:embed example.yaml
var exampleConfig embed.FS

// Config represents the complete emojichat configuration
type Config struct {
	Relays   Relays   `yaml:"relays"`
	Identity Identity `yaml:"identity"`
	Feed     Feed     `yaml:"feed"`
	Display  Display  `yaml:"display"`
	Logging  Logging  `yaml:"logging"`
}

// Relays contains relay endpoint configuration
type Relays struct {
	// Publish relays carry the note feed: history fetch, live tail, and
	// outgoing publishes all go here.
	Publish []string `yaml:"publish"`
	// Profile relays are queried for kind-0 metadata only. Profile-heavy
	// relays (purplepag.es and friends) belong in this list.
	Profiles []string    `yaml:"profiles"`
	Policy   RelayPolicy `yaml:"policy"`
}

// RelayPolicy contains relay connection policies
type RelayPolicy struct {
	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`
	RetryBackoffMs   int `yaml:"retry_backoff_ms"`
}

// Identity contains the Nostr identity configuration
type Identity struct {
	Npub string `yaml:"npub"` // Optional; informational only, the signer is authoritative
	// The secret key is never read from the config file. It is loaded from
	// the EMOJICHAT_NSEC env var, see applyEnvOverrides.
	Nsec string `yaml:"-"`
}

// Feed contains subscription and projection settings
type Feed struct {
	HistoryLimit       int `yaml:"history_limit"`        // Bounded history fetch size
	EoseTimeoutSeconds int `yaml:"eose_timeout_seconds"` // Soft watchdog for the history fetch
}

// Display contains presentation settings for the terminal renderer
type Display struct {
	ThreadIndent     string `yaml:"thread_indent"`
	TimestampFormat  string `yaml:"timestamp_format"`
	MaxContentLength int    `yaml:"max_content_length"` // In grapheme clusters; 0 = no truncation
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Relays: Relays{
			Publish: []string{
				"wss://relay.damus.io",
				"wss://relay.primal.net",
			},
			Profiles: []string{
				"wss://relay.damus.io",
				"wss://nos.lol",
				"wss://purplepag.es",
			},
			Policy: RelayPolicy{
				ConnectTimeoutMs: 30000,
				RetryBackoffMs:   5000,
			},
		},
		Feed: Feed{
			HistoryLimit:       20,
			EoseTimeoutSeconds: 20,
		},
		Display: Display{
			ThreadIndent:    "  ",
			TimestampFormat: "2006-01-02 15:04",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDefaults fills in zero-valued fields from Default
func applyDefaults(cfg *Config) {
	defaults := Default()

	if len(cfg.Relays.Publish) == 0 {
		cfg.Relays.Publish = defaults.Relays.Publish
	}
	if len(cfg.Relays.Profiles) == 0 {
		cfg.Relays.Profiles = defaults.Relays.Profiles
	}
	if cfg.Relays.Policy.ConnectTimeoutMs == 0 {
		cfg.Relays.Policy.ConnectTimeoutMs = defaults.Relays.Policy.ConnectTimeoutMs
	}
	if cfg.Relays.Policy.RetryBackoffMs == 0 {
		cfg.Relays.Policy.RetryBackoffMs = defaults.Relays.Policy.RetryBackoffMs
	}
	if cfg.Feed.HistoryLimit == 0 {
		cfg.Feed.HistoryLimit = defaults.Feed.HistoryLimit
	}
	if cfg.Feed.EoseTimeoutSeconds == 0 {
		cfg.Feed.EoseTimeoutSeconds = defaults.Feed.EoseTimeoutSeconds
	}
	if cfg.Display.ThreadIndent == "" {
		cfg.Display.ThreadIndent = defaults.Display.ThreadIndent
	}
	if cfg.Display.TimestampFormat == "" {
		cfg.Display.TimestampFormat = defaults.Display.TimestampFormat
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) error {
	if nsec := os.Getenv("EMOJICHAT_NSEC"); nsec != "" {
		cfg.Identity.Nsec = nsec
	}
	return nil
}

// Validate checks the configuration for consistency
func Validate(cfg *Config) error {
	if len(cfg.Relays.Publish) == 0 {
		return fmt.Errorf("relays.publish must contain at least one relay URL")
	}
	urls := append(append([]string{}, cfg.Relays.Publish...), cfg.Relays.Profiles...)
	for _, url := range urls {
		if !strings.HasPrefix(url, "wss://") && !strings.HasPrefix(url, "ws://") {
			return fmt.Errorf("relay URL %q must start with wss:// or ws://", url)
		}
	}
	if cfg.Feed.HistoryLimit < 0 {
		return fmt.Errorf("feed.history_limit must not be negative")
	}
	if cfg.Identity.Npub != "" {
		if prefix, _, err := nip19.Decode(cfg.Identity.Npub); err != nil || prefix != "npub" {
			return fmt.Errorf("identity.npub is not a valid npub")
		}
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug|info|warn|error")
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	return nil
}

// GetExampleConfig returns the embedded example configuration
func GetExampleConfig() ([]byte, error) {
	return exampleConfig.ReadFile("example.yaml")
}
