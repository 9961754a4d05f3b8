package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/subfeed/internal/feed"
	"github.com/ppiankov/subfeed/internal/logger"
	"github.com/ppiankov/subfeed/internal/privacy"
)

const (
	DefaultConfigFile   = "subfeed.yaml"
	DefaultTOMLFile     = "subfeed.toml"
	DefaultStoragePath  = ".subfeed/subfeed.db"
	DefaultRetainDays   = 30
	DefaultTimeout      = 30 * time.Second
	DefaultRetries      = 3
	DefaultOutputFormat = "terminal"
	DefaultOutputLimit  = 50
	DefaultLogLevel     = "warn"
)

// OutputFormats lists the accepted output.format values.
var OutputFormats = []string{"terminal", "json", "markdown"}

// Duration wraps time.Duration for YAML and TOML unmarshaling from strings
// like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Subscriptions []SubscriptionConfig `yaml:"subscriptions" toml:"subscriptions"`
	Fetch         FetchConfig          `yaml:"fetch" toml:"fetch"`
	Storage       StorageConfig        `yaml:"storage" toml:"storage"`
	Output        OutputConfig         `yaml:"output" toml:"output"`
	Privacy       PrivacyConfig        `yaml:"privacy" toml:"privacy"`
	Log           LogConfig            `yaml:"log" toml:"log"`
}

type SubscriptionConfig struct {
	Name      string            `yaml:"name" toml:"name"`
	URL       string            `yaml:"url" toml:"url"`
	Type      string            `yaml:"type" toml:"type"`
	APIKeyEnv string            `yaml:"api_key_env,omitempty" toml:"api_key_env,omitempty"`
	Meta      map[string]string `yaml:"meta,omitempty" toml:"meta,omitempty"`

	// Resolved from env var at load time.
	APIKey string `yaml:"-" toml:"-"`
}

type FetchConfig struct {
	Timeout     Duration `yaml:"timeout" toml:"timeout"`
	UserAgent   string   `yaml:"user_agent" toml:"user_agent"`
	Retries     int      `yaml:"retries" toml:"retries"`
	Concurrency int      `yaml:"concurrency" toml:"concurrency"`
	Partial     bool     `yaml:"partial" toml:"partial"`
}

type StorageConfig struct {
	Path       string `yaml:"path" toml:"path"`
	RetainDays int    `yaml:"retain_days" toml:"retain_days"`
}

type OutputConfig struct {
	Format string `yaml:"format" toml:"format"`
	Limit  int    `yaml:"limit" toml:"limit"`
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact" toml:"redact"`
}

type RedactConfig struct {
	Enabled  bool     `yaml:"enabled" toml:"enabled"`
	Patterns []string `yaml:"patterns" toml:"patterns"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

// Load reads a config file, applies defaults, resolves env vars, and
// validates. path may name a file (.toml is decoded as TOML, anything else
// as YAML) or a directory holding subfeed.yaml or subfeed.toml.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path is required")
	}

	path, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// ResolvePath returns the config file Load would read for path.
func ResolvePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return path, nil
	}
	for _, name := range []string{DefaultConfigFile, DefaultTOMLFile} {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("read config: no %s or %s in %s", DefaultConfigFile, DefaultTOMLFile, path)
}

func applyDefaults(cfg *Config) {
	for i := range cfg.Subscriptions {
		sub := &cfg.Subscriptions[i]
		if sub.Type == "" {
			sub.Type = string(feed.TypeRSS)
		}
		if sub.Name == "" {
			sub.Name = sub.URL
		}
	}
	if cfg.Fetch.Timeout.Duration == 0 {
		cfg.Fetch.Timeout.Duration = DefaultTimeout
	}
	if cfg.Fetch.Retries == 0 {
		cfg.Fetch.Retries = DefaultRetries
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = DefaultOutputFormat
	}
	if cfg.Output.Limit == 0 {
		cfg.Output.Limit = DefaultOutputLimit
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func resolveEnv(cfg *Config) {
	for i := range cfg.Subscriptions {
		sub := &cfg.Subscriptions[i]
		if sub.APIKeyEnv != "" {
			sub.APIKey = os.Getenv(sub.APIKeyEnv)
		}
	}
}

func validate(cfg *Config) error {
	if len(cfg.Subscriptions) == 0 {
		return errors.New("subscriptions: at least one subscription must be configured")
	}

	seen := make(map[string]bool, len(cfg.Subscriptions))
	for i, sub := range cfg.Subscriptions {
		if _, err := feed.ParseType(sub.Type); err != nil {
			return fmt.Errorf("subscriptions[%d]: %w", i, err)
		}
		u, err := url.Parse(sub.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("subscriptions[%d]: url %q must be an absolute http(s) URL", i, sub.URL)
		}
		if seen[sub.Name] {
			return fmt.Errorf("subscriptions[%d]: duplicate name %q", i, sub.Name)
		}
		seen[sub.Name] = true
	}

	if cfg.Fetch.Timeout.Duration < 0 {
		return fmt.Errorf("fetch.timeout: must not be negative, got %s", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries: must not be negative, got %d", cfg.Fetch.Retries)
	}
	if cfg.Fetch.Concurrency < 0 {
		return fmt.Errorf("fetch.concurrency: must not be negative, got %d", cfg.Fetch.Concurrency)
	}

	if !isOutputFormat(cfg.Output.Format) {
		return fmt.Errorf("output.format: unknown format %q (want %s)", cfg.Output.Format, strings.Join(OutputFormats, ", "))
	}

	if cfg.Privacy.Redact.Enabled {
		if _, err := privacy.New(cfg.Privacy.Redact.Patterns); err != nil {
			return fmt.Errorf("privacy.redact: %w", err)
		}
	}

	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

func isOutputFormat(format string) bool {
	for _, f := range OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Feeds converts the configured subscriptions into aggregation inputs. A
// resolved API key is carried in Meta["api_key"].
func (c *Config) Feeds() []feed.Subscription {
	subs := make([]feed.Subscription, 0, len(c.Subscriptions))
	for _, sc := range c.Subscriptions {
		kind, _ := feed.ParseType(sc.Type)
		sub := feed.Subscription{Name: sc.Name, URL: sc.URL, Type: kind}
		if len(sc.Meta) > 0 || sc.APIKey != "" {
			sub.Meta = make(map[string]string, len(sc.Meta)+1)
			for k, v := range sc.Meta {
				sub.Meta[k] = v
			}
			if sc.APIKey != "" {
				sub.Meta["api_key"] = sc.APIKey
			}
		}
		subs = append(subs, sub)
	}
	return subs
}

// Redactor returns the configured redactor, or nil when redaction is off.
func (c *Config) Redactor() (*privacy.Redactor, error) {
	if !c.Privacy.Redact.Enabled {
		return nil, nil
	}
	return privacy.New(c.Privacy.Redact.Patterns)
}
