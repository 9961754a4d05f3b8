package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/subfeed/internal/feed"
)

func writeTestConfig(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

// --- Load tests ---

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_KONKLE_KEY", "sk-secret")

	path := writeTestConfig(t, dir, DefaultConfigFile, `
subscriptions:
  - name: React Blog
    url: https://facebook.github.io/react/feed.xml
    type: facebook
  - name: Konkle
    url: https://konkle.example.com
    type: konkle
    api_key_env: TEST_KONKLE_KEY
    meta:
      limit: "10"
fetch:
  timeout: 10s
  user_agent: test-agent
  retries: 5
  concurrency: 2
  partial: true
storage:
  path: custom.db
  retain_days: 60
output:
  format: json
  limit: 20
privacy:
  redact:
    enabled: true
    patterns:
      - "(?i)token"
log:
  level: debug
  file: subfeed.log
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Subscriptions) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(cfg.Subscriptions))
	}
	if cfg.Subscriptions[1].APIKey != "sk-secret" {
		t.Errorf("api key = %q, want sk-secret", cfg.Subscriptions[1].APIKey)
	}
	if cfg.Fetch.Timeout.Duration != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.UserAgent != "test-agent" || cfg.Fetch.Retries != 5 || cfg.Fetch.Concurrency != 2 || !cfg.Fetch.Partial {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if cfg.Storage.Path != "custom.db" || cfg.Storage.RetainDays != 60 {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Output.Format != "json" || cfg.Output.Limit != 20 {
		t.Errorf("output = %+v", cfg.Output)
	}
	if !cfg.Privacy.Redact.Enabled || len(cfg.Privacy.Redact.Patterns) != 1 {
		t.Errorf("privacy = %+v", cfg.Privacy)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "subfeed.log" {
		t.Errorf("log = %+v", cfg.Log)
	}

	want := []feed.Subscription{
		{Name: "React Blog", URL: "https://facebook.github.io/react/feed.xml", Type: feed.TypeFacebook},
		{Name: "Konkle", URL: "https://konkle.example.com", Type: feed.TypeKonkle, Meta: map[string]string{"limit": "10", "api_key": "sk-secret"}},
	}
	if diff := cmp.Diff(want, cfg.Feeds()); diff != "" {
		t.Errorf("feeds mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, DefaultTOMLFile, `
[[subscriptions]]
name = "React Blog"
url = "https://facebook.github.io/react/feed.xml"
type = "facebook"

[fetch]
timeout = "15s"
concurrency = 4

[output]
format = "markdown"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Subscriptions) != 1 || cfg.Subscriptions[0].Type != "facebook" {
		t.Errorf("subscriptions = %+v", cfg.Subscriptions)
	}
	if cfg.Fetch.Timeout.Duration != 15*time.Second || cfg.Fetch.Concurrency != 4 {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if cfg.Output.Format != "markdown" {
		t.Errorf("format = %q", cfg.Output.Format)
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, DefaultTOMLFile, `
[[subscriptions]]
url = "https://example.com/feed.xml"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Subscriptions[0].URL != "https://example.com/feed.xml" {
		t.Errorf("subscriptions = %+v", cfg.Subscriptions)
	}
}

func TestLoad_DirectoryWithoutConfig(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, DefaultConfigFile, `
subscriptions:
  - url: https://example.com/feed.xml
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	sub := cfg.Subscriptions[0]
	if sub.Name != "https://example.com/feed.xml" || sub.Type != "rss" {
		t.Errorf("subscription defaults = %+v", sub)
	}
	if cfg.Fetch.Timeout.Duration != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Fetch.Timeout, DefaultTimeout)
	}
	if cfg.Fetch.Retries != DefaultRetries {
		t.Errorf("retries = %d, want %d", cfg.Fetch.Retries, DefaultRetries)
	}
	if cfg.Storage.Path != DefaultStoragePath {
		t.Errorf("storage path = %q, want %q", cfg.Storage.Path, DefaultStoragePath)
	}
	if cfg.Storage.RetainDays != DefaultRetainDays {
		t.Errorf("retain days = %d, want %d", cfg.Storage.RetainDays, DefaultRetainDays)
	}
	if cfg.Output.Format != DefaultOutputFormat || cfg.Output.Limit != DefaultOutputLimit {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Fetch.Partial {
		t.Error("partial should default to false")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no subscriptions",
			content: "storage:\n  path: x.db\n",
			wantErr: "at least one subscription",
		},
		{
			name:    "unknown type",
			content: "subscriptions:\n  - url: https://example.com\n    type: myspace\n",
			wantErr: "unknown subscription type",
		},
		{
			name:    "relative url",
			content: "subscriptions:\n  - url: example.com/feed\n",
			wantErr: "absolute http(s) URL",
		},
		{
			name:    "ftp url",
			content: "subscriptions:\n  - url: ftp://example.com/feed\n",
			wantErr: "absolute http(s) URL",
		},
		{
			name:    "duplicate names",
			content: "subscriptions:\n  - name: a\n    url: https://a.example.com\n  - name: a\n    url: https://b.example.com\n",
			wantErr: "duplicate name",
		},
		{
			name:    "negative concurrency",
			content: "subscriptions:\n  - url: https://example.com\nfetch:\n  concurrency: -1\n",
			wantErr: "fetch.concurrency",
		},
		{
			name:    "bad format",
			content: "subscriptions:\n  - url: https://example.com\noutput:\n  format: html\n",
			wantErr: "output.format",
		},
		{
			name:    "bad redact pattern",
			content: "subscriptions:\n  - url: https://example.com\nprivacy:\n  redact:\n    enabled: true\n    patterns: [\"[bad\"]\n",
			wantErr: "privacy.redact",
		},
		{
			name:    "bad log level",
			content: "subscriptions:\n  - url: https://example.com\nlog:\n  level: loud\n",
			wantErr: "log.level",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestConfig(t, t.TempDir(), DefaultConfigFile, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), DefaultConfigFile, `
subscriptions:
  - url: https://example.com
fetch:
  timeout: soon
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), DefaultConfigFile, "{{invalid yaml")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), DefaultTOMLFile, "[[subscriptions]\nurl = ")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestLoad_EnvVarMissing(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), DefaultConfigFile, `
subscriptions:
  - name: Konkle
    url: https://konkle.example.com
    type: konkle
    api_key_env: NONEXISTENT_SUBFEED_VAR
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Subscriptions[0].APIKey != "" {
		t.Errorf("expected empty api key, got %q", cfg.Subscriptions[0].APIKey)
	}
	if cfg.Feeds()[0].Meta != nil {
		t.Errorf("meta = %v, want nil", cfg.Feeds()[0].Meta)
	}
}

func TestRedactor(t *testing.T) {
	cfg := &Config{}
	r, err := cfg.Redactor()
	if err != nil || r != nil {
		t.Fatalf("disabled redactor = %v, %v", r, err)
	}

	cfg.Privacy.Redact = RedactConfig{Enabled: true, Patterns: []string{"secret"}}
	r, err = cfg.Redactor()
	if err != nil {
		t.Fatalf("redactor: %v", err)
	}
	if got := r.Text("a secret"); got != "a [REDACTED]" {
		t.Errorf("got %q", got)
	}
}

func TestDurationMarshalText(t *testing.T) {
	d := Duration{Duration: 90 * time.Second}
	text, err := d.MarshalText()
	if err != nil || string(text) != "1m30s" {
		t.Errorf("MarshalText = %q, %v", text, err)
	}
}
