package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/subfeed/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config",
	RunE:  initAction,
}

func initAction(_ *cobra.Command, _ []string) error {
	path, example := initTarget(configDir)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	wrote, err := writeIfNotExists(path, []byte(example))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Fprintf(stdout, "Config %s already initialized.\n", path)
	} else {
		fmt.Fprintf(stdout, "Initialized %s. Edit subscriptions, then run 'subfeed pull'.\n", path)
	}
	return nil
}

// initTarget maps --config to the file init should create. A path with a
// .yaml, .yml or .toml extension is used as is; anything else is a directory.
func initTarget(target string) (string, string) {
	switch strings.ToLower(filepath.Ext(target)) {
	case ".toml":
		return target, exampleTOML
	case ".yaml", ".yml":
		return target, exampleConfig
	default:
		return filepath.Join(target, config.DefaultConfigFile), exampleConfig
	}
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(stdout, "  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# subfeed configuration

subscriptions:
  - name: React Blog
    url: https://facebook.github.io/react/feed.xml
    type: facebook
  # - name: Konkle
  #   url: https://konkle.example.com
  #   type: konkle
  #   api_key_env: KONKLE_API_KEY
  # - url: https://example.com/feed.xml   # type defaults to rss

fetch:
  timeout: 30s
  retries: 3
  concurrency: 0     # 0 fetches every subscription at once
  partial: false     # true keeps going when a subscription is down

storage:
  path: .subfeed/subfeed.db
  retain_days: 30

output:
  format: terminal   # terminal, json, markdown
  limit: 50

privacy:
  redact:
    enabled: false
    patterns: []   # regexps matched against plain title and description text

log:
  level: warn
  # file: .subfeed/subfeed.log
`

const exampleTOML = `# subfeed configuration

[[subscriptions]]
name = "React Blog"
url = "https://facebook.github.io/react/feed.xml"
type = "facebook"

[fetch]
timeout = "30s"
retries = 3
concurrency = 0
partial = false

[storage]
path = ".subfeed/subfeed.db"
retain_days = 30

[output]
format = "terminal"
limit = 50

[privacy.redact]
enabled = false
patterns = []

[log]
level = "warn"
`
