package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/subfeed/internal/config"
	"github.com/ppiankov/subfeed/internal/store"
)

var doctorOffline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, database and subscription reachability",
	RunE:  doctorAction,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "skip fetching subscriptions")
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config file
	cfg, err := loadConfig()
	if err != nil {
		printCheck(false, "config: %v", err)
		return errors.New("some checks failed")
	}
	path, _ := config.ResolvePath(configDir)
	printCheck(true, "config %s (%d subscriptions)", path, len(cfg.Subscriptions))

	// Database
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		printCheck(false, "database: %v", err)
		ok = false
	} else {
		_ = db.Close()
		printCheck(true, "database %s", cfg.Storage.Path)
	}

	if cfg.Privacy.Redact.Enabled {
		printCheck(true, "redaction (%d patterns)", len(cfg.Privacy.Redact.Patterns))
	}

	// Subscriptions
	if doctorOffline {
		printInfo("skipping subscription checks (--offline)")
	} else if !checkSubscriptions(cmd, cfg) {
		ok = false
	}

	if !ok {
		return errors.New("some checks failed")
	}
	fmt.Fprintln(stdout, "\nAll checks passed.")
	return nil
}

// checkSubscriptions fetches every subscription once and reports each.
func checkSubscriptions(cmd *cobra.Command, cfg *config.Config) bool {
	probe := *cfg
	probe.Fetch.Partial = true
	probe.Fetch.Retries = 1

	res, err := newAggregator(&probe).Collect(commandContext(cmd))
	if err != nil {
		printCheck(false, "subscriptions: %v", err)
		return false
	}

	counts := make(map[string]int)
	for _, p := range res.Posts {
		counts[p.Subscription.Name]++
	}
	failed := make(map[string]error)
	for _, f := range res.Failures {
		failed[f.Subscription.Name] = f.Err
	}

	ok := true
	for _, sub := range cfg.Feeds() {
		if err, bad := failed[sub.Name]; bad {
			printCheck(false, "%s (%s): %v", sub.Label(), sub.Type, err)
			ok = false
			continue
		}
		printCheck(true, "%s (%s): %d posts", sub.Label(), sub.Type, counts[sub.Name])
		if counts[sub.Name] == 0 {
			printInfo("%s returned no posts", sub.Label())
		}
	}
	return ok
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Fprintf(stdout, "[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Fprintf(stdout, "[INFO] %s\n", fmt.Sprintf(format, args...))
}
