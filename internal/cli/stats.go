package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/subfeed/internal/config"
	"github.com/ppiankov/subfeed/internal/store"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored posts per subscription and recent runs",
	RunE:  statsAction,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "terminal", "output format: terminal, json")
	rootCmd.AddCommand(statsCmd)
}

const (
	staleDays = 7
	statsRuns = 5
)

func statsAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := commandContext(cmd)

	stats, err := db.SubscriptionStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	runs, err := db.Runs(ctx, statsRuns)
	if err != nil {
		return fmt.Errorf("get runs: %w", err)
	}

	switch statsFormat {
	case "json":
		return printStatsJSON(stdout, cfg, stats, runs)
	case "terminal", "":
		printStats(stdout, cfg, stats, runs, time.Now())
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", statsFormat)
	}
}

type jsonStatsOutput struct {
	Subscriptions []jsonSubscriptionStats `json:"subscriptions"`
	Runs          []jsonRun               `json:"runs"`
}

type jsonSubscriptionStats struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Posts  int    `json:"posts"`
	Newest string `json:"newest,omitempty"`
	Oldest string `json:"oldest,omitempty"`
}

type jsonRun struct {
	ID         string `json:"id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Posts      int    `json:"posts"`
	New        int    `json:"new"`
}

// mergeStats lists every configured subscription, including ones with no
// stored posts yet, followed by stored subscriptions no longer configured.
func mergeStats(cfg *config.Config, stats []store.SubscriptionStats) []store.SubscriptionStats {
	byName := make(map[string]store.SubscriptionStats, len(stats))
	for _, s := range stats {
		byName[s.Subscription] = s
	}

	var out []store.SubscriptionStats
	seen := make(map[string]bool)
	for _, sub := range cfg.Feeds() {
		s, ok := byName[sub.Name]
		if !ok {
			s = store.SubscriptionStats{Subscription: sub.Name, Type: sub.Type}
		}
		out = append(out, s)
		seen[sub.Name] = true
	}
	for _, s := range stats {
		if !seen[s.Subscription] {
			out = append(out, s)
		}
	}
	return out
}

func printStatsJSON(w io.Writer, cfg *config.Config, stats []store.SubscriptionStats, runs []store.RunSummary) error {
	out := jsonStatsOutput{
		Subscriptions: []jsonSubscriptionStats{},
		Runs:          []jsonRun{},
	}
	for _, s := range mergeStats(cfg, stats) {
		js := jsonSubscriptionStats{Name: s.Subscription, Type: string(s.Type), Posts: s.Posts}
		if !s.Newest.IsZero() {
			js.Newest = s.Newest.UTC().Format(time.RFC3339)
			js.Oldest = s.Oldest.UTC().Format(time.RFC3339)
		}
		out.Subscriptions = append(out.Subscriptions, js)
	}
	for _, r := range runs {
		out.Runs = append(out.Runs, jsonRun{
			ID:         r.ID,
			StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
			FinishedAt: r.FinishedAt.UTC().Format(time.RFC3339),
			Posts:      r.Posts,
			New:        r.New,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printStats(w io.Writer, cfg *config.Config, stats []store.SubscriptionStats, runs []store.RunSummary, now time.Time) {
	merged := mergeStats(cfg, stats)

	total := 0
	for _, s := range merged {
		total += s.Posts
	}
	fmt.Fprintf(w, "subfeed stats - %d posts from %d subscriptions\n\n", total, len(merged))

	maxName := 12 // minimum "Subscription"
	for _, s := range merged {
		if len(s.Subscription) > maxName {
			maxName = len(s.Subscription)
		}
	}
	if maxName > 40 {
		maxName = 40
	}

	fmt.Fprintf(w, "  %-*s  %-8s  %5s  %s\n", maxName, "Subscription", "Type", "Posts", "Newest")
	for _, s := range merged {
		name := s.Subscription
		if len(name) > maxName {
			name = name[:maxName-3] + "..."
		}
		newest := "never"
		if !s.Newest.IsZero() {
			newest = s.Newest.UTC().Format("2006-01-02")
			if s.Newest.Before(now.AddDate(0, 0, -staleDays)) {
				newest += fmt.Sprintf(" (stale, %d days)", int(now.Sub(s.Newest).Hours()/24))
			}
		}
		fmt.Fprintf(w, "  %-*s  %-8s  %5d  %s\n", maxName, name, s.Type, s.Posts, newest)
	}
	fmt.Fprintln(w)

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs yet. Run 'subfeed pull' first.")
		return
	}

	fmt.Fprintln(w, "--- Recent Runs ---")
	fmt.Fprintln(w)
	for _, r := range runs {
		fmt.Fprintf(w, "  %s  %3d posts  %3d new  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Posts, r.New, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
}
