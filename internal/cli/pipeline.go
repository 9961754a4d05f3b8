package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/subfeed/internal/aggregate"
	"github.com/ppiankov/subfeed/internal/config"
	"github.com/ppiankov/subfeed/internal/digest"
	"github.com/ppiankov/subfeed/internal/feed"
	"github.com/ppiankov/subfeed/internal/source"
)

// Output flags shared by show, fetch and run.
var (
	outputFormat string
	outputLimit  int
	noColor      bool
)

// stdout is where command output goes. Tests replace it.
var stdout io.Writer = os.Stdout

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&outputFormat, "format", "", "output format: terminal, json, markdown (default from config)")
	cmd.Flags().IntVar(&outputLimit, "limit", 0, "maximum posts to print (default from config)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")
}

// newAggregator wires the HTTP fetcher and aggregation options from cfg.
var newAggregator = func(cfg *config.Config) *aggregate.Aggregator {
	opts := []source.Option{
		source.WithTimeout(cfg.Fetch.Timeout.Duration),
		source.WithRetries(cfg.Fetch.Retries),
	}
	if cfg.Fetch.UserAgent != "" {
		opts = append(opts, source.WithUserAgent(cfg.Fetch.UserAgent))
	}

	return aggregate.New(cfg.Feeds(), source.NewFetcher(opts...),
		aggregate.WithConcurrency(cfg.Fetch.Concurrency),
		aggregate.WithPartial(cfg.Fetch.Partial),
	)
}

func newFormatter(format string, color bool) (digest.Formatter, error) {
	switch format {
	case "json":
		return digest.NewJSON(), nil
	case "markdown", "md":
		return digest.NewMarkdown(), nil
	case "terminal", "":
		return digest.NewTerminal(color), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want terminal, json, or markdown)", format)
	}
}

// printPosts formats posts using the flag overrides on top of cfg.Output.
func printPosts(cfg *config.Config, posts []feed.Post, failed []string) error {
	format := cfg.Output.Format
	if outputFormat != "" {
		format = outputFormat
	}
	limit := cfg.Output.Limit
	if outputLimit > 0 {
		limit = outputLimit
	}

	formatter, err := newFormatter(format, !noColor)
	if err != nil {
		return err
	}

	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}

	return formatter.Format(stdout, digest.Input{
		Posts:         posts,
		Subscriptions: len(cfg.Subscriptions),
		Failed:        failed,
	})
}

func failureLabels(failures []aggregate.Failure) []string {
	labels := make([]string, 0, len(failures))
	for _, f := range failures {
		labels = append(labels, f.Subscription.Label())
	}
	return labels
}
