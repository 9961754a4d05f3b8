package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/subfeed/internal/logger"
	"github.com/ppiankov/subfeed/internal/store"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch all subscriptions and store the combined feed",
	RunE:  pullAction,
}

func pullAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	redactor, err := cfg.Redactor()
	if err != nil {
		return fmt.Errorf("compile redact patterns: %w", err)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := commandContext(cmd)
	startedAt := time.Now()

	res, err := newAggregator(cfg).Collect(ctx)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(stdout, "warning: %s: %v\n", f.Subscription.Label(), f.Err)
	}

	summary, err := db.SaveRun(ctx, redactor.Posts(res.Posts), startedAt)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	pruned, err := db.PruneOld(ctx, cfg.Storage.RetainDays)
	if err != nil {
		return fmt.Errorf("prune old: %w", err)
	}

	logger.L.Infow("pull finished", "run", summary.ID, "posts", summary.Posts, "new", summary.New, "pruned", pruned)

	fmt.Fprintf(stdout, "Pulled %d posts from %d subscriptions (%d new)",
		summary.Posts, len(cfg.Subscriptions)-len(res.Failures), summary.New)
	if len(res.Failures) > 0 {
		fmt.Fprintf(stdout, " (%d unavailable)", len(res.Failures))
	}
	if pruned > 0 {
		fmt.Fprintf(stdout, " (%d old posts pruned)", pruned)
	}
	fmt.Fprintln(stdout)

	return nil
}
