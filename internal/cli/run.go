package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/subfeed/internal/logger"
)

var runEvery string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pull subscriptions then show the combined feed",
	RunE:  runAction,
}

// Indirection for tests.
var (
	runPullAction = pullAction
	runShowAction = showAction
)

func init() {
	runCmd.Flags().StringVar(&runEvery, "every", "", "repeat on an interval (e.g. 30m) until interrupted")
	addOutputFlags(runCmd)
}

func runAction(cmd *cobra.Command, args []string) error {
	interval, err := parseRunEvery(runEvery)
	if err != nil {
		return err
	}

	runOnce := func() error {
		if err := runPullAction(cmd, args); err != nil {
			return err
		}
		return runShowAction(cmd, args)
	}

	if interval == 0 {
		return runOnce()
	}
	return runWatch(commandContext(cmd), interval, runOnce)
}

func parseRunEvery(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse --every: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--every must be positive, got %s", s)
	}
	return d, nil
}

// runWatch runs runOnce immediately and then every interval until ctx is
// done. A failed iteration is logged and the loop continues.
func runWatch(ctx context.Context, interval time.Duration, runOnce func() error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := runOnce(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.L.Errorw("run failed", "error", err)
			fmt.Fprintf(stdout, "error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
