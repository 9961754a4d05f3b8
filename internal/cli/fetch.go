package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch all subscriptions and print the combined feed without storing it",
	RunE:  fetchAction,
}

func init() {
	addOutputFlags(fetchCmd)
}

func fetchAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	redactor, err := cfg.Redactor()
	if err != nil {
		return fmt.Errorf("compile redact patterns: %w", err)
	}

	res, err := newAggregator(cfg).Collect(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	return printPosts(cfg, redactor.Posts(res.Posts), failureLabels(res.Failures))
}
