package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/subfeed/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored combined feed, newest first",
	RunE:  showAction,
}

func init() {
	addOutputFlags(showCmd)
}

func showAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	limit := cfg.Output.Limit
	if outputLimit > 0 {
		limit = outputLimit
	}

	posts, err := db.LatestPosts(commandContext(cmd), limit)
	if err != nil {
		return fmt.Errorf("get posts: %w", err)
	}

	return printPosts(cfg, posts, nil)
}
