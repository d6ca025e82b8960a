package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/quizzify/internal/config"
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Show the best matching passage in the document collection",
	Long:  "Search the collection built by the last generate run and print the closest chunk with its relevance score.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(genFlags.configPath)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(genFlags.verbose, "")
	if err != nil {
		return err
	}
	defer closeLog()

	coll, closeColl, err := openCollection(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeColl()

	n, err := coll.Attach(ctx)
	if err != nil {
		return fmt.Errorf("collection %q: %w", cfg.Collection, err)
	}

	match, err := coll.Query(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Collection %s (%d chunks)\n", cfg.Collection, n)
	if src, ok := match.Metadata["source"]; ok {
		fmt.Fprintf(out, "Source: %v, page %v\n", src, match.Metadata["page"])
	}
	fmt.Fprintf(out, "Relevance: %.3f\n\n%s\n", match.Score, match.Content)
	return nil
}
