package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kikk79/docstore/internal/cli/output"
)

var warmCmd = &cobra.Command{
	Use:   "warm <file>...",
	Short: "Pre-load documents into the cache",
	Long: `Load the given documents concurrently and report per-file results.

Useful to verify that a set of documents loads cleanly with the current
configuration.

Examples:
  docstore warm notes.txt readme.md
  docstore warm docs/*.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWarm,
}

func runWarm(cmd *cobra.Command, args []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	results := svc.Warm(context.Background(), args)

	table := output.NewTableData("SOURCE", "RESULT")
	failed := 0
	for _, src := range args {
		if results[src] {
			table.AddRow(src, "loaded")
		} else {
			table.AddRow(src, "failed")
			failed++
		}
	}
	if err := output.PrintTable(os.Stdout, table); err != nil {
		return err
	}

	if failed > 0 {
		Exit("%d of %d documents failed to load", failed, len(args))
	}
	return nil
}
