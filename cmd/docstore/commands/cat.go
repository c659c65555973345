package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var catPreview int64

var catCmd = &cobra.Command{
	Use:   "cat <file>",
	Short: "Print a document's content",
	Long: `Load a document through the streaming pipeline and print its content.

With --preview N, only the first N bytes are streamed and the document
is not cached.

Examples:
  # Print a document
  docstore cat notes.txt

  # Print the first 512 bytes
  docstore cat notes.txt --preview 512`,
	Args: cobra.ExactArgs(1),
	RunE: runCat,
}

func init() {
	catCmd.Flags().Int64Var(&catPreview, "preview", 0, "Print only the first N bytes without caching")
}

func runCat(cmd *cobra.Command, args []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	source := args[0]

	if catPreview > 0 {
		head, _, err := svc.Preview(ctx, source, catPreview)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(head)
		return err
	}

	res, err := svc.Get(ctx, source)
	if err != nil {
		return err
	}
	fmt.Print(res.Text())
	return nil
}
