package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens-go/internal/store"
)

// NewHistoryCmd constructs the `clauselens history` command, which lists
// recent document uploads recorded by the server.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent document uploads",
		Long: `List the most recent document uploads recorded by the server.

The history lives in a local SQLite database (~/.clauselens/uploads.db by
default, CLAUSELENS_HISTORY_DB to override).

Examples:
  clauselens history
  clauselens history --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := os.Getenv("CLAUSELENS_HISTORY_DB")
			if dbPath == "" || dbPath == "disabled" {
				var err error
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
			}

			s, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer s.Close()

			uploads, err := s.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(uploads) == 0 {
				fmt.Println("no uploads recorded")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "UPLOADED\tDOCUMENT\tSOURCE\tTYPE\tCHUNKS\tCHARS")
			for _, u := range uploads {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
					u.CreatedAt.Format("2006-01-02 15:04:05"),
					u.DocumentID,
					u.Source,
					u.ContentType,
					u.ChunkCount,
					u.TextLength,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of uploads to list")

	return cmd
}
