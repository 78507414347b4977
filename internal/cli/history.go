package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/addanuj/mcp-client/internal/history"
	"github.com/addanuj/mcp-client/internal/memory"
	"github.com/addanuj/mcp-client/pkg/database"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show a session's recorded exchanges (requires DATABASE_URL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.quiet()
			cfg := opts.loadConfig()
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for history")
			}
			dbCfg := database.DefaultConfig()
			dbCfg.URL = cfg.DatabaseURL
			db, err := database.Connect(cmd.Context(), dbCfg, opts.logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			exchanges, err := history.NewStore(db).Recent(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), exchanges, opts.output)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of exchanges")
	return cmd
}

func printHistory(w io.Writer, exchanges []memory.Exchange, output string) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exchanges)
	}
	if len(exchanges) == 0 {
		_, err := fmt.Fprintln(w, "No exchanges recorded.")
		return err
	}
	for _, ex := range exchanges {
		fmt.Fprintf(w, "[%s] > %s\n", ex.Timestamp.Format(time.RFC3339), ex.UserMessage)
		for _, inv := range ex.Invocations {
			fmt.Fprintf(w, "    %s %s (%d attempts)\n", inv.Tool, inv.Status, inv.Attempts)
		}
		fmt.Fprintf(w, "%s\n\n", ex.Response)
	}
	return nil
}
