package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appconfig "github.com/addanuj/mcp-client/internal/config"
	"github.com/addanuj/mcp-client/internal/gateway"
	"github.com/addanuj/mcp-client/pkg/logging"
)

func newToolsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Connect to the configured MCP servers and list their tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.quiet()
			gw, err := connectGateway(cmd.Context(), opts.loadConfig(), opts.logger)
			if err != nil {
				return err
			}
			defer gw.Close()
			return printTools(cmd.OutOrStdout(), gw.Catalog().Tools(), opts.output)
		},
	}
}

// connectGateway dials the tool servers without the rest of the stack.
func connectGateway(ctx context.Context, cfg appconfig.Config, logger logging.Logger) (*gateway.Gateway, error) {
	servers, err := appconfig.LoadServers(cfg.ServersFile)
	if err != nil {
		return nil, err
	}
	return gateway.New(ctx, gateway.Config{Servers: servers, CallTimeout: cfg.ToolTimeout, Logger: logger})
}

func printTools(w io.Writer, tools []gateway.Tool, output string) error {
	sorted := append([]gateway.Tool(nil), tools...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Server != sorted[j].Server {
			return sorted[i].Server < sorted[j].Server
		}
		return sorted[i].Name < sorted[j].Name
	})

	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sorted)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tTOOL\tACCESS\tDESCRIPTION")
	for _, t := range sorted {
		access := "read"
		if t.Mutating {
			access = "write"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Server, t.Name, access, firstLine(t.Description))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
