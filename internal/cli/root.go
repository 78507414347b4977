// Package cli implements the mcp-client command: the HTTP service plus
// terminal commands that drive the same orchestrator.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	appconfig "github.com/addanuj/mcp-client/internal/config"
	"github.com/addanuj/mcp-client/pkg/config"
	"github.com/addanuj/mcp-client/pkg/logging"
)

type rootOptions struct {
	serversFile string
	verbose     bool
	noColor     bool
	output      string

	logger logging.Logger
}

// NewRootCmd returns the root command for the mcp-client binary.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Chat with LLMs over MCP tool servers",
		Long:          "mcp-client runs LLM conversations that call tools on MCP servers, as an SSE service or from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = logging.NewLoggerWithService(serviceName)
			opts.logger.SetOutput(cmd.ErrOrStderr())
			config.LoadEnv(opts.logger)
			if opts.verbose {
				opts.logger.SetLevel(logrus.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.serversFile, "servers", "", "tool-server catalog (default $MCP_SERVERS_FILE or mcp_servers.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&opts.output, "output", "text", "output format: text|json")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newAskCmd(opts))
	rootCmd.AddCommand(newChatCmd(opts))
	rootCmd.AddCommand(newToolsCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (o *rootOptions) loadConfig() appconfig.Config {
	cfg := appconfig.LoadConfig()
	if o.serversFile != "" {
		cfg.ServersFile = o.serversFile
	}
	return cfg
}

// quiet lowers the log level for terminal commands unless -v was given.
func (o *rootOptions) quiet() {
	if !o.verbose {
		o.logger.SetLevel(logrus.WarnLevel)
	}
}
