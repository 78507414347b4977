package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/addanuj/mcp-client/internal/chat"
	"github.com/addanuj/mcp-client/internal/history"
	"github.com/addanuj/mcp-client/pkg/middleware"
	"github.com/addanuj/mcp-client/pkg/monitoring"
	"github.com/addanuj/mcp-client/pkg/server"
	"github.com/addanuj/mcp-client/pkg/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API (SSE) with /health and /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := opts.logger
			cfg := opts.loadConfig()
			logger.WithField("version", version.String()).Info("Starting mcp-client")

			app, err := Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			metrics := monitoring.NewMetricsCollector(serviceName, version.Version, version.GitCommit)
			router := server.SetupServiceRouter(logger, serviceName, app.Health, metrics)

			api := router.Group("/api/v1", middleware.TokenAuthMiddleware(cfg.APIToken))
			chat.RegisterRoutes(api, chat.NewChatHandler(app.Orchestrator, logger))
			if app.History != nil {
				history.RegisterRoutes(api, history.NewHandler(app.History, logger))
			}
			if cfg.APIToken == "" {
				logger.Warn("API_TOKEN not set - chat API is unauthenticated")
			}

			go app.Orchestrator.RunJanitor(ctx, janitorInterval(cfg.SessionIdleTTL))

			return server.Start(ctx, server.DefaultConfig(serviceName, cfg.Port), router, logger)
		},
	}
}
