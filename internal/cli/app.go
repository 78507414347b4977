package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/addanuj/mcp-client/internal/audit"
	"github.com/addanuj/mcp-client/internal/chat"
	appconfig "github.com/addanuj/mcp-client/internal/config"
	"github.com/addanuj/mcp-client/internal/fingerprint"
	"github.com/addanuj/mcp-client/internal/gateway"
	"github.com/addanuj/mcp-client/internal/history"
	"github.com/addanuj/mcp-client/internal/memory"
	"github.com/addanuj/mcp-client/internal/model"
	"github.com/addanuj/mcp-client/pkg/database"
	"github.com/addanuj/mcp-client/pkg/kafka"
	"github.com/addanuj/mcp-client/pkg/llm"
	"github.com/addanuj/mcp-client/pkg/logging"
	"github.com/addanuj/mcp-client/pkg/monitoring"
	"github.com/addanuj/mcp-client/pkg/redis"
	"github.com/addanuj/mcp-client/pkg/version"
)

const serviceName = "mcp-client"

// App holds the wired components of one process.
type App struct {
	Config       appconfig.Config
	Logger       logging.Logger
	Gateway      *gateway.Gateway
	Orchestrator *chat.Orchestrator
	History      *history.Store
	Health       *monitoring.HealthChecker

	closers []func()
}

// Build connects every dependency named by cfg. Optional backends (Redis,
// Postgres, Kafka) are only dialled when configured.
func Build(ctx context.Context, cfg appconfig.Config, logger logging.Logger) (app *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app = &App{
		Config: cfg,
		Logger: logger,
		Health: monitoring.NewHealthChecker(serviceName, version.Version),
	}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	servers, err := appconfig.LoadServers(cfg.ServersFile)
	if err != nil {
		return nil, err
	}

	recorders := audit.Multi{audit.NewLogRecorder(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewKafkaProducer(cfg.KafkaBrokers, serviceName, logger)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, func() { _ = producer.Close() })
		recorders = append(recorders, audit.NewKafkaRecorder(producer, cfg.AuditTopic, logger))
		app.Health.AddCheck("kafka", monitoring.PingHealthCheck("Kafka", producer.HealthCheck))
	} else {
		logger.Info("KAFKA_BROKERS not set - invocation log goes to the service log only")
	}

	gw, err := gateway.New(ctx, gateway.Config{
		Servers:     servers,
		CallTimeout: cfg.ToolTimeout,
		Audit:       recorders,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("tool gateway: %w", err)
	}
	app.Gateway = gw
	app.closers = append(app.closers, gw.Close)
	app.Health.AddCheck("tool_servers", monitoring.ToolServersHealthCheck(gw.Servers, gw.BreakerOpen))

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	decider := model.NewAdapter(model.Config{
		Provider:     provider,
		ProviderName: cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		Logger:       logger,
	})
	app.Health.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"LLM_PROVIDER": cfg.LLM.Provider,
		"LLM_MODEL":    cfg.LLM.Model,
	}))

	store, err := app.memoryStore(ctx)
	if err != nil {
		return nil, err
	}

	var recorder chat.HistoryRecorder
	if cfg.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		db, err := database.Connect(ctx, dbCfg, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		app.History = history.NewStore(db)
		if err := app.History.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		recorder = app.History
		app.Health.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	}

	orch, err := chat.New(chat.Options{
		Decider: decider,
		Tools:   gw,
		Cache: fingerprint.NewCache(fingerprint.Options{
			TTL:        cfg.CacheTTL,
			MaxEntries: cfg.CacheMaxEntries,
		}),
		Memory:         store,
		History:        recorder,
		Canonicalizer:  canonicalizer(cfg),
		Config:         ChatConfig(cfg),
		SessionIdleTTL: cfg.SessionIdleTTL,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	app.Orchestrator = orch
	return app, nil
}

func (a *App) memoryStore(ctx context.Context) (memory.Store, error) {
	if a.Config.MemoryBackend != appconfig.MemoryBackendRedis {
		return memory.NewInMemoryStore(), nil
	}
	client, err := redis.Connect(ctx, redis.Config{URL: a.Config.RedisURL})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.Health.AddCheck("redis", monitoring.PingHealthCheck("Redis", redis.Pinger(client)))
	return memory.NewRedisStore(client, "", a.Config.MemoryTTL), nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ChatConfig maps service configuration onto the orchestrator's turn config.
func ChatConfig(cfg appconfig.Config) chat.Config {
	c := chat.DefaultConfig()
	if cfg.SystemPrompt != "" {
		c.SystemPrompt = cfg.SystemPrompt
	}
	c.MaxToolRounds = cfg.MaxToolRounds
	c.TurnTimeout = cfg.TurnTimeout
	c.StreamDeltas = cfg.StreamDeltas
	c.Clarify.Enabled = cfg.ClarifyEnabled
	if cfg.ClarifyMinLength > 0 {
		c.Clarify.MinLength = cfg.ClarifyMinLength
	}
	c.Confirm.Enabled = cfg.ConfirmDestructive
	c.Confirm.AllMutating = cfg.ConfirmAllMutating
	c.Formatter.RowThreshold = cfg.FormatRowThreshold
	return c
}

// canonicalizer leaves the configured argument names out of fingerprints,
// on top of the volatile keys ignored by default.
func canonicalizer(cfg appconfig.Config) *fingerprint.Canonicalizer {
	return fingerprint.NewCanonicalizer(cfg.FingerprintIgnoredKeys...)
}

func janitorInterval(idle time.Duration) time.Duration {
	if idle <= 0 {
		idle = chat.DefaultSessionIdleTTL
	}
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
