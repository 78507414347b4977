package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/addanuj/mcp-client/internal/gateway"
	"github.com/addanuj/mcp-client/pkg/config"
	"github.com/addanuj/mcp-client/pkg/llm"
)

const (
	MemoryBackendInMemory = "memory"
	MemoryBackendRedis    = "redis"
)

// Config stores environment configuration for the chat service.
type Config struct {
	Port     string
	APIToken string

	LLM llm.Config

	ToolTimeout        time.Duration
	TurnTimeout        time.Duration
	MaxToolRounds      int
	FormatRowThreshold int
	StreamDeltas       bool
	SystemPrompt       string

	CacheTTL        time.Duration
	CacheMaxEntries int
	SessionIdleTTL  time.Duration
	// FingerprintIgnoredKeys are argument names left out of call fingerprints.
	FingerprintIgnoredKeys []string

	MemoryBackend string
	MemoryTTL     time.Duration
	RedisURL      string

	DatabaseURL  string
	KafkaBrokers []string
	AuditTopic   string

	ClarifyEnabled   bool
	ClarifyMinLength int

	ConfirmDestructive bool
	ConfirmAllMutating bool

	ServersFile string
}

// LoadConfig loads the service configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:     config.GetEnv("PORT", "8080"),
		APIToken: config.GetEnv("API_TOKEN", ""),

		LLM: llm.LoadConfig(),

		ToolTimeout:        config.GetEnvDuration("TOOL_TIMEOUT", gateway.DefaultCallTimeout),
		TurnTimeout:        config.GetEnvDuration("TURN_TIMEOUT", 5*time.Minute),
		MaxToolRounds:      config.GetEnvInt("MAX_TOOL_ROUNDS", 6),
		FormatRowThreshold: config.GetEnvInt("FORMAT_ROW_THRESHOLD", 10),
		StreamDeltas:       config.GetEnvBool("STREAM_DELTAS", true),
		SystemPrompt:       config.GetEnv("SYSTEM_PROMPT", ""),

		CacheTTL:        config.GetEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheMaxEntries: config.GetEnvInt("CACHE_MAX_ENTRIES", 50),
		SessionIdleTTL:  config.GetEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),

		FingerprintIgnoredKeys: config.GetEnvList("FINGERPRINT_IGNORED_KEYS", nil),

		MemoryBackend: strings.ToLower(config.GetEnv("MEMORY_BACKEND", MemoryBackendInMemory)),
		MemoryTTL:     config.GetEnvDuration("MEMORY_TTL", 30*time.Minute),
		RedisURL:      config.GetEnv("REDIS_URL", ""),

		DatabaseURL:  config.GetEnv("DATABASE_URL", ""),
		KafkaBrokers: config.GetEnvList("KAFKA_BROKERS", nil),
		AuditTopic:   config.GetEnv("AUDIT_TOPIC", "mcp.tool_invocations"),

		ClarifyEnabled:   config.GetEnvBool("CLARIFY_ENABLED", true),
		ClarifyMinLength: config.GetEnvInt("CLARIFY_MIN_LENGTH", 3),

		ConfirmDestructive: config.GetEnvBool("CONFIRM_DESTRUCTIVE", true),
		ConfirmAllMutating: config.GetEnvBool("CONFIRM_ALL_MUTATING", false),

		ServersFile: config.GetEnv("MCP_SERVERS_FILE", "mcp_servers.yaml"),
	}
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	switch c.MemoryBackend {
	case MemoryBackendInMemory:
	case MemoryBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("MEMORY_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown MEMORY_BACKEND %q", c.MemoryBackend)
	}
	if c.MaxToolRounds < 1 {
		return fmt.Errorf("MAX_TOOL_ROUNDS must be at least 1")
	}
	if c.FormatRowThreshold < 1 {
		return fmt.Errorf("FORMAT_ROW_THRESHOLD must be at least 1")
	}
	return nil
}

type serversFile struct {
	Servers []gateway.ServerConfig `yaml:"servers"`
}

// LoadServers reads the tool-server catalog. ${VAR} references are expanded
// from the environment before parsing.
func LoadServers(path string) ([]gateway.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read servers file: %w", err)
	}
	return ParseServers(data)
}

func ParseServers(data []byte) ([]gateway.ServerConfig, error) {
	var file serversFile
	if err := yaml.Unmarshal([]byte(config.Expand(string(data))), &file); err != nil {
		return nil, fmt.Errorf("parse servers file: %w", err)
	}
	seen := make(map[string]bool, len(file.Servers))
	for _, s := range file.Servers {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate server name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return file.Servers, nil
}
