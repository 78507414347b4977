package gateway

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/addanuj/mcp-client/pkg/version"
)

// Transport kinds.
const (
	TransportStdio     = "stdio"
	TransportContainer = "container"
	TransportHTTP      = "http"
	TransportSSE       = "sse"
)

// ServerConfig describes one MCP tool server.
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"`
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	// Container and Runtime select `<runtime> exec -i <container> <command>`.
	Container string `yaml:"container,omitempty"`
	Runtime   string `yaml:"runtime,omitempty"`
	URL       string `yaml:"url,omitempty"`
	Token     string `yaml:"token,omitempty"`

	Allow    []string `yaml:"allow,omitempty"`
	Deny     []string `yaml:"deny,omitempty"`
	ReadOnly []string `yaml:"read_only,omitempty"`
	Mutating []string `yaml:"mutating,omitempty"`
}

// Validate checks the fields required by the transport.
func (c ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("server name is required")
	}
	switch c.transport() {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("server %s: stdio transport requires command", c.Name)
		}
	case TransportContainer:
		if c.Container == "" || c.Command == "" {
			return fmt.Errorf("server %s: container transport requires container and command", c.Name)
		}
	case TransportHTTP, TransportSSE:
		if c.URL == "" {
			return fmt.Errorf("server %s: %s transport requires url", c.Name, c.Transport)
		}
	default:
		return fmt.Errorf("server %s: unknown transport %q", c.Name, c.Transport)
	}
	return nil
}

func (c ServerConfig) transport() string {
	if c.Transport == "" {
		return TransportStdio
	}
	return c.Transport
}

// Session is the subset of an MCP client session used by the gateway.
type Session interface {
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer opens a session to a server.
type Dialer func(ctx context.Context, cfg ServerConfig) (Session, error)

// DialMCP connects with the go-sdk client over the configured transport.
func DialMCP(ctx context.Context, cfg ServerConfig) (Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "mcp-client", Version: version.Version}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Name, err)
	}
	return session, nil
}

func newTransport(cfg ServerConfig) (mcp.Transport, error) {
	switch cfg.transport() {
	case TransportStdio:
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Env = commandEnv(cfg.Env)
		return &mcp.CommandTransport{Command: cmd}, nil
	case TransportContainer:
		runtime := cfg.Runtime
		if runtime == "" {
			runtime = "podman"
		}
		args := []string{"exec", "-i"}
		for _, k := range sortedEnvKeys(cfg.Env) {
			args = append(args, "-e", k+"="+cfg.Env[k])
		}
		args = append(args, cfg.Container, cfg.Command)
		args = append(args, cfg.Args...)
		return &mcp.CommandTransport{Command: exec.Command(runtime, args...)}, nil
	case TransportHTTP:
		return &mcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient(cfg.Token)}, nil
	case TransportSSE:
		return &mcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient(cfg.Token)}, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

func commandEnv(extra map[string]string) []string {
	env := os.Environ()
	for _, k := range sortedEnvKeys(extra) {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func sortedEnvKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func httpClient(token string) *http.Client {
	return &http.Client{
		Transport: &authTransport{base: http.DefaultTransport, token: token},
	}
}

// authTransport sets a bearer token on every request when one is configured.
type authTransport struct {
	base  http.RoundTripper
	token string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

// listAllTools pages through ListTools.
func listAllTools(ctx context.Context, s Session) ([]*mcp.Tool, error) {
	var out []*mcp.Tool
	params := &mcp.ListToolsParams{}
	for page := 0; page < 100; page++ {
		res, err := s.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Tools...)
		if res.NextCursor == "" {
			return out, nil
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
	return out, nil
}

const defaultConnectTimeout = 30 * time.Second
