// Package gateway discovers tools on MCP servers and invokes them with
// schema validation, per-attempt deadlines, retries and a per-server
// circuit breaker.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kaptinlin/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/addanuj/mcp-client/internal/audit"
	"github.com/addanuj/mcp-client/internal/fingerprint"
	"github.com/addanuj/mcp-client/internal/formatter"
	"github.com/addanuj/mcp-client/pkg/logging"
	"github.com/addanuj/mcp-client/pkg/resilience"
)

const DefaultCallTimeout = 30 * time.Second

// DefaultRetryConfig is 3 attempts with backoff from 1s up to 8s.
func DefaultRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second}
}

// Invoker runs tools by name.
type Invoker interface {
	Catalog() *Catalog
	Invoke(ctx context.Context, name string, arguments json.RawMessage) (Result, error)
}

// Result is a normalized tool result. Attempts and Server are also set when
// Invoke returns an error.
type Result struct {
	Value    any
	Server   string
	Attempts int
}

type Config struct {
	Servers     []ServerConfig
	CallTimeout time.Duration
	Retry       resilience.RetryConfig
	Breaker     func(server string) resilience.CircuitBreakerConfig
	// Dial overrides the MCP connection; tests inject in-memory sessions.
	Dial         Dialer
	Audit        audit.Recorder
	Canonicalize *fingerprint.Canonicalizer
	Logger       logging.Logger
}

type serverConn struct {
	cfg     ServerConfig
	session Session
	breaker *resilience.CircuitBreaker
}

// Gateway implements Invoker over one or more MCP servers.
type Gateway struct {
	servers    map[string]*serverConn
	order      []string
	catalog    *Catalog
	validators map[string]*jsonschema.Schema
	timeout    time.Duration
	retry      resilience.RetryConfig
	audit      audit.Recorder
	canon      *fingerprint.Canonicalizer
	logger     logging.Logger
}

// New connects to every configured server and builds the catalog. A server
// that fails to connect is logged and skipped.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("gateway: logger is required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Dial == nil {
		cfg.Dial = DialMCP
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewLogRecorder(cfg.Logger)
	}
	if cfg.Canonicalize == nil {
		cfg.Canonicalize = fingerprint.NewCanonicalizer()
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.DefaultCircuitBreakerConfig
	}

	g := &Gateway{
		servers:    make(map[string]*serverConn),
		catalog:    newCatalog(),
		validators: make(map[string]*jsonschema.Schema),
		timeout:    cfg.CallTimeout,
		retry:      cfg.Retry,
		audit:      cfg.Audit,
		canon:      cfg.Canonicalize,
		logger:     cfg.Logger,
	}

	for _, sc := range cfg.Servers {
		if _, dup := g.servers[sc.Name]; dup {
			g.Close()
			return nil, fmt.Errorf("gateway: duplicate server name %q", sc.Name)
		}
		connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
		session, err := cfg.Dial(connectCtx, sc)
		if err == nil {
			err = g.register(connectCtx, sc, session, cfg.Breaker)
			if err != nil {
				_ = session.Close()
			}
		}
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				g.Close()
				return nil, ctx.Err()
			}
			g.logger.WithError(err).WithField("server", sc.Name).Warn("Skipping MCP server")
			serverUp.WithLabelValues(sc.Name).Set(0)
			continue
		}
		serverUp.WithLabelValues(sc.Name).Set(1)
	}

	g.logger.WithFields(logging.Fields{
		"servers": len(g.servers),
		"tools":   g.catalog.Len(),
	}).Info("Tool catalog ready")
	return g, nil
}

func (g *Gateway) register(ctx context.Context, sc ServerConfig, session Session, breakerCfg func(string) resilience.CircuitBreakerConfig) error {
	tools, err := listAllTools(ctx, session)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	bc := breakerCfg(sc.Name)
	bc.Logger = g.logger
	bc.ShouldCount = countsAgainstServer
	prev := bc.OnStateChange
	bc.OnStateChange = func(name string, from, to resilience.CircuitBreakerState) {
		breakerState.WithLabelValues(name).Set(float64(to))
		if prev != nil {
			prev(name, from, to)
		}
	}

	conn := &serverConn{cfg: sc, session: session, breaker: resilience.NewCircuitBreaker(bc)}
	g.servers[sc.Name] = conn
	g.order = append(g.order, sc.Name)

	for _, t := range tools {
		if !allowed(sc, t.Name) {
			continue
		}
		mutating, idempotent := classify(t, sc)
		tool := Tool{
			Name:        t.Name,
			Description: t.Description,
			Schema:      convertInputSchema(t.InputSchema),
			Mutating:    mutating,
			Destructive: mutating && destructive(t),
			Idempotent:  idempotent,
			Server:      sc.Name,
		}
		if !g.catalog.add(tool) {
			existing, _ := g.catalog.Lookup(t.Name)
			g.logger.WithFields(logging.Fields{
				"tool":    t.Name,
				"server":  sc.Name,
				"kept_on": existing.Server,
			}).Warn("Tool name collision, keeping first server")
			continue
		}
		if v, err := compileSchema(tool.Schema); err != nil {
			g.logger.WithError(err).WithField("tool", t.Name).Warn("Tool schema does not compile, skipping validation")
		} else {
			g.validators[t.Name] = v
		}
	}
	return nil
}

func allowed(sc ServerConfig, name string) bool {
	if containsName(sc.Deny, name) {
		return false
	}
	return len(sc.Allow) == 0 || containsName(sc.Allow, name)
}

func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	return jsonschema.NewCompiler().Compile(data)
}

// Catalog returns the discovered tools.
func (g *Gateway) Catalog() *Catalog { return g.catalog }

// Servers returns the connected server names in configuration order.
func (g *Gateway) Servers() []string { return append([]string(nil), g.order...) }

// BreakerOpen reports whether the server's circuit is open.
func (g *Gateway) BreakerOpen(server string) bool {
	conn, ok := g.servers[server]
	return ok && conn.breaker.IsOpen()
}

// Close ends every server session.
func (g *Gateway) Close() {
	for _, conn := range g.servers {
		if err := conn.session.Close(); err != nil {
			g.logger.WithError(err).WithField("server", conn.cfg.Name).Debug("Closing MCP session")
		}
	}
}

// Invoke validates arguments and calls the tool, retrying transient failures.
func (g *Gateway) Invoke(ctx context.Context, name string, arguments json.RawMessage) (Result, error) {
	tool, ok := g.catalog.Lookup(name)
	if !ok {
		return Result{}, &ValidationError{Tool: name, Detail: "unknown tool"}
	}
	conn := g.servers[tool.Server]
	res := Result{Server: tool.Server}

	args, err := decodeArguments(arguments)
	if err != nil {
		return res, &ValidationError{Tool: name, Detail: err.Error()}
	}
	if v := g.validators[name]; v != nil {
		if result := v.Validate(args); !result.Valid {
			return res, &ValidationError{Tool: name, Detail: describeErrors(result.Errors)}
		}
	}

	digest := ""
	if canonical, err := g.canon.Canonical(arguments); err == nil {
		digest = fingerprint.Digest(canonical)
	}

	retry := resilience.NewRetryPolicy[any](g.retry, func(_ any, err error) bool {
		return shouldRetry(ctx, tool, err)
	})

	start := time.Now()
	value, err := resilience.Execute(ctx, retry, conn.breaker, func(ctx context.Context) (any, error) {
		res.Attempts++
		attemptStart := time.Now()
		v, err := g.attempt(ctx, conn, tool, args)
		g.record(ctx, tool, digest, res.Attempts, false, err, time.Since(attemptStart))
		return v, err
	})
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		err = ctxErr
	}
	if resilience.IsOpenError(err) {
		err = &ToolError{Tool: name, Server: tool.Server, Message: "server unavailable", Unavailable: true}
	}
	if err == nil {
		res.Value = value
	}
	g.record(ctx, tool, digest, res.Attempts, true, err, time.Since(start))
	toolCallsTotal.WithLabelValues(name, outcomeLabel(err)).Inc()
	toolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return res, err
}

func (g *Gateway) attempt(ctx context.Context, conn *serverConn, tool Tool, args map[string]any) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := conn.session.CallTool(callCtx, &mcp.CallToolParams{Name: tool.Name, Arguments: args})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Tool: tool.Name, Timeout: g.timeout}
		}
		return nil, &TransportError{Tool: tool.Name, Server: conn.cfg.Name, Err: err}
	}
	if out.IsError {
		return nil, &ToolError{Tool: tool.Name, Server: conn.cfg.Name, Message: textContent(out)}
	}
	return normalizeResult(out), nil
}

// shouldRetry retries timeouts and transport failures, tool errors only for
// idempotent tools, and never validation failures, open circuits or caller
// cancellation.
func shouldRetry(ctx context.Context, tool Tool, err error) bool {
	if err == nil || ctx.Err() != nil || resilience.IsOpenError(err) {
		return false
	}
	switch Kind(err) {
	case KindTimeout, KindTransport:
		return true
	case KindTool:
		return tool.Idempotent
	default:
		return false
	}
}

// countsAgainstServer counts timeouts and transport failures toward opening
// the breaker. A tool reporting an error means the server is responsive.
func countsAgainstServer(_ any, err error) bool {
	switch Kind(err) {
	case KindTimeout, KindTransport:
		return true
	default:
		return false
	}
}

func (g *Gateway) record(ctx context.Context, tool Tool, digest string, attempt int, final bool, err error, d time.Duration) {
	rec := audit.Record{
		Tool:       tool.Name,
		Server:     tool.Server,
		ArgsDigest: digest,
		Attempt:    attempt,
		Final:      final,
		Outcome:    audit.OutcomeSuccess,
		DurationMs: d.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		rec.Outcome = audit.OutcomeError
		rec.ErrorKind = Kind(err)
		rec.Error = err.Error()
	}
	g.audit.Record(ctx, rec)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return Kind(err)
}

func decodeArguments(arguments json.RawMessage) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(arguments))
	if trimmed == "" || trimmed == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func describeErrors[E any](errs map[string]E) string {
	if len(errs) == 0 {
		return "schema validation failed"
	}
	parts := make([]string, 0, len(errs))
	for key, e := range errs {
		parts = append(parts, fmt.Sprintf("%s: %v", key, e))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// normalizeResult prefers structured content and otherwise decodes the
// joined text content as JSON, keeping it as text when it does not parse.
func normalizeResult(out *mcp.CallToolResult) any {
	if out.StructuredContent != nil {
		return formatter.Normalize(out.StructuredContent)
	}
	text := textContent(out)
	if v, err := formatter.Decode([]byte(text)); err == nil {
		return v
	}
	return text
}

// textContent joins all TextContent entries from a CallToolResult.
func textContent(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
