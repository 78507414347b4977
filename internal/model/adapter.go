package model

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/addanuj/mcp-client/pkg/llm"
	"github.com/addanuj/mcp-client/pkg/logging"
	"github.com/addanuj/mcp-client/pkg/resilience"
)

// Decider chooses the next step of a turn.
type Decider interface {
	Decide(ctx context.Context, systemPrompt string, conversation []llm.Message, tools []llm.Tool) (Decision, error)
}

const strictSuffix = "\n\nYour previous reply could not be used. Reply with either plain answer text, " +
	"or tool calls that use only the listed tool names with arguments given as a single JSON object."

type Config struct {
	Provider llm.Provider
	// ProviderName and Model label metrics and logs.
	ProviderName string
	Model        string
	Retry        resilience.RetryConfig
	Logger       logging.Logger
}

// Adapter implements Decider over an llm.Provider.
type Adapter struct {
	provider llm.Provider
	name     string
	model    string
	retry    resilience.RetryConfig
	logger   logging.Logger
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "unknown"
	}
	return &Adapter{
		provider: cfg.Provider,
		name:     cfg.ProviderName,
		model:    cfg.Model,
		retry:    cfg.Retry,
		logger:   cfg.Logger,
	}
}

// Decide asks the model for the next step. Transient provider failures are
// retried with backoff; a malformed decision is retried once with a stricter
// system prompt before a ModelError is returned.
func (a *Adapter) Decide(ctx context.Context, systemPrompt string, conversation []llm.Message, tools []llm.Tool) (Decision, error) {
	if a.provider == nil {
		return Decision{}, errors.New("model: provider is required")
	}
	prompt := systemPrompt
	for pass := 0; ; pass++ {
		messages := make([]llm.Message, 0, len(conversation)+1)
		if strings.TrimSpace(prompt) != "" {
			messages = append(messages, llm.Message{Role: "system", Content: prompt})
		}
		messages = append(messages, conversation...)

		text, calls, err := a.complete(ctx, messages, tools)
		if err != nil {
			return Decision{}, err
		}
		decision, err := parseDecision(text, calls, tools)
		if err == nil {
			return decision, nil
		}
		if pass > 0 {
			decisionsTotal.WithLabelValues("model_error").Inc()
			return Decision{}, &ModelError{Err: err}
		}
		decisionsTotal.WithLabelValues("malformed_retry").Inc()
		if a.logger != nil {
			a.logger.WithError(err).Warn("Malformed model decision, retrying with stricter prompt")
		}
		prompt = systemPrompt + strictSuffix
	}
}

type completion struct {
	text  string
	calls []llm.ToolCall
}

func (a *Adapter) complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (string, []llm.ToolCall, error) {
	attempts := 0
	retry := resilience.NewRetryPolicy[any](a.retry, func(_ any, err error) bool {
		if err == nil || ctx.Err() != nil {
			return false
		}
		kind := llm.Classify(err)
		return kind == llm.KindTimeout || kind == llm.KindProvider
	})

	out, err := resilience.Execute(ctx, retry, nil, func(ctx context.Context) (any, error) {
		attempts++
		if attempts > 1 {
			modelRetriesTotal.WithLabelValues(a.name).Inc()
		}
		start := time.Now()
		c, err := a.collect(ctx, messages, tools)
		llmDuration.WithLabelValues(a.name, a.model).Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = llm.Classify(err).String()
		}
		llmCallsTotal.WithLabelValues(a.name, a.model, status).Inc()
		return c, err
	})
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return "", nil, ctxErr
		}
		return "", nil, classifyError(err)
	}
	c := out.(completion)
	return c.text, c.calls, nil
}

// collect buffers one streamed completion.
func (a *Adapter) collect(ctx context.Context, messages []llm.Message, tools []llm.Tool) (completion, error) {
	stream, err := a.provider.Complete(ctx, messages, tools)
	if err != nil {
		return completion{}, err
	}
	defer func() { _ = stream.Close() }()

	var text strings.Builder
	var calls []llm.ToolCall
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return completion{}, err
		}
		text.WriteString(chunk.Content)
		if len(chunk.ToolCalls) > 0 {
			calls = llm.MergeToolCalls(calls, chunk.ToolCalls)
		}
	}
	return completion{text: text.String(), calls: calls}, nil
}

func classifyError(err error) error {
	switch llm.Classify(err) {
	case llm.KindAuth:
		return &AuthError{Err: err}
	case llm.KindTimeout:
		return &ProviderTimeoutError{Err: err}
	default:
		return &ProviderError{Err: err}
	}
}
