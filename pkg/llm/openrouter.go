package llm

import (
	"context"
	"strings"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider speaks the OpenAI chat completions dialect against
// OpenRouter, adding its attribution headers.
type OpenRouterProvider struct {
	openai *OpenAIProvider
}

func NewOpenRouterProvider(cfg Config) *OpenRouterProvider {
	cfgCopy := cfg
	if strings.TrimSpace(cfgCopy.APIURL) == "" {
		cfgCopy.APIURL = defaultOpenRouterURL
	}
	inner := NewOpenAIProvider(cfgCopy)
	inner.name = "openrouter"
	inner.headers = map[string]string{
		"HTTP-Referer": "https://github.com/addanuj/mcp-client",
		"X-Title":      "mcp-client",
	}
	return &OpenRouterProvider{openai: inner}
}

func (p *OpenRouterProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (Stream, error) {
	return p.openai.Complete(ctx, messages, tools)
}
