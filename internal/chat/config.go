package chat

import (
	"time"

	"github.com/addanuj/mcp-client/internal/formatter"
)

const (
	defaultMaxToolRounds   = 6
	defaultTurnTimeout     = 5 * time.Minute
	defaultDeltaChunkRunes = 80
	maxMessageRunes        = 10000
)

const defaultSystemPrompt = `You are an operations assistant that answers questions using the tools available to you.
Call tools to fetch data instead of guessing. Call tools one batch at a time and wait for their results.
To show a tool result to the user, write {{result:N}} on its own line, where N is the position of the tool call in this turn starting at 1. The result will be rendered as a table, so do not copy raw tool output into your answer.
If a tool fails, explain the failure briefly or try a different tool.`

// Config is captured by value at the start of every turn. Changing the
// orchestrator's config never affects a turn already running.
type Config struct {
	SystemPrompt  string
	MaxToolRounds int
	TurnTimeout   time.Duration
	// StreamDeltas sends the answer as content_delta chunks before content_final.
	StreamDeltas    bool
	DeltaChunkRunes int
	Clarify         ClarifyConfig
	Confirm         ConfirmConfig
	Formatter       formatter.Options
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:    defaultSystemPrompt,
		MaxToolRounds:   defaultMaxToolRounds,
		TurnTimeout:     defaultTurnTimeout,
		StreamDeltas:    true,
		DeltaChunkRunes: defaultDeltaChunkRunes,
		Clarify:         DefaultClarifyConfig(),
		Confirm:         DefaultConfirmConfig(),
	}
}

func (c Config) withDefaults() Config {
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = defaultMaxToolRounds
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = defaultTurnTimeout
	}
	if c.DeltaChunkRunes <= 0 {
		c.DeltaChunkRunes = defaultDeltaChunkRunes
	}
	return c
}
