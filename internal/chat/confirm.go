package chat

import (
	"strings"

	"github.com/addanuj/mcp-client/internal/gateway"
	"github.com/addanuj/mcp-client/internal/model"
)

const declinedAnswer = "Cancelled. No changes were made."

// ConfirmConfig gates destructive tool calls behind an explicit reply.
type ConfirmConfig struct {
	Enabled bool
	// AllMutating extends the gate from destructive calls to every mutating call.
	AllMutating  bool
	Affirmations []string
	Declines     []string
}

// DefaultConfirmConfig returns the built-in gate.
func DefaultConfirmConfig() ConfirmConfig {
	return ConfirmConfig{
		Enabled:      true,
		Affirmations: []string{"yes", "yeah", "yep", "sure", "ok", "okay", "confirm", "confirmed", "proceed", "do it", "go ahead"},
		Declines:     []string{"no", "nope", "cancel", "stop", "abort", "don't", "do not", "never mind", "nevermind"},
	}
}

// Confirmation is a request held back until the user approves it.
type Confirmation struct {
	Message string
	Tools   []string
}

// Render formats the question as markdown.
func (c *Confirmation) Render() string {
	var b strings.Builder
	b.WriteString("**Confirmation required**\n\n")
	b.WriteString("This request would run a destructive operation: ")
	for i, name := range c.Tools {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("`" + name + "`")
	}
	b.WriteString(".\n\nReply \"yes\" to proceed or \"no\" to cancel.")
	return b.String()
}

// gated returns the names of calls in the decision that need approval.
func (c ConfirmConfig) gated(catalog *gateway.Catalog, calls []model.Call) []string {
	if !c.Enabled {
		return nil
	}
	var names []string
	for _, call := range calls {
		tool, ok := catalog.Lookup(call.Name)
		if !ok {
			continue
		}
		if gateway.IsDestructiveCall(tool, call.Arguments) || (c.AllMutating && gateway.IsMutatingCall(tool, call.Arguments)) {
			names = append(names, call.Name)
		}
	}
	return names
}

// Reply classifies the answer to a confirmation question.
func (c ConfirmConfig) Reply(message string) (approved, declined bool) {
	text := strings.ToLower(strings.Trim(strings.TrimSpace(message), "!.? "))
	if startsWithAny(text, c.Declines) {
		return false, true
	}
	return startsWithAny(text, c.Affirmations), false
}

// startsWithAny matches a phrase as the whole text or its leading words.
func startsWithAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if text == p || strings.HasPrefix(text, p+" ") || strings.HasPrefix(text, p+",") {
			return true
		}
	}
	return false
}
