// Package model turns provider completions into orchestration decisions.
package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/addanuj/mcp-client/pkg/llm"
)

// DecisionKind is what the model asked for.
type DecisionKind int

const (
	KindFinalText DecisionKind = iota
	KindToolCalls
)

func (k DecisionKind) String() string {
	if k == KindToolCalls {
		return "tool_calls"
	}
	return "final_text"
}

// Call is one requested tool call with object arguments.
type Call struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Decision is either a list of tool calls or a final text.
type Decision struct {
	Kind  DecisionKind
	Calls []Call
	// Text is the final answer, or any text the model produced before its tool calls.
	Text string
}

// ToolCalls converts the calls back to the provider representation.
func (d Decision) ToolCalls() []llm.ToolCall {
	out := make([]llm.ToolCall, len(d.Calls))
	for i, c := range d.Calls {
		out[i] = llm.ToolCall{ID: c.ID, Name: c.Name, Arguments: string(c.Arguments)}
	}
	return out
}

// parseDecision validates a collected completion against the tool catalog.
func parseDecision(text string, calls []llm.ToolCall, tools []llm.Tool) (Decision, error) {
	if len(calls) == 0 {
		if strings.TrimSpace(text) == "" {
			return Decision{}, &MalformedDecisionError{Reason: "empty response without tool calls"}
		}
		return Decision{Kind: KindFinalText, Text: text}, nil
	}

	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.Name] = true
	}

	d := Decision{Kind: KindToolCalls, Text: text}
	for i, c := range calls {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return Decision{}, &MalformedDecisionError{Reason: fmt.Sprintf("tool call %d has no name", i+1)}
		}
		if !known[name] {
			return Decision{}, &MalformedDecisionError{Reason: fmt.Sprintf("unknown tool %q", name)}
		}
		args, err := objectArguments(c.Arguments)
		if err != nil {
			return Decision{}, &MalformedDecisionError{Reason: fmt.Sprintf("tool %s: %v", name, err)}
		}
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		d.Calls = append(d.Calls, Call{ID: id, Name: name, Arguments: args})
	}
	return d, nil
}

func objectArguments(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return json.RawMessage("{}"), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object")
	}
	if obj == nil {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(trimmed), nil
}
