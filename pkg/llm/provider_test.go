package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMergeToolCallsReplacesArgumentsByID(t *testing.T) {
	calls := MergeToolCalls(nil, []ToolCall{{ID: "a", Name: "get_offenses", Arguments: `{"li`}})
	calls = MergeToolCalls(calls, []ToolCall{{ID: "a", Arguments: `{"limit":10}`}})
	calls = MergeToolCalls(calls, []ToolCall{{ID: "b", Name: "list_users", Arguments: `{}`}})

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "get_offenses" || calls[0].Arguments != `{"limit":10}` {
		t.Fatalf("unexpected first call %+v", calls[0])
	}
	if calls[1].ID != "b" {
		t.Fatalf("expected second call b, got %q", calls[1].ID)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"401", &StatusError{Provider: "openai", StatusCode: 401}, KindAuth},
		{"403", &StatusError{Provider: "openai", StatusCode: 403}, KindAuth},
		{"429", &StatusError{Provider: "openai", StatusCode: 429}, KindProvider},
		{"503", &StatusError{Provider: "openai", StatusCode: 503}, KindProvider},
		{"504", &StatusError{Provider: "openai", StatusCode: 504}, KindTimeout},
		{"400", &StatusError{Provider: "openai", StatusCode: 400}, KindUnknown},
		{"wrapped status", fmt.Errorf("round 1: %w", &StatusError{Provider: "anthropic", StatusCode: 500}), KindProvider},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"net timeout", fmt.Errorf("openai: request failed: %w", timeoutErr{}), KindTimeout},
		{"unauthorized text", errors.New("Unauthorized: bad credentials"), KindAuth},
		{"refused", errors.New("dial tcp: connection refused"), KindProvider},
		{"canceled", context.Canceled, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
