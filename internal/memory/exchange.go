package memory

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// InvocationStatus is the lifecycle state of a ToolInvocation.
type InvocationStatus string

const (
	StatusPending InvocationStatus = "pending"
	StatusSuccess InvocationStatus = "success"
	StatusError   InvocationStatus = "error"
)

// ErrInvocationFinished is returned when a finished invocation is finished again.
var ErrInvocationFinished = errors.New("memory: invocation already finished")

// ToolInvocation records one tool call made during a turn.
type ToolInvocation struct {
	ID        string           `json:"id"`
	Tool      string           `json:"tool"`
	Server    string           `json:"server,omitempty"`
	Arguments json.RawMessage  `json:"arguments"`
	Status    InvocationStatus `json:"status"`
	Result    any              `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorKind string           `json:"errorKind,omitempty"`
	Attempts  int              `json:"attempts"`
	Cached    bool             `json:"cached,omitempty"`
	Duration  time.Duration    `json:"duration"`
}

// NewInvocation creates a pending invocation with canonical arguments.
func NewInvocation(tool, server string, arguments json.RawMessage) *ToolInvocation {
	return &ToolInvocation{
		ID:        uuid.NewString(),
		Tool:      tool,
		Server:    server,
		Arguments: arguments,
		Status:    StatusPending,
	}
}

// Outcome is the final result of an invocation.
type Outcome struct {
	Result   any
	Err      error
	Kind     string
	Attempts int
	Cached   bool
	Duration time.Duration
}

// Finish moves a pending invocation to success or error. It may be called once.
func (t *ToolInvocation) Finish(o Outcome) error {
	if t.Status != StatusPending {
		return ErrInvocationFinished
	}
	t.Attempts = o.Attempts
	t.Cached = o.Cached
	t.Duration = o.Duration
	if o.Err != nil {
		t.Status = StatusError
		t.Error = o.Err.Error()
		t.ErrorKind = o.Kind
		return nil
	}
	t.Status = StatusSuccess
	t.Result = o.Result
	return nil
}

// Succeeded reports whether the invocation finished successfully.
func (t *ToolInvocation) Succeeded() bool { return t.Status == StatusSuccess }

// Exchange is one completed turn: the user message, the final response and
// the tool calls made to produce it.
type Exchange struct {
	UserMessage string           `json:"userMessage"`
	Response    string           `json:"response"`
	Invocations []ToolInvocation `json:"invocations,omitempty"`
	Failed      bool             `json:"failed,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

func (e Exchange) clone() Exchange {
	if e.Invocations != nil {
		inv := make([]ToolInvocation, len(e.Invocations))
		copy(inv, e.Invocations)
		e.Invocations = inv
	}
	return e
}
