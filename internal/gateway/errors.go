package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ValidationError means the arguments do not satisfy the tool's schema, or
// the tool is not in the catalog. The server is never contacted.
type ValidationError struct {
	Tool   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Detail)
}

// TimeoutError means one attempt exceeded the per-call deadline.
type TimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %s", e.Tool, e.Timeout)
}

// ToolError is a failure reported by the tool, or an unavailable server.
type ToolError struct {
	Tool        string
	Server      string
	Message     string
	Unavailable bool
}

func (e *ToolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tool %s returned error", e.Tool)
	}
	return fmt.Sprintf("tool %s returned error: %s", e.Tool, e.Message)
}

// TransportError wraps a failure talking to the server.
type TransportError struct {
	Tool   string
	Server string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("call %s on %s: %v", e.Tool, e.Server, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Error kinds reported in invocation records.
const (
	KindValidation  = "validation"
	KindTimeout     = "timeout"
	KindTool        = "tool"
	KindUnavailable = "unavailable"
	KindTransport   = "transport"
	KindCancelled   = "cancelled"
)

// Kind classifies err into one of the Kind constants.
func Kind(err error) string {
	var (
		vErr    *ValidationError
		tErr    *TimeoutError
		toolErr *ToolError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &vErr):
		return KindValidation
	case errors.As(err, &tErr):
		return KindTimeout
	case errors.As(err, &toolErr):
		if toolErr.Unavailable {
			return KindUnavailable
		}
		return KindTool
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindTransport
	}
}
