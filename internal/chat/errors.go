package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/addanuj/mcp-client/internal/gateway"
	"github.com/addanuj/mcp-client/internal/model"
)

var (
	// ErrRoundLimit fails a turn whose model keeps asking for tools.
	ErrRoundLimit = errors.New("chat: tool round limit reached")
	// ErrTurnTimeout fails a turn that outlived the turn ceiling.
	ErrTurnTimeout = errors.New("chat: turn timed out")
)

// RequestError rejects a request before any event is streamed.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// Request is one user message addressed to a session.
type Request struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Normalize trims the request and checks it.
func (r Request) Normalize() (Request, error) {
	r.Message = strings.TrimSpace(r.Message)
	r.SessionID = strings.TrimSpace(r.SessionID)
	switch {
	case r.Message == "":
		return r, &RequestError{Message: "message is required"}
	case utf8.RuneCountInString(r.Message) > maxMessageRunes:
		return r, &RequestError{Message: fmt.Sprintf("message too long (max %d characters)", maxMessageRunes)}
	case r.SessionID == "":
		return r, &RequestError{Message: "sessionId is required"}
	}
	return r, nil
}

const genericFailure = "An error occurred processing your request."

// UserMessage maps a turn failure to text that is safe to show the user.
func UserMessage(err error) string {
	var (
		authErr      *model.AuthError
		modelErr     *model.ModelError
		malformedErr *model.MalformedDecisionError
		timeoutErr   *model.ProviderTimeoutError
		providerErr  *model.ProviderError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, ErrRoundLimit):
		return "I could not complete this request within the allowed number of tool calls. Please try a more specific question."
	case errors.Is(err, ErrTurnTimeout), errors.Is(err, context.DeadlineExceeded):
		return "I could not complete this request in time. Please try again or narrow the question."
	case errors.As(err, &authErr):
		return "The model provider rejected the request credentials. Please check the model configuration."
	case errors.As(err, &modelErr), errors.As(err, &malformedErr):
		return "I could not understand the model response. Please try again."
	case errors.As(err, &timeoutErr):
		return "I could not complete this request because the model provider did not respond in time."
	case errors.As(err, &providerErr):
		return "The model provider is currently unavailable. Please try again later."
	}
	var (
		validationErr *gateway.ValidationError
		toolTimeout   *gateway.TimeoutError
		toolErr       *gateway.ToolError
		transportErr  *gateway.TransportError
	)
	if errors.As(err, &validationErr) || errors.As(err, &toolTimeout) || errors.As(err, &toolErr) || errors.As(err, &transportErr) {
		return ToolFailureMessage(gateway.Kind(err))
	}
	return genericFailure
}

// ToolFailureMessage describes a failed tool call by its error kind.
func ToolFailureMessage(kind string) string {
	switch kind {
	case gateway.KindTimeout:
		return "The tool did not respond in time."
	case gateway.KindUnavailable:
		return "The tool server is currently unavailable."
	case gateway.KindTransport:
		return "The tool server could not be reached."
	case gateway.KindValidation:
		return "The tool rejected the request arguments."
	case gateway.KindTool:
		return "The tool reported an error."
	case gateway.KindCancelled:
		return "The tool call was cancelled."
	default:
		return genericFailure
	}
}
