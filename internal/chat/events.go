package chat

import (
	"errors"
	"sync"

	"github.com/addanuj/mcp-client/pkg/logging"
)

// EventType names a streamed turn event.
type EventType string

const (
	EventStatus       EventType = "status"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventContentDelta EventType = "content_delta"
	EventContentFinal EventType = "content_final"
	EventError        EventType = "error"
)

// Event is one item of a turn's event stream.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Status  string    `json:"status,omitempty"`
	Cached  bool      `json:"cached,omitempty"`
	Delta   string    `json:"delta,omitempty"`
	Content string    `json:"content,omitempty"`
}

// Terminal reports whether no event may follow e.
func (e Event) Terminal() bool {
	return e.Type == EventContentFinal || e.Type == EventError
}

// Sink receives events in order. A Sink error means the caller is gone.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error { return f(e) }

var errStreamClosed = errors.New("chat: event stream already terminated")

// Emitter is the single writer of a turn's event stream. After the first
// content event it drops tool and status events; after the terminal event
// it drops everything.
type Emitter struct {
	mu             sync.Mutex
	sink           Sink
	logger         logging.Logger
	contentStarted bool
	terminated     bool
	sinkErr        error
}

func NewEmitter(sink Sink, logger logging.Logger) *Emitter {
	return &Emitter{sink: sink, logger: logger}
}

func (e *Emitter) Status(message string) {
	_ = e.emit(Event{Type: EventStatus, Message: message})
}

func (e *Emitter) ToolCall(tool string) {
	_ = e.emit(Event{Type: EventToolCall, Tool: tool})
}

func (e *Emitter) ToolResult(tool, status string, cached bool) {
	_ = e.emit(Event{Type: EventToolResult, Tool: tool, Status: status, Cached: cached})
}

func (e *Emitter) Delta(delta string) {
	if delta == "" {
		return
	}
	_ = e.emit(Event{Type: EventContentDelta, Delta: delta})
}

// Final emits the terminal content_final event.
func (e *Emitter) Final(content string) error {
	return e.emit(Event{Type: EventContentFinal, Content: content})
}

// Error emits the terminal error event.
func (e *Emitter) Error(content string) error {
	return e.emit(Event{Type: EventError, Content: content})
}

// Terminated reports whether the terminal event was emitted.
func (e *Emitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

func (e *Emitter) emit(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		e.drop(ev, "after terminal event")
		return errStreamClosed
	}
	if e.contentStarted {
		switch ev.Type {
		case EventStatus, EventToolCall, EventToolResult:
			e.drop(ev, "after content started")
			return nil
		}
	}
	switch ev.Type {
	case EventContentDelta:
		e.contentStarted = true
	case EventContentFinal, EventError:
		e.contentStarted = true
		e.terminated = true
	}

	if e.sinkErr != nil {
		return e.sinkErr
	}
	if err := e.sink.Send(ev); err != nil {
		e.sinkErr = err
		if e.logger != nil {
			e.logger.WithError(err).Debug("Event sink closed")
		}
		return err
	}
	return nil
}

func (e *Emitter) drop(ev Event, reason string) {
	if e.logger != nil {
		e.logger.WithFields(logging.Fields{
			"event_type": ev.Type,
			"reason":     reason,
		}).Warn("Dropping out-of-order turn event")
	}
}
