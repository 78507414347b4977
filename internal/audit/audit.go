// Package audit records every tool invocation attempt to an append-only log.
// Records carry an argument digest, never the arguments themselves.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/addanuj/mcp-client/pkg/kafka"
	"github.com/addanuj/mcp-client/pkg/logging"
)

// Outcome of one attempt or of the whole invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Record is one invocation log line.
type Record struct {
	Tool       string    `json:"tool"`
	Server     string    `json:"server"`
	ArgsDigest string    `json:"argsDigest"`
	Attempt    int       `json:"attempt"`
	Final      bool      `json:"final"`
	Outcome    Outcome   `json:"outcome"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	Timestamp  time.Time `json:"timestamp"`
}

// Recorder accepts invocation records. Implementations must not block the caller
// on slow sinks for long and must never fail the invocation.
type Recorder interface {
	Record(ctx context.Context, rec Record)
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, Record) {}

// LogRecorder writes records through logrus.
type LogRecorder struct {
	logger logging.Logger
}

func NewLogRecorder(logger logging.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, rec Record) {
	entry := r.logger.WithFields(logging.Fields{
		"tool":        rec.Tool,
		"server":      rec.Server,
		"args_digest": rec.ArgsDigest,
		"attempt":     rec.Attempt,
		"final":       rec.Final,
		"outcome":     rec.Outcome,
		"duration_ms": rec.DurationMs,
	})
	if rec.Outcome == OutcomeError {
		entry.WithField("error_kind", rec.ErrorKind).WithField("error", rec.Error).Warn("tool invocation")
		return
	}
	entry.Info("tool invocation")
}

// KafkaRecorder publishes records as JSON to a topic, keyed by tool name.
type KafkaRecorder struct {
	producer kafka.Producer
	topic    string
	logger   logging.Logger
}

func NewKafkaRecorder(producer kafka.Producer, topic string, logger logging.Logger) *KafkaRecorder {
	if topic == "" {
		topic = "mcp_tool_invocations"
	}
	return &KafkaRecorder{producer: producer, topic: topic, logger: logger}
}

func (r *KafkaRecorder) Record(ctx context.Context, rec Record) {
	value, err := json.Marshal(rec)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to encode invocation record")
		return
	}
	headers := map[string]string{
		"tool":    rec.Tool,
		"server":  rec.Server,
		"outcome": string(rec.Outcome),
	}
	// The invocation context may already be cancelled; the log must still be written.
	if err := r.producer.Produce(context.WithoutCancel(ctx), r.topic, []byte(rec.Tool), value, headers); err != nil {
		r.logger.WithError(err).WithField("topic", r.topic).Warn("Failed to publish invocation record")
	}
}

// Multi fans out to several recorders in order.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, rec Record) {
	for _, r := range m {
		r.Record(ctx, rec)
	}
}

// MemoryRecorder keeps records in memory. Used by the CLI and tests.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Record
}

func (m *MemoryRecorder) Record(_ context.Context, rec Record) {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (m *MemoryRecorder) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}
