package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/addanuj/mcp-client/internal/fingerprint"
	"github.com/addanuj/mcp-client/internal/gateway"
	"github.com/addanuj/mcp-client/internal/memory"
	"github.com/addanuj/mcp-client/internal/model"
	"github.com/addanuj/mcp-client/pkg/llm"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type step func(ctx context.Context, conversation []llm.Message) (model.Decision, error)

func callTool(name, args string) step {
	return func(context.Context, []llm.Message) (model.Decision, error) {
		return model.Decision{
			Kind:  model.KindToolCalls,
			Calls: []model.Call{{ID: "call_" + name, Name: name, Arguments: json.RawMessage(args)}},
		}, nil
	}
}

func answer(text string) step {
	return func(context.Context, []llm.Message) (model.Decision, error) {
		return model.Decision{Kind: model.KindFinalText, Text: text}, nil
	}
}

func failWith(err error) step {
	return func(context.Context, []llm.Message) (model.Decision, error) {
		return model.Decision{}, err
	}
}

// scriptedDecider plays steps in order and repeats the last one.
type scriptedDecider struct {
	mu            sync.Mutex
	steps         []step
	calls         int
	conversations [][]llm.Message
	systems       []string
}

func newDecider(steps ...step) *scriptedDecider {
	return &scriptedDecider{steps: steps}
}

func (d *scriptedDecider) Decide(ctx context.Context, systemPrompt string, conversation []llm.Message, _ []llm.Tool) (model.Decision, error) {
	d.mu.Lock()
	i := d.calls
	d.calls++
	d.conversations = append(d.conversations, append([]llm.Message(nil), conversation...))
	d.systems = append(d.systems, systemPrompt)
	s := d.steps[len(d.steps)-1]
	if i < len(d.steps) {
		s = d.steps[i]
	}
	d.mu.Unlock()
	return s(ctx, conversation)
}

func (d *scriptedDecider) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeInvoker struct {
	catalog *gateway.Catalog
	mu      sync.Mutex
	calls   map[string]int
	handle  func(ctx context.Context, name string, args json.RawMessage) (gateway.Result, error)
}

func newInvoker(handle func(ctx context.Context, name string, args json.RawMessage) (gateway.Result, error), tools ...gateway.Tool) *fakeInvoker {
	return &fakeInvoker{catalog: gateway.NewCatalog(tools...), calls: make(map[string]int), handle: handle}
}

func (f *fakeInvoker) Catalog() *gateway.Catalog { return f.catalog }

func (f *fakeInvoker) Invoke(ctx context.Context, name string, args json.RawMessage) (gateway.Result, error) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
	return f.handle(ctx, name, args)
}

func (f *fakeInvoker) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func returning(v any) func(context.Context, string, json.RawMessage) (gateway.Result, error) {
	return func(context.Context, string, json.RawMessage) (gateway.Result, error) {
		return gateway.Result{Value: v, Server: "qradar", Attempts: 1}, nil
	}
}

var readTools = []gateway.Tool{
	{Name: "get_offenses", Server: "qradar", Idempotent: true},
	{Name: "get_log_sources", Server: "qradar", Idempotent: true},
}

// spyCache counts accesses to a real fingerprint cache.
type spyCache struct {
	*fingerprint.Cache
	mu       sync.Mutex
	resolves int
}

func newSpyCache() *spyCache {
	return &spyCache{Cache: fingerprint.NewCache(fingerprint.Options{})}
}

func (s *spyCache) Resolve(ctx context.Context, sessionID string, fp fingerprint.Fingerprint, load func(ctx context.Context) (any, error)) (any, bool, error) {
	s.mu.Lock()
	s.resolves++
	s.mu.Unlock()
	return s.Cache.Resolve(ctx, sessionID, fp, load)
}

func (s *spyCache) Resolves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolves
}

type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) Send(e Event) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *collectSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *collectSink) Last() Event {
	events := s.Events()
	if len(events) == 0 {
		return Event{}
	}
	return events[len(events)-1]
}

type harness struct {
	orch    *Orchestrator
	decider *scriptedDecider
	tools   *fakeInvoker
	cache   *spyCache
	memory  *memory.InMemoryStore
}

func newHarness(t *testing.T, decider *scriptedDecider, tools *fakeInvoker, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{decider: decider, tools: tools, cache: newSpyCache(), memory: memory.NewInMemoryStore()}
	opts := Options{
		Decider: decider,
		Tools:   tools,
		Cache:   h.cache,
		Memory:  h.memory,
		Config:  DefaultConfig(),
		Logger:  quietLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	orch, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.orch = orch
	return h
}

func (h *harness) run(t *testing.T, sessionID, message string) *collectSink {
	t.Helper()
	sink := &collectSink{}
	if err := h.orch.Run(context.Background(), Request{SessionID: sessionID, Message: message}, sink); err != nil {
		t.Fatalf("Run(%q): %v", message, err)
	}
	return sink
}

func (h *harness) exchanges(t *testing.T, sessionID string) []memory.Exchange {
	t.Helper()
	ex, err := h.memory.Context(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("memory context: %v", err)
	}
	return ex
}

func requireSingleTerminal(t *testing.T, events []Event) Event {
	t.Helper()
	terminal := 0
	for _, e := range events {
		if e.Terminal() {
			terminal++
		}
	}
	if terminal != 1 {
		t.Fatalf("expected exactly one terminal event, got %d in %+v", terminal, events)
	}
	last := events[len(events)-1]
	if !last.Terminal() {
		t.Fatalf("expected terminal event last, got %+v", last)
	}
	return last
}

func offenses(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{"id": i + 1, "description": fmt.Sprintf("offense %d", i+1), "severity": 5}
	}
	return out
}

func tableRows(out string) int {
	rows := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "|") && !strings.HasPrefix(line, "| ---") {
			rows++
		}
	}
	if rows == 0 {
		return 0
	}
	return rows - 1
}
