package chat

import (
	"errors"
	"testing"
)

func TestEmitterDropsEventsAfterTerminal(t *testing.T) {
	sink := &collectSink{}
	e := NewEmitter(sink, quietLogger())

	e.Status("Analyzing your request...")
	if err := e.Final("done"); err != nil {
		t.Fatalf("Final: %v", err)
	}
	e.Status("late")
	e.Delta("late")
	if err := e.Error("late"); !errors.Is(err, errStreamClosed) {
		t.Fatalf("expected errStreamClosed, got %v", err)
	}
	if err := e.Final("again"); !errors.Is(err, errStreamClosed) {
		t.Fatalf("expected errStreamClosed, got %v", err)
	}

	events := sink.Events()
	if len(events) != 2 || events[1].Type != EventContentFinal {
		t.Fatalf("unexpected events %+v", events)
	}
	if !e.Terminated() {
		t.Fatal("expected emitter terminated")
	}
}

func TestEmitterDropsToolEventsAfterContent(t *testing.T) {
	sink := &collectSink{}
	e := NewEmitter(sink, quietLogger())

	e.ToolCall("get_offenses")
	e.Delta("Here")
	e.ToolCall("get_log_sources")
	e.ToolResult("get_log_sources", "success", false)
	e.Status("Calling tool: get_log_sources")
	e.Delta(" you go")
	_ = e.Final("Here you go")

	var types []EventType
	for _, ev := range sink.Events() {
		types = append(types, ev.Type)
	}
	want := []EventType{EventToolCall, EventContentDelta, EventContentDelta, EventContentFinal}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, types)
		}
	}
}

func TestEmitterStopsWritingAfterSinkError(t *testing.T) {
	calls := 0
	gone := errors.New("client gone")
	e := NewEmitter(SinkFunc(func(Event) error {
		calls++
		return gone
	}), quietLogger())

	e.Status("one")
	e.Status("two")
	if err := e.Final("three"); !errors.Is(err, gone) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one write attempt, got %d", calls)
	}
	if !e.Terminated() {
		t.Fatal("expected terminal state recorded despite sink error")
	}
}

func TestEmptyDeltaIgnored(t *testing.T) {
	sink := &collectSink{}
	e := NewEmitter(sink, nil)
	e.Delta("")
	e.ToolCall("get_offenses")
	if events := sink.Events(); len(events) != 1 || events[0].Type != EventToolCall {
		t.Fatalf("expected empty delta to be ignored, got %+v", events)
	}
}
