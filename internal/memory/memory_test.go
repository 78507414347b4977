package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func exchange(i int) Exchange {
	return Exchange{UserMessage: fmt.Sprintf("question %d", i), Response: fmt.Sprintf("answer %d", i)}
}

func TestInMemoryStoreRetainsLastFive(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for i := 1; i <= 8; i++ {
		if err := s.Append(ctx, "s1", exchange(i)); err != nil {
			t.Fatalf("append: %v", err)
		}
		got, err := s.Context(ctx, "s1")
		if err != nil {
			t.Fatalf("context: %v", err)
		}
		if len(got) > MaxExchanges {
			t.Fatalf("after %d appends memory holds %d exchanges", i, len(got))
		}
	}
	got, _ := s.Context(ctx, "s1")
	if len(got) != 5 || got[0].UserMessage != "question 4" || got[4].UserMessage != "question 8" {
		t.Fatalf("expected questions 4..8 oldest first, got %+v", got)
	}
}

func TestInMemoryStoreIsolatesSessionsAndCopies(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Append(ctx, "a", Exchange{UserMessage: "hi", Invocations: []ToolInvocation{{Tool: "get_offenses"}}})

	if got, _ := s.Context(ctx, "b"); len(got) != 0 {
		t.Fatalf("expected empty session b, got %d", len(got))
	}

	got, _ := s.Context(ctx, "a")
	got[0].UserMessage = "mutated"
	got[0].Invocations[0].Tool = "mutated"
	again, _ := s.Context(ctx, "a")
	if again[0].UserMessage != "hi" || again[0].Invocations[0].Tool != "get_offenses" {
		t.Fatal("expected stored exchange to be immutable")
	}
}

func TestInMemoryStoreClearAndStats(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Append(ctx, "s1", exchange(1))
	_ = s.Append(ctx, "s1", exchange(2))

	st, err := s.Stats(ctx, "s1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.ExchangesStored != 2 || st.MaxExchanges != 5 || st.CreatedAt.IsZero() {
		t.Fatalf("unexpected stats %+v", st)
	}
	_ = s.Clear(ctx, "s1")
	if got, _ := s.Context(ctx, "s1"); len(got) != 0 {
		t.Fatal("expected cleared session")
	}
}

func TestStoreRequiresSessionID(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.Append(context.Background(), " ", exchange(1)); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestSummary(t *testing.T) {
	if Summary(nil) != "" {
		t.Fatal("expected empty summary without history")
	}
	long := strings.Repeat("a", 120)
	ex := []Exchange{exchange(1), exchange(2), exchange(3), {UserMessage: long, Response: "ok"}}
	out := Summary(ex)
	if strings.Contains(out, "question 1") {
		t.Fatalf("expected only the last 3 exchanges:\n%s", out)
	}
	if !strings.HasPrefix(out, "Previous context:\n- User asked: question 2\n  Assistant: answer 2") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, strings.Repeat("a", 100)+"...") || strings.Contains(out, strings.Repeat("a", 101)) {
		t.Fatalf("expected user message truncated to 100 runes:\n%s", out)
	}
}

func TestIsDuplicateQuery(t *testing.T) {
	history := []Exchange{
		{UserMessage: "Show me the top 10 offenses", Response: "first"},
		{UserMessage: "list all log sources", Response: "second"},
	}
	if ex, ok := IsDuplicateQuery(history, "  show me the TOP 10 offenses ", DefaultDuplicateThreshold); !ok || ex.Response != "first" {
		t.Fatalf("expected duplicate of first exchange, got %v %+v", ok, ex)
	}
	if _, ok := IsDuplicateQuery(history, "show me the top 5 offenses", DefaultDuplicateThreshold); ok {
		t.Fatal("expected differing query not to be a duplicate")
	}
	if _, ok := IsDuplicateQuery(nil, "anything", DefaultDuplicateThreshold); ok {
		t.Fatal("expected no duplicate without history")
	}
}

func TestInvocationFinishOnce(t *testing.T) {
	inv := NewInvocation("get_offenses", "qradar", []byte(`{"limit":10}`))
	if inv.Status != StatusPending || inv.ID == "" {
		t.Fatalf("expected pending invocation with id, got %+v", inv)
	}
	if err := inv.Finish(Outcome{Result: []any{1}, Attempts: 1, Duration: time.Millisecond}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if !inv.Succeeded() {
		t.Fatal("expected success")
	}
	if err := inv.Finish(Outcome{Err: errors.New("late")}); !errors.Is(err, ErrInvocationFinished) {
		t.Fatalf("expected ErrInvocationFinished, got %v", err)
	}
	if inv.Error != "" {
		t.Fatal("expected finished invocation to remain unchanged")
	}

	failed := NewInvocation("get_offenses", "qradar", nil)
	_ = failed.Finish(Outcome{Err: errors.New("boom"), Kind: "timeout", Attempts: 3})
	if failed.Status != StatusError || failed.Error != "boom" || failed.ErrorKind != "timeout" || failed.Attempts != 3 {
		t.Fatalf("unexpected failed invocation %+v", failed)
	}
}
