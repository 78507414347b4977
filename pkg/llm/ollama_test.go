package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProviderDefaults(t *testing.T) {
	p := NewOllamaProvider(Config{Model: "llama3.1"})
	if p.openai.apiURL != "http://localhost:11434/v1" {
		t.Fatalf("unexpected default base URL %q", p.openai.apiURL)
	}
	if p.openai.name != "ollama" {
		t.Fatalf("unexpected provider name %q", p.openai.name)
	}

	p = NewOllamaProvider(Config{Model: "llama3.1", APIURL: "http://gpu-box:11434/v1/"})
	if p.openai.apiURL != "http://gpu-box:11434/v1" {
		t.Fatalf("expected configured base URL, got %q", p.openai.apiURL)
	}
}

func TestOllamaProviderPassesToolsThrough(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if len(req.Tools) != 1 || req.Tools[0].Type != "function" || req.Tools[0].Function.Name != "get_offenses" {
			t.Errorf("unexpected tools %+v", req.Tools)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"get_offenses\",\"arguments\":\"{\\\"limit\\\"\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\":10}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOllamaProvider(Config{APIURL: server.URL + "/v1", Model: "llama3.1"})
	stream, err := provider.Complete(context.Background(), []Message{{Role: "user", Content: "top offenses"}}, []Tool{{
		Name:       "get_offenses",
		Parameters: map[string]interface{}{"type": "object"},
	}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	defer stream.Close()

	var calls []ToolCall
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		calls = MergeToolCalls(calls, chunk.ToolCalls)
	}
	if len(calls) != 1 || calls[0].ID != "call_1" || calls[0].Name != "get_offenses" || calls[0].Arguments != `{"limit":10}` {
		t.Fatalf("unexpected tool calls %+v", calls)
	}
}

func TestOllamaProviderStatusErrorNamesProvider(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewOllamaProvider(Config{APIURL: server.URL + "/v1", Model: "llama3.1"})
	_, err := provider.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Provider != "ollama" || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected ollama status error, got %v", err)
	}
	if Classify(err) != KindProvider {
		t.Fatalf("expected provider error kind, got %s", Classify(err))
	}
}
