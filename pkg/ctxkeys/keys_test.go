package ctxkeys

import (
	"context"
	"testing"
)

func TestRequestAndSessionIDs(t *testing.T) {
	ctx := WithSessionID(WithRequestID(context.Background(), "req-1"), "sess-1")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := GetSessionID(ctx); got != "sess-1" {
		t.Fatalf("expected sess-1, got %q", got)
	}
	if GetRequestID(context.Background()) != "" {
		t.Fatal("expected empty request id")
	}
	if ctx.Value("request_id") != nil {
		t.Fatal("untyped key must not collide")
	}
}
