package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerWithService(t *testing.T) {
	l := NewLoggerWithService("svc-a")
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithField("k", "v").Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json log line: %v", err)
	}
	if line["service"] != "svc-a" {
		t.Fatalf("expected service field, got %v", line["service"])
	}
	if line["k"] != "v" {
		t.Fatalf("expected k=v, got %v", line["k"])
	}
}

func TestRedactsSensitiveFields(t *testing.T) {
	l := NewLogger()
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithFields(Fields{"api_key": "sk-live-123", "qradar_token": "abc", "tool": "get_offenses"}).Warn("call")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json log line: %v", err)
	}
	if line["api_key"] != redacted || line["qradar_token"] != redacted {
		t.Fatalf("expected credentials redacted, got %v / %v", line["api_key"], line["qradar_token"])
	}
	if line["tool"] != "get_offenses" {
		t.Fatalf("expected tool field untouched, got %v", line["tool"])
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for _, key := range []string{"token", "X-API_KEY", "db_password", "client_secret", "Authorization"} {
		if !IsSensitiveKey(key) {
			t.Fatalf("expected %q to be sensitive", key)
		}
	}
	for _, key := range []string{"limit", "filter", "tool"} {
		if IsSensitiveKey(key) {
			t.Fatalf("expected %q not to be sensitive", key)
		}
	}
}
