package chat

import (
	"strings"
	"testing"
)

func TestAnalyze(t *testing.T) {
	cfg := DefaultClarifyConfig()
	tests := []struct {
		message    string
		hasHistory bool
		want       bool
	}{
		{"hi", false, true},
		{"hi", true, true},
		{"show", false, true},
		{"list?", true, true},
		{"fix it", false, true},
		{"fix it", true, false},
		{"them", false, true},
		{"those", true, false},
		{"yes", false, true},
		{"okay", true, false},
		{"more", false, true},
		{"show more", false, true},
		{"again", true, false},
		{"show me the top 10 offenses", false, false},
		{"list users", false, false},
		{"what is the system version", false, false},
	}
	for _, tt := range tests {
		_, got := cfg.Analyze(tt.message, tt.hasHistory)
		if got != tt.want {
			t.Errorf("Analyze(%q, history=%v) = %v, want %v", tt.message, tt.hasHistory, got, tt.want)
		}
	}
}

func TestAnalyzeDisabled(t *testing.T) {
	cfg := DefaultClarifyConfig()
	cfg.Enabled = false
	if _, ok := cfg.Analyze("it", false); ok {
		t.Fatal("expected no clarification when disabled")
	}
}

func TestAnalyzeFollowUpReason(t *testing.T) {
	c, ok := DefaultClarifyConfig().Analyze("same again", false)
	if !ok || c.Reason != "Same as what?" {
		t.Fatalf("expected follow-up reason, got %+v", c)
	}
}

func TestClarificationSuggestions(t *testing.T) {
	cfg := DefaultClarifyConfig()
	c, ok := cfg.Analyze("show them offenses", false)
	if ok {
		t.Fatalf("did not expect a three word request to be ambiguous: %+v", c)
	}

	c, ok = cfg.Analyze("alerts?", false)
	if ok {
		t.Fatalf("did not expect a topic word to be ambiguous: %+v", c)
	}

	c = &Clarification{Message: "users", Reason: "Which users?", Suggestions: cfg.suggestions("users and system status")}
	if len(c.Suggestions) != cfg.MaxSuggestions {
		t.Fatalf("expected suggestions capped at %d, got %v", cfg.MaxSuggestions, c.Suggestions)
	}
	out := c.Render()
	if !strings.HasPrefix(out, "**Clarification needed**\n\nWhich users?\n\n**Did you mean:**\n- List all users") {
		t.Fatalf("unexpected rendering:\n%s", out)
	}
}

func TestRenderWithoutSuggestions(t *testing.T) {
	c := &Clarification{Reason: "Different how?"}
	if got := c.Render(); got != "**Clarification needed**\n\nDifferent how?" {
		t.Fatalf("unexpected rendering %q", got)
	}
}
