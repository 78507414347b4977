package chat

import (
	"strings"
	"unicode/utf8"
)

// ClarifyConfig holds the ambiguity heuristics applied before a turn reaches the model.
type ClarifyConfig struct {
	Enabled bool
	// MinLength is the shortest message, in runes, that is not ambiguous by itself.
	MinLength      int
	Pronouns       []string
	ActionVerbs    []string
	Confirmations  []string
	FollowUps      map[string]string
	Domains        []DomainHint
	MaxSuggestions int
}

// DomainHint adds suggestions when a message mentions one of Keywords.
type DomainHint struct {
	Keywords    []string
	Suggestions []string
}

// DefaultClarifyConfig returns the built-in heuristics.
func DefaultClarifyConfig() ClarifyConfig {
	return ClarifyConfig{
		Enabled:       true,
		MinLength:     3,
		Pronouns:      []string{"it", "this", "that", "they", "them", "those", "these"},
		ActionVerbs:   []string{"show", "get", "list", "display", "find", "fix", "check", "delete", "remove", "update", "run"},
		Confirmations: []string{"yes", "no", "ok", "okay", "sure", "maybe"},
		FollowUps: map[string]string{
			"more":      "What would you like to see more of?",
			"another":   "Another what specifically?",
			"same":      "Same as what?",
			"again":     "What would you like me to do again?",
			"different": "Different how?",
		},
		Domains: []DomainHint{
			{
				Keywords:    []string{"user", "users", "account", "accounts"},
				Suggestions: []string{"List all users", "Show user details by ID", "Find users by name", "Show user permissions"},
			},
			{
				Keywords:    []string{"offense", "offenses", "incident", "incidents", "alert", "alerts"},
				Suggestions: []string{"List recent offenses", "Show offense by ID", "Filter by severity", "Show offense count"},
			},
			{
				Keywords:    []string{"reference set", "reference sets", "reference"},
				Suggestions: []string{"List all reference sets", "Show reference set entries", "Search reference sets"},
			},
			{
				Keywords:    []string{"system", "version", "health", "status", "info"},
				Suggestions: []string{"Show system version", "Check system health", "Show deployment info"},
			},
		},
		MaxSuggestions: 4,
	}
}

// Clarification is a question sent back instead of running the turn.
type Clarification struct {
	Message     string
	Reason      string
	Suggestions []string
}

// Render formats the question as markdown.
func (c *Clarification) Render() string {
	var b strings.Builder
	b.WriteString("**Clarification needed**\n\n")
	b.WriteString(c.Reason)
	if len(c.Suggestions) > 0 {
		b.WriteString("\n\n**Did you mean:**")
		for _, s := range c.Suggestions {
			b.WriteString("\n- ")
			b.WriteString(s)
		}
	}
	return b.String()
}

// Analyze reports whether message needs a clarifying question. hasHistory is
// true when the session already has exchanges to resolve references against.
func (c ClarifyConfig) Analyze(message string, hasHistory bool) (*Clarification, bool) {
	if !c.Enabled {
		return nil, false
	}
	text := strings.ToLower(strings.TrimSpace(message))
	words := strings.Fields(strings.Trim(text, "?!. "))

	var reason string
	switch {
	case utf8.RuneCountInString(text) < c.MinLength:
		reason = "Your message is too short to understand. Please provide more details about what you'd like to do."
	case len(words) == 1 && contains(c.ActionVerbs, words[0]):
		reason = "What would you like me to " + words[0] + "?"
	case hasHistory:
		return nil, false
	case allIn(words, c.Pronouns):
		reason = "I need more context to understand your request. Please specify what you'd like me to do."
	case len(words) == 1 && contains(c.Confirmations, words[0]):
		reason = "I need more context to understand your request. What should I confirm?"
	case len(words) == 2 && contains(c.ActionVerbs, words[0]) && contains(c.Pronouns, words[1]):
		reason = "What would you like me to " + words[0] + "? Please name the item or system you mean."
	case len(words) <= 2:
		for _, w := range words {
			if q, ok := c.FollowUps[w]; ok {
				reason = q
				break
			}
		}
	}
	if reason == "" {
		return nil, false
	}
	return &Clarification{
		Message:     message,
		Reason:      reason,
		Suggestions: c.suggestions(text),
	}, true
}

func (c ClarifyConfig) suggestions(text string) []string {
	var out []string
	for _, d := range c.Domains {
		for _, kw := range d.Keywords {
			if strings.Contains(text, kw) {
				out = append(out, d.Suggestions...)
				break
			}
		}
	}
	if c.MaxSuggestions > 0 && len(out) > c.MaxSuggestions {
		out = out[:c.MaxSuggestions]
	}
	return out
}

func contains(list []string, word string) bool {
	for _, w := range list {
		if w == word {
			return true
		}
	}
	return false
}

func allIn(words, list []string) bool {
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !contains(list, w) {
			return false
		}
	}
	return true
}
