// Package memory keeps the short conversational history of each session.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxExchanges is how many exchanges a session retains. Older ones are
// dropped first.
const MaxExchanges = 5

const (
	DefaultDuplicateThreshold = 0.9

	summaryExchanges   = 3
	summaryUserRunes   = 100
	summaryAnswerRunes = 150
)

// Store is a session memory backend.
type Store interface {
	// Context returns the retained exchanges, oldest first.
	Context(ctx context.Context, sessionID string) ([]Exchange, error)
	Append(ctx context.Context, sessionID string, exchange Exchange) error
	Clear(ctx context.Context, sessionID string) error
	Stats(ctx context.Context, sessionID string) (Stats, error)
}

// Stats describes a session's memory.
type Stats struct {
	ExchangesStored int       `json:"exchangesStored"`
	MaxExchanges    int       `json:"maxExchanges"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func validateSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("memory: session id is required")
	}
	return nil
}

// Summary renders the last few exchanges as a short preamble for the model.
// It returns "" when there is no history.
func Summary(exchanges []Exchange) string {
	if len(exchanges) == 0 {
		return ""
	}
	if len(exchanges) > summaryExchanges {
		exchanges = exchanges[len(exchanges)-summaryExchanges:]
	}
	lines := []string{"Previous context:"}
	for _, ex := range exchanges {
		lines = append(lines,
			"- User asked: "+shorten(ex.UserMessage, summaryUserRunes),
			"  Assistant: "+shorten(ex.Response, summaryAnswerRunes))
	}
	return strings.Join(lines, "\n")
}

func shorten(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

// IsDuplicateQuery returns the most recent exchange whose user message is
// equal or word-similar to message at or above threshold.
func IsDuplicateQuery(exchanges []Exchange, message string, threshold float64) (Exchange, bool) {
	msg := strings.ToLower(strings.TrimSpace(message))
	for i := len(exchanges) - 1; i >= 0; i-- {
		prev := strings.ToLower(strings.TrimSpace(exchanges[i].UserMessage))
		if msg == prev || similarity(msg, prev) >= threshold {
			return exchanges[i], true
		}
	}
	return Exchange{}, false
}

// similarity is the Jaccard index of the word sets of a and b.
func similarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}
