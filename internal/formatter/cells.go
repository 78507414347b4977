package formatter

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

func (f *Formatter) cell(v any) string {
	var text string
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			text = "Yes"
		} else {
			text = "No"
		}
	case json.Number:
		text = formatNumber(t)
	case string:
		text = t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		text = string(data)
	}
	text = strings.Join(strings.Fields(text), " ")
	return escapeCell(truncateRunes(text, f.opts.MaxCellRunes))
}

// formatNumber keeps integers verbatim and fixes fractional values to two decimals.
func formatNumber(n json.Number) string {
	s := n.String()
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return s
	}
	fv, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if fv == float64(int64(fv)) && !strings.ContainsAny(s, "eE") {
		return strconv.FormatInt(int64(fv), 10)
	}
	return strconv.FormatFloat(fv, 'f', 2, 64)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}

// titleCase turns snake_case, kebab-case and camelCase keys into "Title Case".
func titleCase(key string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var markerPattern = regexp.MustCompile(`\{\{\s*result:(\d+)\s*\}\}`)

// ReplaceMarkers substitutes {{result:N}} markers using render, which gets
// the 1-based index. Markers render leaves unresolved are removed. It returns
// the indexes that were substituted.
func ReplaceMarkers(text string, render func(n int) (string, bool)) (string, []int) {
	var used []int
	out := markerPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := markerPattern.FindStringSubmatch(m)
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			return ""
		}
		rendered, ok := render(n)
		if !ok {
			return ""
		}
		used = append(used, n)
		return "\n\n" + rendered + "\n\n"
	})
	return out, used
}

// HasMarkers reports whether text references any result.
func HasMarkers(text string) bool {
	return markerPattern.MatchString(text)
}
