// Package fingerprint identifies tool invocations by a canonical hash of
// (tool name, arguments) and caches read-only results per session.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Fingerprint is the hex sha256 of a canonical tool invocation.
type Fingerprint string

// Short returns a prefix suitable for logs.
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}

// DefaultIgnoredKeys are argument names that never take part in a
// fingerprint or in recorded arguments.
var DefaultIgnoredKeys = []string{
	"token", "api_key", "apikey", "access_token", "password", "secret",
	"authorization", "sec_token", "qradar_token", "qradar_host",
}

// Canonicalizer normalizes arguments: object keys sorted, numbers reduced to
// a single spelling, strings trimmed, null members and ignored keys dropped.
type Canonicalizer struct {
	ignored map[string]bool
}

func NewCanonicalizer(extraIgnored ...string) *Canonicalizer {
	ignored := make(map[string]bool, len(DefaultIgnoredKeys)+len(extraIgnored))
	for _, k := range DefaultIgnoredKeys {
		ignored[k] = true
	}
	for _, k := range extraIgnored {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			ignored[k] = true
		}
	}
	return &Canonicalizer{ignored: ignored}
}

// Canonical returns the canonical JSON encoding of args. Empty input is
// treated as an empty object.
func (c *Canonicalizer) Canonical(args json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}"), nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("fingerprint: decode arguments: %w", err)
	}
	out, err := json.Marshal(c.normalize(v))
	if err != nil {
		return nil, fmt.Errorf("fingerprint: encode arguments: %w", err)
	}
	return out, nil
}

// Compute returns the fingerprint and canonical arguments of an invocation.
func (c *Canonicalizer) Compute(tool string, args json.RawMessage) (Fingerprint, json.RawMessage, error) {
	canonical, err := c.Canonical(args)
	if err != nil {
		return "", nil, err
	}
	return Of(tool, canonical), canonical, nil
}

// Of hashes a tool name with already canonical arguments.
func Of(tool string, canonical json.RawMessage) Fingerprint {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(tool)))
	h.Write([]byte{0})
	h.Write(canonical)
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

func (c *Canonicalizer) normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil || c.ignored[strings.ToLower(k)] {
				continue
			}
			out[k] = c.normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = c.normalize(val)
		}
		return out
	case json.Number:
		return canonicalNumber(t)
	case string:
		return strings.TrimSpace(t)
	default:
		return t
	}
}

func canonicalNumber(n json.Number) json.Number {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return json.Number(strconv.FormatInt(i, 10))
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return n
	}
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// Digest is a short, credential-free identifier for logging arguments.
func Digest(canonical json.RawMessage) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:8])
}
