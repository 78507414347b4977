package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Object is a JSON object that remembers member order.
type Object struct {
	Keys   []string
	Values map[string]any
}

func newObject() *Object {
	return &Object{Values: make(map[string]any)}
}

func (o *Object) set(key string, value any) {
	if _, exists := o.Values[key]; !exists {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = value
}

// Get returns the member value and whether it exists.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.Values[key]
	return v, ok
}

func (o *Object) Len() int { return len(o.Keys) }

// MarshalJSON writes members in their original order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode parses JSON into nil, bool, json.Number, string, []any and *Object.
// Object members keep their document order.
func Decode(data []byte) (any, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("formatter: invalid JSON value")
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

func fromResult(r gjson.Result) any {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return json.Number(strings.TrimSpace(r.Raw))
	case gjson.String:
		return r.Str
	case gjson.JSON:
		if r.IsArray() {
			arr := make([]any, 0)
			r.ForEach(func(_, v gjson.Result) bool {
				arr = append(arr, fromResult(v))
				return true
			})
			return arr
		}
		obj := newObject()
		r.ForEach(func(k, v gjson.Result) bool {
			obj.set(k.String(), fromResult(v))
			return true
		})
		return obj
	default:
		return nil
	}
}

// Normalize converts any tool result into the ordered JSON value space.
// Strings and byte slices holding a JSON object or array are decoded; Go
// maps get their keys sorted; other values round-trip through encoding/json.
func Normalize(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case *Object:
		return v
	case json.Number, bool:
		return v
	case string:
		return normalizeText(v)
	case json.RawMessage:
		return normalizeText(string(v))
	case []byte:
		return normalizeText(string(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return json.Number(fmt.Sprint(v))
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Normalize(item)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := newObject()
		for _, k := range keys {
			obj.set(k, Normalize(v[k]))
		}
		return obj
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		decoded, err := Decode(data)
		if err != nil {
			return string(data)
		}
		return decoded
	}
}

func normalizeText(s string) any {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if decoded, err := Decode(trimmed); err == nil {
			return decoded
		}
	}
	return s
}
