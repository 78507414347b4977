package formatter

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func offenses(n int) []any {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		out[i] = map[string]any{"id": i + 1, "description": fmt.Sprintf("offense %d", i+1), "severity": 5}
	}
	return out
}

func offensesJSON(n int) string {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id":%d,"description":"offense %d","severity":5}`, i+1, i+1)
	}
	b.WriteString("]")
	return b.String()
}

func tableRows(out string) int {
	rows := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "|") && !strings.HasPrefix(line, "| ---") {
			rows++
		}
	}
	return rows - 1
}

func TestClassify(t *testing.T) {
	f := New(Options{})
	tests := []struct {
		name string
		raw  any
		want Shape
	}{
		{"nil", nil, ShapeScalar},
		{"number", 42, ShapeScalar},
		{"text", "all systems nominal", ShapeScalar},
		{"small record", map[string]any{"status": "ok", "count": 3}, ShapeScalar},
		{"wide record", `{"a":1,"b":2,"c":3,"d":4,"e":5,"f":6,"g":7}`, ShapeTable},
		{"nested record", `{"host":"q1","health":{"cpu":0.4}}`, ShapeTable},
		{"primitive list", []any{"a", "b"}, ShapeList},
		{"empty list", []any{}, ShapeList},
		{"mixed records", `[{"id":1},{"name":"x"}]`, ShapeList},
		{"stable records", offensesJSON(3), ShapeTable},
		{"exactly threshold", offensesJSON(10), ShapeTable},
		{"over threshold", offensesJSON(11), ShapeLargeDataset},
		{"large primitive list", make([]any, 25), ShapeLargeDataset},
		{"wrapped array", `{"total":1000,"offenses":` + offensesJSON(12) + `}`, ShapeLargeDataset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Classify(tt.raw); got != tt.want {
				t.Fatalf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFormatTenRecordsHasNoBanner(t *testing.T) {
	f := New(Options{})
	out := f.Format(offensesJSON(10))

	if strings.Contains(out, "Found") {
		t.Fatalf("expected no truncation banner, got:\n%s", out)
	}
	if rows := tableRows(out); rows != 10 {
		t.Fatalf("expected 10 rows, got %d:\n%s", rows, out)
	}
	if !strings.HasPrefix(out, "| Id | Description | Severity |\n| --- | --- | --- |\n| 1 | offense 1 | 5 |") {
		t.Fatalf("unexpected table head:\n%s", out)
	}
}

func TestFormatLargeDatasetStatesTotalAndShowsThreshold(t *testing.T) {
	f := New(Options{RowThreshold: 10})
	out := f.Format(offensesJSON(1000))

	if !strings.HasPrefix(out, "Found 1000 items, showing top 10\n\n") {
		t.Fatalf("expected summary line, got:\n%s", out)
	}
	if rows := tableRows(out); rows != 10 {
		t.Fatalf("expected exactly 10 rows, got %d", rows)
	}
	if strings.Contains(out, "offense 11") {
		t.Fatalf("expected only the first 10 rows")
	}
}

func TestFormatLargeDatasetAnyThreshold(t *testing.T) {
	for _, threshold := range []int{1, 3, 10, 25} {
		for _, n := range []int{threshold + 1, threshold * 4, 500} {
			f := New(Options{RowThreshold: threshold})
			out := f.Format(offenses(n))
			want := fmt.Sprintf("Found %d items, showing top %d", n, threshold)
			if !strings.HasPrefix(out, want) {
				t.Fatalf("threshold=%d n=%d: expected %q, got %q", threshold, n, want, strings.SplitN(out, "\n", 2)[0])
			}
			if rows := tableRows(out); rows != threshold {
				t.Fatalf("threshold=%d n=%d: expected %d rows, got %d", threshold, n, threshold, rows)
			}
		}
	}
}

func TestFormatIsDeterministic(t *testing.T) {
	f := New(Options{})
	inputs := []any{
		map[string]any{"zeta": 1, "alpha": true, "mid": "x", "beta": nil},
		offenses(40),
		`{"host":"q1","health":{"cpu":0.4,"mem":0.9},"tags":["a","b"]}`,
		[]any{map[string]any{"b": 1, "a": 2}, map[string]any{"c": 3}},
	}
	for i, raw := range inputs {
		first := f.Format(raw)
		for j := 0; j < 20; j++ {
			if again := f.Format(raw); again != first {
				t.Fatalf("input %d: output changed between runs:\n%s\n---\n%s", i, first, again)
			}
		}
	}
}

func TestFormatColumnsFirstSeenOrder(t *testing.T) {
	f := New(Options{})
	out := f.Format(`[{"name":"a","id":1},{"id":2,"status":"open","name":"b"}]`)
	head := strings.SplitN(out, "\n", 2)[0]
	if head != "| Name | Id | Status |" {
		t.Fatalf("unexpected header %q", head)
	}
	if !strings.Contains(out, "| a | 1 |  |") {
		t.Fatalf("expected empty cell for missing key:\n%s", out)
	}
}

func TestFormatScalar(t *testing.T) {
	f := New(Options{})
	if got := f.Format(map[string]any{"status": "ok", "is_active": true}); got != "**Is Active:** Yes · **Status:** ok" {
		t.Fatalf("unexpected labeled line %q", got)
	}
	if got := f.Format(json.Number("3.14159")); got != "**Result:** 3.14" {
		t.Fatalf("unexpected number %q", got)
	}
	if got := f.Format(nil); got != "No data" {
		t.Fatalf("unexpected nil rendering %q", got)
	}
	if got := f.Format("  plain answer  "); got != "plain answer" {
		t.Fatalf("unexpected text rendering %q", got)
	}
}

func TestFormatPrimitiveList(t *testing.T) {
	f := New(Options{})
	out := f.Format([]any{"alpha", "beta"})
	want := "| Value |\n| --- |\n| alpha |\n| beta |"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
	if got := f.Format([]any{}); got != "No items found." {
		t.Fatalf("unexpected empty list rendering %q", got)
	}
}

func TestFormatPropertyTable(t *testing.T) {
	f := New(Options{})
	out := f.Format(`{"hostname":"qradar-1","version":"7.5","health":{"cpu":0.4}}`)
	want := "| Property | Value |\n| --- | --- |\n| Hostname | qradar-1 |\n| Version | 7.5 |\n| Health | {\"cpu\":0.4} |"
	if out != want {
		t.Fatalf("expected:\n%s\ngot:\n%s", want, out)
	}
}

func TestCellEscapingAndTruncation(t *testing.T) {
	f := New(Options{})
	long := strings.Repeat("x", 80)
	out := f.Format([]any{map[string]any{"note": "a|b\nc", "long": long}})
	if !strings.Contains(out, `a\|b c`) {
		t.Fatalf("expected escaped pipe and collapsed newline:\n%s", out)
	}
	if !strings.Contains(out, strings.Repeat("x", 47)+"...") || strings.Contains(out, strings.Repeat("x", 48)) {
		t.Fatalf("expected cell truncated to 50 runes:\n%s", out)
	}
}

func TestMaxColumns(t *testing.T) {
	f := New(Options{MaxColumns: 2})
	out := f.Format(`[{"a":1,"b":2,"c":3,"d":4}]`)
	if !strings.HasPrefix(out, "| A | B |") || !strings.HasSuffix(out, "+2 more columns") {
		t.Fatalf("unexpected column cap rendering:\n%s", out)
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"offense_type": "Offense Type",
		"startTime":    "Start Time",
		"id":           "Id",
		"source-ip":    "Source Ip",
	}
	for in, want := range cases {
		if got := titleCase(in); got != want {
			t.Fatalf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestForModelSummarizesLargeArrays(t *testing.T) {
	f := New(Options{ModelRowLimit: 5})
	out := f.ForModel(offensesJSON(30))
	var decoded struct {
		Total int               `json:"total"`
		Shown int               `json:"shown"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("expected JSON summary, got %q: %v", out, err)
	}
	if decoded.Total != 30 || decoded.Shown != 5 || len(decoded.Items) != 5 {
		t.Fatalf("unexpected summary %+v", decoded)
	}
	if !strings.HasPrefix(string(decoded.Items[0]), `{"id":1,`) {
		t.Fatalf("expected key order preserved, got %s", decoded.Items[0])
	}
}

func TestForModelCapsSize(t *testing.T) {
	f := New(Options{ModelMaxBytes: 64})
	out := f.ForModel(strings.Repeat("y", 500))
	if !strings.HasSuffix(out, "...(truncated)") || len(out) > 64+len("...(truncated)") {
		t.Fatalf("expected truncated output, got %d bytes", len(out))
	}
}

func TestReplaceMarkers(t *testing.T) {
	text := "Here are the offenses:\n{{result:1}}\nand users {{ result:2 }} {{result:9}}"
	out, used := ReplaceMarkers(text, func(n int) (string, bool) {
		if n == 9 {
			return "", false
		}
		return fmt.Sprintf("<table %d>", n), true
	})
	if !strings.Contains(out, "<table 1>") || !strings.Contains(out, "<table 2>") {
		t.Fatalf("expected markers replaced, got %q", out)
	}
	if strings.Contains(out, "result:9") {
		t.Fatalf("expected unresolved marker removed, got %q", out)
	}
	if len(used) != 2 || used[0] != 1 || used[1] != 2 {
		t.Fatalf("unexpected used indexes %v", used)
	}
	if !HasMarkers(text) || HasMarkers("plain") {
		t.Fatal("HasMarkers mismatch")
	}
}

func TestDecodePreservesOrder(t *testing.T) {
	v, err := Decode([]byte(`{"z":1,"a":{"y":2,"b":3}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, _ := json.Marshal(v)
	if string(data) != `{"z":1,"a":{"y":2,"b":3}}` {
		t.Fatalf("expected order preserved, got %s", data)
	}
	if _, err := Decode([]byte(`{"a":1} trailing`)); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestDecodeValueKinds(t *testing.T) {
	v, err := Decode([]byte(` {"n":1.50,"s":"a\"b","t":true,"f":false,"z":null,"list":[3,{"k":"v"}]} `))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	obj, ok := v.(*Object)
	if !ok {
		t.Fatalf("expected object, got %T", v)
	}
	if strings.Join(obj.Keys, ",") != "n,s,t,f,z,list" {
		t.Fatalf("unexpected key order %v", obj.Keys)
	}
	if n, _ := obj.Get("n"); n != json.Number("1.50") {
		t.Fatalf("expected number spelling kept, got %#v", n)
	}
	if s, _ := obj.Get("s"); s != `a"b` {
		t.Fatalf("expected unescaped string, got %#v", s)
	}
	if b, _ := obj.Get("t"); b != true {
		t.Fatalf("expected true, got %#v", b)
	}
	if z, ok := obj.Get("z"); !ok || z != nil {
		t.Fatalf("expected null member kept as nil, got %#v", z)
	}
	list, _ := obj.Get("list")
	items, ok := list.([]any)
	if !ok || len(items) != 2 || items[0] != json.Number("3") {
		t.Fatalf("unexpected list %#v", list)
	}
	if _, ok := items[1].(*Object); !ok {
		t.Fatalf("expected nested object, got %T", items[1])
	}
	for _, bad := range []string{`{"a":`, `[1,2`, ``, `{"a" 1}`} {
		if _, err := Decode([]byte(bad)); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
