// Package formatter renders raw tool results as deterministic markdown.
//
// A result is classified into one of four shapes. Arrays longer than the row
// threshold are always a LargeDataset; the rendered output then states the
// true element count and shows exactly threshold rows.
package formatter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape is the rendering class of a result.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeList
	ShapeTable
	ShapeLargeDataset
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeList:
		return "list"
	case ShapeTable:
		return "table"
	case ShapeLargeDataset:
		return "large_dataset"
	default:
		return "unknown"
	}
}

const (
	DefaultRowThreshold    = 10
	DefaultMaxColumns      = 8
	DefaultMaxCellRunes    = 50
	DefaultScalarMaxFields = 6
	defaultMaxTextRunes    = 5000
	defaultModelRowLimit   = 50
	defaultModelMaxBytes   = 8 * 1024
)

// Options tunes rendering. Zero values fall back to the defaults.
type Options struct {
	RowThreshold    int
	MaxColumns      int
	MaxCellRunes    int
	ScalarMaxFields int
	ModelRowLimit   int
	ModelMaxBytes   int
}

func (o Options) withDefaults() Options {
	if o.RowThreshold <= 0 {
		o.RowThreshold = DefaultRowThreshold
	}
	if o.MaxColumns <= 0 {
		o.MaxColumns = DefaultMaxColumns
	}
	if o.MaxCellRunes <= 3 {
		o.MaxCellRunes = DefaultMaxCellRunes
	}
	if o.ScalarMaxFields <= 0 {
		o.ScalarMaxFields = DefaultScalarMaxFields
	}
	if o.ModelRowLimit <= 0 {
		o.ModelRowLimit = defaultModelRowLimit
	}
	if o.ModelMaxBytes <= 0 {
		o.ModelMaxBytes = defaultModelMaxBytes
	}
	return o
}

type Formatter struct {
	opts Options
}

func New(opts Options) *Formatter {
	return &Formatter{opts: opts.withDefaults()}
}

// RowThreshold is the maximum number of rows rendered for one result.
func (f *Formatter) RowThreshold() int { return f.opts.RowThreshold }

// Classify reports the shape a result renders as.
func (f *Formatter) Classify(raw any) Shape {
	return f.classify(unwrap(Normalize(raw)))
}

func (f *Formatter) classify(v any) Shape {
	switch t := v.(type) {
	case []any:
		if len(t) > f.opts.RowThreshold {
			return ShapeLargeDataset
		}
		if stableRecords(t) {
			return ShapeTable
		}
		return ShapeList
	case *Object:
		if f.isSmallRecord(t) {
			return ShapeScalar
		}
		return ShapeTable
	default:
		return ShapeScalar
	}
}

// Format renders a raw result as markdown.
func (f *Formatter) Format(raw any) string {
	v := unwrap(Normalize(raw))
	switch f.classify(v) {
	case ShapeLargeDataset:
		items := v.([]any)
		k := f.opts.RowThreshold
		return fmt.Sprintf("Found %d items, showing top %d\n\n%s", len(items), k, f.table(items[:k]))
	case ShapeList, ShapeTable:
		switch t := v.(type) {
		case []any:
			if len(t) == 0 {
				return "No items found."
			}
			return f.table(t)
		case *Object:
			return f.propertyTable(t)
		}
	}
	return f.scalar(v)
}

// unwrap replaces an object wrapping exactly one array member, such as
// {"total": 3, "offenses": [...]}, with that array.
func unwrap(v any) any {
	obj, ok := v.(*Object)
	if !ok {
		return v
	}
	var arr []any
	found := 0
	for _, k := range obj.Keys {
		switch val := obj.Values[k].(type) {
		case []any:
			arr = val
			found++
		case *Object:
			return v
		}
	}
	if found != 1 {
		return v
	}
	return arr
}

func (f *Formatter) isSmallRecord(obj *Object) bool {
	if obj.Len() > f.opts.ScalarMaxFields {
		return false
	}
	for _, k := range obj.Keys {
		if !isPrimitive(obj.Values[k]) {
			return false
		}
	}
	return true
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case []any, *Object:
		return false
	default:
		return true
	}
}

// stableRecords reports whether every element is an object with the same key set.
func stableRecords(items []any) bool {
	if len(items) == 0 {
		return false
	}
	first, ok := items[0].(*Object)
	if !ok {
		return false
	}
	for _, item := range items[1:] {
		obj, ok := item.(*Object)
		if !ok || obj.Len() != first.Len() {
			return false
		}
		for _, k := range first.Keys {
			if _, ok := obj.Values[k]; !ok {
				return false
			}
		}
	}
	return true
}

func (f *Formatter) scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "No data"
	case string:
		text := strings.TrimSpace(t)
		if text == "" {
			return "No data"
		}
		return truncateRunes(text, defaultMaxTextRunes)
	case *Object:
		if t.Len() == 0 {
			return "No data"
		}
		parts := make([]string, 0, t.Len())
		for _, k := range t.Keys {
			parts = append(parts, fmt.Sprintf("**%s:** %s", titleCase(k), f.cell(t.Values[k])))
		}
		return strings.Join(parts, " · ")
	default:
		return "**Result:** " + f.cell(v)
	}
}

// valueColumn holds primitive elements of a mixed list.
const valueColumn = "\x00value"

func (f *Formatter) table(items []any) string {
	var columns []string
	seen := make(map[string]bool)
	for _, item := range items {
		if obj, ok := item.(*Object); ok {
			for _, k := range obj.Keys {
				if !seen[k] {
					seen[k] = true
					columns = append(columns, k)
				}
			}
			continue
		}
		if !seen[valueColumn] {
			seen[valueColumn] = true
			columns = append(columns, valueColumn)
		}
	}
	if len(columns) == 0 {
		columns = []string{valueColumn}
	}
	hidden := 0
	if len(columns) > f.opts.MaxColumns {
		hidden = len(columns) - f.opts.MaxColumns
		columns = columns[:f.opts.MaxColumns]
	}

	var b strings.Builder
	b.WriteString("|")
	for _, c := range columns {
		b.WriteString(" ")
		b.WriteString(header(c))
		b.WriteString(" |")
	}
	b.WriteString("\n|")
	for range columns {
		b.WriteString(" --- |")
	}
	for _, item := range items {
		b.WriteString("\n|")
		obj, isObj := item.(*Object)
		for _, c := range columns {
			var cell string
			switch {
			case c == valueColumn && !isObj:
				cell = f.cell(item)
			case isObj:
				if val, ok := obj.Values[c]; ok {
					cell = f.cell(val)
				}
			}
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(" |")
		}
	}
	if hidden > 0 {
		fmt.Fprintf(&b, "\n\n+%d more columns", hidden)
	}
	return b.String()
}

func (f *Formatter) propertyTable(obj *Object) string {
	if obj.Len() == 0 {
		return "No data"
	}
	var b strings.Builder
	b.WriteString("| Property | Value |\n| --- | --- |")
	for _, k := range obj.Keys {
		fmt.Fprintf(&b, "\n| %s | %s |", escapeCell(titleCase(k)), f.cell(obj.Values[k]))
	}
	return b.String()
}

func header(column string) string {
	if column == valueColumn {
		return "Value"
	}
	return escapeCell(titleCase(column))
}

// ForModel renders a compact JSON view of a result for the model context.
// Long arrays are cut to ModelRowLimit items with the true total kept.
func (f *Formatter) ForModel(raw any) string {
	v := Normalize(raw)
	if s, ok := v.(string); ok {
		return truncateBytes(s, f.opts.ModelMaxBytes)
	}
	if arr, ok := unwrap(v).([]any); ok && len(arr) > f.opts.ModelRowLimit {
		summary := newObject()
		summary.set("total", json.Number(fmt.Sprint(len(arr))))
		summary.set("shown", json.Number(fmt.Sprint(f.opts.ModelRowLimit)))
		summary.set("items", arr[:f.opts.ModelRowLimit])
		v = summary
	}
	data, err := json.Marshal(v)
	if err != nil {
		return truncateBytes(fmt.Sprint(v), f.opts.ModelMaxBytes)
	}
	return truncateBytes(string(data), f.opts.ModelMaxBytes)
}
