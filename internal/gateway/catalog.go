package gateway

import (
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/addanuj/mcp-client/pkg/llm"
)

// Tool is a catalog entry.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"argumentSchema"`
	Mutating    bool           `json:"mutating"`
	Destructive bool           `json:"destructive"`
	Idempotent  bool           `json:"idempotent"`
	Server      string         `json:"server"`
}

var readPrefixes = []string{"get_", "list_", "search_", "describe_", "count_", "show_", "find_", "query_"}

var destructiveVerbs = []string{"delete", "remove", "drop", "clear", "purge", "destroy"}

var mutatingMethods = map[string]bool{"DELETE": true, "POST": true, "PUT": true, "PATCH": true}

type hints struct {
	ReadOnly    *bool `json:"readOnlyHint"`
	Destructive *bool `json:"destructiveHint"`
	Idempotent  *bool `json:"idempotentHint"`
}

func toolHints(ann *mcp.ToolAnnotations) hints {
	var h hints
	if ann == nil {
		return h
	}
	data, err := json.Marshal(ann)
	if err != nil {
		return h
	}
	_ = json.Unmarshal(data, &h)
	return h
}

// classify decides whether a tool mutates state. Server overrides win over
// annotations, which win over the name heuristic.
func classify(t *mcp.Tool, cfg ServerConfig) (mutating, idempotent bool) {
	h := toolHints(t.Annotations)
	switch {
	case containsName(cfg.Mutating, t.Name):
		mutating = true
	case containsName(cfg.ReadOnly, t.Name):
		mutating = false
	case h.ReadOnly != nil && *h.ReadOnly:
		mutating = false
	case h.Destructive != nil && *h.Destructive:
		mutating = true
	case h.ReadOnly != nil:
		mutating = true
	default:
		mutating = mutatingName(t.Name)
	}
	idempotent = !mutating || (h.Idempotent != nil && *h.Idempotent)
	return mutating, idempotent
}

// destructive reports whether a tool deletes state, by annotation or name.
func destructive(t *mcp.Tool) bool {
	h := toolHints(t.Annotations)
	if h.Destructive != nil {
		return *h.Destructive && (h.ReadOnly == nil || !*h.ReadOnly)
	}
	return destructiveName(t.Name)
}

func destructiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, verb := range destructiveVerbs {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}

// mutatingName applies the naming heuristic. Names containing a destructive
// verb are mutating; otherwise names with a read prefix are not.
func mutatingName(name string) bool {
	if destructiveName(name) {
		return true
	}
	lower := strings.ToLower(name)
	for _, prefix := range readPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// IsMutatingCall reports whether a call may change state. Read-only tools
// that take an HTTP-style method argument are mutating for write methods.
func IsMutatingCall(tool Tool, arguments json.RawMessage) bool {
	if tool.Mutating {
		return true
	}
	return mutatingMethods[callMethod(arguments)]
}

// IsDestructiveCall reports whether a call deletes state: a destructive tool,
// or any tool called with the DELETE method.
func IsDestructiveCall(tool Tool, arguments json.RawMessage) bool {
	if tool.Destructive || destructiveName(tool.Name) {
		return true
	}
	return callMethod(arguments) == "DELETE"
}

func callMethod(arguments json.RawMessage) string {
	var args struct {
		Method string `json:"method"`
	}
	if len(arguments) == 0 || json.Unmarshal(arguments, &args) != nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(args.Method))
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Catalog is the ordered set of tools exposed to the model.
type Catalog struct {
	tools []Tool
	index map[string]int
}

func newCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// NewCatalog builds a catalog from tools; later duplicates of a name are ignored.
func NewCatalog(tools ...Tool) *Catalog {
	c := newCatalog()
	for _, t := range tools {
		c.add(t)
	}
	return c
}

// add appends t unless the name is taken; it reports whether t was added.
func (c *Catalog) add(t Tool) bool {
	if _, exists := c.index[t.Name]; exists {
		return false
	}
	c.index[t.Name] = len(c.tools)
	c.tools = append(c.tools, t)
	return true
}

// Lookup returns the named tool.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	i, ok := c.index[name]
	if !ok {
		return Tool{}, false
	}
	return c.tools[i], true
}

// Tools returns the catalog in discovery order.
func (c *Catalog) Tools() []Tool {
	return append([]Tool(nil), c.tools...)
}

func (c *Catalog) Len() int { return len(c.tools) }

// LLMTools converts the catalog to provider tool definitions.
func (c *Catalog) LLMTools() []llm.Tool {
	out := make([]llm.Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, llm.Tool{Name: t.Name, Description: t.Description, Parameters: t.Schema})
	}
	return out
}

// convertInputSchema converts the MCP SDK's InputSchema (any) to a JSON
// object map. Missing or unreadable schemas become an empty object schema.
func convertInputSchema(schema any) map[string]any {
	empty := map[string]any{"type": "object", "properties": map[string]any{}}
	if schema == nil {
		return empty
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return empty
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return empty
	}
	return m
}
