package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/addanuj/mcp-client/internal/chat"
	"github.com/addanuj/mcp-client/internal/memory"
)

// eventPrinter renders a turn's events to a terminal.
type eventPrinter struct {
	w        io.Writer
	status   *color.Color
	tool     *color.Color
	ok       *color.Color
	failed   *color.Color
	cached   *color.Color
	streamed bool
	failure  string
}

func newEventPrinter(w io.Writer, noColor bool) *eventPrinter {
	p := &eventPrinter{
		w:      w,
		status: color.New(color.Faint),
		tool:   color.New(color.FgCyan),
		ok:     color.New(color.FgGreen),
		failed: color.New(color.FgRed, color.Bold),
		cached: color.New(color.FgYellow),
	}
	if noColor {
		for _, c := range []*color.Color{p.status, p.tool, p.ok, p.failed, p.cached} {
			c.DisableColor()
		}
	}
	return p
}

// Send implements chat.Sink.
func (p *eventPrinter) Send(e chat.Event) error {
	var err error
	switch e.Type {
	case chat.EventStatus:
		_, err = p.status.Fprintf(p.w, "· %s\n", e.Message)
	case chat.EventToolCall:
		_, err = p.tool.Fprintf(p.w, "→ %s\n", e.Tool)
	case chat.EventToolResult:
		err = p.toolResult(e)
	case chat.EventContentDelta:
		p.streamed = true
		_, err = fmt.Fprint(p.w, e.Delta)
	case chat.EventContentFinal:
		if p.streamed {
			_, err = fmt.Fprintln(p.w)
		} else {
			_, err = fmt.Fprintln(p.w, strings.TrimRight(e.Content, "\n"))
		}
	case chat.EventError:
		p.failure = e.Content
		_, err = p.failed.Fprintf(p.w, "error: %s\n", e.Content)
	}
	return err
}

func (p *eventPrinter) toolResult(e chat.Event) error {
	if e.Status != string(memory.StatusSuccess) {
		_, err := p.failed.Fprintf(p.w, "✗ %s %s\n", e.Tool, e.Status)
		return err
	}
	if _, err := p.ok.Fprintf(p.w, "✓ %s", e.Tool); err != nil {
		return err
	}
	if e.Cached {
		if _, err := p.cached.Fprint(p.w, " (cached)"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(p.w)
	return err
}

// reset prepares the printer for the next turn.
func (p *eventPrinter) reset() {
	p.streamed = false
	p.failure = ""
}

func (p *eventPrinter) Failed() (string, bool) {
	return p.failure, p.failure != ""
}
