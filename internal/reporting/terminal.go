package reporting

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
)

// Glamour styles used by the text reporter.
const (
	StyleAuto  = "auto"
	StylePlain = "notty"
)

// RenderFunc turns Markdown into its final textual form.
type RenderFunc func(markdown string) (string, error)

// NewTerminalRenderer returns a glamour renderer. StyleAuto detects the
// terminal background; any other value names a standard glamour style.
func NewTerminalRenderer(style string) (RenderFunc, error) {
	opt := glamour.WithStandardStyle(style)
	if style == StyleAuto {
		opt = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(100))
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	return r.Render, nil
}

// MarkdownReporter writes the Markdown report, passed through render when set.
type MarkdownReporter struct {
	w      io.WriteCloser
	render RenderFunc
}

func NewMarkdownReporter(w io.WriteCloser, render RenderFunc) *MarkdownReporter {
	return &MarkdownReporter{w: w, render: render}
}

func (r *MarkdownReporter) Write(summary *ExecutionSummary) error {
	out := Markdown(summary)
	if r.render != nil {
		rendered, err := r.render(out)
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		out = rendered
	}
	_, err := io.WriteString(r.w, out)
	return err
}

func (r *MarkdownReporter) Close() error { return r.w.Close() }
