// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// Reporter writes a run report to an output.
type Reporter interface {
	// Write renders one execution summary.
	Write(summary *ExecutionSummary) error
	// Close finalizes the report and releases the underlying writer.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// Output formats understood by New.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// New creates a reporter for format writing to outputPath on fs. An empty
// path or "stdout" writes to standard output.
func New(fs afero.Fs, format, outputPath string) (Reporter, error) {
	switch format {
	case FormatJSON, FormatMarkdown, FormatText:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"
	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := fs.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case FormatJSON:
		return NewJSONReporter(writer), nil
	case FormatMarkdown:
		return NewMarkdownReporter(writer, nil), nil
	default:
		style := StyleAuto
		if !isStdOut {
			// Files stay free of escape codes.
			style = StylePlain
		}
		render, err := NewTerminalRenderer(style)
		if err != nil {
			writer.Close()
			return nil, err
		}
		return NewMarkdownReporter(writer, render), nil
	}
}

// JSONReporter writes each summary as an indented JSON document.
type JSONReporter struct {
	w io.WriteCloser
}

func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{w: w}
}

func (r *JSONReporter) Write(summary *ExecutionSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode execution summary: %w", err)
	}
	_, err = r.w.Write(append(data, '\n'))
	return err
}

func (r *JSONReporter) Close() error { return r.w.Close() }
