// internal/reporting/summary.go
package reporting

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"

	"github.com/xkilldash9x/uiforge/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExecutionSummaryFile is the name of the summary written next to the suite.
const ExecutionSummaryFile = "execution-summary.json"

// Scenario statuses.
const (
	StatusValidated = "validated"
	StatusFailed    = "failed"
)

// ScenarioStatus is the per-scenario line of an execution summary.
type ScenarioStatus struct {
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Attempts int      `json:"attempts"`
	Errors   []string `json:"errors,omitempty"`
}

// ExecutionSummary describes one pipeline run and the artifacts it produced.
type ExecutionSummary struct {
	RunID           string                    `json:"runId"`
	Requirement     string                    `json:"requirement"`
	BaseURL         string                    `json:"baseUrl"`
	StartedAt       time.Time                 `json:"startedAt"`
	FinishedAt      time.Time                 `json:"finishedAt"`
	DurationSeconds float64                   `json:"durationSeconds"`
	Summary         schemas.ValidationSummary `json:"summary"`
	Scenarios       []ScenarioStatus          `json:"scenarios"`
	OutputDir       string                    `json:"outputDir,omitempty"`
	Files           []string                  `json:"files,omitempty"`
}

// NewExecutionSummary derives a summary from a run record.
func NewExecutionSummary(rec *schemas.RunRecord) *ExecutionSummary {
	s := &ExecutionSummary{
		RunID:       rec.ID,
		Requirement: rec.Requirement,
		BaseURL:     rec.BaseURL,
		StartedAt:   rec.StartedAt,
		FinishedAt:  rec.FinishedAt,
		Summary:     rec.Summary,
		Scenarios:   make([]ScenarioStatus, 0, len(rec.Scenarios)),
	}
	if !rec.FinishedAt.IsZero() && rec.FinishedAt.After(rec.StartedAt) {
		s.DurationSeconds = rec.FinishedAt.Sub(rec.StartedAt).Seconds()
	}
	for _, sc := range rec.Scenarios {
		status := StatusFailed
		if sc.Validated {
			status = StatusValidated
		}
		s.Scenarios = append(s.Scenarios, ScenarioStatus{
			Name:     sc.Name,
			Status:   status,
			Attempts: sc.Attempts,
			Errors:   sc.Errors,
		})
	}
	return s
}

// WithArtifacts records where the generated project was written.
func (s *ExecutionSummary) WithArtifacts(dir string, files []string) *ExecutionSummary {
	s.OutputDir = dir
	s.Files = append([]string(nil), files...)
	return s
}

// WriteExecutionSummary writes the summary into dir and returns its path.
func WriteExecutionSummary(fs afero.Fs, dir string, s *ExecutionSummary) (string, error) {
	path := filepath.Join(dir, ExecutionSummaryFile)
	if err := schemas.WriteDocument(fs, path, s); err != nil {
		return "", err
	}
	return path, nil
}

// Markdown renders the summary as a Markdown document.
func Markdown(s *ExecutionSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# UI test generation report\n\n")
	fmt.Fprintf(&b, "- **Run:** `%s`\n", s.RunID)
	if s.Requirement != "" {
		fmt.Fprintf(&b, "- **Requirement:** %s\n", strings.Join(strings.Fields(s.Requirement), " "))
	}
	if s.BaseURL != "" {
		fmt.Fprintf(&b, "- **Base URL:** %s\n", s.BaseURL)
	}
	fmt.Fprintf(&b, "- **Duration:** %.1fs\n", s.DurationSeconds)
	fmt.Fprintf(&b, "- **Validated:** %d of %d (%.1f%%), %d with selectors\n",
		s.Summary.Validated, s.Summary.Total, s.Summary.SuccessRate*100, s.Summary.WithSelectors)

	if len(s.Scenarios) > 0 {
		b.WriteString("\n## Scenarios\n\n| Scenario | Status | Attempts |\n| --- | --- | --- |\n")
		for _, sc := range s.Scenarios {
			fmt.Fprintf(&b, "| %s | %s | %d |\n", escapeCell(sc.Name), sc.Status, sc.Attempts)
		}
	}

	var failed []ScenarioStatus
	for _, sc := range s.Scenarios {
		if sc.Status == StatusFailed && len(sc.Errors) > 0 {
			failed = append(failed, sc)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n## Failures\n")
		for _, sc := range failed {
			fmt.Fprintf(&b, "\n### %s\n\n", sc.Name)
			for _, e := range sc.Errors {
				fmt.Fprintf(&b, "- %s\n", strings.Join(strings.Fields(e), " "))
			}
		}
	}

	if s.OutputDir != "" {
		fmt.Fprintf(&b, "\n## Generated files\n\nWritten to `%s`:\n\n", s.OutputDir)
		for _, f := range s.Files {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
