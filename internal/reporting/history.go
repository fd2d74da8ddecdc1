package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/uiforge/api/schemas"
)

// HistoryMarkdown renders stored runs, newest first, as a Markdown table.
func HistoryMarkdown(runs []schemas.RunRecord) string {
	var b strings.Builder
	b.WriteString("# Run history\n\n")
	if len(runs) == 0 {
		b.WriteString("No runs recorded yet.\n")
		return b.String()
	}
	b.WriteString("| Run | Started | Requirement | Validated | Success |\n| --- | --- | --- | --- | --- |\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "| `%s` | %s | %s | %d/%d | %.0f%% |\n",
			r.ID,
			r.StartedAt.UTC().Format(time.RFC3339),
			escapeCell(truncate(strings.Join(strings.Fields(r.Requirement), " "), 60)),
			r.Summary.Validated, r.Summary.Total,
			r.Summary.SuccessRate*100)
	}
	return b.String()
}

// RunMarkdown renders the scenario results of a single stored run.
func RunMarkdown(runID string, scenarios []schemas.ScenarioRecord) string {
	rec := &schemas.RunRecord{ID: runID, Scenarios: scenarios}
	for _, sc := range scenarios {
		rec.Summary.Total++
		if sc.Validated {
			rec.Summary.Validated++
		}
	}
	if rec.Summary.Total > 0 {
		rec.Summary.SuccessRate = float64(rec.Summary.Validated) / float64(rec.Summary.Total)
	}
	return Markdown(NewExecutionSummary(rec))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
