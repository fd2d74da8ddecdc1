// internal/validation/summary.go
package validation

import "github.com/xkilldash9x/uiforge/api/schemas"

// Summarize aggregates the outcome of a set of scenarios. SuccessRate is 0
// for an empty set.
func Summarize(scenarios []schemas.Scenario) schemas.ValidationSummary {
	sum := schemas.ValidationSummary{Total: len(scenarios)}
	for _, sc := range scenarios {
		if sc.Validated {
			sum.Validated++
		}
		if len(sc.Selectors) > 0 {
			sum.WithSelectors++
		}
	}
	if sum.Total > 0 {
		sum.SuccessRate = float64(sum.Validated) / float64(sum.Total)
	}
	return sum
}
