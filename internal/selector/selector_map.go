package selector

import (
	"strconv"

	"github.com/xkilldash9x/uiforge/api/schemas"
)

// Merge records locator under role in dst. An existing entry is replaced only
// when the new locator outranks it, so the map never regresses. It reports
// whether dst changed.
func Merge(dst schemas.SelectorMap, role, locator string) bool {
	if role == "" || locator == "" {
		return false
	}
	current, ok := dst[role]
	if ok && !Outranks(locator, current) {
		return false
	}
	dst[role] = locator
	return true
}

// MergeMaps folds every entry of src into dst and returns the number of
// entries that changed.
func MergeMaps(dst, src schemas.SelectorMap) int {
	changed := 0
	for role, locator := range src {
		if Merge(dst, role, locator) {
			changed++
		}
	}
	return changed
}

// FromObservation derives the role -> locator entries of one observation.
// Elements that share a role name within the observation are numbered in
// document order ("submitButton", "submitButton2").
func FromObservation(obs *schemas.PageObservation) schemas.SelectorMap {
	out := make(schemas.SelectorMap)
	if obs == nil {
		return out
	}
	seen := make(map[string]int, len(obs.Elements))
	for i, el := range obs.Elements {
		role := RoleName(el, i+1)
		seen[role]++
		if n := seen[role]; n > 1 {
			role += strconv.Itoa(n)
		}
		Merge(out, role, Resolve(el).Value)
	}
	return out
}

// MergeObservation folds the locators observed on a page into dst.
func MergeObservation(dst schemas.SelectorMap, obs *schemas.PageObservation) int {
	return MergeMaps(dst, FromObservation(obs))
}
