// Package selector chooses stable locators for page elements and maintains the
// role -> locator map shared by validated scenarios.
package selector

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xkilldash9x/uiforge/api/schemas"
)

// Rank orders locator strategies. Lower is better.
type Rank int

const (
	RankTestID Rank = iota + 1
	RankID
	RankClass
	RankAria
	RankText
	RankPositional
	// RankUnknown is assigned to hand-written locators that match no strategy.
	RankUnknown
)

func (r Rank) String() string {
	switch r {
	case RankTestID:
		return "test-id"
	case RankID:
		return "id"
	case RankClass:
		return "class"
	case RankAria:
		return "aria"
	case RankText:
		return "text"
	case RankPositional:
		return "positional"
	}
	return "unknown"
}

// Locator is the outcome of resolving one element.
type Locator struct {
	Value string
	Rank  Rank
	// LowConfidence is set for positional fallbacks, which break when siblings change.
	LowConfidence bool
}

// TestIDAttributes lists the dedicated test identifier attributes in lookup order.
var TestIDAttributes = []string{"data-testid", "data-test-id", "data-test", "data-cy", "data-qa"}

// TextPrefix marks a text locator. Sessions translate it to their native form.
const TextPrefix = "text="

const maxTextLocatorLen = 64

var (
	volatileIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^:r[0-9a-z]*:$`),                                        // React useId
		regexp.MustCompile(`^(ember|ext-gen|yui_|mui-|radix-|headlessui-|react-select-)`), // framework generated
		regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}`),                        // uuid fragments
		regexp.MustCompile(`\d{4,}`),                                               // long counters
		regexp.MustCompile(`^\d+$`),
	}
	volatileClassPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^css-[a-z0-9]+$`),                // emotion
		regexp.MustCompile(`^sc-[a-zA-Z0-9]+$`),              // styled-components
		regexp.MustCompile(`^jsx-\d+$`),                      // styled-jsx
		regexp.MustCompile(`__[a-zA-Z0-9_-]{5}$`),           // css modules (Button_root__a1b2c)
		regexp.MustCompile(`^(is|has)-`),                     // state modifiers
		regexp.MustCompile(`^ng-(touched|untouched|pristine|dirty|valid|invalid|pending)$`),
		regexp.MustCompile(`^(active|focus|focused|hover|disabled|selected|open|show|visible)$`),
	}
	// safeClassPattern excludes classes that would need CSS escaping (e.g. tailwind "hover:bg-x").
	safeClassPattern = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)
)

// IsVolatileID reports whether an id looks generated per render.
func IsVolatileID(id string) bool {
	for _, re := range volatileIDPatterns {
		if re.MatchString(id) {
			return true
		}
	}
	return false
}

// IsVolatileClass reports whether a class looks hashed, generated, or stateful.
func IsVolatileClass(class string) bool {
	if !safeClassPattern.MatchString(class) {
		return true
	}
	// Short tokens with digits are usually hashes ("e1x9").
	if len(class) <= 5 && strings.ContainsAny(class, "0123456789") {
		return true
	}
	for _, re := range volatileClassPatterns {
		if re.MatchString(class) {
			return true
		}
	}
	return false
}

// StableClasses returns the element's non-volatile classes in sorted order.
func StableClasses(classes []string) []string {
	var out []string
	for _, c := range classes {
		if c != "" && !IsVolatileClass(c) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func quoteAttr(v string) string {
	return strings.ReplaceAll(v, `"`, `\"`)
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func tagOf(el schemas.InteractiveElement) string {
	tag := strings.ToLower(strings.TrimSpace(el.Tag))
	if tag == "" {
		return "*"
	}
	return tag
}

// Resolve picks one locator for an element by strict priority: test id, stable
// id, stable class, aria-label or role, visible text, then nth-of-type. The
// function is pure.
func Resolve(el schemas.InteractiveElement) Locator {
	tag := tagOf(el)

	if el.TestID != "" {
		attr := el.TestIDAttr
		if attr == "" {
			attr = TestIDAttributes[0]
		}
		return Locator{Value: fmt.Sprintf(`[%s="%s"]`, attr, quoteAttr(el.TestID)), Rank: RankTestID}
	}

	if el.ID != "" && !IsVolatileID(el.ID) && safeClassPattern.MatchString(el.ID) {
		return Locator{Value: "#" + el.ID, Rank: RankID}
	}

	if stable := StableClasses(el.Classes); len(stable) > 0 {
		return Locator{Value: tag + "." + stable[0], Rank: RankClass}
	}

	if el.AriaLabel != "" {
		return Locator{Value: fmt.Sprintf(`%s[aria-label="%s"]`, tag, quoteAttr(el.AriaLabel)), Rank: RankAria}
	}
	if el.Role != "" {
		return Locator{Value: fmt.Sprintf(`%s[role="%s"]`, tag, quoteAttr(el.Role)), Rank: RankAria}
	}

	if text := normalizeText(el.Text); text != "" && len(text) <= maxTextLocatorLen {
		return Locator{Value: fmt.Sprintf(`%s"%s"`, TextPrefix, quoteAttr(text)), Rank: RankText}
	}

	index := el.Index
	if index < 1 {
		index = 1
	}
	return Locator{Value: fmt.Sprintf("%s:nth-of-type(%d)", tag, index), Rank: RankPositional, LowConfidence: true}
}

// ParseText returns the visible text a text locator matches. ok is false for
// any other kind of locator.
func ParseText(locator string) (text string, ok bool) {
	l := strings.TrimSpace(locator)
	if !strings.HasPrefix(l, TextPrefix) {
		return "", false
	}
	body := strings.TrimPrefix(l, TextPrefix)
	if len(body) >= 2 && body[0] == '"' && body[len(body)-1] == '"' {
		body = strings.ReplaceAll(body[1:len(body)-1], `\"`, `"`)
	}
	return normalizeText(body), true
}

// RankOf recovers the strategy rank of a locator string, so that maps loaded
// from disk or written by hand merge under the same ordering.
func RankOf(locator string) Rank {
	l := strings.TrimSpace(locator)
	switch {
	case l == "":
		return RankUnknown
	case strings.HasPrefix(l, TextPrefix):
		return RankText
	case strings.Contains(l, ":nth-of-type("), strings.Contains(l, ":nth-child("):
		return RankPositional
	}
	for _, attr := range TestIDAttributes {
		if strings.Contains(l, "["+attr+"=") {
			return RankTestID
		}
	}
	switch {
	case strings.Contains(l, "[aria-label="), strings.Contains(l, "[role="):
		return RankAria
	case strings.Contains(l, "#") && !strings.ContainsAny(l, " >[/"):
		return RankID
	case strings.Contains(l, ".") && !strings.ContainsAny(l, " >[/"):
		return RankClass
	}
	return RankUnknown
}

// Outranks reports whether candidate should replace current. Ties fall back to
// lexicographic order so the choice never depends on arrival order.
func Outranks(candidate, current string) bool {
	rc, ro := RankOf(candidate), RankOf(current)
	if rc != ro {
		return rc < ro
	}
	return candidate < current
}
