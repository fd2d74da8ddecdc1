package selector

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/xkilldash9x/uiforge/api/schemas"
)

const (
	maxRoleWords    = 4
	maxRoleTextLen  = 40
	fallbackRoleTag = "element"
)

// RoleName derives the logical role of an element, e.g. "usernameInput",
// "submitButton" or "signInLink". ordinal is used only when the element has
// nothing readable to name it by.
func RoleName(el schemas.InteractiveElement, ordinal int) string {
	suffix := kindSuffix(el)

	var base string
	for _, candidate := range []string{
		el.TestID,
		stableID(el.ID),
		el.Name,
		el.AriaLabel,
		el.Placeholder,
		shortText(el.Text),
	} {
		if base = camelCase(candidate); base != "" {
			break
		}
	}

	if base == "" {
		tag := strings.ToLower(el.Tag)
		if suffix != "" {
			tag = strings.ToLower(suffix)
		}
		if tag == "" {
			tag = fallbackRoleTag
		}
		return tag + strconv.Itoa(ordinal)
	}

	if suffix != "" && !strings.HasSuffix(strings.ToLower(base), strings.ToLower(suffix)) {
		base += suffix
	}
	if unicode.IsDigit(rune(base[0])) {
		base = "el" + strings.ToUpper(base[:1]) + base[1:]
	}
	return base
}

func stableID(id string) string {
	if id == "" || IsVolatileID(id) {
		return ""
	}
	return id
}

func shortText(text string) string {
	text = normalizeText(text)
	if len(text) > maxRoleTextLen {
		return ""
	}
	return text
}

func kindSuffix(el schemas.InteractiveElement) string {
	switch strings.ToLower(el.Tag) {
	case "input":
		switch strings.ToLower(el.Type) {
		case "submit", "button", "reset":
			return "Button"
		case "checkbox":
			return "Checkbox"
		case "radio":
			return "Radio"
		}
		return "Input"
	case "textarea":
		return "Input"
	case "select":
		return "Select"
	case "button":
		return "Button"
	case "a":
		return "Link"
	case "form":
		return "Form"
	}
	if strings.EqualFold(el.Role, "button") {
		return "Button"
	}
	return ""
}

// camelCase joins the alphanumeric words of s as lowerCamelCase, keeping at
// most maxRoleWords words.
func camelCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
	// Split existing camelCase ("userName") so it is preserved, not flattened.
	var split []string
	for _, w := range words {
		split = append(split, splitCamel(w)...)
	}
	if len(split) > maxRoleWords {
		split = split[:maxRoleWords]
	}

	var b strings.Builder
	for i, w := range split {
		w = strings.ToLower(w)
		if i > 0 {
			w = strings.ToUpper(w[:1]) + w[1:]
		}
		b.WriteString(w)
	}
	return b.String()
}

func splitCamel(w string) []string {
	var out []string
	start := 0
	for i := 1; i < len(w); i++ {
		if unicode.IsUpper(rune(w[i])) && unicode.IsLower(rune(w[i-1])) {
			out = append(out, w[start:i])
			start = i
		}
	}
	return append(out, w[start:])
}
