// internal/browser/urls.go
package browser

import (
	"errors"
	"net/url"
	"strings"
)

var errEmptyURL = errors.New("url is empty")

// ResolveURL resolves target against base when target is relative, so plans
// can say "/login" and run against any deployment.
func ResolveURL(base, target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errEmptyURL
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() || base == "" {
		return ref.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// TextXPath returns an XPath expression for the innermost element whose
// normalized text equals text. Both session engines use it for text locators.
func TextXPath(text string) string {
	lit := xpathLiteral(text)
	return "//body//*[normalize-space(.)=" + lit + " and not(.//*[normalize-space(.)=" + lit + "])]"
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `'`) {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	return `concat('` + strings.Join(parts, `', "'", '`) + `')`
}
