package codegen

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/selector"
	"github.com/xkilldash9x/uiforge/internal/validation"
)

// PuppeteerSelector rewrites a locator into the selector syntax Puppeteer
// understands. CSS passes through; text and XPath locators use the P-selector
// pseudo elements.
func PuppeteerSelector(locator string) string {
	l := strings.TrimSpace(locator)
	if text, ok := selector.ParseText(l); ok {
		quoted, _ := jsQuote(text)
		return fmt.Sprintf(`::-p-text(%s)`, quoted)
	}
	if strings.HasPrefix(l, "xpath=") {
		return fmt.Sprintf(`::-p-xpath(%s)`, strings.TrimPrefix(l, "xpath="))
	}
	if strings.HasPrefix(l, "//") || strings.HasPrefix(l, "(//") {
		return fmt.Sprintf(`::-p-xpath(%s)`, l)
	}
	return l
}

// StepLines renders one Step as the statements of a Jest test body.
func StepLines(st schemas.Step) ([]string, error) {
	var lines []string
	if d := oneLine(st.Description); d != "" {
		lines = append(lines, "// "+d)
	}
	q := func(s string) string {
		out, _ := jsQuote(s)
		return out
	}
	sel := q(PuppeteerSelector(st.Target))

	switch st.Action {
	case schemas.ActionNavigate:
		lines = append(lines, fmt.Sprintf("await page.goto(helpers.url(%s), { waitUntil: 'networkidle2' });", q(st.Target)))

	case schemas.ActionClick:
		lines = append(lines, fmt.Sprintf("await helpers.click(page, %s);", sel))

	case schemas.ActionType:
		lines = append(lines, fmt.Sprintf("await helpers.type(page, %s, %s);", sel, q(st.Value)))

	case schemas.ActionWait:
		var ms int64
		if strings.TrimSpace(st.Value) != "" {
			d, err := validation.ParseWaitDuration(st.Value)
			if err != nil {
				return nil, err
			}
			ms = d.Milliseconds()
		}
		switch {
		case st.Target != "" && ms > 0:
			lines = append(lines, fmt.Sprintf("await helpers.waitFor(page, %s, %d);", sel, ms))
		case st.Target != "":
			lines = append(lines, fmt.Sprintf("await helpers.waitFor(page, %s);", sel))
		case ms > 0:
			lines = append(lines, fmt.Sprintf("await helpers.sleep(%d);", ms))
		default:
			return nil, fmt.Errorf("wait needs a locator or a duration")
		}

	case schemas.ActionAssert:
		switch strings.ToLower(st.Target) {
		case schemas.AssertTargetURL:
			lines = append(lines, fmt.Sprintf("expect(page.url()).toContain(%s);", q(st.Value)))
		case schemas.AssertTargetTitle:
			lines = append(lines, fmt.Sprintf("expect(await page.title()).toContain(%s);", q(st.Value)))
		default:
			if st.Value != "" {
				lines = append(lines, fmt.Sprintf("expect(await helpers.text(page, %s)).toContain(%s);", sel, q(st.Value)))
			} else {
				lines = append(lines, fmt.Sprintf("await helpers.waitFor(page, %s);", sel))
			}
		}

	default:
		return nil, fmt.Errorf("unsupported action %q", st.Action)
	}
	return lines, nil
}
