// internal/tools/browser_tools.go
package tools

import (
	"context"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/agent"
	"github.com/xkilldash9x/uiforge/internal/browser"
)

// Tool names offered while exploring a live page.
const (
	ToolBrowserNavigate = "browser_navigate"
	ToolBrowserClick    = "browser_click"
	ToolBrowserType     = "browser_type"
	ToolBrowserWait     = "browser_wait"
	ToolBrowserExtract  = "browser_extract_elements"
	ToolBrowserShot     = "browser_screenshot"
)

const maxWaitDuration = 30 * time.Second

// BrowserTools exposes one browser session to the Oracle.
type BrowserTools struct {
	session schemas.BrowserSession
	baseURL string
}

// NewBrowserTools binds the browser tools to a session. Relative navigation
// targets are resolved against baseURL.
func NewBrowserTools(session schemas.BrowserSession, baseURL string) *BrowserTools {
	return &BrowserTools{session: session, baseURL: baseURL}
}

func (b *BrowserTools) Tools() []Tool {
	locator := stringProp(`CSS selector, or text="..." to match by visible text.`)
	return []Tool{
		{
			Name:        ToolBrowserNavigate,
			Description: "Opens a URL in the browser. Paths such as \"/login\" are resolved against the application base URL.",
			Parameters:  objectSchema([]string{"url"}, map[string]*openapi3.Schema{"url": stringProp("Absolute URL or path.")}),
			Handler:     b.navigate,
		},
		{
			Name:        ToolBrowserClick,
			Description: "Clicks the first element matching a locator.",
			Parameters:  objectSchema([]string{"locator"}, map[string]*openapi3.Schema{"locator": locator}),
			Handler:     b.click,
		},
		{
			Name:        ToolBrowserType,
			Description: "Types text into the first element matching a locator.",
			Parameters: objectSchema([]string{"locator", "text"}, map[string]*openapi3.Schema{
				"locator": locator,
				"text":    stringProp("Text to type."),
			}),
			Handler: b.typeText,
		},
		{
			Name:        ToolBrowserWait,
			Description: "Waits for an element to appear, or for a number of milliseconds.",
			Parameters: objectSchema(nil, map[string]*openapi3.Schema{
				"locator": locator,
				"ms":      intProp("Milliseconds to wait when no locator is given.", 0),
			}),
			Handler: b.wait,
		},
		{
			Name:        ToolBrowserExtract,
			Description: "Returns the title, URL, interactive elements and forms of the current page.",
			Parameters:  objectSchema(nil, nil),
			Handler:     b.extract,
		},
		{
			Name:        ToolBrowserShot,
			Description: "Captures a screenshot of the current page.",
			Parameters:  objectSchema([]string{"name"}, map[string]*openapi3.Schema{"name": stringProp("File name without extension.")}),
			Handler:     b.screenshot,
		},
	}
}

func (b *BrowserTools) Register(r *Registry) error {
	return r.Register(b.Tools()...)
}

type actionResult struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Path   string `json:"path,omitempty"`
}

func (b *BrowserTools) navigate(ctx context.Context, args Args) (any, error) {
	target, err := browser.ResolveURL(b.baseURL, args.String("url"))
	if err != nil {
		return nil, withCode(agent.ErrCodeInvalidParameters, "%v", err)
	}
	if err := b.session.Navigate(ctx, target); err != nil {
		return nil, err
	}
	return actionResult{Status: "navigated", URL: target}, nil
}

func (b *BrowserTools) click(ctx context.Context, args Args) (any, error) {
	if err := b.session.Click(ctx, args.String("locator")); err != nil {
		return nil, err
	}
	return actionResult{Status: "clicked"}, nil
}

func (b *BrowserTools) typeText(ctx context.Context, args Args) (any, error) {
	if err := b.session.Type(ctx, args.String("locator"), args.String("text")); err != nil {
		return nil, err
	}
	return actionResult{Status: "typed"}, nil
}

func (b *BrowserTools) wait(ctx context.Context, args Args) (any, error) {
	cond := schemas.WaitCondition{Locator: args.String("locator")}
	if cond.Locator == "" {
		d := time.Duration(args.Int("ms", 0)) * time.Millisecond
		if d <= 0 {
			return nil, withCode(agent.ErrCodeInvalidParameters, "browser_wait needs a locator or a positive ms value")
		}
		if d > maxWaitDuration {
			d = maxWaitDuration
		}
		cond.Duration = d
	}
	if err := b.session.WaitFor(ctx, cond); err != nil {
		return nil, err
	}
	return actionResult{Status: "waited"}, nil
}

func (b *BrowserTools) extract(ctx context.Context, _ Args) (any, error) {
	return b.session.ExtractInteractiveElements(ctx)
}

func (b *BrowserTools) screenshot(ctx context.Context, args Args) (any, error) {
	path, err := b.session.Screenshot(ctx, args.String("name"))
	if err != nil {
		return nil, err
	}
	return actionResult{Status: "captured", Path: path}, nil
}
