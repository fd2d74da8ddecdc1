// internal/browser/static/dom.go
package static

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/selector"
)

const (
	maxElements = 200
	maxText     = 80
	maxErrors   = 20
)

var (
	interactiveSel = cascadia.MustCompile(`a[href], button, input, select, textarea, [role=button], [role=link], [role=checkbox], [role=tab], [role=menuitem], [onclick], [contenteditable=true]`)
	formSel        = cascadia.MustCompile("form")
	fieldSel       = cascadia.MustCompile("input, select, textarea, button")
	errorSel       = cascadia.MustCompile(`[role=alert], .error, .alert-danger, [aria-invalid=true]`)
)

// observe builds a PageObservation from a parsed document. It mirrors the
// extraction script used by the chromedp engine, minus layout information.
func observe(doc *html.Node) schemas.PageObservation {
	obs := schemas.PageObservation{Elements: []schemas.InteractiveElement{}}
	if doc == nil {
		return obs
	}
	if title := htmlquery.FindOne(doc, "//title"); title != nil {
		obs.Title = cleanText(htmlquery.InnerText(title))
	}

	for _, n := range cascadia.QueryAll(doc, interactiveSel) {
		if len(obs.Elements) >= maxElements {
			break
		}
		if isHidden(n) {
			continue
		}
		obs.Elements = append(obs.Elements, element(n))
	}

	for _, f := range cascadia.QueryAll(doc, formSel) {
		form := schemas.Form{
			ID:     htmlquery.SelectAttr(f, "id"),
			Action: htmlquery.SelectAttr(f, "action"),
			Method: strings.ToLower(htmlquery.SelectAttr(f, "method")),
		}
		if form.Method == "" {
			form.Method = "get"
		}
		for _, field := range cascadia.QueryAll(f, fieldSel) {
			name := htmlquery.SelectAttr(field, "name")
			if name == "" {
				name = htmlquery.SelectAttr(field, "id")
			}
			if name != "" {
				form.Fields = append(form.Fields, name)
			}
		}
		obs.Forms = append(obs.Forms, form)
	}

	for _, n := range cascadia.QueryAll(doc, errorSel) {
		if len(obs.Errors) >= maxErrors {
			break
		}
		if text := cleanText(htmlquery.InnerText(n)); text != "" {
			obs.Errors = append(obs.Errors, text)
		}
	}
	return obs
}

func element(n *html.Node) schemas.InteractiveElement {
	el := schemas.InteractiveElement{
		Tag:         strings.ToLower(n.Data),
		ID:          htmlquery.SelectAttr(n, "id"),
		AriaLabel:   htmlquery.SelectAttr(n, "aria-label"),
		Role:        htmlquery.SelectAttr(n, "role"),
		Name:        htmlquery.SelectAttr(n, "name"),
		Type:        htmlquery.SelectAttr(n, "type"),
		Placeholder: htmlquery.SelectAttr(n, "placeholder"),
		Classes:     strings.Fields(htmlquery.SelectAttr(n, "class")),
		Index:       nthOfType(n),
	}
	for i, attr := range selector.TestIDAttributes {
		if v := htmlquery.SelectAttr(n, attr); v != "" {
			el.TestID = v
			if i > 0 {
				el.TestIDAttr = attr
			}
			break
		}
	}
	switch el.Tag {
	case "input", "select", "textarea":
	default:
		if text := cleanText(htmlquery.InnerText(n)); text != "" {
			if len(text) > maxText {
				text = text[:maxText]
			}
			el.Text = text
		}
	}
	return el
}

func nthOfType(n *html.Node) int {
	i := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && sib.Data == n.Data {
			i++
		}
	}
	return i
}

// isHidden reports whether n or an ancestor is hidden by markup alone.
func isHidden(n *html.Node) bool {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, "input") && strings.EqualFold(htmlquery.SelectAttr(n, "type"), "hidden") {
		return true
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if hasAttr(cur, "hidden") {
			return true
		}
		style := strings.ReplaceAll(strings.ToLower(htmlquery.SelectAttr(cur, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return true
		}
	}
	return false
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// -- Forms --

// submitForm serializes a form the way a browser would and loads the result.
func (s *Session) submitForm(ctx context.Context, form *html.Node) error {
	action := htmlquery.SelectAttr(form, "action")
	method := strings.ToUpper(htmlquery.SelectAttr(form, "method"))
	if method != http.MethodPost {
		method = http.MethodGet
	}

	target := s.CurrentURL()
	if action != "" {
		resolved, err := s.resolveURL(action)
		if err != nil {
			return fmt.Errorf("failed to resolve form action %q: %w", action, err)
		}
		target = resolved
	}
	if target == "" {
		return fmt.Errorf("failed to determine form submission URL")
	}

	s.mu.RLock()
	data := serializeForm(form)
	s.mu.RUnlock()

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequest(method, target, strings.NewReader(data.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		u, perr := url.Parse(target)
		if perr != nil {
			return perr
		}
		u.RawQuery = data.Encode()
		req, err = http.NewRequest(method, u.String(), nil)
		if err != nil {
			return err
		}
	}
	return s.load(ctx, req)
}

func serializeForm(form *html.Node) url.Values {
	data := url.Values{}
	inputs, err := htmlquery.QueryAll(form, ".//input | .//textarea | .//select")
	if err != nil {
		return data
	}
	for _, input := range inputs {
		name := htmlquery.SelectAttr(input, "name")
		if name == "" || hasAttr(input, "disabled") {
			continue
		}
		switch strings.ToLower(input.Data) {
		case "input":
			switch strings.ToLower(htmlquery.SelectAttr(input, "type")) {
			case "checkbox", "radio":
				if hasAttr(input, "checked") {
					value := htmlquery.SelectAttr(input, "value")
					if value == "" {
						value = "on"
					}
					data.Add(name, value)
				}
			case "submit", "button", "image", "reset", "file":
			default:
				data.Add(name, htmlquery.SelectAttr(input, "value"))
			}
		case "textarea":
			data.Add(name, htmlquery.InnerText(input))
		case "select":
			options := htmlquery.Find(input, ".//option[@selected]")
			if len(options) == 0 {
				if first := htmlquery.FindOne(input, ".//option"); first != nil {
					options = []*html.Node{first}
				}
			}
			for _, opt := range options {
				value := htmlquery.SelectAttr(opt, "value")
				if value == "" {
					value = cleanText(htmlquery.InnerText(opt))
				}
				data.Add(name, value)
			}
		}
	}
	return data
}

// selectRadio checks el and unchecks the other radios of its group.
func selectRadio(el *html.Node) {
	name := htmlquery.SelectAttr(el, "name")
	if name == "" {
		setAttr(el, "checked", "checked")
		return
	}
	root := findParentForm(el)
	if root == nil {
		root = el
		for root.Parent != nil {
			root = root.Parent
		}
	}
	for _, radio := range htmlquery.Find(root, ".//input[@type='radio']") {
		if htmlquery.SelectAttr(radio, "name") != name {
			continue
		}
		if radio == el {
			setAttr(radio, "checked", "checked")
		} else {
			removeAttr(radio, "checked")
		}
	}
}

func findParentForm(el *html.Node) *html.Node {
	for form := el.Parent; form != nil; form = form.Parent {
		if form.Type == html.ElementNode && strings.EqualFold(form.Data, "form") {
			return form
		}
	}
	return nil
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

func removeAttr(n *html.Node, key string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func setAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
