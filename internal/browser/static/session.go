// internal/browser/static/session.go
package static

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/browser"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/selector"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) uiforge-static"

// Factory opens static sessions. It implements schemas.SessionFactory.
type Factory struct {
	logger *zap.Logger
	cfg    config.BrowserConfig
	fs     afero.Fs
}

var _ schemas.SessionFactory = (*Factory)(nil)

// NewFactory returns a factory whose sessions write snapshots to fs.
func NewFactory(logger *zap.Logger, cfg config.BrowserConfig, fs afero.Fs) *Factory {
	return &Factory{logger: logger.Named("static_browser"), cfg: cfg, fs: fs}
}

func (f *Factory) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewSession(f.logger, f.cfg, f.fs)
}

// Session is a browser session that fetches pages over HTTP and works on the
// parsed DOM. It runs no scripts, so it suits server-rendered applications
// and offline dry runs.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig
	client *http.Client
	fs     afero.Fs

	mu         sync.RWMutex
	currentURL *url.URL
	currentDOM *html.Node
	status     int
	closed     bool
}

var _ schemas.BrowserSession = (*Session)(nil)

func NewSession(logger *zap.Logger, cfg config.BrowserConfig, fs afero.Fs) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.IgnoreTLSErrors {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for local test servers
	}

	id := uuid.New().String()
	return &Session{
		id:     id,
		logger: logger.With(zap.String("session_id", id), zap.String("engine", "static")),
		cfg:    cfg,
		client: &http.Client{Jar: jar, Transport: transport},
		fs:     fs,
	}, nil
}

func (s *Session) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return browser.ErrSessionClosed
	}
	return nil
}

// -- Navigation --

func (s *Session) Navigate(ctx context.Context, target string) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	resolved, err := s.resolveURL(target)
	if err != nil {
		return fmt.Errorf("%w: %v", browser.ErrNavigation, err)
	}

	s.logger.Debug("Navigating", zap.String("url", resolved))
	req, err := http.NewRequest(http.MethodGet, resolved, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", browser.ErrNavigation, err)
	}
	return s.load(ctx, req)
}

// load executes a request under the navigation timeout and replaces the
// current page with the response. Redirects are followed by the client.
func (s *Session) load(ctx context.Context, req *http.Request) error {
	navCtx := ctx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	req = req.WithContext(navCtx)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if cur := s.CurrentURL(); cur != "" {
		req.Header.Set("Referer", cur)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", browser.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", browser.ErrNavigation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		s.logger.Warn("Request resulted in error status code", zap.Int("status", resp.StatusCode), zap.String("url", resp.Request.URL.String()))
	}

	var doc *html.Node
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		doc, err = htmlquery.Parse(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: failed to parse HTML from %s: %v", browser.ErrNavigation, resp.Request.URL, err)
		}
	} else {
		s.logger.Debug("Response is not HTML, page has no DOM.", zap.String("content_type", resp.Header.Get("Content-Type")))
	}

	s.mu.Lock()
	s.currentURL = resp.Request.URL
	s.currentDOM = doc
	s.status = resp.StatusCode
	s.mu.Unlock()
	return nil
}

// CurrentURL returns the URL of the loaded page, or "" before the first navigation.
func (s *Session) CurrentURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentURL == nil {
		return ""
	}
	return s.currentURL.String()
}

func (s *Session) resolveURL(target string) (string, error) {
	return browser.ResolveURL(s.CurrentURL(), target)
}

// -- Element lookup --

// find returns the first element matching a CSS or text locator.
func (s *Session) find(locator string) (*html.Node, error) {
	s.mu.RLock()
	doc := s.currentDOM
	s.mu.RUnlock()
	if doc == nil {
		return nil, fmt.Errorf("%w: %s (no document loaded)", browser.ErrElementNotFound, locator)
	}

	var node *html.Node
	if text, ok := selector.ParseText(locator); ok {
		n, err := htmlquery.Query(doc, browser.TextXPath(text))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", browser.ErrElementNotFound, locator, err)
		}
		node = n
	} else {
		sel, err := cascadia.Compile(locator)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid selector %q: %v", browser.ErrElementNotFound, locator, err)
		}
		node = cascadia.Query(doc, sel)
	}
	if node == nil || isHidden(node) {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, locator)
	}
	return node, nil
}

// -- Interaction --

func (s *Session) Click(ctx context.Context, locator string) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	el, err := s.find(locator)
	if err != nil {
		return err
	}
	return s.handleClickConsequence(ctx, el)
}

// handleClickConsequence follows links, submits forms and toggles checkable
// inputs. Clicks on anything else only matter to scripts and are ignored.
func (s *Session) handleClickConsequence(ctx context.Context, el *html.Node) error {
	tag := strings.ToLower(el.Data)
	inputType := strings.ToLower(htmlquery.SelectAttr(el, "type"))

	if tag == "a" {
		href := htmlquery.SelectAttr(el, "href")
		if href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return s.Navigate(ctx, href)
		}
		return nil
	}

	isSubmit := (tag == "button" && (inputType == "submit" || inputType == "")) ||
		(tag == "input" && (inputType == "submit" || inputType == "image"))
	if isSubmit {
		if form := findParentForm(el); form != nil {
			return s.submitForm(ctx, form)
		}
		return nil
	}

	if tag == "input" && (inputType == "checkbox" || inputType == "radio") {
		s.mu.Lock()
		defer s.mu.Unlock()
		if inputType == "radio" {
			selectRadio(el)
		} else if hasAttr(el, "checked") {
			removeAttr(el, "checked")
		} else {
			setAttr(el, "checked", "checked")
		}
		return nil
	}

	s.logger.Debug("Click has no effect without scripts.", zap.String("tag", tag))
	return nil
}

func (s *Session) Type(ctx context.Context, locator, text string) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	el, err := s.find(locator)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.EqualFold(el.Data, "textarea") {
		for c := el.FirstChild; c != nil; {
			next := c.NextSibling
			el.RemoveChild(c)
			c = next
		}
		el.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		return nil
	}
	setAttr(el, "value", text)
	return nil
}

// WaitFor checks the locator once: a static document never changes on its own.
func (s *Session) WaitFor(ctx context.Context, cond schemas.WaitCondition) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if cond.Locator == "" {
		timer := time.NewTimer(cond.Duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	if _, err := s.find(cond.Locator); err != nil {
		return fmt.Errorf("%w: waiting for %s: %v", browser.ErrTimeout, cond.Locator, err)
	}
	return nil
}

func (s *Session) TextContent(ctx context.Context, locator string) (string, error) {
	if err := s.checkOpen(ctx); err != nil {
		return "", err
	}
	el, err := s.find(locator)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cleanText(htmlquery.InnerText(el)), nil
}

func (s *Session) ExtractInteractiveElements(ctx context.Context) (*schemas.PageObservation, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	obs := observe(s.currentDOM)
	if s.currentURL != nil {
		obs.URL = s.currentURL.String()
	} else {
		obs.URL = "about:blank"
	}
	if s.status >= 400 {
		obs.Errors = append([]string{fmt.Sprintf("HTTP %d", s.status)}, obs.Errors...)
	}
	return &obs, nil
}

// Screenshot stores the current DOM as HTML, the closest thing to a
// screenshot without a renderer.
func (s *Session) Screenshot(ctx context.Context, name string) (string, error) {
	if err := s.checkOpen(ctx); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	s.mu.RLock()
	if s.currentDOM != nil {
		if err := html.Render(&buf, s.currentDOM); err != nil {
			s.mu.RUnlock()
			return "", fmt.Errorf("failed to render DOM snapshot: %w", err)
		}
	}
	s.mu.RUnlock()

	base := strings.TrimSuffix(filepath.Base(strings.TrimSpace(name)), ".png")
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "screenshot"
	}
	dir := s.cfg.ScreenshotDir
	if dir == "" {
		dir = "."
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(dir, base+".html")
	if err := afero.WriteFile(s.fs, path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write DOM snapshot: %w", err)
	}
	return path, nil
}

func (s *Session) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	s.logger.Debug("Session closed.")
	return nil
}
