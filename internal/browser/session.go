// internal/browser/session.go
package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/selector"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed extract.js
var extractScript string

const probeTimeout = 2 * time.Second

// Session drives one Chrome tab through the DevTools protocol.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig
	fs     afero.Fs

	mu     sync.Mutex
	closed bool
}

var _ schemas.BrowserSession = (*Session)(nil)

func newSession(ctx, allocatorCtx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Session, error) {
	id := uuid.New().String()
	log := logger.With(zap.String("session_id", id), zap.String("engine", "chromedp"))

	tabCtx, cancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	// The first Run creates the tab.
	startCtx, startCancel := CombineContext(tabCtx, ctx)
	defer startCancel()
	if err := chromedp.Run(startCtx); err != nil {
		cancel()
		return nil, err
	}

	log.Debug("Session opened.")
	return &Session{
		id:     id,
		ctx:    tabCtx,
		cancel: cancel,
		logger: log,
		cfg:    cfg,
		fs:     afero.NewOsFs(),
	}, nil
}

// run executes actions on the tab under the caller's context and timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()
	if timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(opCtx, timeout)
		defer cancel()
	}
	return chromedp.Run(opCtx, actions...)
}

// query translates a locator into a chromedp selector.
func query(locator string) (string, chromedp.QueryOption) {
	if text, ok := selector.ParseText(locator); ok {
		return TextXPath(text), chromedp.BySearch
	}
	return locator, chromedp.ByQuery
}

// classify maps a failed locator action to a sentinel. A deadline on an
// element that is absent from the DOM is reported as not found.
func (s *Session) classify(ctx context.Context, locator string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && locator != "" && !s.exists(locator) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, locator)
	}
	return Classify(err)
}

func (s *Session) exists(locator string) bool {
	sel, by := query(locator)
	probeCtx, cancel := context.WithTimeout(s.ctx, probeTimeout)
	defer cancel()
	var nodes []*cdp.Node
	if err := chromedp.Run(probeCtx, chromedp.Nodes(sel, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return false
	}
	return len(nodes) > 0
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		err = Classify(err)
		if errors.Is(err, ErrTimeout) || errors.Is(err, ErrNavigation) || errors.Is(err, context.Canceled) || errors.Is(err, ErrSessionClosed) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNavigation, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, locator string) error {
	sel, by := query(locator)
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Click(sel, by))
	return s.classify(ctx, locator, err)
}

func (s *Session) Type(ctx context.Context, locator, text string) error {
	sel, by := query(locator)
	err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.SetValue(sel, "", by),
		chromedp.SendKeys(sel, text, by),
	)
	return s.classify(ctx, locator, err)
}

func (s *Session) WaitFor(ctx context.Context, cond schemas.WaitCondition) error {
	if cond.Locator == "" {
		return Classify(s.run(ctx, 0, chromedp.Sleep(cond.Duration)))
	}
	sel, by := query(cond.Locator)
	timeout := s.cfg.ActionTimeout
	if cond.Duration > 0 {
		timeout = cond.Duration
	}
	if err := s.run(ctx, timeout, chromedp.WaitVisible(sel, by)); err != nil {
		err = Classify(err)
		if errors.Is(err, ErrTimeout) {
			return fmt.Errorf("%w: waiting for %s", err, cond.Locator)
		}
		return err
	}
	return nil
}

func (s *Session) TextContent(ctx context.Context, locator string) (string, error) {
	sel, by := query(locator)
	var text string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Text(sel, &text, by)); err != nil {
		return "", s.classify(ctx, locator, err)
	}
	return strings.TrimSpace(text), nil
}

func (s *Session) ExtractInteractiveElements(ctx context.Context) (*schemas.PageObservation, error) {
	var raw []byte
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(extractScript, &raw)); err != nil {
		return nil, Classify(err)
	}
	var obs schemas.PageObservation
	if err := json.Unmarshal(raw, &obs); err != nil {
		return nil, fmt.Errorf("failed to decode page observation: %w", err)
	}
	return &obs, nil
}

func (s *Session) Screenshot(ctx context.Context, name string) (string, error) {
	var buf []byte
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", Classify(err)
	}
	return writeScreenshot(s.fs, s.cfg.ScreenshotDir, name, buf)
}

// writeScreenshot stores a PNG under dir and returns its path.
func writeScreenshot(fs afero.Fs, dir, name string, png []byte) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "screenshot"
	}
	if !strings.HasSuffix(base, ".png") {
		base += ".png"
	}
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(dir, base)
	if err := afero.WriteFile(fs, path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

// Close closes the tab. It is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Debug("Closing session.")
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser tab: %w", err)
	}
	return nil
}
