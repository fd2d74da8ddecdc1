// File: internal/mocks/recorded_session.go
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/browser"
)

// RecordedPage is a canned page: its observation plus the locators that exist
// on it.
type RecordedPage struct {
	Observation schemas.PageObservation
	// Locators maps every locator present on the page to its text content.
	Locators map[string]string
	// Links maps a locator to the URL that is loaded when it is clicked.
	Links map[string]string
}

// RecordedSession replays recorded pages deterministically: the same
// navigation and actions always yield the same observation. It stands in for a
// live browser in unit tests.
type RecordedSession struct {
	mu      sync.Mutex
	pages   map[string]*RecordedPage
	current string
	log     []string
	closed  bool
}

var _ schemas.BrowserSession = (*RecordedSession)(nil)

func NewRecordedSession(pages map[string]*RecordedPage) *RecordedSession {
	return &RecordedSession{pages: pages}
}

// Log returns the actions performed so far, e.g. "navigate:http://x/login".
func (s *RecordedSession) Log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

func (s *RecordedSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *RecordedSession) record(ctx context.Context, entry string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return browser.ErrSessionClosed
	}
	s.log = append(s.log, entry)
	return nil
}

func (s *RecordedSession) page() *RecordedPage {
	return s.pages[s.current]
}

func (s *RecordedSession) lookup(locator string) (string, error) {
	p := s.page()
	if p == nil {
		return "", fmt.Errorf("%w: %s (no page loaded)", browser.ErrElementNotFound, locator)
	}
	text, ok := p.Locators[locator]
	if !ok {
		return "", fmt.Errorf("%w: %s", browser.ErrElementNotFound, locator)
	}
	return text, nil
}

func (s *RecordedSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, "navigate:"+url); err != nil {
		return err
	}
	if _, ok := s.pages[url]; !ok {
		return fmt.Errorf("%w: net::ERR_CONNECTION_REFUSED at %s", browser.ErrNavigation, url)
	}
	s.current = url
	return nil
}

func (s *RecordedSession) Click(ctx context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, "click:"+locator); err != nil {
		return err
	}
	if _, err := s.lookup(locator); err != nil {
		return err
	}
	if next, ok := s.page().Links[locator]; ok {
		s.current = next
	}
	return nil
}

func (s *RecordedSession) Type(ctx context.Context, locator, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, "type:"+locator+"="+text); err != nil {
		return err
	}
	_, err := s.lookup(locator)
	return err
}

func (s *RecordedSession) WaitFor(ctx context.Context, cond schemas.WaitCondition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cond.Locator == "" {
		return s.record(ctx, fmt.Sprintf("wait:%s", cond.Duration))
	}
	if err := s.record(ctx, "wait:"+cond.Locator); err != nil {
		return err
	}
	if _, err := s.lookup(cond.Locator); err != nil {
		return fmt.Errorf("%w: waiting for %s: %v", browser.ErrTimeout, cond.Locator, err)
	}
	return nil
}

func (s *RecordedSession) TextContent(ctx context.Context, locator string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, "text:"+locator); err != nil {
		return "", err
	}
	return s.lookup(locator)
}

func (s *RecordedSession) ExtractInteractiveElements(ctx context.Context) (*schemas.PageObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.page()
	if p == nil {
		return &schemas.PageObservation{URL: "about:blank"}, nil
	}
	obs := p.Observation.Clone()
	obs.URL = s.current
	return &obs, nil
}

func (s *RecordedSession) Screenshot(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, "screenshot:"+name); err != nil {
		return "", err
	}
	return name + ".png", nil
}

func (s *RecordedSession) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
