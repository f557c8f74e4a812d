package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/erppilot/api/schemas"
	"github.com/xkilldash9x/erppilot/internal/config"
)

// testConfig returns a Config with delays shrunk so engine tests run in
// milliseconds.
func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			DefaultStepTimeout: 100 * time.Millisecond,
			InterStepDelay:     time.Millisecond,
			KeystrokeDelay:     0,
			ResolverMinSlice:   time.Millisecond,
		},
		Network: config.NetworkConfig{
			NavigationTimeout: 100 * time.Millisecond,
		},
	}
}

// stubSession is a scripted BrowserSession. Behavior is injected per method;
// nil hooks mean "succeed and match everything". It records typed text and
// its own close count.
type stubSession struct {
	mu sync.Mutex

	navigateErr  error
	matchFn      func(selector string) (bool, error)
	clickErr     error
	typeErr      error
	textFn       func(selector string) (string, error)
	screenshotFn func() ([]byte, error)

	navigated  []string
	clicked    []string
	typed      map[string]string
	closeCount int
}

func newStubSession() *stubSession {
	return &stubSession{typed: map[string]string{}}
}

func (s *stubSession) ID() string { return "stub-session" }

func (s *stubSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navigateErr != nil {
		return s.navigateErr
	}
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *stubSession) DocumentStatus() int { return 200 }

func (s *stubSession) Title(ctx context.Context) (string, error) { return "stub", nil }

func (s *stubSession) Match(ctx context.Context, selector string) (bool, error) {
	if s.matchFn != nil {
		return s.matchFn(selector)
	}
	return true, nil
}

func (s *stubSession) Click(ctx context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clickErr != nil {
		return s.clickErr
	}
	s.clicked = append(s.clicked, selector)
	return nil
}

func (s *stubSession) Type(ctx context.Context, selector, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typeErr != nil {
		return s.typeErr
	}
	s.typed[selector] = text
	return nil
}

func (s *stubSession) Text(ctx context.Context, selector string) (string, error) {
	if s.textFn != nil {
		return s.textFn(selector)
	}
	return "", nil
}

func (s *stubSession) Screenshot(ctx context.Context) ([]byte, error) {
	if s.screenshotFn != nil {
		return s.screenshotFn()
	}
	return []byte("png-bytes"), nil
}

func (s *stubSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return nil
}

func (s *stubSession) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

var _ schemas.BrowserSession = (*stubSession)(nil)

// stubFactory hands out a fixed session and counts allocations.
type stubFactory struct {
	mu      sync.Mutex
	session *stubSession
	err     error
	created int
}

func (f *stubFactory) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	if f.session == nil {
		return nil, fmt.Errorf("stubFactory has no session configured")
	}
	return f.session, nil
}

func (f *stubFactory) sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

var _ schemas.SessionFactory = (*stubFactory)(nil)
