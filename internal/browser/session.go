// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/erppilot/api/schemas"
	"github.com/xkilldash9x/erppilot/internal/config"
)

// matchPollInterval is how often Match re-evaluates its selector while
// waiting for an element to appear.
const matchPollInterval = 100 * time.Millisecond

// Session is one isolated browser instance: a dedicated Chrome process, a
// fresh browser context, and a single page. It is exclusively owned by one
// script execution and torn down on every exit path.
type Session struct {
	id     string
	ctx    context.Context // chromedp target context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	allocCancel context.CancelFunc

	mu        sync.Mutex
	docStatus int

	closeOnce sync.Once
}

// Ensure Session implements the engine-facing contract.
var _ schemas.BrowserSession = (*Session)(nil)

// newSession wires an already-allocated chromedp context into a Session and
// registers the CDP listeners it needs. The caller (Factory) owns the
// allocator lifecycle until the Session is returned.
func newSession(
	browserCtx context.Context,
	browserCancel context.CancelFunc,
	allocCancel context.CancelFunc,
	cfg *config.Config,
	logger *zap.Logger,
) (*Session, error) {

	sessionID := uuid.New().String()
	s := &Session{
		id:          sessionID,
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		logger:      logger.With(zap.String("session_id", sessionID)),
		cfg:         cfg,
	}

	// Track main-document responses so the probe can read the HTTP status
	// class without a second request.
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Type == network.ResourceTypeDocument {
			s.mu.Lock()
			s.docStatus = int(resp.Response.Status)
			s.mu.Unlock()
		}
	})

	// Starting the browser is the first real allocation; failure here means
	// the environment has no usable Chrome.
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser process: %w", err)
	}

	s.logger.Debug("Browser session started.")
	return s, nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// DocumentStatus returns the HTTP status of the last main-document response.
func (s *Session) DocumentStatus() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docStatus
}

// Navigate loads a URL, waits for the document to become ready, and applies
// the configured settle delay to accommodate slow client-rendered pages.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))

	if err := s.runActions(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	return s.settle(ctx)
}

// settle sleeps for the post-load wait without outliving the context.
func (s *Session) settle(ctx context.Context) error {
	wait := s.cfg.Network.PostLoadWait
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Title returns the current page title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.runActions(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return strings.TrimSpace(title), nil
}

// Match reports whether the selector currently matches a visible element. It
// polls until a match appears or the context deadline passes; a timeout is
// the no-match signal, not an error.
func (s *Session) Match(ctx context.Context, selector string) (bool, error) {
	script := matchScript(selector)
	ticker := time.NewTicker(matchPollInterval)
	defer ticker.Stop()

	for {
		var matched bool
		evalCtx, evalCancel := context.WithTimeout(ctx, matchPollInterval*5)
		err := s.runActions(evalCtx, chromedp.Evaluate(script, &matched))
		evalCancel()

		if err == nil && matched {
			return true, nil
		}
		if s.ctx.Err() != nil {
			return false, fmt.Errorf("session closed during match: %w", s.ctx.Err())
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return false, nil
			}
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Click clicks the first visible element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.runActions(ctx, chromedp.Click(selector, queryOption(selector), chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// Type clears the target field, then types text with a small inter-keystroke
// delay so client-side validation hooks observe individual key events.
func (s *Session) Type(ctx context.Context, selector string, text string) error {
	opt := queryOption(selector)

	if err := s.runActions(ctx,
		chromedp.Focus(selector, opt, chromedp.NodeVisible),
		chromedp.SetValue(selector, "", opt),
	); err != nil {
		return fmt.Errorf("could not focus field %q: %w", selector, err)
	}

	delay := s.cfg.Engine.KeystrokeDelay
	for _, r := range text {
		if err := s.runActions(ctx, chromedp.SendKeys(selector, string(r), opt)); err != nil {
			return fmt.Errorf("typing into %q failed: %w", selector, err)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	return nil
}

// Text returns the trimmed text content of the first matching element.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var out string
	if err := s.runActions(ctx, chromedp.Text(selector, &out, queryOption(selector))); err != nil {
		return "", fmt.Errorf("reading text of %q failed: %w", selector, err)
	}
	return strings.TrimSpace(out), nil
}

// Screenshot captures a full-page PNG. Quality 100 keeps chromedp on the
// lossless PNG encoder; anything lower switches the capture to JPEG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.runActions(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

// Close terminates the browser session. Idempotent and safe on every exit
// path; the dedicated Chrome process dies with the allocator.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing browser session.")
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.logger.Debug("Graceful browser shutdown failed.", zap.Error(err))
		}
		s.cancel()
		s.allocCancel()
	})
	return nil
}

// runActions executes chromedp actions, ensuring they respect both the
// session lifetime (s.ctx) and the incoming request context (ctx).
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// isXPath reports whether a selector uses XPath syntax. The resolver's
// fallback vocabulary mixes CSS and XPath candidates.
func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(//")
}

func queryOption(selector string) chromedp.QueryOption {
	if isXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// matchScript builds the in-page visibility check for a selector. The
// selector is JSON-quoted so arbitrary quoting inside it cannot break out of
// the script.
func matchScript(selector string) string {
	quoted, _ := jsoniter.MarshalToString(selector)
	finder := "document.querySelector(sel)"
	if isXPath(selector) {
		finder = "document.evaluate(sel, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue"
	}
	return fmt.Sprintf(`(function() {
		var sel = %s;
		var el = null;
		try { el = %s; } catch (e) { return false; }
		if (!el) { return false; }
		var style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') { return false; }
		var rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	})()`, quoted, finder)
}
