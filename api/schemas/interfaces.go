package schemas

import "context"

// BrowserSession is the contract between the execution engine and one live,
// isolated browser instance. Exactly one run owns a session at a time; Close
// must be safe to call on every exit path and idempotent.
//
// Selector strings are CSS by default; selectors beginning with "//" or
// "(//" are evaluated as XPath. This matches the candidate vocabulary the
// resolver generates.
type BrowserSession interface {
	// ID returns the unique identifier of the session.
	ID() string
	// Navigate loads a URL, waits for the document to be ready, and applies
	// the configured settle delay for client-rendered pages.
	Navigate(ctx context.Context, url string) error
	// DocumentStatus returns the HTTP status of the last main-document
	// response, or zero if none was observed.
	DocumentStatus() int
	// Title returns the current page title.
	Title(ctx context.Context) (string, error)
	// Match reports whether the selector currently matches a visible element,
	// polling until it does or the context deadline passes. A timeout is the
	// no-match signal (false, nil), not an error.
	Match(ctx context.Context, selector string) (bool, error)
	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// Type clears the matched field and types text into it with a small
	// inter-keystroke delay.
	Type(ctx context.Context, selector string, text string) error
	// Text returns the trimmed text content of the matched element.
	Text(ctx context.Context, selector string) (string, error)
	// Screenshot captures a full-page PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close tears the session down. Idempotent.
	Close(ctx context.Context) error
}

// SessionFactory allocates isolated browser sessions. The engine and the
// probe depend on this interface rather than a concrete browser so tests can
// inject counting fakes and verify the no-leak invariant.
type SessionFactory interface {
	NewSession(ctx context.Context) (BrowserSession, error)
}

// ScriptSynthesizer is the consumer-side contract of the external
// natural-language-to-script service. Implementations must return a script
// that already passed Validate, or a typed error; they never execute steps.
type ScriptSynthesizer interface {
	Synthesize(ctx context.Context, taskDescription string, conn Connection) (*AutomationScript, error)
}
