// internal/browser/factory.go
package browser

import (
	"context"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/erppilot/api/schemas"
	"github.com/xkilldash9x/erppilot/internal/config"
)

// Factory allocates isolated browser sessions. Every session gets its own
// Chrome process and browser context; nothing is pooled or reused, so state
// can never bleed between concurrent script executions.
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

var _ schemas.SessionFactory = (*Factory)(nil)

// NewFactory creates a session factory.
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger.Named("browser"),
	}
}

// NewSession launches a fresh, isolated browser and returns the live
// session. The session inherits cancellation from ctx, so an externally
// cancelled run takes its browser down with it.
func (f *Factory) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return newSession(browserCtx, browserCancel, allocCancel, f.cfg, f.logger)
}

func (f *Factory) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		// Container-friendly defaults.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(f.cfg.Browser.WindowWidth, f.cfg.Browser.WindowHeight),
	}

	if f.cfg.Browser.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if f.cfg.Browser.IgnoreTLSErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}

	// User-supplied flags: "--key=value" or "--key".
	for _, arg := range f.cfg.Browser.Args {
		arg = strings.TrimPrefix(arg, "--")
		if key, val, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(key, val))
		} else if arg != "" {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}
