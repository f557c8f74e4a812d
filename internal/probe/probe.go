// internal/probe/probe.go

// Package probe answers "is this connection plausible?" without running a
// task script: one navigation to the base URL, a look at the resulting page,
// and an unconditional session close.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/erppilot/api/schemas"
	"github.com/xkilldash9x/erppilot/internal/config"
	"github.com/xkilldash9x/erppilot/internal/resolver"
)

const (
	// fieldCheckTimeout bounds each login-field heuristic probe.
	fieldCheckTimeout = 2 * time.Second
	// teardownGracePeriod bounds session close when the probe context is dead.
	teardownGracePeriod = 10 * time.Second
)

// Prober performs lightweight reachability checks against a Connection.
type Prober struct {
	cfg     *config.Config
	logger  *zap.Logger
	factory schemas.SessionFactory
}

// New creates a Prober backed by the given session factory.
func New(cfg *config.Config, logger *zap.Logger, factory schemas.SessionFactory) *Prober {
	return &Prober{
		cfg:     cfg,
		logger:  logger.Named("probe"),
		factory: factory,
	}
}

// Probe opens a session, navigates to the connection's base URL only, and
// inspects the page for login indicators. It never executes script steps and
// always closes the session before returning. Like the engine, it reports
// failure through the return value rather than an error.
func (p *Prober) Probe(ctx context.Context, conn schemas.Connection) *schemas.ProbeReport {
	logger := p.logger.With(zap.String("connection", conn.Name), zap.String("url", conn.BaseURL))
	report := &schemas.ProbeReport{Details: schemas.ProbeDetails{URL: conn.BaseURL}}

	session, err := p.factory.NewSession(ctx)
	if err != nil {
		logger.Error("Probe could not start a browser session.", zap.Error(err))
		report.Message = fmt.Sprintf("browser session could not be started: %v", err)
		return report
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), teardownGracePeriod)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("Probe session teardown reported an error.", zap.Error(err))
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, p.cfg.Network.NavigationTimeout)
	defer cancel()
	if err := session.Navigate(navCtx, conn.BaseURL); err != nil {
		logger.Info("Probe target unreachable.", zap.Error(err))
		report.Message = fmt.Sprintf("target unreachable: %v", err)
		return report
	}

	report.Details.Status = session.DocumentStatus()
	if title, err := session.Title(ctx); err == nil {
		report.Details.Title = title
	}

	if report.Details.Status >= http.StatusBadRequest {
		report.Message = fmt.Sprintf("target responded with HTTP %d", report.Details.Status)
		return report
	}

	// Same heuristic family the resolver uses for selector fallbacks.
	report.Details.HasLoginForm = p.anyVisible(ctx, session, resolver.Candidates(resolver.IntentPassword, ""))
	report.Details.HasUsernameField = p.anyVisible(ctx, session, resolver.Candidates(resolver.IntentUsername, ""))

	report.Success = true
	switch {
	case report.Details.HasLoginForm && report.Details.HasUsernameField:
		report.Message = "login form detected"
	case report.Details.HasLoginForm:
		report.Message = "password field detected, username field not identified"
	default:
		report.Message = "target reachable, but no login form was detected"
	}
	if report.Details.Status == 0 {
		// Navigation completed without a main-document response event, so
		// the status class is unknown. Keep the verdict but say so.
		report.Message += "; no HTTP response was observed"
	}

	logger.Info("Probe finished.",
		zap.Int("status", report.Details.Status),
		zap.Bool("login_form", report.Details.HasLoginForm))
	return report
}

// anyVisible reports whether any of the candidate selectors matches a
// visible element right now. Each candidate gets a short, fixed check.
func (p *Prober) anyVisible(ctx context.Context, session schemas.BrowserSession, candidates []string) bool {
	for _, selector := range candidates {
		checkCtx, cancel := context.WithTimeout(ctx, fieldCheckTimeout)
		matched, err := session.Match(checkCtx, selector)
		cancel()
		if err != nil {
			return false
		}
		if matched {
			return true
		}
	}
	return false
}
