// internal/engine/executor.go
package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/erppilot/api/schemas"
	"github.com/xkilldash9x/erppilot/internal/config"
	"github.com/xkilldash9x/erppilot/internal/resolver"
)

// Credential placeholder tokens. They are substituted immediately before
// input and never appear in logs or persisted results in resolved form.
const (
	usernameToken = "{{username}}"
	passwordToken = "{{password}}"
)

// stepExecutor runs individual steps against one live session. It is created
// per run and carries the run's recorder, so screenshots and extracted data
// accumulate across steps.
type stepExecutor struct {
	session  schemas.BrowserSession
	conn     schemas.Connection
	resolver *resolver.Resolver
	cfg      *config.Config
	logger   *zap.Logger
	rec      *runRecorder
}

func newStepExecutor(
	session schemas.BrowserSession,
	conn schemas.Connection,
	res *resolver.Resolver,
	cfg *config.Config,
	logger *zap.Logger,
	rec *runRecorder,
) *stepExecutor {
	return &stepExecutor{
		session:  session,
		conn:     conn,
		resolver: res,
		cfg:      cfg,
		logger:   logger,
		rec:      rec,
	}
}

// ExecuteStep runs exactly one step. A returned error aborts the run;
// extract and screenshot problems are non-fatal and surface only
// in the logs.
func (x *stepExecutor) ExecuteStep(ctx context.Context, step schemas.Step) error {
	switch step.Action {
	case schemas.ActionNavigate:
		return x.navigate(ctx, step)
	case schemas.ActionClick:
		return x.click(ctx, step)
	case schemas.ActionType:
		return x.typeInto(ctx, step)
	case schemas.ActionWait:
		return x.wait(ctx, step)
	case schemas.ActionScreenshot:
		return x.screenshot(ctx)
	case schemas.ActionExtract:
		return x.extract(ctx, step)
	default:
		// Validate runs before any session is opened, so this is unreachable
		// for scripts that entered through the engine's contract.
		return fmt.Errorf("unsupported action %q", step.Action)
	}
}

func (x *stepExecutor) navigate(ctx context.Context, step schemas.Step) error {
	url := step.Value
	if url == "" {
		url = x.conn.BaseURL
	}

	// Navigation gets its own, longer timeout tier.
	timeout := x.cfg.Network.NavigationTimeout
	if step.TimeoutMs > 0 {
		timeout = time.Duration(step.TimeoutMs) * time.Millisecond
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := x.session.Navigate(navCtx, url); err != nil {
		return &schemas.NavigationError{URL: url, Err: err}
	}
	x.rec.logf("navigated to %s", url)
	return nil
}

func (x *stepExecutor) click(ctx context.Context, step schemas.Step) error {
	res, err := x.resolve(ctx, step)
	if err != nil {
		return err
	}

	actCtx, cancel := context.WithTimeout(ctx, x.stepTimeout(step))
	defer cancel()

	if err := x.session.Click(actCtx, res.Selector); err != nil {
		return fmt.Errorf("click failed on resolved selector %q: %w", res.Selector, err)
	}
	return nil
}

func (x *stepExecutor) typeInto(ctx context.Context, step schemas.Step) error {
	res, err := x.resolve(ctx, step)
	if err != nil {
		return err
	}

	// Placeholders become secrets only here, at the last moment before
	// input. The resolved value is passed to the session and nowhere else.
	value := substituteCredentials(step.Value, x.conn)

	actCtx, cancel := context.WithTimeout(ctx, x.stepTimeout(step))
	defer cancel()

	if err := x.session.Type(actCtx, res.Selector, value); err != nil {
		return fmt.Errorf("typing failed on resolved selector %q: %w", res.Selector, err)
	}
	return nil
}

func (x *stepExecutor) wait(ctx context.Context, step schemas.Step) error {
	d := x.stepTimeout(step)
	x.rec.logf("waiting %s", d)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (x *stepExecutor) screenshot(ctx context.Context) error {
	capCtx, cancel := context.WithTimeout(ctx, x.cfg.Engine.DefaultStepTimeout)
	defer cancel()

	img, err := x.session.Screenshot(capCtx)
	if err != nil {
		// Capture failures never void the run.
		x.logger.Warn("Screenshot capture failed.", zap.Error(err))
		x.rec.logf("screenshot failed: %v", err)
		return nil
	}
	x.rec.screenshots = append(x.rec.screenshots, base64.StdEncoding.EncodeToString(img))
	x.rec.logf("screenshot captured (%d bytes)", len(img))
	return nil
}

func (x *stepExecutor) extract(ctx context.Context, step schemas.Step) error {
	key := schemas.ExtractionKey(step.Description)

	res, err := x.resolve(ctx, step)
	if err != nil {
		// Missing optional data must not void an otherwise successful task.
		warn := &schemas.ExtractionWarning{Key: key, Err: err}
		x.logger.Warn("Extract step skipped.", zap.String("key", key), zap.Error(err))
		x.rec.logf("warning: %v", warn)
		return nil
	}

	actCtx, cancel := context.WithTimeout(ctx, x.stepTimeout(step))
	defer cancel()

	text, err := x.session.Text(actCtx, res.Selector)
	if err != nil {
		warn := &schemas.ExtractionWarning{Key: key, Err: err}
		x.logger.Warn("Extract step failed to read text.", zap.String("key", key), zap.Error(err))
		x.rec.logf("warning: %v", warn)
		return nil
	}

	x.rec.extracted[key] = text
	x.rec.logf("extracted %q", key)
	return nil
}

// resolve locates the element for a selector-bearing step, recording the
// attempt chain in the run logs whichever way it goes.
func (x *stepExecutor) resolve(ctx context.Context, step schemas.Step) (*resolver.Resolution, error) {
	res, err := x.resolver.Resolve(ctx, x.session, step.Selector, step.Description, x.stepTimeout(step))
	if err != nil {
		var exhausted *schemas.ResolutionExhaustedError
		if errors.As(err, &exhausted) {
			x.rec.logf("selector %q exhausted; attempted in order: %s",
				exhausted.Selector, strings.Join(exhausted.Attempted, ", "))
		}
		return nil, err
	}

	if res.Fallback {
		x.rec.logf("selector %q resolved via fallback %q (intent %s, %d attempts)",
			step.Selector, res.Selector, res.Intent, len(res.Attempted))
	}
	return res, nil
}

func (x *stepExecutor) stepTimeout(step schemas.Step) time.Duration {
	if step.TimeoutMs > 0 {
		return time.Duration(step.TimeoutMs) * time.Millisecond
	}
	return x.cfg.Engine.DefaultStepTimeout
}

// substituteCredentials resolves the credential placeholder tokens against
// the connection. The result must never be logged.
func substituteCredentials(value string, conn schemas.Connection) string {
	value = strings.ReplaceAll(value, usernameToken, conn.Username)
	value = strings.ReplaceAll(value, passwordToken, conn.Password)
	return value
}
