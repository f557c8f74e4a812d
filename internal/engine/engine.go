// internal/engine/engine.go

// Package engine executes automation scripts against live browser sessions.
// Its contract is deliberately narrow: Execute always returns a complete
// TaskResult, never panics past its boundary, and tears the session down on
// every exit path.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/erppilot/api/schemas"
	"github.com/xkilldash9x/erppilot/internal/config"
	"github.com/xkilldash9x/erppilot/internal/resolver"
)

// teardownGracePeriod bounds session close on exit paths where the run's own
// context may already be dead.
const teardownGracePeriod = 10 * time.Second

// RunState tracks where a run is in its lifecycle. Completed and Failed are
// terminal and always paired with session teardown.
type RunState int

const (
	StatePending RunState = iota
	StateSessionStarting
	StateRunning
	StateCompleted
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSessionStarting:
		return "session_starting"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Engine owns the browser session lifecycle for script runs. It is safe for
// concurrent use: every Execute call allocates its own session and its own
// recorder, and nothing is shared between runs.
type Engine struct {
	cfg      *config.Config
	logger   *zap.Logger
	factory  schemas.SessionFactory
	resolver *resolver.Resolver
}

// New creates an Engine backed by the given session factory.
func New(cfg *config.Config, logger *zap.Logger, factory schemas.SessionFactory) *Engine {
	return &Engine{
		cfg:      cfg,
		logger:   logger.Named("engine"),
		factory:  factory,
		resolver: resolver.New(logger, cfg.Engine.ResolverMinSlice),
	}
}

// runRecorder accumulates the observable output of one run. The engine owns
// it exclusively for the run's duration and freezes it into the immutable
// TaskResult on return.
type runRecorder struct {
	logs        []string
	screenshots []string
	extracted   map[string]string
}

func newRunRecorder() *runRecorder {
	return &runRecorder{
		logs:        []string{},
		screenshots: []string{},
		extracted:   map[string]string{},
	}
}

func (r *runRecorder) logf(format string, args ...interface{}) {
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
}

func (r *runRecorder) result(success bool, errMsg string, elapsed time.Duration) *schemas.TaskResult {
	return &schemas.TaskResult{
		Success:         success,
		Logs:            r.logs,
		Screenshots:     r.screenshots,
		ExtractedData:   r.extracted,
		ErrorMessage:    errMsg,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}
}

// Execute runs a script step by step against a fresh, isolated session and
// returns the run's TaskResult. It never returns an error: every failure
// mode, including panics from unanticipated step behavior, is converted into
// Success=false with a best-effort message. ExecutionTimeMs is wall-clock
// from entry to return regardless of outcome.
func (e *Engine) Execute(ctx context.Context, script *schemas.AutomationScript, conn schemas.Connection) (result *schemas.TaskResult) {
	start := time.Now()
	rec := newRunRecorder()
	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID), zap.String("connection", conn.Name))

	state := StatePending
	setState := func(next RunState) {
		state = next
		logger.Debug("Run state changed.", zap.Stringer("state", state))
	}

	// The engine never leaks a panic past its public contract.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic during script execution.", zap.Any("panic_value", r), zap.Stack("stack"))
			rec.logf("internal error: %v", r)
			result = rec.result(false, fmt.Sprintf("internal error: %v", r), time.Since(start))
		}
	}()

	// Structural validation happens before any session is allocated.
	if err := schemas.Validate(script); err != nil {
		setState(StateFailed)
		rec.logf("script rejected: %v", err)
		return rec.result(false, err.Error(), time.Since(start))
	}

	setState(StateSessionStarting)
	rec.logf("starting browser session")

	session, err := e.factory.NewSession(ctx)
	if err != nil {
		setState(StateFailed)
		infraErr := &schemas.InfrastructureError{Err: err}
		logger.Error("Session allocation failed.", zap.Error(err))
		rec.logf("%v", infraErr)
		return rec.result(false, infraErr.Error(), time.Since(start))
	}
	logger = logger.With(zap.String("session_id", session.ID()))

	// Teardown is a correctness invariant, not optional cleanup: the session
	// closes on success, step failure, panic, and external cancellation
	// alike. A background context keeps close working when ctx is dead.
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), teardownGracePeriod)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("Session teardown reported an error.", zap.Error(err))
		}
	}()

	executor := newStepExecutor(session, conn, e.resolver, e.cfg, logger, rec)
	setState(StateRunning)

	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			setState(StateFailed)
			rec.logf("run cancelled before step %d: %v", i+1, err)
			return rec.result(false, fmt.Sprintf("execution cancelled: %v", err), time.Since(start))
		}

		rec.logf("step %d started: %s [%s]", i+1, step.Description, step.Action)
		logger.Info("Executing step.",
			zap.Int("step", i+1),
			zap.String("action", string(step.Action)),
			zap.String("description", step.Description))

		if err := executor.ExecuteStep(ctx, step); err != nil {
			setState(StateFailed)
			rec.logf("step %d failed: %v", i+1, err)
			logger.Warn("Step failed, aborting remaining steps.", zap.Int("step", i+1), zap.Error(err))
			msg := fmt.Sprintf("step %d (%s) failed: %v", i+1, step.Action, err)
			return rec.result(false, msg, time.Since(start))
		}
		rec.logf("step %d completed: %s", i+1, step.Description)

		// Fixed breather between steps; slow ERP frontends fall over when
		// driven at machine speed.
		if i < len(script.Steps)-1 {
			if err := sleepCtx(ctx, e.cfg.Engine.InterStepDelay); err != nil {
				setState(StateFailed)
				rec.logf("run cancelled between steps: %v", err)
				return rec.result(false, fmt.Sprintf("execution cancelled: %v", err), time.Since(start))
			}
		}
	}

	setState(StateCompleted)
	rec.logf("script completed: %d steps", len(script.Steps))
	logger.Info("Script execution finished.", zap.Duration("elapsed", time.Since(start)))
	return rec.result(true, "", time.Since(start))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
