// internal/resolver/resolver.go

// Package resolver turns a failing logical selector into a working one, or
// fails explicitly. It never guesses silently: the resolution records every
// selector it attempted, in order, so a failed run can be diagnosed from its
// logs alone.
package resolver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/erppilot/api/schemas"
)

// defaultMinSlice bounds the per-candidate time slice from below; a slice
// shorter than this cannot observe a slow page rendering the element.
const defaultMinSlice = 2 * time.Second

// Resolution is a successful outcome: the selector that actually matched,
// whether it was a fallback, and the full attempt chain for the logs.
type Resolution struct {
	Selector  string
	Intent    Intent
	Fallback  bool
	Attempted []string
}

// Resolver tries selectors against a live session within a time budget.
type Resolver struct {
	logger   *zap.Logger
	minSlice time.Duration
}

// New creates a Resolver. minSlice of zero or less selects the default
// per-candidate floor.
func New(logger *zap.Logger, minSlice time.Duration) *Resolver {
	if minSlice <= 0 {
		minSlice = defaultMinSlice
	}
	return &Resolver{
		logger:   logger.Named("resolver"),
		minSlice: minSlice,
	}
}

// Resolve tries the given selector with a quarter of the budget, then walks
// the intent-classified fallback candidates with equal slices of the
// remainder, short-circuiting on the first match. "No match anywhere" is a
// *schemas.ResolutionExhaustedError, never a panic; a nil session is a
// programming error and does panic.
func (r *Resolver) Resolve(
	ctx context.Context,
	session schemas.BrowserSession,
	selector string,
	description string,
	budget time.Duration,
) (*Resolution, error) {

	if session == nil {
		panic("resolver: Resolve called with nil session")
	}
	if budget <= 0 {
		budget = 4 * r.minSlice
	}

	start := time.Now()
	attempted := []string{selector}

	// The original selector gets first claim on the budget.
	matched, err := r.try(ctx, session, selector, budget/4)
	if err != nil {
		return nil, err
	}
	if matched {
		return &Resolution{Selector: selector, Attempted: attempted}, nil
	}

	intent := Classify(selector, description)
	candidates := Candidates(intent, LabelFromDescription(description))
	if len(candidates) == 0 {
		r.logger.Debug("Selector intent unclassifiable, no fallbacks to try.",
			zap.String("selector", selector))
		return nil, &schemas.ResolutionExhaustedError{Selector: selector, Attempted: attempted}
	}

	remaining := budget - time.Since(start)
	slice := remaining / time.Duration(len(candidates))
	if slice < r.minSlice {
		slice = r.minSlice
	}

	r.logger.Debug("Trying fallback candidates.",
		zap.String("selector", selector),
		zap.Stringer("intent", intent),
		zap.Int("candidates", len(candidates)),
		zap.Duration("slice", slice))

	for _, candidate := range candidates {
		attempted = append(attempted, candidate)
		matched, err := r.try(ctx, session, candidate, slice)
		if err != nil {
			return nil, err
		}
		if matched {
			r.logger.Info("Fallback selector matched.",
				zap.String("original", selector),
				zap.String("resolved", candidate),
				zap.Stringer("intent", intent))
			return &Resolution{
				Selector:  candidate,
				Intent:    intent,
				Fallback:  true,
				Attempted: attempted,
			}, nil
		}
	}

	return nil, &schemas.ResolutionExhaustedError{Selector: selector, Attempted: attempted}
}

// try matches one selector within its slice. Session errors propagate;
// a timeout is simply "no match".
func (r *Resolver) try(ctx context.Context, session schemas.BrowserSession, selector string, slice time.Duration) (bool, error) {
	tryCtx, cancel := context.WithTimeout(ctx, slice)
	defer cancel()

	matched, err := session.Match(tryCtx, selector)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("selector match for %q failed: %w", selector, err)
	}
	return matched, nil
}
