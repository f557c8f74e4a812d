package schemas

import (
	"fmt"
	"strings"
)

// The error taxonomy mirrors the retry semantics callers care about:
// malformed scripts are never worth retrying unchanged, infrastructure
// failures are worth retrying as-is, and resolution failures signal selector
// drift worth a script update. All types support errors.As.

// MalformedScriptError reports a script that failed structural validation.
// No session is ever opened for a malformed script.
type MalformedScriptError struct {
	StepIndex int
	Reason    string
}

func (e *MalformedScriptError) Error() string {
	return fmt.Sprintf("malformed script: %s (step %d)", e.Reason, e.StepIndex)
}

// InfrastructureError reports that the browser session could not be
// allocated. The run fails before any step executes.
type InfrastructureError struct {
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure failure: %v", e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// NavigationError reports that a navigate step's target failed to load or
// exceeded its timeout.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ResolutionExhaustedError reports that a selector and every fallback
// candidate failed to match within budget. Attempted preserves the exact
// order the selectors were tried in, for diagnosis.
type ResolutionExhaustedError struct {
	Selector  string
	Attempted []string
}

func (e *ResolutionExhaustedError) Error() string {
	return fmt.Sprintf("selector %q could not be resolved; attempted [%s]",
		e.Selector, strings.Join(e.Attempted, ", "))
}

// ExtractionWarning reports a non-fatal extract step failure. It is logged
// and the run continues; missing optional data never voids an otherwise
// successful task.
type ExtractionWarning struct {
	Key string
	Err error
}

func (e *ExtractionWarning) Error() string {
	return fmt.Sprintf("extraction of %q failed: %v", e.Key, e.Err)
}

func (e *ExtractionWarning) Unwrap() error { return e.Err }

// SynthesisError reports a failure of the external script synthesis service.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("script synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
