// Package schemas holds the data shapes shared across the engine, the
// resolver, the probe, and the synthesizer client. It has no dependencies on
// the rest of the application so any component can import it freely.
package schemas

import "strings"

// StepAction enumerates the six automation instructions the engine knows how
// to execute. The set is closed: the executor switches over it exhaustively
// and Validate rejects anything else before a session is opened.
type StepAction string

const (
	ActionNavigate   StepAction = "navigate"
	ActionClick      StepAction = "click"
	ActionType       StepAction = "type"
	ActionWait       StepAction = "wait"
	ActionScreenshot StepAction = "screenshot"
	ActionExtract    StepAction = "extract"
)

// knownActions is the validation whitelist for StepAction.
var knownActions = map[StepAction]struct{}{
	ActionNavigate:   {},
	ActionClick:      {},
	ActionType:       {},
	ActionWait:       {},
	ActionScreenshot: {},
	ActionExtract:    {},
}

// Step is one automation instruction. Selector and Value are optional
// depending on the action; TimeoutMs of zero means the engine default.
type Step struct {
	Action      StepAction `json:"action"`
	Selector    string     `json:"selector,omitempty"`
	Value       string     `json:"value,omitempty"`
	TimeoutMs   int        `json:"timeoutMs,omitempty"`
	Description string     `json:"description"`
}

// ScriptMetadata describes the provenance of a script.
type ScriptMetadata struct {
	TaskDescription     string `json:"taskDescription"`
	EstimatedDurationMs int    `json:"estimatedDurationMs"`
	Complexity          string `json:"complexity"`
}

// AutomationScript is an ordered sequence of steps plus metadata. Steps run
// strictly in order; there is no branching or looping within a script.
type AutomationScript struct {
	Steps    []Step         `json:"steps"`
	Metadata ScriptMetadata `json:"metadata"`
}

// Connection identifies the target system for one execution. It is supplied
// by the caller and never persisted by the engine; Password must not appear
// in logs or results.
type Connection struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	BaseURL  string `json:"baseUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// TaskResult is the output record of one script execution. It is created
// once per run and immutable after the engine returns it. Screenshots are
// base64-encoded PNG payloads; ErrorMessage is set iff Success is false.
type TaskResult struct {
	Success         bool              `json:"success"`
	Logs            []string          `json:"logs"`
	Screenshots     []string          `json:"screenshots"`
	ExtractedData   map[string]string `json:"extractedData"`
	ErrorMessage    string            `json:"errorMessage,omitempty"`
	ExecutionTimeMs int64             `json:"executionTimeMs"`
}

// ProbeDetails carries the raw observations behind a probe verdict.
type ProbeDetails struct {
	Status           int    `json:"status"`
	Title            string `json:"title"`
	HasLoginForm     bool   `json:"hasLoginForm"`
	HasUsernameField bool   `json:"hasUsernameField"`
	URL              string `json:"url"`
}

// ProbeReport is the outcome of a connection probe. Success with
// HasLoginForm false means the target is reachable but ambiguous; the
// Message spells out the caveat.
type ProbeReport struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Details ProbeDetails `json:"details"`
}

// Validate checks an AutomationScript for structural correctness. It has no
// side effects and must be called before any session is allocated. The
// returned error is always a *MalformedScriptError when non-nil.
func Validate(script *AutomationScript) error {
	if script == nil || len(script.Steps) == 0 {
		return &MalformedScriptError{Reason: "script contains no steps"}
	}
	for i, step := range script.Steps {
		if _, ok := knownActions[step.Action]; !ok {
			return &MalformedScriptError{
				StepIndex: i,
				Reason:    "unknown action '" + string(step.Action) + "'",
			}
		}
		switch step.Action {
		case ActionClick, ActionExtract:
			if strings.TrimSpace(step.Selector) == "" {
				return &MalformedScriptError{
					StepIndex: i,
					Reason:    string(step.Action) + " step requires a selector",
				}
			}
		case ActionType:
			if strings.TrimSpace(step.Selector) == "" {
				return &MalformedScriptError{StepIndex: i, Reason: "type step requires a selector"}
			}
			if step.Value == "" {
				return &MalformedScriptError{StepIndex: i, Reason: "type step requires a value"}
			}
		}
	}
	return nil
}

// ExtractionKey derives the extracted-data map key from a step description:
// lower-cased, runs of whitespace collapsed to single underscores.
func ExtractionKey(description string) string {
	fields := strings.Fields(strings.ToLower(description))
	if len(fields) == 0 {
		return "extracted"
	}
	return strings.Join(fields, "_")
}
