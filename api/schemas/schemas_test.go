package schemas

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	valid := func() *AutomationScript {
		return &AutomationScript{
			Steps: []Step{
				{Action: ActionNavigate, Description: "open the portal"},
				{Action: ActionType, Selector: "#user", Value: "{{username}}", Description: "enter username"},
				{Action: ActionClick, Selector: "#login", Description: "click login"},
			},
		}
	}

	t.Run("accepts a well formed script", func(t *testing.T) {
		require.NoError(t, Validate(valid()))
	})

	t.Run("rejects nil script", func(t *testing.T) {
		err := Validate(nil)
		var malformed *MalformedScriptError
		require.ErrorAs(t, err, &malformed)
		assert.Contains(t, malformed.Reason, "no steps")
	})

	t.Run("rejects empty step list", func(t *testing.T) {
		err := Validate(&AutomationScript{})
		var malformed *MalformedScriptError
		require.ErrorAs(t, err, &malformed)
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		script := valid()
		script.Steps[1].Action = "hover"
		err := Validate(script)
		var malformed *MalformedScriptError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, 1, malformed.StepIndex)
		assert.Contains(t, malformed.Reason, "hover")
	})

	t.Run("rejects click without selector", func(t *testing.T) {
		script := valid()
		script.Steps[2].Selector = "   "
		err := Validate(script)
		var malformed *MalformedScriptError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, 2, malformed.StepIndex)
	})

	t.Run("rejects extract without selector", func(t *testing.T) {
		script := valid()
		script.Steps = append(script.Steps, Step{Action: ActionExtract, Description: "grab order total"})
		err := Validate(script)
		var malformed *MalformedScriptError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, 3, malformed.StepIndex)
	})

	t.Run("rejects type without value", func(t *testing.T) {
		script := valid()
		script.Steps[1].Value = ""
		err := Validate(script)
		var malformed *MalformedScriptError
		require.ErrorAs(t, err, &malformed)
		assert.Contains(t, malformed.Reason, "value")
	})

	t.Run("allows selectorless navigate wait and screenshot", func(t *testing.T) {
		script := &AutomationScript{
			Steps: []Step{
				{Action: ActionNavigate, Description: "open"},
				{Action: ActionWait, TimeoutMs: 500, Description: "settle"},
				{Action: ActionScreenshot, Description: "capture"},
			},
		}
		require.NoError(t, Validate(script))
	})
}

func TestExtractionKey(t *testing.T) {
	cases := []struct {
		description string
		want        string
	}{
		{"Extract order total", "extract_order_total"},
		{"  Invoice   Number  ", "invoice_number"},
		{"", "extracted"},
		{"   ", "extracted"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractionKey(tc.description), "description %q", tc.description)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("wrapped errors unwrap to their cause", func(t *testing.T) {
		cause := fmt.Errorf("chrome refused to start")
		var infra error = &InfrastructureError{Err: cause}
		assert.ErrorIs(t, infra, cause)

		var nav error = &NavigationError{URL: "https://erp.example.com", Err: cause}
		assert.ErrorIs(t, nav, cause)
		assert.Contains(t, nav.Error(), "https://erp.example.com")
	})

	t.Run("exhaustion preserves attempt order", func(t *testing.T) {
		err := &ResolutionExhaustedError{
			Selector:  "#txtUsuario",
			Attempted: []string{"#txtUsuario", "input[type='email']", "input[name*='user' i]"},
		}
		assert.Contains(t, err.Error(), "#txtUsuario, input[type='email'], input[name*='user' i]")
	})

	t.Run("taxonomy types are distinguishable via errors.As", func(t *testing.T) {
		var err error = fmt.Errorf("run: %w", &SynthesisError{Err: errors.New("quota")})
		var synthErr *SynthesisError
		require.ErrorAs(t, err, &synthErr)
		var infraErr *InfrastructureError
		assert.False(t, errors.As(err, &infraErr))
	})
}
