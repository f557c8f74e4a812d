package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/erppilot/api/schemas"
)

// fakeSession is a BrowserSession whose Match answers come from a fixed set
// of selectors. Everything else is inert.
type fakeSession struct {
	matching map[string]bool
	matchErr error
	tried    []string
}

func (f *fakeSession) ID() string { return "fake-session" }
func (f *fakeSession) Navigate(ctx context.Context, url string) error { return nil }
func (f *fakeSession) DocumentStatus() int                            { return 200 }
func (f *fakeSession) Title(ctx context.Context) (string, error)      { return "", nil }
func (f *fakeSession) Match(ctx context.Context, selector string) (bool, error) {
	f.tried = append(f.tried, selector)
	if f.matchErr != nil {
		return false, f.matchErr
	}
	return f.matching[selector], nil
}
func (f *fakeSession) Click(ctx context.Context, selector string) error { return nil }
func (f *fakeSession) Type(ctx context.Context, selector, text string) error {
	return nil
}
func (f *fakeSession) Text(ctx context.Context, selector string) (string, error) { return "", nil }
func (f *fakeSession) Screenshot(ctx context.Context) ([]byte, error)            { return nil, nil }
func (f *fakeSession) Close(ctx context.Context) error                           { return nil }

var _ schemas.BrowserSession = (*fakeSession)(nil)

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		selector    string
		description string
		want        Intent
	}{
		{"password by selector", "#txtPassword", "", IntentPassword},
		{"password wins over username", "#user_password", "enter user password", IntentPassword},
		{"spanish password", "#contrasena", "", IntentPassword},
		{"username by selector", "#txtUsuario", "", IntentUsername},
		{"email is username", "input.email-field", "", IntentUsername},
		{"submit by description", "#btn-go", "click the Login button", IntentSubmit},
		{"spanish submit", "#botonIngreso", "presionar Ingresar", IntentSubmit},
		{"navigation menu item", "#mod-recepcion", "open Recepcion de Documentos", IntentNavigation},
		{"unclassifiable", "#x7f3", "do the thing", IntentUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.selector, tc.description))
		})
	}
}

func TestCandidates(t *testing.T) {
	t.Run("unknown intent yields nothing", func(t *testing.T) {
		assert.Empty(t, Candidates(IntentUnknown, "whatever"))
	})

	t.Run("password candidates lead with type attribute", func(t *testing.T) {
		got := Candidates(IntentPassword, "")
		require.NotEmpty(t, got)
		assert.Equal(t, `input[type='password']`, got[0])
	})

	t.Run("label fills text templates ahead of structural patterns", func(t *testing.T) {
		got := Candidates(IntentSubmit, "Siguiente")
		require.NotEmpty(t, got)
		assert.Equal(t, `//button[contains(normalize-space(.), 'Siguiente')]`, got[0])
		assert.Contains(t, got, `button[type='submit']`)
	})

	t.Run("empty label skips text templates", func(t *testing.T) {
		got := Candidates(IntentNavigation, "")
		require.NotEmpty(t, got)
		assert.Equal(t, `[role='menuitem']`, got[0])
	})
}

func TestLabelFromDescription(t *testing.T) {
	cases := []struct {
		description string
		want        string
	}{
		{"Click the Documentos recibidos button", "Documentos recibidos"},
		{"Press Siguiente", "Siguiente"},
		{"go to the Facturas tab", "Facturas"},
		{"Click the 'Sign off' link", "Sign off"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LabelFromDescription(tc.description), "description %q", tc.description)
	}
}

func TestResolve(t *testing.T) {
	logger := zap.NewNop()
	// A tiny slice keeps the exhaustion cases fast; the fake answers
	// instantly so the floor never matters for matches.
	res := New(logger, 5*time.Millisecond)

	t.Run("original selector match is not a fallback", func(t *testing.T) {
		session := &fakeSession{matching: map[string]bool{"#txtUsuario": true}}

		resolution, err := res.Resolve(context.Background(), session, "#txtUsuario", "enter username", time.Second)
		require.NoError(t, err)
		assert.Equal(t, "#txtUsuario", resolution.Selector)
		assert.False(t, resolution.Fallback)
		assert.Equal(t, []string{"#txtUsuario"}, resolution.Attempted)
	})

	t.Run("drifted selector resolves via fallback", func(t *testing.T) {
		session := &fakeSession{matching: map[string]bool{`input[type='password']`: true}}

		resolution, err := res.Resolve(context.Background(), session, "#txtClaveOld", "enter the password", time.Second)
		require.NoError(t, err)
		assert.True(t, resolution.Fallback)
		assert.Equal(t, `input[type='password']`, resolution.Selector)
		assert.Equal(t, IntentPassword, resolution.Intent)
		// The attempt chain starts at the original and ends at the match.
		assert.Equal(t, "#txtClaveOld", resolution.Attempted[0])
		assert.Equal(t, `input[type='password']`, resolution.Attempted[len(resolution.Attempted)-1])
	})

	t.Run("fallback stops at the first match", func(t *testing.T) {
		session := &fakeSession{matching: map[string]bool{
			`input[type='password']`:      true,
			`form input[type='password']`: true,
		}}

		resolution, err := res.Resolve(context.Background(), session, "#pwd-old", "password", time.Second)
		require.NoError(t, err)
		assert.Equal(t, `input[type='password']`, resolution.Selector)
		assert.NotContains(t, session.tried, `form input[type='password']`)
	})

	t.Run("exhaustion reports the full ordered chain", func(t *testing.T) {
		session := &fakeSession{}

		_, err := res.Resolve(context.Background(), session, "#txtUsuario", "enter username", 50*time.Millisecond)
		var exhausted *schemas.ResolutionExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, "#txtUsuario", exhausted.Selector)
		require.NotEmpty(t, exhausted.Attempted)
		assert.Equal(t, "#txtUsuario", exhausted.Attempted[0])
		assert.Equal(t, session.tried, exhausted.Attempted)
	})

	t.Run("unclassifiable selector fails after the original attempt", func(t *testing.T) {
		session := &fakeSession{}

		_, err := res.Resolve(context.Background(), session, "#z9q", "perform step", 50*time.Millisecond)
		var exhausted *schemas.ResolutionExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, []string{"#z9q"}, exhausted.Attempted)
	})

	t.Run("session errors propagate instead of masquerading as no-match", func(t *testing.T) {
		boom := errors.New("target crashed")
		session := &fakeSession{matchErr: boom}

		_, err := res.Resolve(context.Background(), session, "#txtUsuario", "enter username", time.Second)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nil session is a contract violation", func(t *testing.T) {
		assert.Panics(t, func() {
			res.Resolve(context.Background(), nil, "#a", "", time.Second) //nolint:errcheck
		})
	})
}
