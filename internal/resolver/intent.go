// internal/resolver/intent.go
package resolver

import (
	"fmt"
	"strings"
)

// Intent is the classified purpose of a failing selector, inferred from the
// selector text and the step description. The classifier is a pure function
// over substring tables so it can be unit-tested without a browser.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentUsername
	IntentPassword
	IntentSubmit
	IntentNavigation
)

func (i Intent) String() string {
	switch i {
	case IntentUsername:
		return "username"
	case IntentPassword:
		return "password"
	case IntentSubmit:
		return "submit"
	case IntentNavigation:
		return "navigation"
	default:
		return "unknown"
	}
}

// Hint tables. ERP portals are frequently localized, so the tables carry the
// Spanish and Portuguese variants seen in the field alongside the English
// ones. Order of checks matters: password wins over username ("password"
// contains no user hint, but "user_password" must not classify as username),
// and submit wins over navigation.
var (
	passwordHints = []string{
		"password", "passwd", "pwd", "contrasena", "contraseña", "senha", "clave",
	}
	usernameHints = []string{
		"username", "user", "usuario", "email", "e-mail", "mail", "account", "uid",
	}
	submitHints = []string{
		"submit", "btn", "button", "login", "log in", "signin", "sign in",
		"ingresar", "siguiente", "entrar", "next", "continue", "acceder",
	}
	navigationHints = []string{
		"nav", "menu", "module", "mod-", "tab", "section", "recepcion",
		"recepción", "documentos", "invoice", "factura", "open", "go to",
	}
)

// Classify infers the intent of a selector from its text and the step's
// human-readable description.
func Classify(selector, description string) Intent {
	haystack := strings.ToLower(selector + " " + description)

	contains := func(hints []string) bool {
		for _, h := range hints {
			if strings.Contains(haystack, h) {
				return true
			}
		}
		return false
	}

	switch {
	case contains(passwordHints):
		return IntentPassword
	case contains(usernameHints):
		return IntentUsername
	case contains(submitHints):
		return IntentSubmit
	case contains(navigationHints):
		return IntentNavigation
	default:
		return IntentUnknown
	}
}

// Structural fallback candidates per intent, ordered most-specific first.
// These are deliberately language-agnostic: attribute and role patterns
// rather than visible text, except for the label templates which are filled
// from the step description at resolution time.
var candidateTable = map[Intent][]string{
	IntentPassword: {
		`input[type='password']`,
		`input[name*='pass' i]`,
		`input[id*='pass' i]`,
		`form input[type='password']`,
	},
	IntentUsername: {
		`input[type='email']`,
		`input[name*='user' i]`,
		`input[id*='user' i]`,
		`input[autocomplete='username']`,
		// Any visible text input that is not a password or hidden field.
		`//input[not(@type) or @type='text' or @type='email'][not(@type='password')][not(@type='hidden')]`,
		`form input[type='text']`,
	},
	IntentSubmit: {
		`button[type='submit']`,
		`input[type='submit']`,
		`form button`,
		`[role='button']`,
	},
	IntentNavigation: {
		`[role='menuitem']`,
		`[role='link']`,
		`nav a`,
	},
}

// Label-text templates, tried before the generic structural patterns for the
// intents where the visible label is the strongest signal.
var labelTemplates = map[Intent][]string{
	IntentSubmit: {
		`//button[contains(normalize-space(.), '%s')]`,
		`//input[@value='%s']`,
	},
	IntentNavigation: {
		`//a[contains(normalize-space(.), '%s')]`,
		`//button[contains(normalize-space(.), '%s')]`,
		`//*[@role='menuitem' and contains(normalize-space(.), '%s')]`,
	},
}

// Candidates returns the ordered fallback list for an intent. The label, if
// non-empty, fills the text-match templates; unknown intents get no
// candidates and resolution fails immediately after the original attempt.
func Candidates(intent Intent, label string) []string {
	structural, ok := candidateTable[intent]
	if !ok {
		return nil
	}

	var out []string
	if label != "" {
		for _, tmpl := range labelTemplates[intent] {
			out = append(out, fmt.Sprintf(tmpl, label))
		}
	}
	out = append(out, structural...)
	return out
}

// descriptionStopWords are the leading verbs and filler words stripped when
// deriving a label from a step description.
var descriptionStopWords = map[string]struct{}{
	"click": {}, "press": {}, "open": {}, "select": {}, "go": {}, "to": {},
	"navigate": {}, "the": {}, "on": {}, "button": {}, "link": {}, "tab": {},
	"module": {}, "menu": {},
}

// LabelFromDescription extracts the probable visible label from a step
// description, e.g. "Click the Documentos recibidos button" yields
// "Documentos recibidos". Single quotes are dropped so the label can be
// embedded in an XPath string literal.
func LabelFromDescription(description string) string {
	var kept []string
	for _, word := range strings.Fields(description) {
		if _, ok := descriptionStopWords[strings.ToLower(word)]; ok && len(kept) == 0 {
			continue
		}
		kept = append(kept, word)
	}
	// Trailing filler ("button", "link", ...) is noise too.
	for len(kept) > 0 {
		last := strings.ToLower(kept[len(kept)-1])
		if _, ok := descriptionStopWords[last]; !ok {
			break
		}
		kept = kept[:len(kept)-1]
	}
	label := strings.Join(kept, " ")
	return strings.ReplaceAll(label, "'", "")
}
