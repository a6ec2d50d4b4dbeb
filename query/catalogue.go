package query

import "strings"

// RecoverableError is a backend error the engine knows how to work around
// by rewriting the statement.
type RecoverableError struct {
	// Substring must occur in the backend error text
	Substring string
	// RequiresAny, when set, additionally requires the statement to contain
	// one of these fragments (case-insensitive)
	RequiresAny []string
}

// RecoverableErrors is the single catalogue consulted by both the classifier
// and the prefixed passthrough strategy.
var RecoverableErrors = []RecoverableError{
	{Substring: "unsupported filter type 'string' on attribute"},
	{Substring: "unsupported filter type 'stringlist' on attribute"},
	{Substring: "unexpected LIKE"},
	{Substring: "unexpected '(' near '("},
	{Substring: "syntax error, unexpected identifier, expecting DISTINCT or '*' near"},
	{
		Substring:   "unexpected identifier, expecting ',' or ')' near",
		RequiresAny: []string{"date(", "quarter"},
	},
}

// IsRecoverable reports whether backendErr matches the catalogue for the
// given statement text.
func IsRecoverable(backendErr, statement string) bool {
	if backendErr == "" {
		return false
	}
	lowered := lower(statement)
	for _, re := range RecoverableErrors {
		if !strings.Contains(backendErr, re.Substring) {
			continue
		}
		if len(re.RequiresAny) == 0 {
			return true
		}
		for _, frag := range re.RequiresAny {
			if strings.Contains(lowered, frag) {
				return true
			}
		}
	}
	return false
}
