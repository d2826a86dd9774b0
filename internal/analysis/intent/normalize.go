package intent

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize puts free text into the form phrases are matched against:
// NFC composed, case folded, single spaced.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	// Casers are stateful; build one per call.
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

const queryTrim = " \t?!.,:;\"'“”‘’"

// stripPhrase removes the first occurrence of phrase from text and returns
// what is left as a search query.
func stripPhrase(text, phrase string) string {
	rest := strings.Replace(text, phrase, " ", 1)
	rest = strings.Join(strings.Fields(rest), " ")
	return strings.Trim(rest, queryTrim)
}
