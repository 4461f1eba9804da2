package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeName turns a participant name into a file-name fragment: accents
// are folded, runs of whitespace become a single underscore and anything
// that is not a letter, digit, underscore or hyphen is dropped.
func SanitizeName(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for i, field := range strings.Fields(folded) {
		if i > 0 {
			b.WriteByte('_')
		}
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
				b.WriteRune(r)
			}
		}
	}
	if b.Len() == 0 {
		return "Participant"
	}
	return b.String()
}
