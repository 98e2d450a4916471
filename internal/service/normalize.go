package service

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var emailCaser = cases.Lower(language.Und)

// normalizeName trims, collapses inner whitespace and composes to NFC so the
// same name typed on different keyboards compares equal.
func normalizeName(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func normalizeEmail(s string) string {
	return emailCaser.String(strings.TrimSpace(s))
}
