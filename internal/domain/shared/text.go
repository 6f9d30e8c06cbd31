package shared

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var emailFolder = cases.Fold()

// NormalizeEmail returns the canonical form of an email address used as a
// natural key: trimmed, NFKC-normalized and case-folded
func NormalizeEmail(email string) string {
	return emailFolder.String(norm.NFKC.String(strings.TrimSpace(email)))
}

// NormalizeName returns the canonical display form of a shop or warehouse
// name: NFKC-normalized with runs of whitespace collapsed
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(name)), " ")
}
