package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nameFolder strips combining marks and case-folds, so "Jiří" and "JIRI" agree.
func nameFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
}

// isNameSeparator reports runes that enrollment file names use between words.
func isNameSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.'
}

// NormalizePersonName folds a person name to the key used when comparing
// identities: no diacritics, case folded, words separated by single spaces.
func NormalizePersonName(name string) string {
	folded, _, err := transform.String(nameFolder(), name)
	if err != nil {
		folded = strings.ToLower(name)
	}
	return strings.Join(strings.FieldsFunc(folded, isNameSeparator), " ")
}

// SamePerson reports whether two enrolled names refer to the same identity.
func SamePerson(a, b string) bool {
	return NormalizePersonName(a) == NormalizePersonName(b)
}

// NameContains reports whether the normalized name contains the normalized
// query. An empty query matches everything.
func NameContains(name, query string) bool {
	return strings.Contains(NormalizePersonName(name), NormalizePersonName(query))
}
