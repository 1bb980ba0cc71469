// Package identity derives and compares identity strings coming from gallery sources.
package identity

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FromFilename derives an identity from an image file name: the base name without extension,
// NFC-normalized so that names typed on different systems compare equal.
func FromFilename(name string) string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(norm.NFC.String(stem))
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Canonical normalizes an identity for loose comparison (lowercase, no diacritics, spaces for dashes and underscores).
func Canonical(id string) string {
	id = RemoveDiacritics(id)
	id = strings.ToLower(id)
	id = strings.NewReplacer("-", " ", "_", " ").Replace(id)
	return strings.TrimSpace(id)
}

// Equal reports whether two identities are the same after canonicalization.
func Equal(a, b string) bool {
	return Canonical(a) == Canonical(b)
}
