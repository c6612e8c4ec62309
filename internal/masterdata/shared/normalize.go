package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldASCII strips combining marks left after canonical decomposition.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Code normalises business codes and SKUs: trimmed, accents folded, upper-cased,
// inner whitespace collapsed to a dash.
func Code(raw string) string {
	folded := cases.Upper(language.Und).String(foldASCII(strings.TrimSpace(raw)))
	return strings.Join(strings.Fields(folded), "-")
}

// Name trims and collapses whitespace in a display name.
func Name(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// SearchKey produces a case and accent insensitive key used for uniqueness checks.
func SearchKey(raw string) string {
	return cases.Fold().String(foldASCII(Name(raw)))
}

// Slugify builds a URL friendly identifier.
func Slugify(raw string) string {
	key := SearchKey(raw)
	var b strings.Builder
	dash := false
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
