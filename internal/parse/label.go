package parse

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var dStroke = strings.NewReplacer("đ", "d", "Đ", "d")

// NormalizeLabel folds an operator-typed label to lowercase ASCII-ish text:
// diacritics are stripped, đ becomes d and runs of whitespace collapse to one space.
func NormalizeLabel(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, raw)
	if err != nil {
		s = raw
	}
	s = strings.ToLower(dStroke.Replace(s))
	return strings.Join(strings.Fields(s), " ")
}

// Key reduces a label to its letters and digits, so "Lò 2", "lo2" and "LO-2" compare equal.
func Key(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, NormalizeLabel(raw))
}
