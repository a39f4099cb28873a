package core

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LabelKey reduces a display label to a stable comparison key: accents,
// emoji and punctuation are dropped, case is folded and runs of separators
// collapse to one space. "🍖 Comida" and "comida" share the key "comida".
func LabelKey(label string) string {
	// Transformers and casers are stateful, so build them per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, label)
	if err != nil {
		s = label
	}
	s = cases.Fold().String(s)

	var b strings.Builder
	gap := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if gap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	return b.String()
}

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// MonthName returns the capitalized Spanish name of m ("Octubre").
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return cases.Title(language.Spanish).String(monthNames[m-1])
}
