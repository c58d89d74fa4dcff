package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// letters that NFD does not decompose into a base letter plus a combining mark
var foldReplacer = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ø", "o",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"ı", "i",
)

func isAlphanumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// apostrophes are dropped so "Don't" and "Dont" compare equal
func isApostrophe(r rune) bool {
	switch r {
	case '\'', '’', '‘', 'ʼ', '`', '´':
		return true
	}
	return false
}

// foldableScripts are the alphabets whose accents are decorative for matching. Marks on other
// scripts, such as Japanese dakuten or Indic vowel signs, change the letter and are kept.
var foldableScripts = []*unicode.RangeTable{unicode.Latin, unicode.Greek, unicode.Cyrillic}

// FoldDiacritics strips combining marks from Latin, Greek and Cyrillic letters after canonical
// decomposition, so "Tiësto" becomes "Tiesto" while "が" stays distinct from "か".
func FoldDiacritics(s string) string {
	decomposed := norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	foldable := false
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			if foldable {
				continue
			}
		} else {
			foldable = unicode.In(r, foldableScripts...)
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// Normalize canonicalizes a title, artist or album for comparison.
//
// The result is lower-cased with diacritics folded, "&" spelled out as "and",
// apostrophes removed, any other punctuation or symbol replaced by a space and runs of whitespace collapsed.
// Marks that survive folding stay attached to their letters.
// Input without letters or digits yields "".
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = foldReplacer.Replace(strings.ToLower(FoldDiacritics(s)))
	if !strings.ContainsFunc(s, isAlphanumeric) {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case isAlphanumeric(r), unicode.IsMark(r):
			b.WriteRune(r)
		case r == '&':
			b.WriteString(" and ")
		case isApostrophe(r):
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeTrackKey builds the identity key of a track from its normalized title and artist.
func NormalizeTrackKey(title, artist string) string {
	return Normalize(title) + "|" + Normalize(artist)
}
