// Package normalize canonicalizes user input before any matching is done.
package normalize

import (
	"strings"

	"golang.org/x/text/width"
)

// replacer covers what width folding leaves alone: the ideographic space,
// dash-like characters (including the prolonged sound mark) and the kanji
// numerals used for class numbers.
var replacer = strings.NewReplacer(
	"　", " ",
	"ー", "-",
	"－", "-",
	"‐", "-",
	"−", "-",
	"–", "-",
	"一", "1",
	"二", "2",
	"三", "3",
	"四", "4",
)

// Text folds full-width ASCII to half-width, unifies spaces and dashes,
// maps 一 to 四 onto digits and lowercases ASCII. It is pure and total.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = width.Fold.String(s)
	s = replacer.Replace(s)
	return lowerASCII(s)
}

func lowerASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
