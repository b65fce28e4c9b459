package webhook

import (
	"strings"
	"unicode"
)

// BulletinKeyword marks a message asking for class changes.
const BulletinKeyword = "授業変更"

// bulletinFillers are stripped around the class in a bulletin request,
// so 「1-2の授業変更情報」 filters on 「1-2」.
var bulletinFillers = []string{BulletinKeyword, "情報", "を教えて", "教えて", "は？", "は?", "の", "？", "?"}

// bulletinRequest reports whether text asks for the class-change bulletin
// and returns the class filter, empty for all classes.
func bulletinRequest(text string) (class string, ok bool) {
	if !strings.Contains(text, BulletinKeyword) {
		return "", false
	}
	rest := text
	for _, f := range bulletinFillers {
		rest = strings.ReplaceAll(rest, f, " ")
	}
	rest = strings.TrimFunc(rest, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsPunct(r) })
	return strings.Join(strings.Fields(rest), " "), true
}
