// Package sanitize cleans model output before it is shown to a user.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/garyellow/anan-assistant-go/internal/prompt"
)

// AnswerMarker is the heading the prompts end with; models sometimes echo
// the whole prompt before answering.
const AnswerMarker = "【回答】"

// DefaultPreambles are line openers that introduce filler rather than the
// answer. A leading line starting with any of them is dropped.
var DefaultPreambles = []string{
	"回答「",
	"【校則データ】",
	"【参照データ】",
	"【時間割データ】",
	"あなたは",
	"この度は",
	"さて",
	"実はこの件に関しては",
	"なぜなら",
	"しかし",
	"一般的に",
	"そこで",
	"まず",
	"承知いたしました",
	"回答は次のとおりです",
	"回答は以下のとおりです",
}

// Options tunes the sanitizer.
type Options struct {
	// Preambles replaces DefaultPreambles when non-nil.
	Preambles []string
	// Patterns match further openers; each is anchored at the line start.
	Patterns []*regexp.Regexp
}

// WithExtraPreambles returns options using the defaults plus extra, each
// compiled as a regexp anchored at the start of a line.
func WithExtraPreambles(extra ...string) (Options, error) {
	opts := Options{Preambles: DefaultPreambles}
	for _, e := range extra {
		re, err := CompilePreamble(e)
		if err != nil {
			return Options{}, err
		}
		if re != nil {
			opts.Patterns = append(opts.Patterns, re)
		}
	}
	return opts, nil
}

// CompilePreamble compiles one extra opener. Blank input yields nil.
func CompilePreamble(expr string) (*regexp.Regexp, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(`^(?:` + strings.TrimPrefix(expr, "^") + `)`)
	if err != nil {
		return nil, fmt.Errorf("preamble %q: %w", expr, err)
	}
	return re, nil
}

var (
	articleHeaderRe = regexp.MustCompile(`(?m)^\([^\n]*\)[ \t]*\n?[ \t]*第[ \t]*\d+[ \t]*条[^\n]*$`)
	ruleLineRe      = regexp.MustCompile(`(?m)^-{3,}[^\n]*$`)
	bracketTagRe    = regexp.MustCompile(`\[[^\n]*?\]`)
	footnoteRe      = regexp.MustCompile(`\*+\d+`)
	headingTagRe    = regexp.MustCompile(`【[^】]*】`)
)

const referenceEcho = "以下の【参照データ】"

// Answer cleans raw for display. It never returns an empty string for
// non-empty input.
func Answer(raw string, kind prompt.Kind, opts Options) string {
	preambles := opts.Preambles
	if preambles == nil {
		preambles = DefaultPreambles
	}

	s := raw
	if i := strings.LastIndex(s, AnswerMarker); i >= 0 {
		s = s[i+len(AnswerMarker):]
	}
	s = stripPreambles(strings.TrimSpace(s), preambles, opts.Patterns)

	switch kind {
	case prompt.KindRules:
		s = articleHeaderRe.ReplaceAllString(s, "")
		s = ruleLineRe.ReplaceAllString(s, "")
		s = bracketTagRe.ReplaceAllString(s, "")
		s = footnoteRe.ReplaceAllString(s, "")
		if i := strings.Index(s, referenceEcho); i >= 0 {
			s = s[:i]
		}
	case prompt.KindTimetable:
		s = headingTagRe.ReplaceAllString(s, "")
	}

	s = collapseLines(s)
	if s != "" || raw == "" {
		return s
	}
	if t := strings.TrimSpace(raw); t != "" {
		return t
	}
	return raw
}

// stripPreambles drops leading lines that open with a preamble until the
// first line that does not.
func stripPreambles(s string, preambles []string, patterns []*regexp.Regexp) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		line, rest, _ := strings.Cut(s, "\n")
		line = strings.TrimSpace(line)
		if !hasAnyPrefix(line, preambles) && !matchesAny(line, patterns) {
			return s
		}
		s = rest
	}
}

func hasAnyPrefix(line string, prefixes []string) bool {
	if line == "" {
		return false
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func matchesAny(line string, patterns []*regexp.Regexp) bool {
	if line == "" {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func collapseLines(s string) string {
	var kept []string
	for line := range strings.SplitSeq(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
