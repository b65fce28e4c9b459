package timetable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/garyellow/anan-assistant-go/internal/errors"
)

// Lookup failures. ErrClassNotIdentified is an input problem; the other two
// mean the data has no answer.
var (
	ErrClassNotIdentified = fmt.Errorf("timetable: class not identified: %w", apperrors.ErrInvalidInput)
	ErrScheduleNotFound   = fmt.Errorf("timetable: schedule not found: %w", apperrors.ErrNotFound)
	ErrNoMatchingClass    = fmt.Errorf("timetable: no lesson in that period: %w", apperrors.ErrNotFound)
)

// DefaultWeekday is used when the question names no day.
const DefaultWeekday = "月曜"

// classPattern extracts grade and class from a normalized question.
type classPattern struct {
	re    *regexp.Regexp
	parse func(m []string) (grade, class string)
}

func firstYear(m []string) (string, string) { return "1年", m[1] + "組" }

// Evaluated in order; the first match wins.
var classPatterns = []classPattern{
	{regexp.MustCompile(`1\s*-?\s*([1-4])`), firstYear},
	{regexp.MustCompile(`1\s*年\s*([1-4])\s*組`), firstYear},
	{regexp.MustCompile(`([1-4])\s*組`), firstYear},
	{regexp.MustCompile(`([2-5])\s*([meicz])`), func(m []string) (string, string) {
		return m[1] + "年", strings.ToUpper(m[2])
	}},
}

var periodPattern = regexp.MustCompile(`([1-6])\s*(?:限|時間目)`)

var weekdays = []struct {
	char string
	name string
}{
	{"月", "月曜"},
	{"火", "火曜"},
	{"水", "水曜"},
	{"木", "木曜"},
	{"金", "金曜"},
}

// Query is what was extracted from a question. Period 0 means all periods.
type Query struct {
	Grade   string
	Class   string
	Weekday string
	Period  int
}

// Label renders grade, class and day the way messages refer to them,
// e.g. "1年2組の月曜".
func (q Query) Label() string {
	return q.Grade + q.Class + "の" + q.Weekday
}

// QueryError carries the extracted query alongside a lookup failure so that
// callers can phrase the message.
type QueryError struct {
	Query Query
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%v (%s%s period=%d)", e.Err, e.Query.Grade, e.Query.Class, e.Query.Period)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Result is a successful lookup.
type Result struct {
	Query   Query
	Entries []Entry
}

// Lines returns each entry formatted with Entry.Line.
func (r Result) Lines() []string {
	lines := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		lines[i] = e.Line()
	}
	return lines
}

// Context joins the lines for a prompt.
func (r Result) Context() string {
	return strings.Join(r.Lines(), "\n")
}

// Resolver answers timetable questions for one academic year.
type Resolver struct {
	table Table
	year  string
}

// NewResolver creates a resolver over a loaded table.
func NewResolver(table Table, year string) *Resolver {
	return &Resolver{table: table, year: year}
}

// Extract parses a normalized question.
func Extract(normalized string) (Query, error) {
	var q Query
	found := false
	for _, p := range classPatterns {
		if m := p.re.FindStringSubmatch(normalized); m != nil {
			q.Grade, q.Class = p.parse(m)
			found = true
			break
		}
	}
	if !found {
		return q, ErrClassNotIdentified
	}

	q.Weekday = DefaultWeekday
	best := -1
	for _, d := range weekdays {
		if i := strings.Index(normalized, d.char); i >= 0 && (best < 0 || i < best) {
			best = i
			q.Weekday = d.name
		}
	}

	if m := periodPattern.FindStringSubmatch(normalized); m != nil {
		q.Period, _ = strconv.Atoi(m[1])
	}
	return q, nil
}

// Resolve extracts the query and looks it up.
func (r *Resolver) Resolve(normalized string) (Result, error) {
	q, err := Extract(normalized)
	if err != nil {
		return Result{}, err
	}
	return r.Lookup(q)
}

// Lookup returns the lessons matching q, in document order.
func (r *Resolver) Lookup(q Query) (Result, error) {
	entries, ok := r.table[Key{Year: r.year, Grade: q.Grade, Class: q.Class, Weekday: q.Weekday}]
	if !ok {
		return Result{}, &QueryError{Query: q, Err: ErrScheduleNotFound}
	}

	matched := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if q.Period == 0 || e.Period == q.Period {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return Result{}, &QueryError{Query: q, Err: ErrNoMatchingClass}
	}
	return Result{Query: q, Entries: matched}, nil
}

// Year returns the academic year the resolver looks up.
func (r *Resolver) Year() string {
	return r.year
}
