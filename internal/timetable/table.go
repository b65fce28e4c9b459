// Package timetable loads the class timetable and answers lookups for a
// (grade, class, weekday, period) extracted from a question.
package timetable

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Key identifies one day of one class.
type Key struct {
	Year    string // academic year, e.g. "2025"
	Grade   string // "1年" .. "5年"
	Class   string // "1組".."4組" for first years, "M","E","I","C","Z" above
	Weekday string // "月曜" .. "金曜"
}

// Entry is one lesson.
type Entry struct {
	Year    string
	Grade   string
	Class   string
	Weekday string
	Period  int
	Subject string
	Teacher string
	Room    string
}

// Line formats the entry the way it is shown to the model and to users.
func (e Entry) Line() string {
	return fmt.Sprintf("%s%d限: %s（%s）@%s", e.Weekday, e.Period, e.Subject, e.Teacher, e.Room)
}

// Table is read-only after load.
type Table map[Key][]Entry

type rawEntry struct {
	Period  int    `json:"時限"`
	Subject string `json:"科目"`
	Teacher string `json:"教員"`
	Room    string `json:"教室"`
}

// document mirrors {year: {grade: {class: {weekday: [entry]}}}}.
type document map[string]map[string]map[string]map[string][]rawEntry

// LoadTable decodes a timetable document. Any deviation from the expected
// nesting is an error.
func LoadTable(r io.Reader) (Table, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode timetable: %w", err)
	}

	table := make(Table)
	for year, grades := range doc {
		for grade, classes := range grades {
			for class, days := range classes {
				for weekday, lessons := range days {
					key := Key{Year: year, Grade: grade, Class: class, Weekday: weekday}
					entries := make([]Entry, 0, len(lessons))
					for _, l := range lessons {
						entries = append(entries, Entry{
							Year:    year,
							Grade:   grade,
							Class:   class,
							Weekday: weekday,
							Period:  l.Period,
							Subject: l.Subject,
							Teacher: l.Teacher,
							Room:    l.Room,
						})
					}
					table[key] = entries
				}
			}
		}
	}
	return table, nil
}

// LoadTableFile reads the document at path. A missing file yields an empty
// table so that the rest of the assistant keeps working.
func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open timetable: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadTable(f)
}

// Len returns the number of lessons in the table.
func (t Table) Len() int {
	n := 0
	for _, entries := range t {
		n += len(entries)
	}
	return n
}
