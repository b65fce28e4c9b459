// Package intent routes a normalized question to a single topic label using
// ordered keyword rules. The rules are data: the shipped defaults are
// embedded, and a JSON file with the same shape can replace them.
package intent

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/garyellow/anan-assistant-go/internal/normalize"
)

// Label identifies the route a question takes.
type Label string

// Labels shipped with the default rules.
const (
	Timetable Label = "timetable"
	Grooming  Label = "grooming"
	Grades    Label = "grades"
	Abstract  Label = "abstract" // special absences
	Cycle     Label = "cycle"
	Abroad    Label = "abroad"
	Sinro     Label = "sinro" // career guidance
	Part      Label = "part"
	Other     Label = "other"
	Money     Label = "money"
	Domitory  Label = "domitory" // dormitory; spelled as the document files are named
	Clab      Label = "clab"
)

// Fallback is returned when no rule matches.
const Fallback = Other

// Rule maps keywords to a label. Name is the topic's display name used in
// user-facing messages.
type Rule struct {
	Label    Label    `json:"label"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

//go:embed rules.json
var defaultRulesJSON []byte

// Sentinel validation errors returned (wrapped) by LoadRules.
var (
	ErrNoRules        = errors.New("intent: rule set is empty")
	ErrEmptyLabel     = errors.New("intent: rule has empty label")
	ErrDuplicateLabel = errors.New("intent: duplicate label")
	ErrEmptyKeyword   = errors.New("intent: empty keyword")
)

// Classifier evaluates rules top to bottom. It is immutable and safe for
// concurrent use.
type Classifier struct {
	rules []Rule
	names map[Label]string
}

// DefaultRules returns the embedded rule set.
func DefaultRules() ([]Rule, error) {
	return decodeRules(bytes.NewReader(defaultRulesJSON))
}

// LoadRules decodes and validates a JSON rule set. Keywords are normalized
// so that they compare equal to normalized queries.
func LoadRules(r io.Reader) ([]Rule, error) {
	return decodeRules(r)
}

// LoadRulesFile reads rules from path; an empty path yields the defaults.
func LoadRulesFile(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open intent rules: %w", err)
	}
	defer func() { _ = f.Close() }()
	return decodeRules(f)
}

func decodeRules(r io.Reader) ([]Rule, error) {
	var rules []Rule
	if err := json.NewDecoder(r).Decode(&rules); err != nil {
		return nil, fmt.Errorf("decode intent rules: %w", err)
	}
	if err := validate(rules); err != nil {
		return nil, err
	}
	for i := range rules {
		kws := make([]string, len(rules[i].Keywords))
		for j, k := range rules[i].Keywords {
			kws[j] = normalize.Text(k)
		}
		rules[i].Keywords = kws
	}
	return rules, nil
}

func validate(rules []Rule) error {
	if len(rules) == 0 {
		return ErrNoRules
	}
	var errs []error
	seen := make(map[Label]bool, len(rules))
	for i, r := range rules {
		if r.Label == "" {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, ErrEmptyLabel))
			continue
		}
		if seen[r.Label] {
			errs = append(errs, fmt.Errorf("rule %d (%s): %w", i, r.Label, ErrDuplicateLabel))
		}
		seen[r.Label] = true
		if slices.ContainsFunc(r.Keywords, func(k string) bool { return strings.TrimSpace(k) == "" }) {
			errs = append(errs, fmt.Errorf("rule %d (%s): %w", i, r.Label, ErrEmptyKeyword))
		}
	}
	return errors.Join(errs...)
}

// NewClassifier builds a classifier over already validated rules.
func NewClassifier(rules []Rule) *Classifier {
	c := &Classifier{
		rules: slices.Clone(rules),
		names: make(map[Label]string, len(rules)),
	}
	for _, r := range rules {
		name := r.Name
		if name == "" {
			name = string(r.Label)
		}
		c.names[r.Label] = name
	}
	return c
}

// Classify returns the label of the first rule with a keyword contained in
// the normalized query, or Fallback.
func (c *Classifier) Classify(normalized string) Label {
	for _, r := range c.rules {
		if slices.ContainsFunc(r.Keywords, func(k string) bool {
			return strings.Contains(normalized, k)
		}) {
			return r.Label
		}
	}
	return Fallback
}

// Labels returns the labels in rule order.
func (c *Classifier) Labels() []Label {
	out := make([]Label, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Label
	}
	return out
}

// Topics returns the labels that are answered from documents, in rule order.
func (c *Classifier) Topics() []Label {
	out := make([]Label, 0, len(c.rules))
	for _, r := range c.rules {
		if r.Label != Timetable {
			out = append(out, r.Label)
		}
	}
	return out
}

// DisplayName returns the human-readable topic name.
func (c *Classifier) DisplayName(l Label) string {
	if name, ok := c.names[l]; ok {
		return name
	}
	return string(l)
}
