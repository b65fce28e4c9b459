package intent

import (
	"errors"
	"strings"
	"testing"

	"github.com/garyellow/anan-assistant-go/internal/normalize"
)

func defaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules() error: %v", err)
	}
	return NewClassifier(rules)
}

func TestDefaultRulesOrder(t *testing.T) {
	c := defaultClassifier(t)
	want := []Label{Timetable, Grooming, Grades, Abstract, Cycle, Abroad, Sinro, Part, Other, Money, Domitory, Clab}
	got := c.Labels()
	if len(got) != len(want) {
		t.Fatalf("Labels() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rule %d = %s, want %s", i, got[i], want[i])
		}
	}
	if topics := c.Topics(); len(topics) != 11 || topics[0] != Grooming {
		t.Errorf("Topics() = %v", topics)
	}
}

func TestClassify(t *testing.T) {
	c := defaultClassifier(t)
	tests := []struct {
		query string
		want  Label
	}{
		{"1年2組の時間割を教えて", Timetable},
		{"3Eの月曜3限は?", Timetable},
		{"髪を染めてもいいですか", Grooming},
		{"ＧＰＡはどう計算しますか", Grades},
		{"gpa", Grades},
		{"インフルエンザにかかった", Abstract},
		{"駐輪場はどこ", Cycle},
		{"ニュージーランドに行きたい", Abroad},
		{"編入について", Sinro},
		{"バイトしてもいい?", Part},
		{"スマホは使える?", Other},
		{"奨学金の申請", Money},
		{"外泊はできますか", Domitory},
		{"兼部できますか", Clab},
		{"こんにちは", Fallback},
		{"", Fallback},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := c.Classify(normalize.Text(tt.query)); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.query, got, tt.want)
			}
		})
	}
}

func TestClassifyAdjacentPrecedence(t *testing.T) {
	rules, err := DefaultRules()
	if err != nil {
		t.Fatal(err)
	}
	c := NewClassifier(rules)

	for i := 0; i+1 < len(rules); i++ {
		earlier, later := rules[i], rules[i+1]
		kwA, kwB := earlier.Keywords[0], later.Keywords[0]

		for _, q := range []string{kwA + kwB, kwB + kwA} {
			if got := c.Classify(q); got != earlier.Label {
				t.Errorf("Classify(%q) = %s, want %s (earlier rule wins)", q, got, earlier.Label)
			}
		}
	}
}

func TestTimetableKeywordAlone(t *testing.T) {
	c := defaultClassifier(t)
	rules, _ := DefaultRules()
	for _, kw := range rules[0].Keywords {
		if got := c.Classify(kw); got != Timetable {
			t.Errorf("Classify(%q) = %s, want timetable", kw, got)
		}
	}
}

func TestKeywordsNormalizedAtLoad(t *testing.T) {
	rules, err := LoadRules(strings.NewReader(`[{"label":"grades","keywords":["ＧＰＡ","二輪"]}]`))
	if err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}
	if rules[0].Keywords[0] != "gpa" || rules[0].Keywords[1] != "2輪" {
		t.Errorf("keywords = %q", rules[0].Keywords)
	}
}

func TestLoadRulesValidation(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"empty set", `[]`, ErrNoRules},
		{"empty label", `[{"label":"","keywords":["a"]}]`, ErrEmptyLabel},
		{"duplicate label", `[{"label":"a","keywords":["x"]},{"label":"a","keywords":["y"]}]`, ErrDuplicateLabel},
		{"empty keyword", `[{"label":"a","keywords":["x"," "]}]`, ErrEmptyKeyword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(strings.NewReader(tt.json))
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadRules() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := LoadRules(strings.NewReader(`{`)); err == nil {
		t.Error("expected decode error for malformed JSON")
	}
}

func TestLoadRulesFile(t *testing.T) {
	rules, err := LoadRulesFile("")
	if err != nil || len(rules) != 12 {
		t.Fatalf("LoadRulesFile(\"\") = %d rules, %v", len(rules), err)
	}
	if _, err := LoadRulesFile("/nonexistent/rules.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDisplayName(t *testing.T) {
	c := defaultClassifier(t)
	if got := c.DisplayName(Domitory); got != "寮生活" {
		t.Errorf("DisplayName(domitory) = %q", got)
	}
	if got := c.DisplayName("unknown"); got != "unknown" {
		t.Errorf("DisplayName(unknown) = %q", got)
	}
}
