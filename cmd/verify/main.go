// Command verify checks the assistant's data files: intent rules, the
// timetable and the per-topic reference documents.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/fatih/color"

	"github.com/garyellow/anan-assistant-go/internal/config"
	"github.com/garyellow/anan-assistant-go/internal/intent"
	"github.com/garyellow/anan-assistant-go/internal/rag"
	"github.com/garyellow/anan-assistant-go/internal/timetable"
)

// Verification results
type verifyResult struct {
	name    string
	passed  bool
	message string
}

func main() {
	color.Cyan("🔍 Anan Assistant - Data File Verification Tool")
	color.Cyan("===============================================")

	cfg, err := config.LoadForMode(config.VerifyMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	results := []verifyResult{}

	rules, ruleResults := verifyRules(cfg.IntentRulesFile)
	results = append(results, ruleResults...)
	results = append(results, verifyTimetable(cfg.TimetableFile, cfg.TimetableYear)...)
	if rules != nil {
		results = append(results, verifyDocs(cfg.DocsDir, intent.NewClassifier(rules).Topics())...)
	}

	color.Yellow("\n📊 Verification Results:")
	color.Yellow("========================")

	passedCount := 0
	failedCount := 0

	for _, result := range results {
		if result.passed {
			color.Green("✅ %s: %s", result.name, result.message)
			passedCount++
		} else {
			color.Red("❌ %s: %s", result.name, result.message)
			failedCount++
		}
	}

	summary := color.GreenString
	if failedCount > 0 {
		summary = color.RedString
	}
	fmt.Println(summary("\n📈 Summary: %d passed, %d failed", passedCount, failedCount))

	if failedCount > 0 {
		os.Exit(1)
	}
}

// verifyRules loads the rule set and checks the labels the pipeline
// depends on. The rules are returned so the docs check can use them.
func verifyRules(path string) ([]intent.Rule, []verifyResult) {
	source := path
	if source == "" {
		source = "embedded defaults"
	}

	rules, err := intent.LoadRulesFile(path)
	if err != nil {
		return nil, []verifyResult{{
			name:    "Intent Rules",
			passed:  false,
			message: fmt.Sprintf("%s: %v", source, err),
		}}
	}

	results := []verifyResult{{
		name:    "Intent Rules",
		passed:  true,
		message: fmt.Sprintf("%d rules loaded from %s", len(rules), source),
	}}

	labels := intent.NewClassifier(rules).Labels()
	for _, required := range []intent.Label{intent.Timetable, intent.Other} {
		results = append(results, verifyResult{
			name:    "Intent Label: " + string(required),
			passed:  slices.Contains(labels, required),
			message: "Required by the question pipeline",
		})
	}
	return rules, results
}

// verifyTimetable checks the timetable parses and has lessons for year.
func verifyTimetable(path, year string) []verifyResult {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return []verifyResult{{
			name:    "Timetable",
			passed:  false,
			message: fmt.Sprintf("%s not found; timetable questions will find no schedules", path),
		}}
	}

	table, err := timetable.LoadTableFile(path)
	if err != nil {
		return []verifyResult{{name: "Timetable", passed: false, message: err.Error()}}
	}

	results := []verifyResult{{
		name:    "Timetable",
		passed:  table.Len() > 0,
		message: fmt.Sprintf("%d lessons in %s", table.Len(), path),
	}}

	keys, badDays := 0, 0
	validDays := []string{"月曜", "火曜", "水曜", "木曜", "金曜"}
	for key := range table {
		if key.Year != year {
			continue
		}
		keys++
		if !slices.Contains(validDays, key.Weekday) {
			badDays++
		}
	}
	results = append(results,
		verifyResult{
			name:    "Timetable Year " + year,
			passed:  keys > 0,
			message: fmt.Sprintf("%d class days scheduled", keys),
		},
		verifyResult{
			name:    "Timetable Weekdays",
			passed:  badDays == 0,
			message: fmt.Sprintf("%d entries outside 月曜..金曜", badDays),
		},
	)
	return results
}

// verifyDocs checks that every topic has a non-empty reference document.
func verifyDocs(dir string, topics []intent.Label) []verifyResult {
	results := make([]verifyResult, 0, len(topics))
	for _, topic := range topics {
		path := filepath.Join(dir, string(topic)+rag.DocExt)
		raw, err := os.ReadFile(path)
		if err != nil {
			results = append(results, verifyResult{
				name:    "Document: " + string(topic),
				passed:  false,
				message: fmt.Sprintf("%s unreadable: %v", path, err),
			})
			continue
		}
		paragraphs := len(rag.Split(string(raw)))
		results = append(results, verifyResult{
			name:    "Document: " + string(topic),
			passed:  paragraphs > 0,
			message: fmt.Sprintf("%d paragraphs", paragraphs),
		})
	}
	return results
}
