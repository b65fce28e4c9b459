// Package assistant answers a free-text question end to end: classify,
// gather context, prompt the model, clean up the answer.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/garyellow/anan-assistant-go/internal/intent"
	"github.com/garyellow/anan-assistant-go/internal/metrics"
	"github.com/garyellow/anan-assistant-go/internal/normalize"
	"github.com/garyellow/anan-assistant-go/internal/prompt"
	"github.com/garyellow/anan-assistant-go/internal/rag"
	"github.com/garyellow/anan-assistant-go/internal/sanitize"
	"github.com/garyellow/anan-assistant-go/internal/timetable"
)

// User-facing messages for answers that never reach the model.
const (
	MsgEmptyQuestion      = "質問を入力してください。"
	MsgClassNotIdentified = "クラスを特定できませんでした。例: 1年2組、1-2、二組 など"
)

// Outcome describes how a question was answered, for metrics and clients.
type Outcome string

const (
	OutcomeAnswered      Outcome = "answered"
	OutcomeEmptyQuestion Outcome = "empty_question"
	OutcomeNoClass       Outcome = "class_not_identified"
	OutcomeNoSchedule    Outcome = "schedule_not_found"
	OutcomeNoLesson      Outcome = "no_matching_class"
	OutcomeNoData        Outcome = "no_data"
	OutcomeError         Outcome = "error"
)

// Retriever returns reference context for a topic.
type Retriever interface {
	Retrieve(ctx context.Context, topic, query string) (string, error)
}

// Completer sends a prompt and always returns displayable text. ok is false
// when the text is a fallback rather than a model answer.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (text string, ok bool)
}

// Config wires an Assistant.
type Config struct {
	Classifier *intent.Classifier
	Resolver   *timetable.Resolver
	Retriever  Retriever
	Completer  Completer
	Budgets    prompt.Budgets
	Sanitize   sanitize.Options
	// Fallback is shown when context retrieval itself fails.
	Fallback string
	Metrics  *metrics.Metrics
}

// Assistant is safe for concurrent use.
type Assistant struct {
	classifier *intent.Classifier
	resolver   *timetable.Resolver
	retriever  Retriever
	completer  Completer
	prompts    *prompt.Builder
	sanitize   sanitize.Options
	fallback   string
	metrics    *metrics.Metrics
}

// Answer is the result of Ask. Text is always displayable.
type Answer struct {
	Text    string
	Intent  intent.Label
	Outcome Outcome
}

// New creates an Assistant.
func New(cfg Config) *Assistant {
	return &Assistant{
		classifier: cfg.Classifier,
		resolver:   cfg.Resolver,
		retriever:  cfg.Retriever,
		completer:  cfg.Completer,
		prompts:    prompt.NewBuilder(cfg.Budgets),
		sanitize:   cfg.Sanitize,
		fallback:   cfg.Fallback,
		metrics:    cfg.Metrics,
	}
}

// Ask answers query. It never returns an empty Text.
func (a *Assistant) Ask(ctx context.Context, query string) Answer {
	start := time.Now()
	ans := a.ask(ctx, strings.TrimSpace(query))

	a.metrics.RecordQuestion(string(ans.Intent), string(ans.Outcome), time.Since(start).Seconds())
	slog.InfoContext(ctx, "Question answered",
		"intent", ans.Intent,
		"outcome", ans.Outcome,
		"duration_ms", time.Since(start).Milliseconds())
	return ans
}

func (a *Assistant) ask(ctx context.Context, query string) Answer {
	if query == "" {
		return Answer{Text: MsgEmptyQuestion, Intent: intent.Fallback, Outcome: OutcomeEmptyQuestion}
	}

	normalized := normalize.Text(query)
	label := a.classifier.Classify(normalized)

	if label == intent.Timetable {
		return a.askTimetable(ctx, normalized)
	}
	return a.askRules(ctx, label, query)
}

func (a *Assistant) askTimetable(ctx context.Context, normalized string) Answer {
	res, err := a.resolver.Resolve(normalized)
	if err != nil {
		text, outcome := timetableFailure(err)
		return Answer{Text: text, Intent: intent.Timetable, Outcome: outcome}
	}

	q := res.Query
	p := a.prompts.Build(prompt.KindTimetable, res.Context(), prompt.TimetableQuestion(q.Label(), q.Period))
	return a.complete(ctx, p, intent.Timetable)
}

func (a *Assistant) askRules(ctx context.Context, label intent.Label, query string) Answer {
	text, err := a.retriever.Retrieve(ctx, string(label), query)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyStore) {
			return Answer{
				Text:    a.classifier.DisplayName(label) + "に関する情報がデータに見つかりませんでした。",
				Intent:  label,
				Outcome: OutcomeNoData,
			}
		}
		slog.ErrorContext(ctx, "Context retrieval failed",
			"topic", label,
			"error", err)
		return Answer{Text: a.fallback, Intent: label, Outcome: OutcomeError}
	}

	p := a.prompts.Build(prompt.KindRules, text, prompt.RulesQuestion(query))
	return a.complete(ctx, p, label)
}

func (a *Assistant) complete(ctx context.Context, p prompt.Prompt, label intent.Label) Answer {
	raw, ok := a.completer.Complete(ctx, p.Text, p.MaxTokens)
	if !ok {
		return Answer{Text: raw, Intent: label, Outcome: OutcomeError}
	}
	return Answer{
		Text:    sanitize.Answer(raw, p.Kind, a.sanitize),
		Intent:  label,
		Outcome: OutcomeAnswered,
	}
}

// timetableFailure phrases a resolver error for the user.
func timetableFailure(err error) (string, Outcome) {
	var qe *timetable.QueryError
	switch {
	case errors.Is(err, timetable.ErrClassNotIdentified):
		return MsgClassNotIdentified, OutcomeNoClass
	case errors.As(err, &qe) && errors.Is(err, timetable.ErrNoMatchingClass) && qe.Query.Period > 0:
		return qe.Query.Label() + strconv.Itoa(qe.Query.Period) + "限の授業は見つかりませんでした。", OutcomeNoLesson
	case errors.As(err, &qe):
		return qe.Query.Label() + "の時間割が見つかりませんでした。", OutcomeNoSchedule
	default:
		return MsgClassNotIdentified, OutcomeNoClass
	}
}
