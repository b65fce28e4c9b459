// Package prompt builds the completion prompts for timetable and rules
// answers.
package prompt

import (
	"fmt"
	"strconv"
)

// Kind selects the template and the token budget.
type Kind string

const (
	KindTimetable Kind = "timetable"
	KindRules     Kind = "rules"
)

// Default token budgets.
const (
	DefaultTimetableTokens = 400
	DefaultRulesTokens     = 600
)

// NoDataAnswer is the phrase the model must use when the data does not
// cover the question.
const NoDataAnswer = "それについては情報がありません"

// Budgets maps each kind to its max_tokens.
type Budgets struct {
	Timetable int
	Rules     int
}

// DefaultBudgets returns the shipped budgets.
func DefaultBudgets() Budgets {
	return Budgets{Timetable: DefaultTimetableTokens, Rules: DefaultRulesTokens}
}

// For returns the budget for kind, falling back to the default when the
// configured value is not positive.
func (b Budgets) For(kind Kind) int {
	switch kind {
	case KindTimetable:
		if b.Timetable > 0 {
			return b.Timetable
		}
		return DefaultTimetableTokens
	default:
		if b.Rules > 0 {
			return b.Rules
		}
		return DefaultRulesTokens
	}
}

// Prompt is a ready-to-send completion request body.
type Prompt struct {
	Kind      Kind
	Text      string
	MaxTokens int
}

const timetableTemplate = `あなたは阿南高専の学生サポートAIです。
以下の時間割データを使って、自然な口調で答えてください。

【時間割データ】
%s

【質問】
%s

【回答の指示】
- すべての授業情報（時限、科目名、先生、教室）を含めて答える
- 簡潔に2〜3文程度でまとめる
- 情報を省略せず、でも読みやすくまとめる
- 必要な情報のみ回答する
【回答】
`

const rulesTemplate = `あなたは阿南高専の学生サポートAIです。
以下の参照データを使って、自然な口調で答えてください。

【参照データ】
%s

【質問】
%s

【回答の指示】
- 難しい言葉遣いは避け、わかりやすく説明する
- 必要な情報は正確に伝えつつ、会話的に答える
- 表形式（テーブル、|記号）は使わず、文章で答える
- データにない情報は「` + NoDataAnswer + `」と答える
- 回答は必要な情報をすべて含め、途中で終わらせずに完結させる

【回答】
`

// Builder renders prompts with configured budgets.
type Builder struct {
	budgets Budgets
}

// NewBuilder returns a Builder using budgets.
func NewBuilder(budgets Budgets) *Builder {
	return &Builder{budgets: budgets}
}

// Build renders the template for kind with the given context and question.
func (b *Builder) Build(kind Kind, context, question string) Prompt {
	tmpl := rulesTemplate
	if kind == KindTimetable {
		tmpl = timetableTemplate
	}
	return Prompt{
		Kind:      kind,
		Text:      fmt.Sprintf(tmpl, context, question),
		MaxTokens: b.budgets.For(kind),
	}
}

// Build renders a prompt with the default budgets.
func Build(kind Kind, context, question string) Prompt {
	return NewBuilder(DefaultBudgets()).Build(kind, context, question)
}

// TimetableQuestion phrases a timetable lookup. label is "{grade}{class}の
// {weekday}"; period 0 asks for the whole day.
func TimetableQuestion(label string, period int) string {
	if period > 0 {
		return label + strconv.Itoa(period) + "限の授業は何ですか?"
	}
	return label + "の時間割を教えてください。"
}

// RulesQuestion wraps the user's query for a rules answer.
func RulesQuestion(query string) string {
	return "ユーザーの質問「" + query + "」に対する回答を、以下の【参照データ】に基づいて生成してください。"
}
