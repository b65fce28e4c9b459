package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/anan-assistant-go/internal/prompt"
)

func TestAnswer(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind prompt.Kind
		want string
	}{
		{
			name: "keeps text after last answer marker",
			raw:  "【回答】\nfirst\n【回答】\n 月曜3限は数学です。 ",
			kind: prompt.KindTimetable,
			want: "月曜3限は数学です。",
		},
		{
			name: "strips repeated leading preambles",
			raw:  "承知いたしました。\nさて、お答えします。\n\n髪は黒が基本です。",
			kind: prompt.KindRules,
			want: "髪は黒が基本です。",
		},
		{
			name: "preamble mid-text is kept",
			raw:  "髪は黒が基本です。\nしかし例外もあります。",
			kind: prompt.KindRules,
			want: "髪は黒が基本です。\nしかし例外もあります。",
		},
		{
			name: "rules removes article header",
			raw:  "(身だしなみ)\n第3条 頭髪について\n染髪は禁止です。",
			kind: prompt.KindRules,
			want: "染髪は禁止です。",
		},
		{
			name: "rules removes rule lines, tags and footnotes",
			raw:  "許可が必要です[出典]。*1\n---\n申請は学生課へ。**2",
			kind: prompt.KindRules,
			want: "許可が必要です。\n申請は学生課へ。",
		},
		{
			name: "rules truncates echoed reference data",
			raw:  "自転車は登録制です。\n以下の【参照データ】によると\n登録番号",
			kind: prompt.KindRules,
			want: "自転車は登録制です。",
		},
		{
			name: "timetable strips heading tags only",
			raw:  "【時間割】1年2組の月曜3限は[数学]です。",
			kind: prompt.KindTimetable,
			want: "1年2組の月曜3限は[数学]です。",
		},
		{
			name: "collapses blank lines",
			raw:  "a\n\n   \n  b  \n",
			kind: prompt.KindTimetable,
			want: "a\nb",
		},
		{
			name: "safety net returns trimmed input",
			raw:  "  まず確認します。  ",
			kind: prompt.KindRules,
			want: "まず確認します。",
		},
		{
			name: "safety net returns raw when trim empties",
			raw:  "  \n ",
			kind: prompt.KindRules,
			want: "  \n ",
		},
		{
			name: "empty stays empty",
			raw:  "",
			kind: prompt.KindRules,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Answer(tt.raw, tt.kind, Options{}))
		})
	}
}

func TestAnswer_IdempotentOnCleanText(t *testing.T) {
	inputs := []string{
		"1年2組の月曜3限は数学（田中先生）で、教室は101です。",
		"自転車通学には登録が必要です。\n申請は学生課で受け付けています。",
	}
	for _, in := range inputs {
		for _, kind := range []prompt.Kind{prompt.KindRules, prompt.KindTimetable} {
			once := Answer(in, kind, Options{})
			assert.Equal(t, in, once)
			assert.Equal(t, once, Answer(once, kind, Options{}))
		}
	}
}

func TestAnswer_NeverEmptyForNonEmptyInput(t *testing.T) {
	inputs := []string{"【回答】", "---", "[tag]", "*1", "【x】", "以下の【参照データ】", "さて"}
	for _, in := range inputs {
		for _, kind := range []prompt.Kind{prompt.KindRules, prompt.KindTimetable} {
			assert.NotEmpty(t, Answer(in, kind, Options{}), "input %q kind %s", in, kind)
		}
	}
}

func TestWithExtraPreambles(t *testing.T) {
	opts, err := WithExtraPreambles("ご質問ありがとうございます", "  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultPreambles, opts.Preambles)
	assert.Len(t, opts.Patterns, 1)

	got := Answer("ご質問ありがとうございます！\n寮の門限は21時です。", prompt.KindRules, opts)
	assert.Equal(t, "寮の門限は21時です。", got)

	got = Answer("まず結論です。", prompt.KindRules, Options{Preambles: []string{}})
	assert.Equal(t, "まず結論です。", got)
}

func TestWithExtraPreambles_Regexps(t *testing.T) {
	opts, err := WithExtraPreambles(`^えっと.*`, `(はい|うん)[、,]`)
	require.NoError(t, err)

	got := Answer("えっと、確認しますね\nはい、寮の門限は21時です。\n外泊は届け出が必要です。", prompt.KindRules, opts)
	assert.Equal(t, "外泊は届け出が必要です。", got)

	// Patterns only match at the start of a line.
	got = Answer("寮の門限は、えっと21時です。", prompt.KindRules, opts)
	assert.Equal(t, "寮の門限は、えっと21時です。", got)
}

func TestWithExtraPreambles_InvalidRegexp(t *testing.T) {
	_, err := WithExtraPreambles("えっと(")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "えっと(")

	re, err := CompilePreamble("   ")
	require.NoError(t, err)
	assert.Nil(t, re)
}
