package webhook

import (
	"slices"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// isBotMentioned reports whether any mentionee is the bot itself.
func isBotMentioned(msg webhook.TextMessageContent) bool {
	return len(selfMentions(msg.Mention)) > 0
}

// selfMentions returns the bot's own mentions, last first.
func selfMentions(m *webhook.Mention) []webhook.UserMentionee {
	if m == nil {
		return nil
	}
	var out []webhook.UserMentionee
	for _, mentionee := range m.Mentionees {
		if um, ok := mentionee.(webhook.UserMentionee); ok && um.IsSelf {
			out = append(out, um)
		}
	}
	slices.SortFunc(out, func(a, b webhook.UserMentionee) int { return int(b.Index - a.Index) })
	return out
}

// removeBotMentions cuts the bot's @mentions out of text and collapses
// whitespace. LINE indexes mentions in runes, so they are removed back to
// front to keep earlier offsets valid.
func removeBotMentions(text string, m *webhook.Mention) string {
	mentions := selfMentions(m)
	if len(mentions) == 0 {
		return text
	}

	runes := []rune(text)
	for _, um := range mentions {
		start := max(int(um.Index), 0)
		end := min(int(um.Index+um.Length), len(runes))
		if start >= end {
			continue
		}
		runes = append(runes[:start], runes[end:]...)
	}
	return strings.Join(strings.Fields(string(runes)), " ")
}
