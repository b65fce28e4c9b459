// Package lineutil builds LINE reply messages.
package lineutil

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// QuickReplyItem represents an item in a quick reply.
type QuickReplyItem struct {
	ImageURL string
	Action   messaging_api.ActionInterface
}

// Action is an alias for the LINE SDK action interface for convenience.
type Action = messaging_api.ActionInterface

// NewTextMessage creates a text message, truncated to the LINE limit.
func NewTextMessage(text string) *messaging_api.TextMessage {
	return &messaging_api.TextMessage{
		Text: TruncateRunes(text, MaxTextMessageLength),
	}
}

// NewQuickReply creates a quick reply component.
// LINE API limits: max 13 items
func NewQuickReply(items []QuickReplyItem) *messaging_api.QuickReply {
	if len(items) > MaxQuickReplyItemCount {
		items = items[:MaxQuickReplyItemCount]
	}

	quickReplyItems := make([]messaging_api.QuickReplyItem, len(items))
	for i, item := range items {
		qrItem := messaging_api.QuickReplyItem{
			Action: item.Action,
		}
		if item.ImageURL != "" {
			qrItem.ImageUrl = item.ImageURL
		}
		quickReplyItems[i] = qrItem
	}

	return &messaging_api.QuickReply{
		Items: quickReplyItems,
	}
}

// NewMessageAction creates an action that sends text when tapped.
// Labels longer than the LINE limit are truncated.
func NewMessageAction(label, text string) Action {
	return &messaging_api.MessageAction{
		Label: TruncateRunes(label, MaxQuickReplyLabel),
		Text:  text,
	}
}

// NewTextMessageWithQuickReply creates a text message with quick reply items.
func NewTextMessageWithQuickReply(text string, items ...QuickReplyItem) *messaging_api.TextMessage {
	msg := NewTextMessage(text)
	if len(items) > 0 {
		msg.QuickReply = NewQuickReply(items)
	}
	return msg
}

// ================================================
// Quick Reply Presets
// ================================================

// QuickReplyBulletinAction asks for today's class changes.
func QuickReplyBulletinAction() QuickReplyItem {
	return QuickReplyItem{Action: NewMessageAction("📢 授業変更", "授業変更")}
}

// QuickReplyTimetableAction sends an example timetable question.
func QuickReplyTimetableAction() QuickReplyItem {
	return QuickReplyItem{Action: NewMessageAction("📅 時間割", "1-1の月曜1限は何の授業？")}
}

// QuickReplyDormitoryAction sends an example dormitory question.
func QuickReplyDormitoryAction() QuickReplyItem {
	return QuickReplyItem{Action: NewMessageAction("🏠 寮の門限", "寮の門限は何時？")}
}

// DefaultQuickReplies are attached to every assistant reply.
func DefaultQuickReplies() []QuickReplyItem {
	return []QuickReplyItem{
		QuickReplyBulletinAction(),
		QuickReplyTimetableAction(),
		QuickReplyDormitoryAction(),
	}
}

// TruncateRunes truncates text by rune count (not byte count) to properly handle UTF-8.
// The result ends with "…" when text was cut.
func TruncateRunes(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	if maxRunes <= 1 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-1]) + "…"
}
