// Package webhook answers LINE Messaging API events with the same pipeline
// as the web front end.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/garyellow/anan-assistant-go/internal/assistant"
	"github.com/garyellow/anan-assistant-go/internal/ctxutil"
	"github.com/garyellow/anan-assistant-go/internal/lineutil"
	"github.com/garyellow/anan-assistant-go/internal/metrics"
	"github.com/garyellow/anan-assistant-go/internal/ratelimit"
	"github.com/garyellow/anan-assistant-go/internal/sentry"
	"github.com/garyellow/anan-assistant-go/internal/storage"
)

// LINE API limits.
const (
	MaxEventsPerWebhook = 100
	minReplyTokenLength = 10
	loadingSeconds      = 60
)

// Asker answers a question.
type Asker interface {
	Ask(ctx context.Context, query string) assistant.Answer
}

// BulletinFetcher returns the formatted class-change bulletin.
type BulletinFetcher interface {
	FetchText(ctx context.Context, class string) string
}

// HistoryAppender records answered questions.
type HistoryAppender interface {
	Append(ctx context.Context, page, question, answer string) (int64, error)
}

// Replier sends reply messages. *messaging_api.MessagingApiAPI satisfies it.
type Replier interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

// HandlerConfig holds the Handler's collaborators.
type HandlerConfig struct {
	ChannelSecret string
	ChannelToken  string

	Assistant Asker
	Bulletin  BulletinFetcher
	History   HistoryAppender // optional
	Metrics   *metrics.Metrics

	// Timeout bounds one event, including the completion call.
	Timeout time.Duration
	// GlobalRPS limits outgoing reply calls.
	GlobalRPS float64

	// Replier overrides the LINE client. Used by tests.
	Replier Replier
}

// Handler handles LINE webhook events.
type Handler struct {
	channelSecret string
	replier       Replier
	showLoading   func(chatID string) error
	assistant     Asker
	bulletin      BulletinFetcher
	history       HistoryAppender
	metrics       *metrics.Metrics
	timeout       time.Duration
	rateLimiter   *ratelimit.Limiter
	wg            sync.WaitGroup
}

// NewHandler creates a webhook handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.ChannelSecret == "" {
		return nil, errors.New("webhook: channel secret is required")
	}
	if cfg.Assistant == nil || cfg.Bulletin == nil {
		return nil, errors.New("webhook: assistant and bulletin are required")
	}

	h := &Handler{
		channelSecret: cfg.ChannelSecret,
		replier:       cfg.Replier,
		showLoading:   func(string) error { return nil },
		assistant:     cfg.Assistant,
		bulletin:      cfg.Bulletin,
		history:       cfg.History,
		metrics:       cfg.Metrics,
		timeout:       cfg.Timeout,
		rateLimiter:   ratelimit.NewPerSecond(max(cfg.GlobalRPS, 1)),
	}
	if h.timeout <= 0 {
		h.timeout = 60 * time.Second
	}

	if h.replier == nil {
		client, err := messaging_api.NewMessagingApiAPI(cfg.ChannelToken)
		if err != nil {
			return nil, fmt.Errorf("create messaging API client: %w", err)
		}
		h.replier = client
		h.showLoading = func(chatID string) error {
			_, err := client.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
				ChatId:         chatID,
				LoadingSeconds: loadingSeconds,
			})
			return err
		}
	}

	return h, nil
}

// Handle is the gin handler for POST /webhook.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			slog.WarnContext(c.Request.Context(), "Invalid webhook signature")
			h.metrics.RecordWebhook("batch", "invalid_signature", 0)
			c.Status(http.StatusBadRequest)
		} else {
			slog.ErrorContext(c.Request.Context(), "Failed to parse webhook request", "error", err)
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	// LINE expects 200 quickly; events are answered asynchronously.
	c.Status(http.StatusOK)

	events := cb.Events
	if len(events) > MaxEventsPerWebhook {
		slog.WarnContext(c.Request.Context(), "Too many events in webhook batch; truncating", "event_count", len(events))
		events = events[:MaxEventsPerWebhook]
	}
	events = append([]webhook.EventInterface(nil), events...)

	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in webhook event processing", "panic", r)
				sentry.CaptureException(fmt.Errorf("webhook panic: %v", r))
			}
		}()
		for _, event := range events {
			h.processEvent(event)
		}
	})
}

func (h *Handler) processEvent(event webhook.EventInterface) {
	e, ok := event.(webhook.MessageEvent)
	if !ok {
		slog.Debug("Unsupported event type", "event_type", fmt.Sprintf("%T", event))
		return
	}
	msg, ok := e.Message.(webhook.TextMessageContent)
	if !ok {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if _, personal := e.Source.(webhook.UserSource); !personal {
		// Groups and rooms only get an answer when the bot is mentioned.
		if !isBotMentioned(msg) {
			return
		}
		text = removeBotMentions(msg.Text, msg.Mention)
	}
	if text == "" {
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(h.eventContext(e), h.timeout)
	defer cancel()

	if chatID := chatIDOf(e.Source); chatID != "" {
		if err := h.showLoading(chatID); err != nil {
			slog.WarnContext(ctx, "Failed to show loading animation", "error", err)
		}
	}

	kind, reply := h.answer(ctx, text)
	h.metrics.RecordWebhook(kind, "success", time.Since(start).Seconds())

	if err := h.reply(ctx, e.ReplyToken, reply); err != nil {
		slog.ErrorContext(ctx, "Failed to send reply", "error", err)
		h.metrics.RecordWebhook(kind, "reply_error", time.Since(start).Seconds())
		return
	}

	slog.InfoContext(ctx, "Event processed", "event_type", kind, "duration_ms", time.Since(start).Milliseconds())
}

// answer routes text to the bulletin or the assistant.
func (h *Handler) answer(ctx context.Context, text string) (kind, reply string) {
	if class, ok := bulletinRequest(text); ok {
		return "bulletin", h.bulletin.FetchText(ctx, class)
	}

	ans := h.assistant.Ask(ctx, text)
	if h.history != nil && ans.Outcome != assistant.OutcomeEmptyQuestion {
		if _, err := h.history.Append(ctx, storage.PageLINE, text, ans.Text); err != nil {
			slog.WarnContext(ctx, "Failed to save history", "error", err)
		}
	}
	return "message", ans.Text
}

func (h *Handler) reply(ctx context.Context, token, text string) error {
	if len(token) < minReplyTokenLength {
		slog.DebugContext(ctx, "Invalid reply token, skipping reply", "token_length", len(token))
		return nil
	}

	if !h.rateLimiter.Allow() {
		h.metrics.RecordRateLimiterDrop("line_reply")
		slog.WarnContext(ctx, "Reply rate limit reached; waiting")
		if err := h.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for reply token: %w", err)
		}
	}

	_, err := h.replier.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: token,
		Messages:   []messaging_api.MessageInterface{lineutil.NewTextMessageWithQuickReply(text, lineutil.DefaultQuickReplies()...)},
	})
	if err != nil && strings.Contains(err.Error(), "Invalid reply token") {
		slog.DebugContext(ctx, "Reply token already used or expired")
		return nil
	}
	return err
}

func (h *Handler) eventContext(e webhook.MessageEvent) context.Context {
	ctx := ctxutil.WithSource(context.Background(), ctxutil.SourceLINE)
	if e.WebhookEventId != "" {
		ctx = ctxutil.WithRequestID(ctx, e.WebhookEventId)
	}
	if uid := userIDOf(e.Source); uid != "" {
		ctx = ctxutil.WithUserID(ctx, uid)
	}
	return ctx
}

func userIDOf(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}

func chatIDOf(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.GroupId
	case webhook.RoomSource:
		return s.RoomId
	}
	return ""
}

// Shutdown waits for in-flight events or ctx.
func (h *Handler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
