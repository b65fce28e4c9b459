package app

import (
	_ "embed"
	"errors"
	"net/http"
	"strconv"
	"strings"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/anan-assistant-go/internal/assistant"
	"github.com/garyellow/anan-assistant-go/internal/ctxutil"
	apperrors "github.com/garyellow/anan-assistant-go/internal/errors"
	"github.com/garyellow/anan-assistant-go/internal/scraper/anan"
	"github.com/garyellow/anan-assistant-go/internal/sentry"
	"github.com/garyellow/anan-assistant-go/internal/storage"
)

// Request limits for the JSON API.
const (
	MaxQuestionLength = 1000 // runes
	MaxHistoryLimit   = 500
	maxPageLength     = 32
)

//go:embed index.html
var indexHTML []byte

const indexCSP = "default-src 'none'; script-src 'unsafe-inline'; style-src 'unsafe-inline'; connect-src 'self'"

type askRequest struct {
	Question string `json:"question"`
	Page     string `json:"page"`
}

type askResponse struct {
	Answer    string `json:"answer"`
	Intent    string `json:"intent"`
	Outcome   string `json:"outcome"`
	RequestID string `json:"request_id"`
}

type classChangesResponse struct {
	Class   string        `json:"class,omitempty"`
	Changes []anan.Change `json:"changes"`
	Text    string        `json:"text"`
	Error   string        `json:"error,omitempty"`
}

func (a *Application) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if sentry.IsEnabled() {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	r.Use(securityHeadersMiddleware())
	r.Use(requestContextMiddleware(a.logger))

	r.GET("/", a.indexPage)
	r.HEAD("/", a.indexPage)
	r.GET("/livez", a.livenessCheck)
	r.HEAD("/livez", a.livenessCheck)
	r.GET("/readyz", a.readinessCheck)
	r.HEAD("/readyz", a.readinessCheck)
	r.GET("/metrics",
		basicAuthMiddleware(a.cfg.MetricsAuthEnabled, "metrics", a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	api := r.Group("/api", globalRateLimitMiddleware(a.globalLimiter, a.metrics))
	api.POST("/ask", clientRateLimitMiddleware(a.askLimiter, a.metrics), a.handleAsk)
	api.GET("/class-changes", a.handleClassChanges)
	api.GET("/history", a.handleListHistory)

	admin := api.Group("/history", a.adminOnly())
	admin.DELETE("", a.handleClearHistory)
	admin.DELETE("/:id", a.handleDeleteHistory)

	if a.webhookHandler != nil {
		r.POST("/webhook", a.readinessMiddleware(), a.webhookHandler.Handle)
	}
	return r
}

func (a *Application) indexPage(c *gin.Context) {
	c.Header("Content-Security-Policy", indexCSP)
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx := c.Request.Context()

	if !a.readinessState.IsReady() {
		status := a.readinessState.Status()
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": status.Reason,
			"progress": gin.H{
				"elapsed_seconds": status.ElapsedSeconds,
				"timeout_seconds": status.TimeoutSeconds,
			},
		})
		return
	}

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	loaded := 0
	if a.library != nil {
		loaded = len(a.library.Loaded())
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"warmup":   a.readinessState.Status(),
		"stores":   gin.H{"loaded": loaded, "topics": len(a.topics)},
		"features": gin.H{"line": a.webhookHandler != nil, "snapshot": a.snapshots != nil},
	})
}

func (a *Application) handleAsk(c *gin.Context) {
	ctx := c.Request.Context()

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, apperrors.NewValidationError("body", "invalid JSON"))
		return
	}
	if n := len([]rune(req.Question)); n > MaxQuestionLength {
		a.badRequest(c, apperrors.NewValidationError("question", "too long: "+strconv.Itoa(n)+" characters"))
		return
	}
	page := strings.TrimSpace(req.Page)
	if page == "" || len([]rune(page)) > maxPageLength {
		page = storage.PageAsk
	}

	ans := a.assistant.Ask(ctx, req.Question)
	if ans.Outcome != assistant.OutcomeEmptyQuestion {
		// The answer was already paid for; keep it even if the client left.
		if _, err := a.db.Append(ctxutil.PreserveTracing(ctx), page, strings.TrimSpace(req.Question), ans.Text); err != nil {
			sentry.CaptureExceptionWithContext(ctx, err, map[string]string{"route": "ask"})
		}
	}

	requestID, _ := ctxutil.GetRequestID(ctx)
	c.JSON(http.StatusOK, askResponse{
		Answer:    ans.Text,
		Intent:    string(ans.Intent),
		Outcome:   string(ans.Outcome),
		RequestID: requestID,
	})
}

func (a *Application) handleClassChanges(c *gin.Context) {
	class := strings.TrimSpace(c.Query("class"))

	changes, err := a.bulletin.Fetch(c.Request.Context(), class)
	resp := classChangesResponse{
		Class:   class,
		Changes: changes,
		Text:    anan.Format(changes, class, err),
	}
	if resp.Changes == nil {
		resp.Changes = []anan.Change{}
	}
	if err != nil {
		a.metrics.RecordHTTPError("bulletin", c.FullPath())
		resp.Error = resp.Text
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *Application) handleListHistory(c *gin.Context) {
	limit := a.cfg.HistoryListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.badRequest(c, apperrors.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	records, err := a.db.List(c.Request.Context(), limit)
	if err != nil {
		a.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records, "count": len(records)})
}

func (a *Application) handleDeleteHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		a.badRequest(c, apperrors.NewValidationError("id", "must be a positive integer"))
		return
	}

	if err := a.db.DeleteOne(c.Request.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "history record not found"})
			return
		}
		a.internalError(c, err)
		return
	}
	a.logger.WithField("id", id).Info("History record deleted")
	c.JSON(http.StatusOK, gin.H{"deleted": 1})
}

func (a *Application) handleClearHistory(c *gin.Context) {
	n, err := a.db.DeleteAll(c.Request.Context())
	if err != nil {
		a.internalError(c, err)
		return
	}
	a.logger.WithField("deleted", n).Info("History cleared")
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (a *Application) badRequest(c *gin.Context, err error) {
	a.metrics.RecordHTTPError("invalid_input", c.FullPath())
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (a *Application) internalError(c *gin.Context, err error) {
	a.metrics.RecordHTTPError("internal", c.FullPath())
	sentry.CaptureExceptionWithContext(c.Request.Context(), err, map[string]string{"route": c.FullPath()})
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
