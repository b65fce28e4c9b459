// Package anan scrapes the password-protected class-change bulletin on the
// school website.
package anan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/garyellow/anan-assistant-go/internal/errors"
	"github.com/garyellow/anan-assistant-go/internal/metrics"
	"github.com/garyellow/anan-assistant-go/internal/scraper"
)

const (
	LoginPath  = "/wp-login.php?action=postpass"
	UpdatePath = "/campuslife/update/"

	// LatestDate is used for every change; the page carries no dates.
	LatestDate = "最新"

	Header = "📢 授業変更情報"

	MsgConnectionFailed = "授業変更ページに接続できませんでした。"
	MsgContentMissing   = "授業変更情報が見つかりませんでした。"
	MsgNoChanges        = "現在、授業変更はありません。"

	metricsModule = "bulletin"
	cacheKey      = "update"
)

// ErrContentMissing is returned when the page has no entry body, which
// usually means the password was rejected.
var ErrContentMissing = fmt.Errorf("bulletin entry body not found: %w", apperrors.ErrNotFound)

// Change is one line of the bulletin.
type Change struct {
	Date    string `json:"date"`
	Content string `json:"content"`
}

// Config configures a Bulletin.
type Config struct {
	BaseURL  string
	Password string
	CacheTTL time.Duration
	Client   *scraper.Client
	Metrics  *metrics.Metrics
}

// Bulletin fetches and caches the class-change page.
type Bulletin struct {
	baseURL  string
	password string
	client   *scraper.Client
	cache    *scraper.TTLCache[[]string]
	metrics  *metrics.Metrics
}

// New creates a Bulletin. The password is required.
func New(cfg Config) (*Bulletin, error) {
	if cfg.Password == "" {
		return nil, apperrors.NewValidationError("password", "bulletin password is required")
	}
	if cfg.BaseURL == "" {
		return nil, apperrors.NewValidationError("base_url", "bulletin base URL is required")
	}
	if cfg.Client == nil {
		return nil, apperrors.NewValidationError("client", "scraper client is required")
	}
	return &Bulletin{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		password: cfg.Password,
		client:   cfg.Client,
		cache:    scraper.NewTTLCache[[]string](cfg.CacheTTL),
		metrics:  cfg.Metrics,
	}, nil
}

// Fetch returns the bulletin lines mentioning class, or every line when
// class is blank.
func (b *Bulletin) Fetch(ctx context.Context, class string) ([]Change, error) {
	lines, err := b.lines(ctx)
	if err != nil {
		return nil, err
	}

	class = strings.TrimSpace(class)
	changes := make([]Change, 0, len(lines))
	for _, line := range lines {
		if class != "" && !strings.Contains(line, class) {
			continue
		}
		changes = append(changes, Change{Date: LatestDate, Content: line})
	}
	return changes, nil
}

// FetchText returns the bulletin formatted for chat. It never fails;
// errors become user-facing messages.
func (b *Bulletin) FetchText(ctx context.Context, class string) string {
	changes, err := b.Fetch(ctx, class)
	return Format(changes, class, err)
}

// Format renders a Fetch result.
func Format(changes []Change, class string, err error) string {
	switch {
	case errors.Is(err, ErrContentMissing):
		return MsgContentMissing
	case err != nil:
		return MsgConnectionFailed
	}

	if len(changes) == 0 {
		if class = strings.TrimSpace(class); class != "" {
			return class + " の授業変更はありません。"
		}
		return MsgNoChanges
	}

	var sb strings.Builder
	sb.WriteString(Header)
	sb.WriteString("\n")
	for _, c := range changes {
		sb.WriteString("\n・")
		sb.WriteString(c.Content)
	}
	return sb.String()
}

// Invalidate drops the cached page.
func (b *Bulletin) Invalidate() {
	b.cache.Forget(cacheKey)
}

func (b *Bulletin) lines(ctx context.Context) ([]string, error) {
	lines, hit, shared, err := b.cache.Do(ctx, cacheKey, b.scrape)
	switch {
	case hit:
		b.metrics.RecordCacheHit(metricsModule)
	case shared:
		b.metrics.RecordSingleflightDedup(metricsModule)
	default:
		b.metrics.RecordCacheMiss(metricsModule)
	}
	return lines, err
}

func (b *Bulletin) scrape(ctx context.Context) ([]string, error) {
	start := time.Now()
	lines, err := b.scrapeOnce(ctx)
	dur := time.Since(start).Seconds()

	status := "success"
	switch {
	case errors.Is(err, ErrContentMissing):
		status = "not_found"
		slog.WarnContext(ctx, "Bulletin entry body missing")
	case err != nil:
		status = "error"
		slog.ErrorContext(ctx, "Bulletin fetch failed", "error", err)
	default:
		slog.DebugContext(ctx, "Bulletin fetched", "lines", len(lines), "duration_ms", int64(dur*1000))
	}
	b.metrics.RecordScraperRequest(metricsModule, status, dur)
	return lines, err
}

func (b *Bulletin) scrapeOnce(ctx context.Context) ([]string, error) {
	session := b.client.Session()

	form := url.Values{"post_password": {b.password}}
	if _, err := session.PostForm(ctx, b.baseURL+LoginPath, form); err != nil {
		// WordPress may answer the login with an odd status while still
		// setting the cookie; only transport failures abort.
		var se *apperrors.ScraperError
		if !errors.As(err, &se) || se.StatusCode == 0 {
			return nil, fmt.Errorf("bulletin login: %w", err)
		}
		slog.WarnContext(ctx, "Bulletin login returned error status", "status", se.StatusCode)
	}

	doc, err := session.GetDocument(ctx, b.baseURL+UpdatePath)
	if err != nil {
		return nil, fmt.Errorf("bulletin page: %w", err)
	}
	return extractLines(doc)
}

func extractLines(doc *goquery.Document) ([]string, error) {
	body := doc.Find("div.entry-body").First()
	if body.Length() == 0 {
		return nil, ErrContentMissing
	}
	return textLines(body), nil
}

// textLines returns the trimmed non-empty text of every text node under
// sel, in document order.
func textLines(sel *goquery.Selection) []string {
	var lines []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				for part := range strings.SplitSeq(c.Text(), "\n") {
					if t := strings.TrimSpace(part); t != "" {
						lines = append(lines, t)
					}
				}
			case "script", "style", "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(sel)
	return lines
}
