package anan

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/anan-assistant-go/internal/scraper"
)

const testPassword = "test-pass"

const updatePage = `<html><body>
<div class="entry-body">
  <p>1-2 月曜3限 数学 → 英語</p>
  <p>2-1 火曜1限 休講</p>
  <script>var x = 1;</script>
  <p><strong>3E</strong> 水曜2限 教室変更 <br>（201→305）</p>
</div>
</body></html>`

type fakeSite struct {
	page       string
	pageHits   atomic.Int32
	loginHits  atomic.Int32
	loginDelay time.Duration
}

func (f *fakeSite) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /wp-login.php", func(w http.ResponseWriter, r *http.Request) {
		f.loginHits.Add(1)
		time.Sleep(f.loginDelay)
		assert.Equal(t, "postpass", r.URL.Query().Get("action"))
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("post_password") == testPassword {
			http.SetCookie(w, &http.Cookie{Name: "wp-postpass", Value: "ok", Path: "/"})
		}
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "<html>home</html>")
	})
	mux.HandleFunc("GET /campuslife/update/", func(w http.ResponseWriter, r *http.Request) {
		f.pageHits.Add(1)
		if c, err := r.Cookie("wp-postpass"); err != nil || c.Value != "ok" {
			_, _ = fmt.Fprint(w, `<form class="post-password-form"></form>`)
			return
		}
		_, _ = fmt.Fprint(w, f.page)
	})
	return mux
}

func newTestBulletin(t *testing.T, baseURL, password string, ttl time.Duration) *Bulletin {
	t.Helper()
	client := scraper.NewClient(5*time.Second, 0,
		scraper.WithRateLimiter(scraper.NewRateLimiter(100, 0, 0)),
		scraper.WithRetryDelay(time.Millisecond),
	)
	b, err := New(Config{BaseURL: baseURL, Password: password, CacheTTL: ttl, Client: client})
	require.NoError(t, err)
	return b
}

func TestNew_Validation(t *testing.T) {
	client := scraper.NewClient(time.Second, 0)

	_, err := New(Config{BaseURL: "https://example", Client: client})
	assert.Error(t, err, "password is required")

	_, err = New(Config{Password: "x", Client: client})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "https://example", Password: "x"})
	assert.Error(t, err)
}

func TestFetch_AllLines(t *testing.T) {
	site := &fakeSite{page: updatePage}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	b := newTestBulletin(t, srv.URL, testPassword, time.Minute)
	changes, err := b.Fetch(t.Context(), "")
	require.NoError(t, err)

	var contents []string
	for _, c := range changes {
		assert.Equal(t, LatestDate, c.Date)
		contents = append(contents, c.Content)
	}
	assert.Equal(t, []string{
		"1-2 月曜3限 数学 → 英語",
		"2-1 火曜1限 休講",
		"3E",
		"水曜2限 教室変更",
		"（201→305）",
	}, contents)
	assert.Equal(t, int32(1), site.loginHits.Load())
}

func TestFetch_FiltersByClass(t *testing.T) {
	site := &fakeSite{page: updatePage}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	b := newTestBulletin(t, srv.URL, testPassword, time.Minute)
	changes, err := b.Fetch(t.Context(), "2-1")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "2-1 火曜1限 休講", changes[0].Content)
}

func TestFetchText_Formats(t *testing.T) {
	site := &fakeSite{page: updatePage}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	b := newTestBulletin(t, srv.URL, testPassword, time.Minute)

	got := b.FetchText(t.Context(), "1-2")
	assert.Equal(t, "📢 授業変更情報\n\n・1-2 月曜3限 数学 → 英語", got)

	assert.Equal(t, "5-5 の授業変更はありません。", b.FetchText(t.Context(), "5-5"))
}

func TestFetchText_EmptyBody(t *testing.T) {
	site := &fakeSite{page: `<div class="entry-body">  </div>`}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	b := newTestBulletin(t, srv.URL, testPassword, time.Minute)
	assert.Equal(t, MsgNoChanges, b.FetchText(t.Context(), ""))
}

func TestFetchText_WrongPasswordMeansMissingContent(t *testing.T) {
	site := &fakeSite{page: updatePage}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	b := newTestBulletin(t, srv.URL, "wrong", time.Minute)

	_, err := b.Fetch(t.Context(), "")
	assert.ErrorIs(t, err, ErrContentMissing)
	assert.Equal(t, MsgContentMissing, b.FetchText(t.Context(), ""))
}

func TestFetchText_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	b := newTestBulletin(t, addr, testPassword, time.Minute)
	assert.Equal(t, MsgConnectionFailed, b.FetchText(t.Context(), ""))
}

func TestFetchText_PageErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/campuslife") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := newTestBulletin(t, srv.URL, testPassword, time.Minute)
	assert.Equal(t, MsgConnectionFailed, b.FetchText(t.Context(), ""))
}

func TestFetch_CachesWithinTTL(t *testing.T) {
	site := &fakeSite{page: updatePage}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	b := newTestBulletin(t, srv.URL, testPassword, time.Minute)
	for _, class := range []string{"", "1-2", "3E"} {
		_, err := b.Fetch(t.Context(), class)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), site.pageHits.Load())

	b.Invalidate()
	_, err := b.Fetch(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), site.pageHits.Load())
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	site := &fakeSite{page: updatePage}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	bad := newTestBulletin(t, srv.URL, "wrong", time.Minute)
	_, err := bad.Fetch(t.Context(), "")
	require.Error(t, err)
	_, err = bad.Fetch(t.Context(), "")
	require.Error(t, err)
	assert.Equal(t, int32(2), site.pageHits.Load())
}

func TestFetch_ConcurrentCallsDeduplicated(t *testing.T) {
	site := &fakeSite{page: updatePage, loginDelay: 100 * time.Millisecond}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	b := newTestBulletin(t, srv.URL, testPassword, time.Minute)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_, err := b.Fetch(context.Background(), "")
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), site.loginHits.Load())
	assert.Equal(t, int32(1), site.pageHits.Load())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, MsgConnectionFailed, Format(nil, "", fmt.Errorf("boom")))
	assert.Equal(t, MsgContentMissing, Format(nil, "1-2", fmt.Errorf("wrap: %w", ErrContentMissing)))
	assert.Equal(t, "1-2 の授業変更はありません。", Format(nil, " 1-2 ", nil))
	assert.Equal(t, "📢 授業変更情報\n\n・a\n・b",
		Format([]Change{{LatestDate, "a"}, {LatestDate, "b"}}, "", nil))
}
