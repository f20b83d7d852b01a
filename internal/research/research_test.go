package research

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateURL(t *testing.T) {
	for _, bad := range []string{"", "ftp://x.ch", "file:///etc/passwd", "javascript:alert(1)", "https://", "::"} {
		_, err := ValidateURL(bad)
		assert.ErrorIs(t, err, ErrInvalidURL, bad)
	}
	got, err := ValidateURL("  https://stadthirsch.ch/about ")
	require.NoError(t, err)
	assert.Equal(t, "https://stadthirsch.ch/about", got)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
			_, _ = io.WriteString(w, "<title>OK</title>"+strings.Repeat("x", 100))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{MaxBytes: 20})
	page, err := f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Len(t, page, 20)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

type fakeRenderer struct {
	page string
	err  error
}

func (r fakeRenderer) RenderHTML(context.Context, string) (string, error) { return r.page, r.err }

type fakeFetcher struct {
	page  string
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) (string, error) {
	f.calls++
	return f.page, nil
}

func TestBrowserFetcher(t *testing.T) {
	fallback := &fakeFetcher{page: "plain"}

	f := NewBrowserFetcher(fakeRenderer{page: "rendered"}, fallback, testLogger())
	page, err := f.Fetch(context.Background(), "https://example.ch")
	require.NoError(t, err)
	assert.Equal(t, "rendered", page)
	assert.Zero(t, fallback.calls)

	f = NewBrowserFetcher(fakeRenderer{err: errors.New("no chrome")}, fallback, testLogger())
	page, err = f.Fetch(context.Background(), "https://example.ch")
	require.NoError(t, err)
	assert.Equal(t, "plain", page)

	f = NewBrowserFetcher(fakeRenderer{err: errors.New("no chrome")}, nil, testLogger())
	_, err = f.Fetch(context.Background(), "https://example.ch")
	assert.EqualError(t, err, "no chrome")
}

func TestResearcher_Run(t *testing.T) {
	events := bus.NewEventBus(testLogger())
	r := New(Config{Fetcher: &fakeFetcher{page: samplePage}, Events: events, Logger: testLogger()})

	rep, err := r.RunFor(context.Background(), "web:1", "https://cafe-hirsch.ch")
	require.NoError(t, err)
	assert.Equal(t, "https://cafe-hirsch.ch", rep.URL)
	assert.Equal(t, "Café Hirsch | Zürich", rep.Analysis.Title)
	assert.Len(t, rep.Insights, 2)

	evs := events.ForConversation("web:1")
	require.Len(t, evs, 1)
	assert.Equal(t, bus.EventResearchCompleted, evs[0].Type)

	_, err = r.Run(context.Background(), "mailto:info@hirsch.ch")
	assert.ErrorIs(t, err, ErrInvalidURL)
}
