package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	UserAgent = "Mozilla/5.0 (compatible; StadtHirschBot/1.0; +https://stadthirsch.ch)"

	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 2 << 20
)

// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("invalid url")

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// ValidateURL accepts absolute http and https URLs and returns their
// normalized form.
func ValidateURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q (only http/https allowed)", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u.String(), nil
}

// HTTPFetcher downloads pages with a plain GET.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// HTTPFetcherConfig configures an HTTPFetcher.
type HTTPFetcherConfig struct {
	Timeout  time.Duration // default 10s
	MaxBytes int64         // body cap, default 2 MiB
	Client   *http.Client  // overrides Timeout when set
}

func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPFetcher{client: cfg.Client, maxBytes: cfg.MaxBytes}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("could not fetch website: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// Renderer renders a page in a browser. *browser.Bridge implements it.
type Renderer interface {
	RenderHTML(ctx context.Context, url string) (string, error)
}

// BrowserFetcher renders pages in headless Chrome and falls back to
// plain HTTP when rendering fails.
type BrowserFetcher struct {
	renderer Renderer
	fallback Fetcher
	logger   *slog.Logger
}

func NewBrowserFetcher(renderer Renderer, fallback Fetcher, logger *slog.Logger) *BrowserFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserFetcher{renderer: renderer, fallback: fallback, logger: logger}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return "", err
	}
	page, err := f.renderer.RenderHTML(ctx, target)
	if err == nil {
		return page, nil
	}
	if f.fallback == nil || ctx.Err() != nil {
		return "", err
	}
	f.logger.Warn("browser render failed, falling back to http", "url", target, "err", err)
	return f.fallback.Fetch(ctx, target)
}
