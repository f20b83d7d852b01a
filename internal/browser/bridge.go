package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultRenderTimeout = 30 * time.Second
	// settle gives client side scripts time to paint after DOMContentLoaded.
	settle = 750 * time.Millisecond
)

// Bridge drives a headless Chrome to render pages that only produce their
// content in JavaScript. Renders run one at a time: Chrome refuses to open a
// user data directory that another instance holds.
type Bridge struct {
	profileDir string
	userAgent  string
	timeout    time.Duration
	logger     *slog.Logger

	busy chan struct{} // one slot, held for the length of a render
}

// BridgeConfig holds configuration for the browser bridge.
type BridgeConfig struct {
	ProfileDir string // Chrome user data directory; a temp dir is used when empty
	UserAgent  string
	Timeout    time.Duration // per render, default 30s
	Logger     *slog.Logger
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRenderTimeout
	}
	return &Bridge{
		profileDir: cfg.ProfileDir,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
		busy:       make(chan struct{}, 1),
	}
}

// acquire waits for the profile to be free or ctx to end.
func (b *Bridge) acquire(ctx context.Context) (release func(), err error) {
	select {
	case b.busy <- struct{}{}:
		return func() { <-b.busy }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for browser: %w", ctx.Err())
	}
}

// NewContext creates a headless chromedp context. The caller must call
// cancel when done.
func (b *Bridge) NewContext(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if b.profileDir != "" {
		if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
			b.logger.Warn("browser profile dir not created, using temp profile", "dir", b.profileDir, "err", err)
		} else {
			opts = append(opts, chromedp.UserDataDir(b.profileDir))
		}
	}
	if b.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.userAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}
}

// RenderHTML loads url and returns the serialized DOM after scripts ran.
func (b *Bridge) RenderHTML(ctx context.Context, url string) (string, error) {
	release, err := b.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	taskCtx, cancel := b.NewContext(ctx)
	defer cancel()

	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, b.timeout)
	defer timeoutCancel()

	start := time.Now()
	var html string
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}

	b.logger.Debug("page rendered", "url", url, "bytes", len(html), "elapsed", time.Since(start))
	return html, nil
}
