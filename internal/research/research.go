package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/metrics"
)

// Report is the result of one website analysis.
type Report struct {
	URL       string    `json:"url"`
	Analysis  Analysis  `json:"analysis"`
	Insights  []string  `json:"insights"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Researcher fetches and analyzes client or competitor websites.
type Researcher struct {
	fetcher Fetcher
	events  *bus.EventBus
	logger  *slog.Logger
}

// Config configures a Researcher.
type Config struct {
	Fetcher Fetcher       // HTTPFetcher with defaults when nil
	Events  *bus.EventBus // optional
	Logger  *slog.Logger
}

func New(cfg Config) *Researcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewHTTPFetcher(HTTPFetcherConfig{})
	}
	return &Researcher{fetcher: cfg.Fetcher, events: cfg.Events, logger: cfg.Logger}
}

// Run fetches rawURL and analyzes the page. The conversation key, when
// set, tags the emitted research.completed event.
func (r *Researcher) Run(ctx context.Context, rawURL string) (*Report, error) {
	return r.RunFor(ctx, "", rawURL)
}

// RunFor is Run for a known conversation.
func (r *Researcher) RunFor(ctx context.Context, key, rawURL string) (*Report, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	page, err := r.fetcher.Fetch(ctx, target)
	metrics.ResearchLatency.ObserveDuration(time.Since(start))
	if err != nil {
		r.logger.Warn("website research failed", "url", target, "err", err)
		return nil, fmt.Errorf("research %s: %w", target, err)
	}

	a := Analyze(page)
	rep := &Report{
		URL:       target,
		Analysis:  a,
		Insights:  a.Insights(target),
		FetchedAt: time.Now().UTC(),
	}
	r.logger.Info("website analyzed", "url", target, "title", a.Title, "colors", len(a.Colors), "images", a.ImageCount)

	if r.events != nil {
		r.events.Emit(bus.Event{
			Type:    bus.EventResearchCompleted,
			Source:  "research",
			Key:     key,
			Payload: map[string]any{"url": target, "title": a.Title},
		})
	}
	return rep, nil
}
