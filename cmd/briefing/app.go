package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/agent"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/briefing"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/browser"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/cases"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/config"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/memory"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/metrics"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/provider"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/research"
)

// app holds the components shared by the serve, chat and export commands.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       domain.MemoryStore
	catalog     *cases.Catalog
	provider    *provider.FailoverProvider
	events      *bus.EventBus
	service     *agent.Service
	researcher  *research.Researcher
	transcriber domain.Transcriber // nil when voice input is off
}

// newApp wires storage, the provider chain and the briefing service from cfg.
// The caller must Close the returned app.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := memory.Open(cfg.Memory.Backend, cfg.Memory.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}

	catalog, err := loadCatalog(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	events := bus.NewEventBus(logger)
	if cfg.Metrics.Enabled {
		metrics.Attach(events)
	}

	chain := provider.NewFactory(cfg, logger).Chain()

	var limiter *agent.KeyedRateLimiter
	if perMin := cfg.Briefing.RateLimitPerMinute; perMin > 0 {
		limiter = agent.NewKeyedRateLimiter(max(perMin/4, 1), float64(perMin))
	}

	svc := agent.NewService(agent.ServiceConfig{
		Store:              store,
		Extractor:          briefing.NewExtractor(briefing.WithMaxColors(cfg.Briefing.MaxColors)),
		Provider:           chain,
		Catalog:            catalog,
		Events:             events,
		Limiter:            limiter,
		AITimeout:          time.Duration(cfg.General.AITimeoutSeconds) * time.Second,
		RecentWindow:       cfg.Briefing.RecentWindow,
		MaxMessageLength:   cfg.Briefing.MaxMessageLength,
		SessionIdleTimeout: time.Duration(cfg.Briefing.SessionIdleMinutes) * time.Minute,
		MaxOpenSessions:    cfg.Briefing.MaxOpenSessions,
		Logger:             logger,
	})

	return &app{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		catalog:     catalog,
		provider:    chain,
		events:      events,
		service:     svc,
		researcher:  newResearcher(cfg, events, logger),
		transcriber: newTranscriber(cfg, logger),
	}, nil
}

// newTranscriber returns nil unless voice input is enabled with an API key.
func newTranscriber(cfg *config.Config, logger *slog.Logger) domain.Transcriber {
	if !cfg.Voice.Enabled || cfg.Voice.APIKey == "" {
		return nil
	}
	return provider.NewWhisper(provider.WhisperConfig{
		APIBase:  cfg.Voice.APIBase,
		APIKey:   cfg.Voice.APIKey,
		Model:    cfg.Voice.Model,
		Language: cfg.Voice.Language,
		Logger:   logger,
	})
}

// newResearcher picks the page fetcher: a headless browser with plain HTTP as
// fallback when rendering is enabled, plain HTTP otherwise.
func newResearcher(cfg *config.Config, events *bus.EventBus, logger *slog.Logger) *research.Researcher {
	timeout := time.Duration(cfg.Research.TimeoutSeconds) * time.Second
	var fetcher research.Fetcher = research.NewHTTPFetcher(research.HTTPFetcherConfig{
		Timeout:  timeout,
		MaxBytes: cfg.Research.MaxBytes,
	})
	if cfg.Research.Render {
		bridge := browser.NewBridge(browser.BridgeConfig{
			ProfileDir: cfg.Research.ProfileDir,
			UserAgent:  research.UserAgent,
			Timeout:    timeout * 3,
			Logger:     logger,
		})
		fetcher = research.NewBrowserFetcher(bridge, fetcher, logger)
	}
	return research.New(research.Config{Fetcher: fetcher, Events: events, Logger: logger})
}

// checkProvider logs whether any provider of the chain answers a health check.
func (a *app) checkProvider(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.provider.Healthy(ctx); err != nil {
		a.logger.Warn("no LLM provider healthy at startup, replies may use the fallback text", "err", err)
		return
	}
	a.logger.Info("provider chain healthy", "provider", a.provider.Name())
}

func (a *app) Close() error {
	return a.store.Close()
}
