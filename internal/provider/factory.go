package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/config"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// ProviderConstructor builds the provider for one entry of the providers
// config. Constructors are registered per kind ("openai", "gemini").
type ProviderConstructor func(name string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) domain.Provider

// Factory builds providers from config on first use and keeps them.
type Factory struct {
	cfg    *config.Config
	logger *slog.Logger
	client *http.Client

	mu    sync.Mutex
	kinds map[string]ProviderConstructor
	built map[string]domain.Provider
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		cfg:    cfg,
		logger: logger,
		client: PooledClient(time.Duration(cfg.General.AITimeoutSeconds) * time.Second),
		kinds: map[string]ProviderConstructor{
			"openai": newOpenAIFromConfig,
			"gemini": newGeminiFromConfig,
		},
		built: map[string]domain.Provider{},
	}
}

func newOpenAIFromConfig(name string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) domain.Provider {
	return NewOpenAI(OpenAIConfig{
		Name:        name,
		APIKey:      pc.APIKey,
		APIBase:     pc.APIBase,
		Model:       pc.DefaultModel,
		Temperature: pc.Temperature,
		MaxTokens:   pc.MaxTokens,
		Referer:     pc.Referer,
		Title:       pc.Title,
		Client:      client,
		Logger:      logger,
	})
}

func newGeminiFromConfig(name string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) domain.Provider {
	return NewGemini(GeminiConfig{
		Name:        name,
		APIKey:      pc.APIKey,
		APIBase:     pc.APIBase,
		Model:       pc.DefaultModel,
		Temperature: pc.Temperature,
		MaxTokens:   pc.MaxTokens,
		Client:      client,
		Logger:      logger,
	})
}

// RegisterConstructor sets the constructor for a provider kind.
func (f *Factory) RegisterConstructor(kind string, ctor ProviderConstructor) {
	f.mu.Lock()
	f.kinds[kind] = ctor
	f.mu.Unlock()
}

// Get returns the named provider, the default provider for "".
func (f *Factory) Get(name string) (domain.Provider, error) {
	if name == "" {
		name = f.cfg.General.DefaultProvider
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.built[name]; ok {
		return p, nil
	}

	pc, ok := f.cfg.Providers[name]
	switch {
	case !ok:
		return nil, fmt.Errorf("no provider named %q", name)
	case !pc.Enabled:
		return nil, fmt.Errorf("provider %s is disabled", name)
	}
	ctor := f.kinds[pc.Kind]
	if ctor == nil {
		return nil, fmt.Errorf("provider %s: unsupported kind %q", name, pc.Kind)
	}
	p := ctor(name, pc, f.client, f.logger)
	f.built[name] = p
	return p, nil
}

func (f *Factory) DefaultProvider() (domain.Provider, error) { return f.Get("") }

// Chain returns the failover chain of general.failoverChain, or of the
// default provider when no chain is set. Providers that are disabled,
// unknown or missing an API key are left out with a warning.
func (f *Factory) Chain() *FailoverProvider {
	names := f.cfg.General.FailoverChain
	if len(names) == 0 {
		names = []string{f.cfg.General.DefaultProvider}
	}
	var chain []domain.Provider
	for _, name := range names {
		if pc := f.cfg.Providers[name]; pc.Enabled && pc.APIKey == "" {
			f.logger.Warn("provider left out of chain: no api key", "provider", name)
			continue
		}
		p, err := f.Get(name)
		if err != nil {
			f.logger.Warn("provider left out of chain", "provider", name, "err", err)
			continue
		}
		chain = append(chain, p)
	}
	if len(chain) == 0 {
		f.logger.Warn("no usable AI provider, replies fall back to rule-based questions")
	}
	return NewFailoverProvider(chain, f.logger)
}
