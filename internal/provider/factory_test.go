package provider

import (
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/config"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	or := cfg.Providers["openrouter"]
	or.APIKey = "sk-or-test"
	cfg.Providers["openrouter"] = or
	gem := cfg.Providers["gemini"]
	gem.APIKey = "g-test"
	cfg.Providers["gemini"] = gem
	return cfg
}

func TestFactory_GetByKind(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())

	p, err := f.Get("openrouter")
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, p)
	assert.Equal(t, "openrouter", p.Name())

	g, err := f.Get("gemini")
	require.NoError(t, err)
	assert.IsType(t, &Gemini{}, g)
}

func TestFactory_CachesProviders(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())
	a, err := f.DefaultProvider()
	require.NoError(t, err)
	b, err := f.Get("openrouter")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestFactory_UnknownAndDisabled(t *testing.T) {
	cfg := testConfig()
	gem := cfg.Providers["gemini"]
	gem.Enabled = false
	cfg.Providers["gemini"] = gem
	f := NewFactory(cfg, testLogger())

	_, err := f.Get("mistral")
	assert.Error(t, err)
	_, err = f.Get("gemini")
	assert.Error(t, err)
}

func TestFactory_ChainSkipsUnusable(t *testing.T) {
	cfg := testConfig()
	or := cfg.Providers["openrouter"]
	or.APIKey = ""
	cfg.Providers["openrouter"] = or
	f := NewFactory(cfg, testLogger())

	chain := f.Chain()
	assert.Equal(t, 1, chain.Len())
	assert.Equal(t, "failover(gemini)", chain.Name())
}

func TestFactory_ChainFallsBackToDefault(t *testing.T) {
	cfg := testConfig()
	cfg.General.FailoverChain = nil
	f := NewFactory(cfg, testLogger())

	assert.Equal(t, "failover(openrouter)", f.Chain().Name())
}

func TestFactory_RegisterConstructor(t *testing.T) {
	cfg := testConfig()
	cfg.Providers["local"] = config.ProviderConfig{Enabled: true, Kind: "stub", APIBase: "http://localhost", APIKey: "x"}
	cfg.General.FailoverChain = []string{"local", "gemini"}
	f := NewFactory(cfg, testLogger())

	_, err := f.Get("local")
	assert.ErrorContains(t, err, `unsupported kind "stub"`)

	f.RegisterConstructor("stub", func(name string, _ config.ProviderConfig, _ *http.Client, _ *slog.Logger) domain.Provider {
		return &stubProvider{name: name, reply: "lokal"}
	})
	assert.Equal(t, "failover(local→gemini)", f.Chain().Name())
}
