package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Config is the root configuration of the briefing system.
type Config struct {
	General   GeneralConfig             `json:"general"`
	Providers map[string]ProviderConfig `json:"providers"`
	Channels  ChannelsConfig            `json:"channels"`
	Memory    MemoryConfig              `json:"memory"`
	Briefing  BriefingConfig            `json:"briefing"`
	Research  ResearchConfig            `json:"research"`
	Voice     VoiceConfig               `json:"voice"`
	Export    ExportConfig              `json:"export"`
	Metrics   MetricsConfig             `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string   `json:"logLevel"`
	LogFormat             string   `json:"logFormat,omitempty"` // "text" | "json"
	LogFile               string   `json:"logFile,omitempty"`
	DefaultProvider       string   `json:"defaultProvider"`
	FailoverChain         []string `json:"failoverChain,omitempty"` // provider order; defaultProvider when empty
	AITimeoutSeconds      int      `json:"aiTimeoutSeconds"`
	MaxConcurrentMessages int      `json:"maxConcurrentMessages"`
}

type ProviderConfig struct {
	Enabled      bool    `json:"enabled"`
	Kind         string  `json:"kind"` // "openai" | "gemini"
	APIBase      string  `json:"apiBase,omitempty"`
	APIKey       string  `json:"apiKey,omitempty"`
	DefaultModel string  `json:"defaultModel,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"maxTokens,omitempty"`
	Referer      string  `json:"referer,omitempty"` // sent as HTTP-Referer (OpenRouter)
	Title        string  `json:"title,omitempty"`   // sent as X-Title (OpenRouter)
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Web      WebConfig      `json:"web"`
	CLI      CLIConfig      `json:"cli"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
	ParseMode string         `json:"parseMode"`
}

// FlexStringList is a list of ids that accepts JSON numbers as well as
// strings, so Telegram user ids can be written either way.
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	list := make(FlexStringList, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			list[i] = v
		case float64:
			list[i] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Errorf("list item %d: want string or number, got %T", i, item)
		}
	}
	*f = list
	return nil
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	APIKey  string `json:"apiKey,omitempty"` // bearer token for /api; open when empty
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type MemoryConfig struct {
	Backend string `json:"backend"` // "sqlite" | "memory"
	DBPath  string `json:"dbPath"`
}

type BriefingConfig struct {
	RecentWindow       int    `json:"recentWindow"`
	MaxColors          int    `json:"maxColors"`
	MaxMessageLength   int    `json:"maxMessageLength"`
	CasesDir           string `json:"casesDir,omitempty"`
	RateLimitPerMinute int    `json:"rateLimitPerMinute"`
	SessionIdleMinutes int    `json:"sessionIdleMinutes"` // open conversations unused this long are closed
	MaxOpenSessions    int    `json:"maxOpenSessions"`
}

type ResearchConfig struct {
	TimeoutSeconds int    `json:"timeoutSeconds"`
	Render         bool   `json:"render"` // render pages in a headless browser first
	ProfileDir     string `json:"profileDir,omitempty"`
	MaxBytes       int64  `json:"maxBytes"`
}

// VoiceConfig configures speech-to-text for voice messages.
type VoiceConfig struct {
	Enabled  bool   `json:"enabled"`
	APIBase  string `json:"apiBase"`
	APIKey   string `json:"apiKey,omitempty"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

type ExportConfig struct {
	OutputDir string `json:"outputDir"`
	Agency    string `json:"agency"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir is ~/.stadthirsch, or a relative .stadthirsch when the
// home directory is unknown.
func DefaultConfigDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".stadthirsch")
	}
	return ".stadthirsch"
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads the JSON config at path over the defaults. ${VAR} references
// are substituted first; secrets whose variable is unset are cleared, and
// "~/" paths are expanded.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Defaults()
	if err := json.Unmarshal([]byte(ExpandEnvVars(string(raw))), cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}

	for _, p := range []*string{
		&cfg.Memory.DBPath,
		&cfg.General.LogFile,
		&cfg.Briefing.CasesDir,
		&cfg.Research.ProfileDir,
		&cfg.Export.OutputDir,
	} {
		*p = ExpandPath(*p)
	}

	unresolved := func(s string) string {
		if envRef.MatchString(s) {
			return ""
		}
		return s
	}
	for name, pc := range cfg.Providers {
		pc.APIKey = unresolved(pc.APIKey)
		cfg.Providers[name] = pc
	}
	cfg.Channels.Telegram.Token = unresolved(cfg.Channels.Telegram.Token)
	cfg.Voice.APIKey = unresolved(cfg.Voice.APIKey)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envRef matches ${VAR} and ${VAR:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars substitutes ${VAR} with the value of VAR and
// ${VAR:-fallback} with fallback when VAR is unset or empty. References to
// unset variables without fallback are left as they are.
func ExpandEnvVars(input string) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		if strings.Contains(ref, ":-") && m[2] != "" {
			return m[2]
		}
		return ref
	})
}

// Save writes cfg as indented JSON. The file is private to the user since
// it may hold API keys.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// Validate reports every invalid setting at once.
func Validate(cfg *Config) error {
	var errs []string
	check := func(ok bool, msg string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(msg, args...))
		}
	}
	in := func(v int, lo, hi int) bool { return v >= lo && v <= hi }

	check(slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.General.LogLevel)),
		"general.logLevel must be one of: debug, info, warn, error")
	check(slices.Contains([]string{"", "text", "json"}, cfg.General.LogFormat),
		"general.logFormat must be one of: text, json")
	check(in(cfg.General.AITimeoutSeconds, 1, 300), "general.aiTimeoutSeconds must be between 1 and 300")
	check(in(cfg.General.MaxConcurrentMessages, 1, 100), "general.maxConcurrentMessages must be between 1 and 100")
	check(in(cfg.Channels.Web.Port, 0, 65535), "channels.web.port must be between 0 and 65535")

	switch cfg.Memory.Backend {
	case "sqlite":
		check(cfg.Memory.DBPath != "", "memory.dbPath is required for the sqlite backend")
	case "memory":
	default:
		check(false, "memory.backend must be one of: sqlite, memory")
	}

	check(cfg.Briefing.RecentWindow >= 1, "briefing.recentWindow must be >= 1")
	check(cfg.Briefing.MaxColors >= 1, "briefing.maxColors must be >= 1")
	check(cfg.Briefing.MaxMessageLength >= 1, "briefing.maxMessageLength must be >= 1")
	check(cfg.Briefing.SessionIdleMinutes >= 1, "briefing.sessionIdleMinutes must be >= 1")
	check(cfg.Briefing.MaxOpenSessions >= 1, "briefing.maxOpenSessions must be >= 1")
	check(cfg.Briefing.RateLimitPerMinute >= 0, "briefing.rateLimitPerMinute must be >= 0")
	check(cfg.Research.TimeoutSeconds >= 1, "research.timeoutSeconds must be >= 1")

	for _, name := range cfg.General.FailoverChain {
		_, ok := cfg.Providers[name]
		check(ok, "general.failoverChain: no provider named %s", name)
	}
	for _, name := range slices.Sorted(maps.Keys(cfg.Providers)) {
		pc := cfg.Providers[name]
		check(pc.Kind == "openai" || pc.Kind == "gemini", "providers.%s: kind must be one of: openai, gemini", name)
		check(!pc.Enabled || pc.APIBase != "", "providers.%s: apiBase is required", name)
	}

	if len(errs) > 0 {
		return errors.New("invalid config:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath replaces a leading "~/" with the home directory.
func ExpandPath(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
