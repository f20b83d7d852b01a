package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			LogFormat:             "text",
			DefaultProvider:       "openrouter",
			FailoverChain:         []string{"openrouter", "gemini"},
			AITimeoutSeconds:      25,
			MaxConcurrentMessages: 5,
		},
		Providers: map[string]ProviderConfig{
			"openrouter": {
				Enabled:      true,
				Kind:         "openai",
				APIBase:      "https://openrouter.ai/api/v1",
				APIKey:       "${OPENROUTER_API_KEY}",
				DefaultModel: "moonshotai/kimi-k2.5",
				Temperature:  0.7,
				MaxTokens:    2000,
				Referer:      "https://stadthirsch-briefing-system.vercel.app",
				Title:        "StadtHirsch KI-Briefing",
			},
			"gemini": {
				Enabled:      true,
				Kind:         "gemini",
				APIBase:      "https://generativelanguage.googleapis.com/v1beta",
				APIKey:       "${GEMINI_API_KEY}",
				DefaultModel: "gemini-2.0-flash",
				Temperature:  0.7,
				MaxTokens:    2000,
			},
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				Token:     "${TELEGRAM_BOT_TOKEN}",
				ParseMode: "Markdown",
			},
			Web: WebConfig{
				Enabled: true,
				Host:    "127.0.0.1",
				Port:    8080,
			},
			CLI: CLIConfig{
				Enabled: false,
			},
		},
		Memory: MemoryConfig{
			Backend: "sqlite",
			DBPath:  "~/.stadthirsch/briefings.db",
		},
		Briefing: BriefingConfig{
			RecentWindow:       10,
			MaxColors:          6,
			MaxMessageLength:   8000,
			CasesDir:           "~/.stadthirsch/cases",
			RateLimitPerMinute: 20,
			SessionIdleMinutes: 30,
			MaxOpenSessions:    1000,
		},
		Research: ResearchConfig{
			TimeoutSeconds: 10,
			Render:         false,
			ProfileDir:     "~/.stadthirsch/browser",
			MaxBytes:       2 << 20,
		},
		Voice: VoiceConfig{
			Enabled:  true,
			APIBase:  "https://api.openai.com/v1",
			APIKey:   "${OPENAI_API_KEY}",
			Model:    "whisper-1",
			Language: "de",
		},
		Export: ExportConfig{
			OutputDir: "~/.stadthirsch/exports",
			Agency:    "StadtHirsch",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
