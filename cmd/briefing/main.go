package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/cases"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/config"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "briefing",
		Short:        "StadtHirsch KI-Briefing: conversational project briefings",
		Long:         "Collects design project briefings in a guided conversation over Web, Telegram and CLI and exports them as documents.",
		SilenceUsage: true,
		Version:      version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.stadthirsch/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(conversationsCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(researchCmd())
	root.AddCommand(casesCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(daemonCmd())
	root.AddCommand(configCmd())
	return root
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return config.ExpandPath(configPath)
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file. With fallback set, a missing or invalid
// file yields the defaults instead of an error.
func loadConfig(fallback bool) (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err == nil {
		return cfg, nil
	}
	if !fallback {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
	cfg = config.Defaults()
	cfg.Memory.DBPath = config.ExpandPath(cfg.Memory.DBPath)
	cfg.Briefing.CasesDir = config.ExpandPath(cfg.Briefing.CasesDir)
	cfg.Research.ProfileDir = config.ExpandPath(cfg.Research.ProfileDir)
	cfg.Export.OutputDir = config.ExpandPath(cfg.Export.OutputDir)
	return cfg, nil
}

// setupLogger replaces the bootstrap logger with one built from the general
// section. The returned closer releases the log file, if any.
func setupLogger(cfg config.GeneralConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := stderr
	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(out, opts)), closer, nil
	}
	return slog.New(slog.NewTextHandler(out, opts)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the data directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}

			dirs := []string{
				filepath.Dir(config.ExpandPath(cfg.Memory.DBPath)),
				config.ExpandPath(cfg.Briefing.CasesDir),
				config.ExpandPath(cfg.Export.OutputDir),
			}
			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := writeCaseExample(config.ExpandPath(cfg.Briefing.CasesDir)); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "cases", cfg.Briefing.CasesDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

const caseExample = `# Additional briefing cases are loaded from *.yaml files in this directory.
# Built-in cases with the same id are replaced.
id: verpackung
name: Verpackungsdesign
description: Gestaltung von Produktverpackungen
keywords: [verpackung, packaging, etikett]
questions:
  - Welches Produkt soll verpackt werden?
  - Wo wird das Produkt verkauft?
  - Gibt es technische Vorgaben der Druckerei?
template: packaging
`

// writeCaseExample seeds the cases directory with a disabled example.
func writeCaseExample(dir string) error {
	path := filepath.Join(dir, "verpackung.yaml.example")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(caseExample), 0o644)
}

func casesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cases",
		Short: "List the briefing cases, including those from the cases directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range catalog.List() {
				fmt.Fprintf(out, "%-12s %s\n", c.ID, c.Name)
				if len(c.Keywords) > 0 {
					fmt.Fprintf(out, "%-12s keywords: %s\n", "", strings.Join(c.Keywords, ", "))
				}
			}
			return nil
		},
	}
}

// loadCatalog returns the built-in cases merged with the cases directory.
func loadCatalog(cfg *config.Config, logger *slog.Logger) (*cases.Catalog, error) {
	catalog := cases.DefaultCatalog(logger)
	if cfg.Briefing.CasesDir == "" {
		return catalog, nil
	}
	extra, err := cases.LoadFromDirectory(cfg.Briefing.CasesDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	catalog.Merge(extra)
	return catalog, nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. briefing.maxColors)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. general.defaultProvider gemini)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(config.ListPaths(config.Sanitize(cfg)), "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath())
		},
	})

	return cmd
}
