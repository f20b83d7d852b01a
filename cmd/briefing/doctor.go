package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/cases"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the installation",
		Long: `Verifies that configuration, database, providers, case files and
directories are set up correctly. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.OutOrStdout(), resolveConfigPath())
		},
	}
}

type doctorReport struct {
	out                    io.Writer
	passed, warned, failed int
}

func (r *doctorReport) pass(check, detail string) {
	fmt.Fprintf(r.out, "  [PASS] %-20s %s\n", check, detail)
	r.passed++
}

func (r *doctorReport) warn(check, detail string) {
	fmt.Fprintf(r.out, "  [WARN] %-20s %s\n", check, detail)
	r.warned++
}

func (r *doctorReport) fail(check, detail string) {
	fmt.Fprintf(r.out, "  [FAIL] %-20s %s\n", check, detail)
	r.failed++
}

func runDoctor(out io.Writer, cfgPath string) error {
	r := &doctorReport{out: out}
	fmt.Fprintf(out, "StadtHirsch Briefing Doctor v%s\n", version)
	fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	if _, err := os.Stat(cfgPath); err != nil {
		r.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
		fmt.Fprintf(out, "\nRun 'briefing init' to create a default configuration.\n")
		return fmt.Errorf("config file missing")
	}
	r.pass("Config file", cfgPath)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		r.fail("Config validation", err.Error())
		return r.summary()
	}
	r.pass("Config validation", "valid")

	if cfg.Memory.Backend == "memory" {
		r.warn("Database", "memory backend, briefings are lost on restart")
	} else if err := checkDatabase(cfg.Memory.DBPath); err != nil {
		r.fail("Database", err.Error())
	} else {
		r.pass("Database", cfg.Memory.DBPath)
	}

	usable := 0
	for name, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		if p.APIKey == "" {
			r.warn("Provider: "+name, "enabled but no API key configured")
			continue
		}
		usable++
		r.pass("Provider: "+name, p.DefaultModel)
	}
	if usable == 0 {
		r.warn("Providers", "no usable provider, replies use the fallback text")
	}

	if cfg.Briefing.CasesDir != "" {
		extra, err := cases.LoadFromDirectory(cfg.Briefing.CasesDir, logger)
		if err != nil {
			r.fail("Cases", err.Error())
		} else {
			r.pass("Cases", fmt.Sprintf("%d custom case(s) in %s", len(extra), cfg.Briefing.CasesDir))
		}
	}

	if err := checkWritableDir(cfg.Export.OutputDir); err != nil {
		r.fail("Export directory", err.Error())
	} else {
		r.pass("Export directory", cfg.Export.OutputDir)
	}

	if cfg.Channels.Web.Enabled {
		if err := checkPort(cfg.Channels.Web.Host, cfg.Channels.Web.Port); err != nil {
			r.warn("Web port", fmt.Sprintf("port %d may be in use: %v", cfg.Channels.Web.Port, err))
		} else {
			r.pass("Web port", fmt.Sprintf("%s:%d available", cfg.Channels.Web.Host, cfg.Channels.Web.Port))
		}
		if cfg.Channels.Web.APIKey == "" && cfg.Channels.Web.Host != "127.0.0.1" && cfg.Channels.Web.Host != "localhost" {
			r.warn("Web auth", "API reachable from the network without an API key")
		}
	}
	if cfg.Channels.Telegram.Enabled {
		if cfg.Channels.Telegram.Token == "" {
			r.fail("Telegram", "enabled but no bot token configured")
		} else {
			r.pass("Telegram", fmt.Sprintf("%d allowed user(s)", len(cfg.Channels.Telegram.AllowFrom)))
		}
	}

	if cfg.General.LogFile != "" {
		if err := checkWritableDir(filepath.Dir(cfg.General.LogFile)); err != nil {
			r.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
		} else {
			r.pass("Log file", cfg.General.LogFile)
		}
	}

	return r.summary()
}

func (r *doctorReport) summary() error {
	fmt.Fprintf(r.out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(r.out, "Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		fmt.Fprintf(r.out, "\nPlease fix the failed checks before starting the briefing system.\n")
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	if r.warned > 0 {
		fmt.Fprintf(r.out, "\nThe briefing system should work but consider fixing the warnings.\n")
	} else {
		fmt.Fprintf(r.out, "\nAll checks passed!\n")
	}
	return nil
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")
	return nil
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return err
	}
	return ln.Close()
}
