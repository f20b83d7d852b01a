package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/agent"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/channel"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"gateway"},
		Short:   "Start the web API, the Telegram bot and the briefing loop",
		Long:    "Starts all enabled channels (Web, Telegram) and the briefing loop. Press Ctrl+C to stop.",
		RunE:    runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	log, closer, err := setupLogger(cfg.General, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	a.checkProvider(ctx)

	// Message bus for the chat channels, closed during shutdown below.
	messageBus := bus.New(100, logger)

	loop := agent.NewLoop(agent.LoopConfig{
		Service:     a.service,
		Bus:         messageBus,
		Logger:      logger,
		Concurrency: cfg.General.MaxConcurrentMessages,
	})
	go loop.Run(ctx)

	var (
		channels []domain.Channel
		wg       sync.WaitGroup
	)
	start := func(ch domain.Channel) {
		channels = append(channels, ch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ch.Start(ctx, messageBus); err != nil {
				logger.Error("channel error", "channel", ch.Name(), "err", err)
			}
		}()
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		start(channel.NewTelegram(channel.TelegramConfig{
			Token:       cfg.Channels.Telegram.Token,
			AllowFrom:   cfg.Channels.Telegram.AllowFrom,
			ParseMode:   cfg.Channels.Telegram.ParseMode,
			Transcriber: a.transcriber,
			Logger:      logger,
		}))
		logger.Info("telegram channel enabled")
	} else {
		logger.Info("telegram channel disabled")
	}

	if cfg.Channels.Web.Enabled {
		webCfg := channel.WebConfig{
			Host:        cfg.Channels.Web.Host,
			Port:        cfg.Channels.Web.Port,
			APIKey:      cfg.Channels.Web.APIKey,
			Version:     version,
			Service:     a.service,
			Researcher:  a.researcher,
			Transcriber: a.transcriber,
			Events:      a.events,
			Agency:      cfg.Export.Agency,
			Config:      cfg,
			Logger:      logger,
		}
		if cfg.Metrics.Enabled {
			webCfg.Metrics = metrics.Collector.Handler()
			webCfg.MetricsAt = cfg.Metrics.Endpoint
		}
		start(channel.NewWeb(webCfg))
	}

	if len(channels) == 0 {
		return fmt.Errorf("no channel enabled: enable channels.web or channels.telegram")
	}
	logger.Info("briefing system started. Press Ctrl+C to stop.", "version", version)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ch := range channels {
			if err := ch.Stop(); err != nil {
				logger.Warn("channel stop failed", "channel", ch.Name(), "err", err)
			}
		}
		wg.Wait()
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

func chatCmd() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run a briefing conversation in the terminal",
		Long: `Starts an interactive briefing in the terminal. Conversations are stored
under the key "cli:<session>" and continue where they left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			// The terminal belongs to the conversation; logs go to the log file
			// or are limited to warnings.
			general := cfg.General
			if general.LogFile == "" {
				general.LogLevel = "warn"
			}
			log, closer, err := setupLogger(general, os.Stderr)
			if err != nil {
				return err
			}
			defer closer.Close()
			logger = log

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			messageBus := bus.New(100, logger)
			defer messageBus.Close()

			loop := agent.NewLoop(agent.LoopConfig{
				Service:     a.service,
				Bus:         messageBus,
				Logger:      logger,
				Concurrency: 1,
			})
			go loop.Run(ctx)

			cli := channel.NewCLI(channel.CLIConfig{
				Logger:  logger,
				In:      cmd.InOrStdin(),
				Out:     cmd.OutOrStdout(),
				ChatID:  session,
				Spinner: true,
			})
			return cli.Start(ctx, messageBus)
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "direct", "conversation to continue")
	return cmd
}
