package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/briefing"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/export"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/research"
)

func conversationsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List stored briefing conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.service.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSTAGE\tPROGRESS\tMESSAGES\tUPDATED")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d%%\t%d\t%s\n",
					c.Key, c.Stage, int(c.Confidence*100+0.5), c.MessageCount,
					humanize.Time(c.UpdatedAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of conversations")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		format  string
		client  string
		outDir  string
		website string
		noLog   bool
	)

	cmd := &cobra.Command{
		Use:   "export <conversation-key>",
		Short: "Export a briefing as a Word document or Markdown file",
		Long: `Renders the stored briefing of a conversation into the export directory.
With --website the client's site is analyzed first and the findings are added
to the document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			key := args[0]
			mem, err := a.service.Snapshot(ctx, key)
			if err != nil {
				return err
			}

			opts := export.Options{
				Client:  client,
				Agency:  cfg.Export.Agency,
				Catalog: a.catalog,
				WithLog: !noLog,
			}
			if website != "" {
				rep, err := a.researcher.RunFor(ctx, key, website)
				if err != nil {
					logger.Warn("website research skipped", "url", website, "err", err)
				} else {
					opts.Insights = rep.Insights
				}
			}

			if outDir == "" {
				outDir = cfg.Export.OutputDir
			}
			path, err := export.Save(outDir, f, mem, opts)
			if err != nil {
				return err
			}
			a.events.Emit(bus.Event{Type: bus.EventExportCreated, Source: "cli", Key: key, Payload: map[string]any{"format": string(f), "path": path}})

			fmt.Fprintf(cmd.OutOrStdout(), "Briefing exported: %s\n", path)
			if p := briefing.Analyze(mem); !briefing.Complete(p) {
				fmt.Fprintf(cmd.OutOrStdout(), "Note: the briefing is incomplete, missing %s\n", briefing.FormatMissing(p.MissingFields))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "docx", "document format: docx or md")
	cmd.Flags().StringVar(&client, "client", "", "client name for the title page")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: export.outputDir)")
	cmd.Flags().StringVar(&website, "website", "", "analyze the client's website and add the findings")
	cmd.Flags().BoolVar(&noLog, "no-log", false, "leave out the conversation log")
	return cmd
}

func researchCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "research <url>",
		Short: "Analyze a client website: title, description, colors and images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep, err := newResearcher(cfg, nil, logger).Run(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			fmt.Fprintf(out, "URL:          %s\n", rep.URL)
			fmt.Fprintf(out, "Titel:        %s\n", rep.Analysis.Title)
			fmt.Fprintf(out, "Beschreibung: %s\n", rep.Analysis.Description)
			fmt.Fprintf(out, "Farben:       %v\n", rep.Analysis.Colors)
			fmt.Fprintf(out, "Bilder:       %d (Logo: %t)\n", rep.Analysis.ImageCount, rep.Analysis.HasLogo)
			for _, insight := range rep.Insights {
				fmt.Fprintf(out, "- %s\n", insight)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, storage and provider status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version   %s\n", version)
			fmt.Fprintf(out, "config    %s\n", cfgPath)
			fmt.Fprintf(out, "memory    %s (%s)\n", cfg.Memory.Backend, cfg.Memory.DBPath)

			a, err := newApp(cfg, logger)
			if err != nil {
				fmt.Fprintf(out, "storage   unavailable: %v\n", err)
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			if list, err := a.service.List(ctx, 1000); err != nil {
				fmt.Fprintf(out, "storage   error: %v\n", err)
			} else {
				fmt.Fprintf(out, "briefings %d stored\n", len(list))
			}
			fmt.Fprintf(out, "cases     %d\n", len(a.catalog.List()))

			if a.provider.Len() == 0 {
				fmt.Fprintln(out, "provider  none configured, replies use the fallback text")
				return nil
			}
			if err := a.provider.Healthy(ctx); err != nil {
				fmt.Fprintf(out, "provider  %s unhealthy: %v\n", a.provider.Name(), err)
			} else {
				fmt.Fprintf(out, "provider  %s healthy\n", a.provider.Name())
			}
			return nil
		},
	}
}
