package main

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/config"
)

// backupEntry is one file in a backup archive. Name is the archive path:
// "config.json", "briefings.db[-wal|-shm]" or "cases/<file>".
type backupEntry struct {
	Name string
	Path string
}

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of the briefing data (database, config, cases)",
		Long: `Creates a compressed .tar.gz archive containing the SQLite database,
the configuration file and the custom case files. The backup is timestamped
by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}

			if outputPath == "" {
				backupDir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("briefing-backup-%s.tar.gz", ts))
			}

			entries := backupEntries(cfgPath, cfg)
			if len(entries) == 0 {
				return fmt.Errorf("no files to backup (db: %s, config: %s)", cfg.Memory.DBPath, cfgPath)
			}
			if err := createTarGz(outputPath, entries); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backup created: %s\n", outputPath)
			fmt.Fprintf(out, "Files included: %d\n", len(entries))
			for _, e := range entries {
				var size int64
				if info, err := os.Stat(e.Path); err == nil {
					size = info.Size()
				}
				fmt.Fprintf(out, "  - %s (%s)\n", e.Name, humanize.IBytes(uint64(size)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: ~/.stadthirsch/backups/briefing-backup-<timestamp>.tar.gz)")
	return cmd
}

// backupEntries lists the existing files worth backing up.
func backupEntries(cfgPath string, cfg *config.Config) []backupEntry {
	var entries []backupEntry
	exists := func(p string) bool {
		info, err := os.Stat(p)
		return err == nil && !info.IsDir()
	}

	if db := cfg.Memory.DBPath; cfg.Memory.Backend != "memory" && exists(db) {
		base := filepath.Base(db)
		entries = append(entries, backupEntry{Name: base, Path: db})
		for _, suffix := range []string{"-wal", "-shm"} {
			if exists(db + suffix) {
				entries = append(entries, backupEntry{Name: base + suffix, Path: db + suffix})
			}
		}
	}
	if exists(cfgPath) {
		entries = append(entries, backupEntry{Name: "config.json", Path: cfgPath})
	}
	if dir := cfg.Briefing.CasesDir; dir != "" {
		files, _ := os.ReadDir(dir)
		for _, f := range files {
			ext := strings.ToLower(filepath.Ext(f.Name()))
			if f.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			entries = append(entries, backupEntry{Name: "cases/" + f.Name(), Path: filepath.Join(dir, f.Name())})
		}
	}
	return entries
}

func restoreCmd() *cobra.Command {
	var inputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore briefing data from a backup archive",
		Long: `Restores the SQLite database, the configuration file and the case files
from a .tar.gz backup archive created by 'briefing backup'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" && len(args) > 0 {
				inputPath = args[0]
			}
			if inputPath == "" {
				return fmt.Errorf("specify a backup file: briefing restore <file.tar.gz>")
			}

			cfgPath := resolveConfigPath()
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			targets := restoreTargets{
				dbPath:   cfg.Memory.DBPath,
				cfgPath:  cfgPath,
				casesDir: cfg.Briefing.CasesDir,
			}

			if !force {
				_, dbErr := os.Stat(targets.dbPath)
				_, cfgErr := os.Stat(targets.cfgPath)
				if dbErr == nil || cfgErr == nil {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "WARNING: This will overwrite existing data.\n")
					fmt.Fprintf(out, "  Database: %s\n", targets.dbPath)
					fmt.Fprintf(out, "  Config:   %s\n", targets.cfgPath)
					fmt.Fprintf(out, "Use --force to skip this warning.\n")
					return fmt.Errorf("restore aborted (use --force to proceed)")
				}
			}

			restored, err := extractTarGz(inputPath, targets)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Restore completed from: %s\n", inputPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Files restored: %d\n", len(restored))
			for _, f := range restored {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "backup file to restore from")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data without warning")
	return cmd
}

// createTarGz creates a .tar.gz archive from the given entries.
func createTarGz(outputPath string, entries []backupEntry) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	tarWriter := tar.NewWriter(gzWriter)

	for _, e := range entries {
		if err := addFileToTar(tarWriter, e); err != nil {
			return fmt.Errorf("add %s: %w", e.Path, err)
		}
	}
	if err := tarWriter.Close(); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}
	return outFile.Close()
}

func addFileToTar(tw *tar.Writer, e backupEntry) error {
	file, err := os.Open(e.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = e.Name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, file)
	return err
}

type restoreTargets struct {
	dbPath   string
	cfgPath  string
	casesDir string
}

// target maps an archive path to its destination. Unknown entries and
// entries that would escape the target directories are skipped.
func (t restoreTargets) target(name string) (string, bool) {
	name = path.Clean(name)
	base := path.Base(name)
	switch {
	case name == "config.json":
		return t.cfgPath, true
	case strings.HasPrefix(name, "cases/") && path.Dir(name) == "cases" && t.casesDir != "":
		return filepath.Join(t.casesDir, base), true
	case path.Dir(name) != ".":
		return "", false
	case strings.HasSuffix(base, ".db"):
		return t.dbPath, true
	case strings.HasSuffix(base, ".db-wal"):
		return t.dbPath + "-wal", true
	case strings.HasSuffix(base, ".db-shm"):
		return t.dbPath + "-shm", true
	default:
		return "", false
	}
}

// extractTarGz restores the known files of a backup archive.
func extractTarGz(archivePath string, t restoreTargets) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("not a valid gzip file: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	var restored []string

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		targetPath, ok := t.target(header.Name)
		if !ok {
			logger.Warn("skipping unknown backup entry", "name", header.Name)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return nil, err
		}
		outFile, err := os.Create(targetPath)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", targetPath, err)
		}
		if _, err := io.Copy(outFile, tarReader); err != nil {
			outFile.Close()
			return nil, fmt.Errorf("extract %s: %w", targetPath, err)
		}
		if err := outFile.Close(); err != nil {
			return nil, err
		}
		restored = append(restored, targetPath)
	}

	return restored, nil
}
