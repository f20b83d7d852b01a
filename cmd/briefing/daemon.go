package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/config"
)

const (
	launchdLabel = "ch.stadthirsch.briefing"
	systemdUnit  = "stadthirsch-briefing.service"
)

// serviceFile is a generated launchd or systemd definition for `briefing serve`.
type serviceFile struct {
	Path    string
	Content []byte
	Hints   []string
}

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the briefing server as a user service (launchd/systemd)",
	}

	var printOnly bool
	install := &cobra.Command{
		Use:   "install",
		Short: "Install a service that runs 'briefing serve' on login",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			sf, err := renderServiceFile(runtime.GOOS, home, execPath, resolveConfigPath())
			if err != nil {
				return err
			}
			if printOnly {
				_, err := cmd.OutOrStdout().Write(sf.Content)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(sf.Path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(sf.Path, sf.Content, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service installed: %s\n", sf.Path)
			for _, h := range sf.Hints {
				fmt.Fprintln(cmd.OutOrStdout(), h)
			}
			return nil
		},
	}
	install.Flags().BoolVar(&printOnly, "print", false, "print the service file instead of installing it")

	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the installed service file",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path, err := servicePath(runtime.GOOS, home)
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove service file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service uninstalled: %s\n", path)
			return nil
		},
	}

	cmd.AddCommand(install, uninstall)
	return cmd
}

func servicePath(goos, home string) (string, error) {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist"), nil
	case "linux":
		return filepath.Join(home, ".config", "systemd", "user", systemdUnit), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", goos)
	}
}

func renderServiceFile(goos, home, execPath, cfgPath string) (*serviceFile, error) {
	path, err := servicePath(goos, home)
	if err != nil {
		return nil, err
	}
	logDir := filepath.Join(config.DefaultConfigDir(), "logs")
	data := map[string]string{
		"Label":  launchdLabel,
		"Exec":   execPath,
		"Config": cfgPath,
		"Log":    filepath.Join(logDir, "briefing.log"),
		"ErrLog": filepath.Join(logDir, "briefing-error.log"),
	}

	sf := &serviceFile{Path: path}
	tmpl := systemdTemplate
	if goos == "darwin" {
		tmpl = launchdTemplate
		sf.Hints = []string{
			"To start: launchctl load " + path,
			"To stop:  launchctl unload " + path,
		}
	} else {
		sf.Hints = []string{
			"To start:  systemctl --user start stadthirsch-briefing",
			"To enable: systemctl --user enable stadthirsch-briefing",
			"To stop:   systemctl --user stop stadthirsch-briefing",
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	sf.Content = buf.Bytes()
	return sf, nil
}

var launchdTemplate = template.Must(template.New("launchd").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.Exec}}</string>
        <string>serve</string>
        <string>--config</string>
        <string>{{.Config}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.Log}}</string>
    <key>StandardErrorPath</key>
    <string>{{.ErrLog}}</string>
</dict>
</plist>
`))

var systemdTemplate = template.Must(template.New("systemd").Parse(`[Unit]
Description=StadtHirsch KI-Briefing
After=network-online.target

[Service]
Type=simple
ExecStart="{{.Exec}}" serve --config "{{.Config}}"
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`))
