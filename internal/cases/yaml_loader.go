package cases

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromDirectory reads the custom cases in dir, one per .yaml or .yml
// file, in file name order. A missing directory holds no cases. Files that
// cannot be read or parsed are logged and skipped.
func LoadFromDirectory(dir string, logger *slog.Logger) ([]Case, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("no cases directory", "dir", dir)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("cases dir: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("cases dir %s is not a directory", dir)
	}
	return loadCases(os.DirFS(dir), logger)
}

func loadCases(fsys fs.FS, logger *slog.Logger) ([]Case, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read cases dir: %w", err)
	}
	var out []Case
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || !slices.Contains([]string{".yaml", ".yml"}, strings.ToLower(ext)) {
			continue
		}
		c, err := readCase(fsys, e.Name())
		if err != nil {
			logger.Warn("case file skipped", "file", e.Name(), "err", err)
			continue
		}
		if c.ID == "" {
			c.ID = strings.TrimSuffix(e.Name(), ext)
		}
		if len(c.Keywords) == 0 {
			logger.Warn("case has no keywords and is never detected", "id", c.ID)
		}
		logger.Debug("case loaded", "id", c.ID, "file", e.Name())
		out = append(out, c)
	}
	return out, nil
}

func readCase(fsys fs.FS, name string) (Case, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return Case{}, err
	}
	defer f.Close()
	var c Case
	if err := yaml.NewDecoder(f).Decode(&c); err != nil {
		return Case{}, fmt.Errorf("parse: %w", err)
	}
	return c, nil
}
