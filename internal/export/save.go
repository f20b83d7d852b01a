package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// Format is an export file format.
type Format string

const (
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts docx, md and markdown. Empty means docx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "docx", "word":
		return FormatDOCX, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (use docx or md)", s)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return ContentTypeDOCX
}

// Write renders mem in format f.
func Write(w io.Writer, f Format, mem domain.ConversationMemory, opts Options) error {
	switch f {
	case FormatMarkdown:
		return Markdown(w, mem, opts)
	case FormatDOCX:
		return DOCX(w, mem, opts)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// Save writes the export into dir and returns the file path.
func Save(dir string, f Format, mem domain.ConversationMemory, opts Options) (string, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, FileName(opts, string(f)))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := Write(file, f, mem, opts); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}
