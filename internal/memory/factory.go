package memory

import (
	"fmt"
	"log/slog"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// Open builds the store selected by backend ("sqlite" or "memory").
func Open(backend, dbPath string, logger *slog.Logger) (domain.MemoryStore, error) {
	switch backend {
	case "", "sqlite":
		return NewSQLiteStore(dbPath, logger)
	case "memory":
		return NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", backend)
	}
}
