package memory

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// schemaStep is one versioned change to the briefing database. Steps run in
// order, each in its own transaction, and are recorded in schema_version.
type schemaStep struct {
	version int
	name    string
	stmts   []string
}

var schemaSteps = []schemaStep{
	{1, "briefings and their messages", []string{
		`CREATE TABLE IF NOT EXISTS briefings (
			conversation_key TEXT PRIMARY KEY,
			stage            TEXT NOT NULL DEFAULT 'initial',
			confidence       REAL NOT NULL DEFAULT 0,
			missing_fields   TEXT NOT NULL DEFAULT '[]',
			briefing         TEXT NOT NULL DEFAULT '{}',
			last_updated     INTEGER NOT NULL DEFAULT 0,
			created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_briefings_updated ON briefings(last_updated)`,
		`CREATE TABLE IF NOT EXISTS briefing_messages (
			conversation_key TEXT NOT NULL REFERENCES briefings(conversation_key) ON DELETE CASCADE,
			seq              INTEGER NOT NULL,
			id               TEXT NOT NULL,
			role             TEXT NOT NULL,
			content          TEXT NOT NULL,
			timestamp_ms     INTEGER NOT NULL,
			PRIMARY KEY (conversation_key, seq)
		)`,
	}},
	{2, "detected case and client confirmation", []string{
		`ALTER TABLE briefings ADD COLUMN case_id TEXT DEFAULT ''`,
		`ALTER TABLE briefings ADD COLUMN confirmed INTEGER DEFAULT 0`,
	}},
	{3, "provider usage per conversation", []string{
		`CREATE TABLE IF NOT EXISTS llm_usage (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_key TEXT NOT NULL,
			provider         TEXT NOT NULL,
			tokens_in        INTEGER DEFAULT 0,
			tokens_out       INTEGER DEFAULT 0,
			latency_ms       INTEGER DEFAULT 0,
			created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_llm_usage_key ON llm_usage(conversation_key)`,
	}},
}

// latestSchema is the version a fully migrated database reports.
var latestSchema = schemaSteps[len(schemaSteps)-1].version

// Migrate brings db up to latestSchema. Statements whose effect is already
// present, such as a column added by hand, are skipped so that databases
// from older builds upgrade cleanly.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version     INTEGER PRIMARY KEY,
		description TEXT,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	for _, step := range schemaSteps {
		if step.version <= current {
			continue
		}
		if err := applyStep(db, step, logger); err != nil {
			return fmt.Errorf("schema v%d (%s): %w", step.version, step.name, err)
		}
		logger.Info("schema migrated", "version", step.version, "change", step.name)
	}
	return nil
}

func applyStep(db *sql.DB, step schemaStep, logger *slog.Logger) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range step.stmts {
		_, err := tx.Exec(stmt)
		switch {
		case err == nil:
		case alreadyApplied(err):
			logger.Debug("schema statement already applied", "version", step.version, "stmt", firstLine(stmt))
		default:
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)`,
		step.version, step.name); err != nil {
		return err
	}
	return tx.Commit()
}

func alreadyApplied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stmt), "\n")
	return line
}

// SchemaVersion returns the highest applied version, 0 for a new database.
func SchemaVersion(db *sql.DB) (int, error) {
	var v sql.NullInt64
	err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}
