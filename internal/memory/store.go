// Package memory provides persistence adapters for briefing conversations.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// SQLiteStore implements domain.MemoryStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// LoadMemory returns (nil, nil) when nothing is stored under key.
func (s *SQLiteStore) LoadMemory(ctx context.Context, key string) (*domain.ConversationMemory, error) {
	var (
		mem           domain.ConversationMemory
		stage, caseID sql.NullString
		missingJSON   string
		briefingJSON  string
		confirmed     int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT stage, confidence, missing_fields, briefing, last_updated, case_id, confirmed
		 FROM briefings WHERE conversation_key = ?`, key,
	).Scan(&stage, &mem.Confidence, &missingJSON, &briefingJSON, &mem.LastUpdated, &caseID, &confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load briefing %s: %w", key, err)
	}
	mem.Stage = domain.Stage(stage.String)
	mem.CaseID = caseID.String
	mem.Confirmed = confirmed != 0
	if err := json.Unmarshal([]byte(missingJSON), &mem.MissingFields); err != nil {
		return nil, fmt.Errorf("decode missing fields %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(briefingJSON), &mem.Briefing); err != nil {
		return nil, fmt.Errorf("decode briefing %s: %w", key, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, timestamp_ms FROM briefing_messages
		 WHERE conversation_key = ? ORDER BY seq`, key,
	)
	if err != nil {
		return nil, fmt.Errorf("load messages %s: %w", key, err)
	}
	defer rows.Close()

	mem.Messages = []domain.ConversationMessage{}
	for rows.Next() {
		var m domain.ConversationMessage
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		mem.Messages = append(mem.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if mem.MissingFields == nil {
		mem.MissingFields = []domain.Field{}
	}
	return &mem, nil
}

// SaveMemory writes the whole aggregate in one transaction. Messages are
// append-only, so only rows past the stored prefix are inserted.
func (s *SQLiteStore) SaveMemory(ctx context.Context, key string, mem domain.ConversationMemory) error {
	missingJSON, err := json.Marshal(nonNilFields(mem.MissingFields))
	if err != nil {
		return err
	}
	briefingJSON, err := json.Marshal(mem.Briefing)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", key, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO briefings (conversation_key, stage, confidence, missing_fields, briefing, last_updated, case_id, confirmed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_key) DO UPDATE SET
		   stage=excluded.stage, confidence=excluded.confidence, missing_fields=excluded.missing_fields,
		   briefing=excluded.briefing, last_updated=excluded.last_updated,
		   case_id=excluded.case_id, confirmed=excluded.confirmed`,
		key, string(mem.Stage), mem.Confidence, string(missingJSON), string(briefingJSON),
		mem.LastUpdated, mem.CaseID, boolToInt(mem.Confirmed),
	); err != nil {
		return fmt.Errorf("save briefing %s: %w", key, err)
	}

	start, err := storedPrefix(ctx, tx, key, mem.Messages)
	if err != nil {
		return err
	}
	for i := start; i < len(mem.Messages); i++ {
		m := mem.Messages[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO briefing_messages (conversation_key, seq, id, role, content, timestamp_ms)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			key, i, m.ID, string(m.Role), m.Content, m.Timestamp,
		); err != nil {
			return fmt.Errorf("save message %s/%d: %w", key, i, err)
		}
	}
	return tx.Commit()
}

// storedPrefix returns how many leading messages are already stored. When the
// stored rows are not a prefix of msgs they are dropped and 0 is returned.
func storedPrefix(ctx context.Context, tx *sql.Tx, key string, msgs []domain.ConversationMessage) (int, error) {
	var n int
	var lastID sql.NullString
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), (SELECT id FROM briefing_messages WHERE conversation_key = ? ORDER BY seq DESC LIMIT 1)
		 FROM briefing_messages WHERE conversation_key = ?`, key, key,
	).Scan(&n, &lastID); err != nil {
		return 0, fmt.Errorf("count messages %s: %w", key, err)
	}
	if n == 0 {
		return 0, nil
	}
	if n <= len(msgs) && msgs[n-1].ID == lastID.String {
		return n, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM briefing_messages WHERE conversation_key = ?`, key); err != nil {
		return 0, fmt.Errorf("rewrite messages %s: %w", key, err)
	}
	return 0, nil
}

func (s *SQLiteStore) DeleteMemory(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM briefing_messages WHERE conversation_key = ?`, key); err != nil {
		return fmt.Errorf("delete messages %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM briefings WHERE conversation_key = ?`, key); err != nil {
		return fmt.Errorf("delete briefing %s: %w", key, err)
	}
	return tx.Commit()
}

// ListConversations returns the most recently updated conversations first.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]domain.ConversationSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.conversation_key, b.stage, b.confidence, b.case_id, b.last_updated,
		        (SELECT COUNT(*) FROM briefing_messages m WHERE m.conversation_key = b.conversation_key)
		 FROM briefings b ORDER BY b.last_updated DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ConversationSummary
	for rows.Next() {
		var (
			sum     domain.ConversationSummary
			caseID  sql.NullString
			updated int64
		)
		if err := rows.Scan(&sum.Key, &sum.Stage, &sum.Confidence, &caseID, &updated, &sum.MessageCount); err != nil {
			return nil, err
		}
		sum.CaseID = caseID.String
		sum.UpdatedAt = time.UnixMilli(updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// RecordUsage stores token usage of one LLM call.
func (s *SQLiteStore) RecordUsage(ctx context.Context, key, provider string, usage domain.Usage, latencyMs int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_usage (conversation_key, provider, tokens_in, tokens_out, latency_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		key, provider, usage.PromptTokens, usage.CompletionTokens, latencyMs,
	)
	return err
}

// UsageTotals sums recorded tokens per provider.
func (s *SQLiteStore) UsageTotals(ctx context.Context) (map[string]domain.Usage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, COALESCE(SUM(tokens_in), 0), COALESCE(SUM(tokens_out), 0)
		 FROM llm_usage GROUP BY provider`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.Usage)
	for rows.Next() {
		var p string
		var u domain.Usage
		if err := rows.Scan(&p, &u.PromptTokens, &u.CompletionTokens); err != nil {
			return nil, err
		}
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
		out[p] = u
	}
	return out, rows.Err()
}

// DB exposes the handle for backups and diagnostics.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nonNilFields(f []domain.Field) []domain.Field {
	if f == nil {
		return []domain.Field{}
	}
	return f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
