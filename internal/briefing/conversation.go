package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

const (
	DefaultRecentWindow     = 10
	DefaultMaxMessageLength = 8000
)

// ConversationConfig configures a Conversation.
type ConversationConfig struct {
	Key              string             // generated when empty
	Store            domain.MemoryStore // nil keeps state in process only
	Extractor        *Extractor
	Logger           *slog.Logger
	RecentWindow     int
	MaxMessageLength int // applies to user messages
	Clock            func() time.Time
	// OnPersistError is called after a failed load, save or delete.
	OnPersistError func(key string, err error)
}

// Conversation owns the memory of one briefing conversation. It applies
// extraction and analysis on every user message and writes through to the
// store after every mutation. Store failures are logged, never returned.
type Conversation struct {
	mu        sync.Mutex
	key       string
	mem       domain.ConversationMemory
	store     domain.MemoryStore
	extractor *Extractor
	logger    *slog.Logger
	window    int
	maxLen    int
	now       func() time.Time
	onErr     func(string, error)
}

// NewKey returns a fresh, time-ordered conversation key.
func NewKey() string {
	return "project_" + newID()
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Open restores the conversation stored under cfg.Key or starts an empty one.
func Open(ctx context.Context, cfg ConversationConfig) *Conversation {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = defaultExtractor
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = DefaultRecentWindow
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Key == "" {
		cfg.Key = NewKey()
	}

	c := &Conversation{
		key:       cfg.Key,
		store:     cfg.Store,
		extractor: cfg.Extractor,
		logger:    cfg.Logger.With("conversation", cfg.Key),
		window:    cfg.RecentWindow,
		maxLen:    cfg.MaxMessageLength,
		now:       cfg.Clock,
		onErr:     cfg.OnPersistError,
		mem:       domain.NewConversationMemory(cfg.Clock()),
	}
	c.load(ctx)
	return c
}

func (c *Conversation) load(ctx context.Context) {
	if c.store == nil {
		return
	}
	stored, err := c.store.LoadMemory(ctx, c.key)
	if err != nil {
		c.persistFailed("load", err)
		return
	}
	if stored == nil {
		return
	}
	mem := stored.Clone()
	p := Analyze(mem)
	mem.Stage, mem.MissingFields, mem.Confidence = p.Stage, p.MissingFields, p.Confidence
	c.mem = mem
	c.logger.Debug("conversation restored", "messages", len(mem.Messages), "stage", mem.Stage)
}

// Key returns the persistence key of the conversation.
func (c *Conversation) Key() string { return c.key }

// AddMessage appends a message. User messages run through extraction and
// analysis before the memory is saved. Only malformed input is rejected.
func (c *Conversation) AddMessage(ctx context.Context, role domain.Role, content string) (domain.ConversationMessage, error) {
	if err := c.validate(role, content); err != nil {
		return domain.ConversationMessage{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UnixMilli()
	if n := len(c.mem.Messages); n > 0 && c.mem.Messages[n-1].Timestamp > ts {
		ts = c.mem.Messages[n-1].Timestamp
	}
	msg := domain.ConversationMessage{
		ID:        newID(),
		Role:      role,
		Content:   content,
		Timestamp: ts,
	}
	c.mem.Messages = append(c.mem.Messages, msg)

	if role == domain.RoleUser {
		u := c.extractor.Extract(content, c.mem.Briefing)
		if !u.Empty() {
			c.mem.Briefing = Merge(c.mem.Briefing, u)
			c.logger.Debug("briefing updated", "fields", u.Fields())
		}
	}
	p := Analyze(c.mem)
	c.mem.Stage, c.mem.MissingFields, c.mem.Confidence = p.Stage, p.MissingFields, p.Confidence
	c.mem.LastUpdated = ts

	c.save(ctx)
	return msg, nil
}

func (c *Conversation) validate(role domain.Role, content string) error {
	return ValidateMessage(role, content, c.maxLen)
}

// ValidateMessage reports whether content may be appended as a role turn.
// maxLen limits user messages in characters; zero means the default limit.
func ValidateMessage(role domain.Role, content string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrMalformedInput, role)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty message", domain.ErrMalformedInput)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%w: message is not valid UTF-8", domain.ErrMalformedInput)
	}
	if n := utf8.RuneCountInString(content); role == domain.RoleUser && n > maxLen {
		return fmt.Errorf("%w: message has %d characters, limit is %d", domain.ErrMalformedInput, n, maxLen)
	}
	return nil
}

// ContextForAI returns the prompt projection without mutating state.
func (c *Conversation) ContextForAI() AIContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.mem.Messages
	if len(msgs) > c.window {
		msgs = msgs[len(msgs)-c.window:]
	}
	recent := make([]domain.ConversationMessage, len(msgs))
	copy(recent, msgs)

	missing := make([]domain.Field, len(c.mem.MissingFields))
	copy(missing, c.mem.MissingFields)

	return AIContext{
		RecentMessages:  recent,
		BriefingSummary: FormatBriefing(c.mem.Briefing),
		Stage:           c.mem.Stage,
		MissingFields:   missing,
		Confidence:      c.mem.Confidence,
		MessageCount:    len(c.mem.Messages),
		CaseID:          c.mem.CaseID,
	}
}

// IsComplete reports whether confidence reached the threshold and no
// checklist field is missing.
func (c *Conversation) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Complete(Progress{Confidence: c.mem.Confidence, MissingFields: c.mem.MissingFields})
}

// Confirm records the client's approval of a complete briefing.
func (c *Conversation) Confirm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !Complete(Progress{Confidence: c.mem.Confidence, MissingFields: c.mem.MissingFields}) {
		return fmt.Errorf("confirm %s: %w (missing %s)", c.key, domain.ErrBriefingIncomplete, FormatMissing(c.mem.MissingFields))
	}
	if c.mem.Confirmed {
		return nil
	}
	c.mem.Confirmed = true
	c.mem.Stage = Analyze(c.mem).Stage
	c.mem.LastUpdated = max(c.now().UnixMilli(), c.mem.LastUpdated)
	c.save(ctx)
	return nil
}

// SetCase records the detected case once. Later calls keep the first value.
func (c *Conversation) SetCase(ctx context.Context, caseID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caseID == "" || c.mem.CaseID != "" {
		return false
	}
	c.mem.CaseID = caseID
	c.save(ctx)
	return true
}

// Reset discards all messages and fields and deletes the stored copy.
func (c *Conversation) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem = domain.NewConversationMemory(c.now())
	if c.store == nil {
		return
	}
	if err := c.store.DeleteMemory(ctx, c.key); err != nil {
		c.persistFailed("delete", err)
	}
}

// Briefing returns a copy of the current briefing.
func (c *Conversation) Briefing() domain.BriefingContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.Briefing.Clone()
}

// Snapshot returns a deep copy of the whole memory. It is the input for
// document export.
func (c *Conversation) Snapshot() domain.ConversationMemory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.Clone()
}

// save must be called with c.mu held.
func (c *Conversation) save(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveMemory(ctx, c.key, c.mem.Clone()); err != nil {
		c.persistFailed("save", err)
	}
}

func (c *Conversation) persistFailed(op string, err error) {
	c.logger.Warn("memory store unavailable, continuing in memory", "op", op, "err", err)
	if c.onErr != nil {
		c.onErr(c.key, fmt.Errorf("%s: %w: %w", op, domain.ErrPersistenceUnavailable, err))
	}
}
