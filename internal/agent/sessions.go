package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/briefing"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/memory"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/metrics"
)

// SessionsConfig configures the conversation registry.
type SessionsConfig struct {
	Store            domain.MemoryStore // in-memory store when nil
	Extractor        *briefing.Extractor
	RecentWindow     int
	MaxMessageLength int
	Logger           *slog.Logger
	OnPersistError   func(key string, err error)

	// Open conversations unused for IdleTimeout are dropped from memory and
	// reloaded from the store on their next turn. MaxOpen caps how many stay
	// open; the least recently used idle ones go first.
	IdleTimeout time.Duration
	MaxOpen     int
	Clock       func() time.Time
}

const (
	DefaultSessionIdleTimeout = 30 * time.Minute
	DefaultMaxOpenSessions    = 1000
)

// Sessions holds the open conversations. Each key has its own lock, so a
// conversation has a single writer while different keys run in parallel.
type Sessions struct {
	cfg    SessionsConfig
	logger *slog.Logger
	mu     sync.Mutex
	open   map[string]*session
}

type session struct {
	mu       sync.Mutex
	conv     *briefing.Conversation
	refs     int // holders between Acquire and release, guarded by Sessions.mu
	lastUsed time.Time
}

func NewSessions(cfg SessionsConfig) *Sessions {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store == nil {
		cfg.Store = memory.NewInMemoryStore()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultSessionIdleTimeout
	}
	if cfg.MaxOpen <= 0 {
		cfg.MaxOpen = DefaultMaxOpenSessions
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Sessions{
		cfg:    cfg,
		logger: cfg.Logger,
		open:   make(map[string]*session),
	}
}

// get returns the session of key with a reference taken for the caller.
func (s *Sessions) get(ctx context.Context, key string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Clock()
	if sess, ok := s.open[key]; ok {
		sess.refs++
		sess.lastUsed = now
		return sess
	}
	s.evict(now)
	conv := briefing.Open(ctx, briefing.ConversationConfig{
		Key:              key,
		Store:            s.cfg.Store,
		Extractor:        s.cfg.Extractor,
		Logger:           s.logger,
		RecentWindow:     s.cfg.RecentWindow,
		MaxMessageLength: s.cfg.MaxMessageLength,
		OnPersistError:   s.cfg.OnPersistError,
	})
	sess := &session{conv: conv, refs: 1, lastUsed: now}
	s.open[key] = sess
	metrics.ActiveConversations.Set(int64(len(s.open)))
	return sess
}

// evict drops idle sessions and, past MaxOpen, the least recently used
// unreferenced ones. Callers hold s.mu.
func (s *Sessions) evict(now time.Time) {
	for key, sess := range s.open {
		if sess.refs == 0 && now.Sub(sess.lastUsed) >= s.cfg.IdleTimeout {
			delete(s.open, key)
		}
	}
	for len(s.open) >= s.cfg.MaxOpen {
		var oldest string
		for key, sess := range s.open {
			if sess.refs > 0 {
				continue
			}
			if oldest == "" || sess.lastUsed.Before(s.open[oldest].lastUsed) {
				oldest = key
			}
		}
		if oldest == "" {
			break
		}
		s.logger.Debug("closing least recently used conversation", "conversation", oldest)
		delete(s.open, oldest)
	}
	metrics.ActiveConversations.Set(int64(len(s.open)))
}

func (s *Sessions) put(sess *session) {
	s.mu.Lock()
	sess.refs--
	sess.lastUsed = s.cfg.Clock()
	s.mu.Unlock()
}

// Acquire returns the conversation for key, opening it from the store on
// first use, and holds its lock until release is called.
func (s *Sessions) Acquire(ctx context.Context, key string) (conv *briefing.Conversation, release func()) {
	sess := s.get(ctx, key)
	sess.mu.Lock()
	return sess.conv, func() {
		sess.mu.Unlock()
		s.put(sess)
	}
}

// Validate checks a client message before any conversation is opened for it.
func (s *Sessions) Validate(text string) error {
	return briefing.ValidateMessage(domain.RoleUser, text, s.cfg.MaxMessageLength)
}

// Snapshot returns the memory of key. Keys that are neither open nor stored
// yield domain.ErrNotFound.
func (s *Sessions) Snapshot(ctx context.Context, key string) (domain.ConversationMemory, error) {
	s.mu.Lock()
	sess, ok := s.open[key]
	s.mu.Unlock()
	if ok {
		return sess.conv.Snapshot(), nil
	}

	mem, err := s.cfg.Store.LoadMemory(ctx, key)
	if err != nil {
		return domain.ConversationMemory{}, fmt.Errorf("load %s: %w: %w", key, domain.ErrPersistenceUnavailable, err)
	}
	if mem == nil {
		return domain.ConversationMemory{}, fmt.Errorf("conversation %s: %w", key, domain.ErrNotFound)
	}
	return *mem, nil
}

// Reset clears the conversation of key and removes its stored copy.
func (s *Sessions) Reset(ctx context.Context, key string) {
	conv, release := s.Acquire(ctx, key)
	defer release()
	conv.Reset(ctx)
}

// Confirm records client approval of the briefing of key.
func (s *Sessions) Confirm(ctx context.Context, key string) error {
	conv, release := s.Acquire(ctx, key)
	defer release()
	return conv.Confirm(ctx)
}

// List returns stored conversations, newest first.
func (s *Sessions) List(ctx context.Context, limit int) ([]domain.ConversationSummary, error) {
	out, err := s.cfg.Store.ListConversations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w: %w", domain.ErrPersistenceUnavailable, err)
	}
	return out, nil
}

// Len returns the number of open conversations.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
