package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/briefing"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/cases"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/metrics"
)

const DefaultAITimeout = 25 * time.Second

// Reply is the result of one client turn.
type Reply struct {
	ConversationKey string         `json:"conversationKey"`
	BriefingSummary string         `json:"briefingSummary"`
	Stage           domain.Stage   `json:"stage"`
	Confidence      float64        `json:"confidence"`
	MissingFields   []domain.Field `json:"missingFields"`
	AgentReply      string         `json:"agentReply"`
	Complete        bool           `json:"complete"`
	CaseID          string         `json:"caseId,omitempty"`
	Degraded        bool           `json:"degraded"`          // AgentReply is the fallback text
	AIError         string         `json:"aiError,omitempty"` // why the fallback was used
	Provider        string         `json:"provider,omitempty"`
}

// ServiceConfig wires the briefing service.
type ServiceConfig struct {
	Sessions  *Sessions       // built from Store when nil
	Store     domain.MemoryStore
	Extractor *briefing.Extractor
	Provider  domain.Provider // LLM chain; nil always yields the fallback reply
	Catalog   *cases.Catalog  // default catalog when nil
	Events    *bus.EventBus   // optional
	Limiter   *KeyedRateLimiter
	AITimeout time.Duration

	RecentWindow       int
	MaxMessageLength   int
	SessionIdleTimeout time.Duration
	MaxOpenSessions    int
	Logger             *slog.Logger
}

// Service runs briefing turns: record the client message, update the
// briefing, ask the LLM and record its answer.
type Service struct {
	sessions  *Sessions
	provider  domain.Provider
	catalog   *cases.Catalog
	prompt    *PromptBuilder
	events    *bus.EventBus
	limiter   *KeyedRateLimiter
	usage     domain.UsageRecorder
	aiTimeout time.Duration
	logger    *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = cases.DefaultCatalog(cfg.Logger)
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = DefaultAITimeout
	}
	s := &Service{
		provider:  cfg.Provider,
		catalog:   cfg.Catalog,
		prompt:    NewPromptBuilder(cfg.Catalog),
		events:    cfg.Events,
		limiter:   cfg.Limiter,
		aiTimeout: cfg.AITimeout,
		logger:    cfg.Logger,
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessions(SessionsConfig{
			Store:            cfg.Store,
			Extractor:        cfg.Extractor,
			RecentWindow:     cfg.RecentWindow,
			MaxMessageLength: cfg.MaxMessageLength,
			Logger:           cfg.Logger,
			OnPersistError:   s.persistFailed,
			IdleTimeout:      cfg.SessionIdleTimeout,
			MaxOpen:          cfg.MaxOpenSessions,
		})
	}
	s.sessions = cfg.Sessions
	if ur, ok := s.sessions.cfg.Store.(domain.UsageRecorder); ok {
		s.usage = ur
	}
	return s
}

// Sessions exposes the conversation registry.
func (s *Service) Sessions() *Sessions { return s.sessions }

// Catalog returns the case catalog used for detection.
func (s *Service) Catalog() *cases.Catalog { return s.catalog }

// Apology is the deterministic reply used when no provider answered.
func Apology(message string) string {
	preview := message
	if utf8.RuneCountInString(preview) > 100 {
		preview = string([]rune(preview)[:100])
	}
	return fmt.Sprintf("Ich habe deine Nachricht erhalten: \"%s...\"\n\n"+
		"Leider haben alle KI-Modelle vorübergehend Probleme. "+
		"Ich werde deine Eingaben speichern und wir können später das Briefing fortsetzen.", preview)
}

// PostUserMessage runs one client turn on the conversation key. Only
// malformed input is returned as an error; LLM failures produce a degraded
// reply and store failures are logged.
func (s *Service) PostUserMessage(ctx context.Context, key, text string) (*Reply, error) {
	if err := s.sessions.Validate(text); err != nil {
		s.emit(bus.EventMessageRejected, key, map[string]any{"err": err.Error()})
		return nil, err
	}
	conv, release := s.sessions.Acquire(ctx, key)
	defer release()

	before := conv.Snapshot()
	wasComplete := conv.IsComplete()

	if _, err := conv.AddMessage(ctx, domain.RoleUser, text); err != nil {
		s.emit(bus.EventMessageRejected, key, map[string]any{"err": err.Error()})
		return nil, err
	}
	s.emit(bus.EventMessageAdded, key, map[string]any{"role": string(domain.RoleUser)})
	s.afterUserMessage(ctx, conv, before, wasComplete, text)

	reply := &Reply{ConversationKey: key}
	answer, resp, aiErr := s.ask(ctx, key, conv.ContextForAI())
	if aiErr != nil {
		reply.Degraded = true
		reply.AIError = aiErr.Error()
		answer = Apology(text)
	} else {
		reply.Provider = resp.Provider
	}
	if _, err := conv.AddMessage(ctx, domain.RoleAgent, answer); err != nil {
		s.logger.Error("agent reply rejected", "conversation", key, "err", err)
	} else {
		s.emit(bus.EventMessageAdded, key, map[string]any{"role": string(domain.RoleAgent), "degraded": reply.Degraded})
	}

	ac := conv.ContextForAI()
	reply.BriefingSummary = ac.BriefingSummary
	reply.Stage = ac.Stage
	reply.Confidence = ac.Confidence
	reply.MissingFields = ac.MissingFields
	reply.AgentReply = answer
	reply.Complete = conv.IsComplete()
	reply.CaseID = ac.CaseID
	return reply, nil
}

func (s *Service) afterUserMessage(ctx context.Context, conv *briefing.Conversation, before domain.ConversationMemory, wasComplete bool, text string) {
	key := conv.Key()
	after := conv.Snapshot()

	if changed := changedFields(before.Briefing, after.Briefing); len(changed) > 0 {
		s.emit(bus.EventBriefingUpdated, key, map[string]any{"fields": changed, "confidence": after.Confidence})
	}
	if after.CaseID == "" {
		if id, ok := s.catalog.Detect(text); ok && conv.SetCase(ctx, id) {
			s.logger.Info("case detected", "conversation", key, "case", id)
			s.emit(bus.EventCaseDetected, key, map[string]any{"case": id})
		}
	}
	if after.Stage != before.Stage {
		s.emit(bus.EventStageChanged, key, map[string]any{"from": string(before.Stage), "to": string(after.Stage)})
	}
	if !wasComplete && conv.IsComplete() {
		s.logger.Info("briefing complete", "conversation", key)
		s.emit(bus.EventBriefingComplete, key, nil)
	}
}

// ask calls the provider chain under the AI timeout. The returned error
// matches domain.ErrAIUnavailable, and domain.ErrAITimeout when the
// deadline cut the call short.
func (s *Service) ask(ctx context.Context, key string, ac briefing.AIContext) (string, *domain.ChatResponse, error) {
	return s.chat(ctx, key, s.prompt.Build(ac))
}

func (s *Service) chat(ctx context.Context, key string, msgs []domain.Message) (string, *domain.ChatResponse, error) {
	if s.provider == nil {
		err := fmt.Errorf("no provider configured: %w", domain.ErrAIUnavailable)
		s.providerFailed(key, err, false)
		return "", nil, err
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	if err := s.limiter.Wait(aiCtx, key); err != nil {
		err = fmt.Errorf("%w: rate limited: %w", domain.ErrAITimeout, err)
		s.emit(bus.EventRateLimited, key, nil)
		s.providerFailed(key, err, true)
		return "", nil, err
	}

	metrics.LLMRequestsTotal.Inc()
	start := time.Now()
	resp, err := s.provider.Chat(aiCtx, domain.ChatRequest{Messages: msgs})
	metrics.LLMLatency.ObserveDuration(time.Since(start))
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(aiCtx.Err(), context.DeadlineExceeded)
		switch {
		case timeout:
			err = fmt.Errorf("%w after %s: %w", domain.ErrAITimeout, s.aiTimeout, err)
		case !errors.Is(err, domain.ErrAIUnavailable):
			err = fmt.Errorf("%w: %w", domain.ErrAIUnavailable, err)
		}
		s.providerFailed(key, err, timeout)
		return "", nil, err
	}

	if s.usage != nil {
		if uerr := s.usage.RecordUsage(ctx, key, resp.Provider, resp.Usage, resp.LatencyMs); uerr != nil {
			s.logger.Warn("usage not recorded", "conversation", key, "err", uerr)
		}
	}
	s.logger.Debug("llm replied", "conversation", key, "provider", resp.Provider, "latency", time.Since(start))
	return resp.Content, resp, nil
}

func (s *Service) providerFailed(key string, err error, timeout bool) {
	s.logger.Warn("llm unavailable, using fallback reply", "conversation", key, "timeout", timeout, "err", err)
	s.emit(bus.EventProviderError, key, map[string]any{"err": err.Error(), "timeout": timeout, "fallback": true})
}

func (s *Service) persistFailed(key string, err error) {
	s.emit(bus.EventPersistenceError, key, map[string]any{"err": err.Error()})
}

// Reset discards the conversation of key.
func (s *Service) Reset(ctx context.Context, key string) {
	s.sessions.Reset(ctx, key)
	s.limiter.Forget(key)
	s.emit(bus.EventBriefingReset, key, nil)
}

// Confirm records the client's approval. Incomplete briefings return
// domain.ErrBriefingIncomplete.
func (s *Service) Confirm(ctx context.Context, key string) error {
	if err := s.sessions.Confirm(ctx, key); err != nil {
		return err
	}
	s.emit(bus.EventBriefingConfirmed, key, nil)
	return nil
}

// Snapshot returns the stored memory of key.
func (s *Service) Snapshot(ctx context.Context, key string) (domain.ConversationMemory, error) {
	return s.sessions.Snapshot(ctx, key)
}

// Context returns the prompt projection of key, opening it if necessary.
func (s *Service) Context(ctx context.Context, key string) briefing.AIContext {
	conv, release := s.sessions.Acquire(ctx, key)
	defer release()
	return conv.ContextForAI()
}

// List returns stored conversations, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]domain.ConversationSummary, error) {
	return s.sessions.List(ctx, limit)
}

func (s *Service) emit(eventType, key string, payload map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Emit(bus.Event{Type: eventType, Source: "agent", Key: key, Payload: payload})
}

func changedFields(before, after domain.BriefingContext) []domain.Field {
	var out []domain.Field
	for _, f := range domain.BriefingFields {
		if briefing.FieldValue(before, f) != briefing.FieldValue(after, f) {
			out = append(out, f)
		}
	}
	return out
}
