package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// Loop drains the message bus: chat commands are answered here, everything
// else goes to the Service, and the reply is routed back to the channel the
// message came from.
type Loop struct {
	service *Service
	bus     domain.MessageBus
	logger  *slog.Logger
	slots   chan struct{}
}

type LoopConfig struct {
	Service     *Service
	Bus         domain.MessageBus
	Logger      *slog.Logger
	Concurrency int // messages handled at once, 3 when unset
}

func NewLoop(cfg LoopConfig) *Loop {
	n := cfg.Concurrency
	if n < 1 {
		n = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{service: cfg.Service, bus: cfg.Bus, logger: logger, slots: make(chan struct{}, n)}
}

// Run handles bus messages until ctx is done or the bus is closed, then
// waits for the messages still in flight. Two messages of one conversation
// never run at the same time; the Service serializes them.
func (l *Loop) Run(ctx context.Context) {
	var inflight sync.WaitGroup
	defer inflight.Wait()

	l.logger.Info("briefing loop started", "concurrency", cap(l.slots))
	defer l.logger.Info("briefing loop stopped")

	messages := l.bus.Subscribe()
	for {
		var msg domain.InboundMessage
		var open bool
		select {
		case <-ctx.Done():
			return
		case msg, open = <-messages:
		}
		if !open {
			return
		}
		select {
		case l.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer func() { <-l.slots }()
			l.processMessage(ctx, msg)
		}()
	}
}

// ProcessDirect answers content without the bus, for callers that wait for
// the reply themselves.
func (l *Loop) ProcessDirect(ctx context.Context, content, channel, chatID string) (string, error) {
	return l.handleMessage(ctx, domain.InboundMessage{
		Channel:   channel,
		ChatID:    chatID,
		SenderID:  "user",
		Content:   content,
		Timestamp: time.Now(),
	})
}

func (l *Loop) processMessage(ctx context.Context, msg domain.InboundMessage) {
	l.logger.Debug("message received", "conversation", msg.Key(), "len", len(msg.Content))

	reply, err := l.handleMessage(ctx, msg)
	if err != nil {
		l.logger.Warn("message failed", "conversation", msg.Key(), "err", err)
		reply = userFacingError(err)
	}
	l.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
		Format:  "markdown",
	})
}

func (l *Loop) handleMessage(ctx context.Context, msg domain.InboundMessage) (string, error) {
	if cmd := ParseCommand(msg.Content); cmd != nil {
		if res := l.HandleCommand(ctx, cmd, msg); res.Handled {
			return res.Response, res.Err
		}
	}
	reply, err := l.service.PostUserMessage(ctx, msg.Key(), msg.Content)
	if err != nil {
		return "", err
	}
	return reply.AgentReply, nil
}

func userFacingError(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		return "Diese Nachricht konnte ich leider nicht verarbeiten. Bitte sende einen kurzen Text."
	case errors.Is(err, domain.ErrBriefingIncomplete):
		return "Das Briefing ist noch nicht vollständig. Mit /status siehst du, was noch fehlt."
	default:
		return "Es ist ein Fehler aufgetreten. Bitte versuche es gleich noch einmal."
	}
}
