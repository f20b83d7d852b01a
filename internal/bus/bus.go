package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// Queue is the in-process domain.MessageBus. Client messages from every
// channel share one buffered queue; replies go to the handler registered
// under the channel name of the conversation.
type Queue struct {
	logger *slog.Logger

	// mu guards closed against the close of messages, and replies.
	mu       sync.RWMutex
	closed   bool
	messages chan domain.InboundMessage
	replies  map[string]func(domain.OutboundMessage)

	// fullWait is how long Publish blocks on a full queue before dropping.
	fullWait time.Duration
}

// New returns a Queue holding up to size pending messages.
func New(size int, logger *slog.Logger) *Queue {
	if size < 1 {
		size = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		logger:   logger,
		messages: make(chan domain.InboundMessage, size),
		replies:  map[string]func(domain.OutboundMessage){},
		fullWait: 10 * time.Second,
	}
}

// Publish enqueues msg, stamping it with the current time when unset.
// Messages published after Close, or still blocked after the full-queue
// wait, are dropped with a log line.
func (q *Queue) Publish(msg domain.InboundMessage) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("message after shutdown dropped", "conversation", msg.Key())
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	select {
	case q.messages <- msg:
	default:
		q.logger.Warn("message queue full", "conversation", msg.Key(), "pending", len(q.messages))
		wait := time.NewTimer(q.fullWait)
		defer wait.Stop()
		select {
		case q.messages <- msg:
		case <-wait.C:
			q.logger.Error("message dropped", "conversation", msg.Key(), "waited", q.fullWait)
		}
	}
}

// Subscribe returns the receive side of the queue. It is closed by Close.
func (q *Queue) Subscribe() <-chan domain.InboundMessage { return q.messages }

// OnOutbound registers the reply handler of a channel, replacing any earlier one.
func (q *Queue) OnOutbound(channel string, handler func(domain.OutboundMessage)) {
	q.mu.Lock()
	q.replies[channel] = handler
	q.mu.Unlock()
}

func (q *Queue) SendOutbound(msg domain.OutboundMessage) {
	q.mu.RLock()
	deliver := q.replies[msg.Channel]
	q.mu.RUnlock()
	if deliver == nil {
		q.logger.Warn("reply for channel without handler", "channel", msg.Channel, "chat", msg.ChatID)
		return
	}
	deliver(msg)
}

func (q *Queue) Pending() int { return len(q.messages) }

// Close stops intake. Pending messages can still be drained by subscribers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.messages)
}
