package bus

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Event is a notification about something that happened to a briefing.
type Event struct {
	Type      string
	Source    string // emitting component
	Key       string // conversation key, empty for global events
	Payload   map[string]any
	Timestamp time.Time
}

// EventHandler receives events synchronously on the emitting goroutine.
type EventHandler func(Event)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

type subscription struct {
	id    string
	topic string
	fn    EventHandler
}

// EventBus fans events out to subscribers and remembers the most recent
// ones for the event log endpoints.
type EventBus struct {
	logger *slog.Logger

	mu      sync.RWMutex
	subs    []subscription
	seq     int
	history []Event
	keep    int
}

// NewEventBus returns an EventBus that remembers the last 1000 events.
func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{logger: logger, keep: 1000}
}

// On subscribes fn to topic, an event type or AllEvents. The returned id
// unsubscribes it through Off.
func (eb *EventBus) On(topic string, fn EventHandler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.seq++
	id := fmt.Sprintf("%s#%d", topic, eb.seq)
	eb.subs = append(eb.subs, subscription{id: id, topic: topic, fn: fn})
	return id
}

func (eb *EventBus) Off(topic, id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subs = slices.DeleteFunc(eb.subs, func(s subscription) bool {
		return s.topic == topic && s.id == id
	})
}

// Emit stamps and records e, then calls its subscribers in subscription
// order. A panicking subscriber is logged and skipped.
func (eb *EventBus) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	eb.mu.Lock()
	eb.history = append(eb.history, e)
	if over := len(eb.history) - eb.keep; over > 0 {
		eb.history = slices.Delete(eb.history, 0, over)
	}
	var targets []subscription
	for _, s := range eb.subs {
		if s.topic == e.Type || s.topic == AllEvents {
			targets = append(targets, s)
		}
	}
	eb.mu.Unlock()

	for _, s := range targets {
		eb.call(s, e)
	}
}

func (eb *EventBus) call(s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event subscriber panicked", "event", e.Type, "subscriber", s.id, "panic", r)
		}
	}()
	s.fn(e)
}

// Replay returns the remembered events of one type, or of all types for
// AllEvents, emitted at or after since.
func (eb *EventBus) Replay(topic string, since time.Time) []Event {
	return eb.filter(func(e Event) bool {
		return !e.Timestamp.Before(since) && (topic == AllEvents || e.Type == topic)
	})
}

// ForConversation returns the remembered events of one conversation.
func (eb *EventBus) ForConversation(key string) []Event {
	return eb.filter(func(e Event) bool { return e.Key == key })
}

func (eb *EventBus) filter(keep func(Event) bool) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	var out []Event
	for _, e := range eb.history {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// HistoryLen returns the number of remembered events.
func (eb *EventBus) HistoryLen() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.history)
}

const (
	EventMessageAdded      = "briefing.message_added"
	EventMessageRejected   = "briefing.message_rejected"
	EventRateLimited       = "briefing.rate_limited"
	EventBriefingUpdated   = "briefing.updated"
	EventStageChanged      = "briefing.stage_changed"
	EventBriefingComplete  = "briefing.completed"
	EventBriefingConfirmed = "briefing.confirmed"
	EventBriefingReset     = "briefing.reset"
	EventCaseDetected      = "case.detected"
	EventProviderError     = "provider.error"
	EventPersistenceError  = "persistence.error"
	EventResearchCompleted = "research.completed"
	EventExportCreated     = "export.created"
	EventGoalFormulated    = "strategy.goal_formulated"
)
