package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEBLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventBus_Subscriptions(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var stages, all []string
	stageID := eb.On(EventStageChanged, func(e Event) { stages = append(stages, e.Key) })
	eb.On(AllEvents, func(e Event) { all = append(all, e.Type) })

	eb.Emit(Event{Type: EventStageChanged, Key: "web:1"})
	eb.Emit(Event{Type: EventMessageAdded, Key: "web:1"})
	eb.Off(EventStageChanged, stageID)
	eb.Emit(Event{Type: EventStageChanged, Key: "web:2"})

	assert.Equal(t, []string{"web:1"}, stages)
	assert.Equal(t, []string{EventStageChanged, EventMessageAdded, EventStageChanged}, all)
}

func TestEventBus_OffLeavesOthers(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	calls := map[string]int{}
	a := eb.On(EventCaseDetected, func(Event) { calls["a"]++ })
	b := eb.On(EventCaseDetected, func(Event) { calls["b"]++ })
	require.NotEqual(t, a, b)
	eb.On(EventCaseDetected, func(Event) { calls["c"]++ })

	eb.Off(EventCaseDetected, a)
	eb.Off(EventMessageAdded, b) // wrong topic, no effect
	eb.Emit(Event{Type: EventCaseDetected})

	assert.Equal(t, map[string]int{"b": 1, "c": 1}, calls)
}

func TestEventBus_PanickingSubscriber(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	reached := false
	eb.On(EventExportCreated, func(Event) { panic("broken exporter hook") })
	eb.On(EventExportCreated, func(Event) { reached = true })

	assert.NotPanics(t, func() { eb.Emit(Event{Type: EventExportCreated}) })
	assert.True(t, reached)
}

func TestEventBus_Replay(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	eb.Emit(Event{Type: EventProviderError, Timestamp: time.Now().Add(-time.Hour)})
	since := time.Now()
	eb.Emit(Event{Type: EventMessageAdded, Key: "cli:direct"})
	eb.Emit(Event{Type: EventBriefingUpdated, Key: "web:7"})
	eb.Emit(Event{Type: EventMessageAdded, Key: "web:7"})

	assert.Len(t, eb.Replay(AllEvents, time.Time{}), 4)
	assert.Len(t, eb.Replay(AllEvents, since), 3)
	assert.Len(t, eb.Replay(EventMessageAdded, time.Time{}), 2)
	assert.Empty(t, eb.Replay(EventProviderError, since))

	conv := eb.ForConversation("web:7")
	require.Len(t, conv, 2)
	assert.Equal(t, EventBriefingUpdated, conv[0].Type)
	assert.False(t, conv[1].Timestamp.IsZero(), "timestamp is stamped on emit")
}

func TestEventBus_HistoryBounded(t *testing.T) {
	eb := NewEventBus(testEBLogger())
	eb.keep = 3

	for i := range 5 {
		eb.Emit(Event{Type: EventMessageAdded, Payload: map[string]any{"n": i}})
	}

	require.Equal(t, 3, eb.HistoryLen())
	assert.Equal(t, 2, eb.Replay(AllEvents, time.Time{})[0].Payload["n"], "oldest are dropped first")
}
