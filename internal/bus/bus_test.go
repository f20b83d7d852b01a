package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

func TestQueue_PublishSubscribe(t *testing.T) {
	q := New(4, testEBLogger())
	q.Publish(domain.InboundMessage{Channel: "web", ChatID: "1", Content: "Hallo"})
	assert.Equal(t, 1, q.Pending())

	msg := <-q.Subscribe()
	assert.Equal(t, "web:1", msg.Key())
	assert.False(t, msg.Timestamp.IsZero())
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := New(1, testEBLogger())
	q.fullWait = 10 * time.Millisecond
	q.Publish(domain.InboundMessage{Channel: "cli", ChatID: "a", Content: "erste"})
	q.Publish(domain.InboundMessage{Channel: "cli", ChatID: "a", Content: "zweite"})

	require.Equal(t, 1, q.Pending())
	assert.Equal(t, "erste", (<-q.Subscribe()).Content)
}

func TestQueue_RoutesRepliesByChannel(t *testing.T) {
	q := New(1, testEBLogger())
	var web, cli []domain.OutboundMessage
	q.OnOutbound("web", func(m domain.OutboundMessage) { web = append(web, m) })
	q.OnOutbound("cli", func(m domain.OutboundMessage) { cli = append(cli, m) })

	q.SendOutbound(domain.OutboundMessage{Channel: "cli", ChatID: "x", Content: "Antwort"})
	q.SendOutbound(domain.OutboundMessage{Channel: "telegram", ChatID: "y"})

	assert.Empty(t, web)
	require.Len(t, cli, 1)
	assert.Equal(t, "Antwort", cli[0].Content)
}

func TestQueue_CloseIsIdempotent(t *testing.T) {
	q := New(1, testEBLogger())
	q.Close()
	q.Close()
	q.Publish(domain.InboundMessage{Channel: "web", ChatID: "1"})

	_, ok := <-q.Subscribe()
	assert.False(t, ok)
}
