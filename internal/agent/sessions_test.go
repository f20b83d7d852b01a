package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/memory"
)

func TestSessions_RestoresFromStore(t *testing.T) {
	store := memory.NewInMemoryStore()
	ctx := context.Background()

	first := NewSessions(SessionsConfig{Store: store, Logger: testLogger()})
	conv, release := first.Acquire(ctx, "telegram:9")
	_, err := conv.AddMessage(ctx, domain.RoleUser, "Wir brauchen ein Logo in Grün")
	require.NoError(t, err)
	release()

	second := NewSessions(SessionsConfig{Store: store, Logger: testLogger()})
	mem, err := second.Snapshot(ctx, "telegram:9")
	require.NoError(t, err)
	assert.Equal(t, []string{"grün"}, mem.Briefing.Colors)
	assert.Zero(t, second.Len(), "snapshot reads the store without opening")

	conv, release = second.Acquire(ctx, "telegram:9")
	defer release()
	assert.Equal(t, domain.ProjectLogo, conv.Briefing().ProjectType)
	assert.Equal(t, 1, second.Len())
}

func TestSessions_SnapshotUnknownKey(t *testing.T) {
	s := NewSessions(SessionsConfig{Logger: testLogger()})
	_, err := s.Snapshot(context.Background(), "web:nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessions_List(t *testing.T) {
	s := NewSessions(SessionsConfig{Logger: testLogger()})
	ctx := context.Background()
	for _, key := range []string{"web:1", "web:2"} {
		conv, release := s.Acquire(ctx, key)
		_, err := conv.AddMessage(ctx, domain.RoleUser, "Hallo")
		require.NoError(t, err)
		release()
	}

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func TestSessions_EvictsIdle(t *testing.T) {
	store := memory.NewInMemoryStore()
	clock := &stepClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewSessions(SessionsConfig{Store: store, Logger: testLogger(), IdleTimeout: time.Minute, Clock: clock.Now})
	ctx := context.Background()

	conv, release := s.Acquire(ctx, "web:old")
	_, err := conv.AddMessage(ctx, domain.RoleUser, "Ein Logo in Rot bitte")
	require.NoError(t, err)
	release()

	_, releaseHeld := s.Acquire(ctx, "web:held")
	defer releaseHeld()

	clock.now = clock.now.Add(2 * time.Minute)
	_, release = s.Acquire(ctx, "web:new")
	release()
	assert.Equal(t, 2, s.Len(), "idle session closed, held session kept")

	conv, release = s.Acquire(ctx, "web:old")
	defer release()
	assert.Equal(t, []string{"rot"}, conv.Briefing().Colors, "reopened from the store")
}

func TestSessions_MaxOpenDropsLeastRecentlyUsed(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewSessions(SessionsConfig{Logger: testLogger(), MaxOpen: 2, Clock: clock.Now})
	ctx := context.Background()

	touch := func(key string) {
		clock.now = clock.now.Add(time.Second)
		_, release := s.Acquire(ctx, key)
		release()
	}
	touch("web:a")
	touch("web:b")
	touch("web:a")
	touch("web:c")

	assert.Equal(t, 2, s.Len())
	s.mu.Lock()
	_, hasA := s.open["web:a"]
	_, hasB := s.open["web:b"]
	s.mu.Unlock()
	assert.True(t, hasA)
	assert.False(t, hasB)
}

func TestSessions_MaxOpenKeepsHeldSessions(t *testing.T) {
	s := NewSessions(SessionsConfig{Logger: testLogger(), MaxOpen: 1})
	ctx := context.Background()

	_, releaseA := s.Acquire(ctx, "web:a")
	_, releaseB := s.Acquire(ctx, "web:b")
	assert.Equal(t, 2, s.Len(), "sessions in use are never dropped")
	releaseA()
	releaseB()
}
