package interview

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Alora/pkg/errors"
	"Alora/pkg/scheduler"
)

func TestOwnerFor(t *testing.T) {
	o, err := OwnerFor("u1", "a@b.c", "browser-1")
	require.NoError(t, err)
	assert.Equal(t, Owner{Key: "u1", UserID: "u1", Email: "a@b.c"}, o)

	o, err = OwnerFor("", "", " browser-1 ")
	require.NoError(t, err)
	assert.Equal(t, "anon:browser-1", o.Key)
	assert.Empty(t, o.UserID)

	_, err = OwnerFor("", "", "")
	assert.True(t, errors.Is(err, ErrNoOwner))
}

func TestManagerLifecycle(t *testing.T) {
	room := &fakeRoom{}
	m := NewManager(Deps{
		Sessions:   &fakeSessions{next: "s1"},
		Transport:  &fakeTransport{room: room},
		Summarizer: &fakeSummarizer{},
		Clock:      scheduler.NewVirtual(t0),
	}, Options{})

	anon := Owner{Key: "anon:c1"}
	c1, err := m.Get(anon)
	require.NoError(t, err)
	again, err := m.Get(anon)
	require.NoError(t, err)
	assert.Same(t, c1, again)
	assert.Equal(t, 1, m.Len())

	got, ok := m.Lookup("anon:c1")
	require.True(t, ok)
	assert.Same(t, c1, got)

	require.NoError(t, c1.Start(context.Background()))

	_, err = m.Get(Owner{Key: "u2", UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	m.Close()
	assert.Zero(t, m.Len())
	assert.Equal(t, 1, room.Disconnects())
	assert.True(t, errors.Is(c1.Start(context.Background()), ErrClosed))
	_, err = m.Get(anon)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestManagerEvictsIdleControllers(t *testing.T) {
	clock := scheduler.NewVirtual(t0)
	room := &fakeRoom{}
	m := NewManager(Deps{
		Sessions:   &fakeSessions{next: "s1"},
		Transport:  &fakeTransport{room: room},
		Summarizer: &fakeSummarizer{},
		Clock:      clock,
	}, Options{Duration: 2 * time.Hour})

	for i := 0; i < 50; i++ {
		_, err := m.Get(Owner{Key: fmt.Sprintf("anon:c%d", i)})
		require.NoError(t, err)
	}
	running, err := m.Get(Owner{Key: "u1", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, running.Start(context.Background()))
	waiting, err := m.Get(Owner{Key: "u2", UserID: "u2"})
	require.NoError(t, err)
	waiting.ScheduleAutoStart(t0.Add(2*time.Hour), true)

	clock.Advance(10 * time.Minute)
	recent, err := m.Get(Owner{Key: "anon:c0"})
	require.NoError(t, err)

	clock.Advance(25 * time.Minute)
	assert.Equal(t, 49, m.EvictIdle(30*time.Minute))
	assert.Equal(t, 3, m.Len())

	_, ok := m.Lookup("anon:c1")
	assert.False(t, ok)
	got, ok := m.Lookup("anon:c0")
	require.True(t, ok)
	assert.Same(t, recent, got)
	assert.Equal(t, StatusRunning, running.Snapshot().Status)
	assert.Zero(t, room.Disconnects())

	// 停下来以后同样会被回收
	running.Reset()
	clock.Advance(31 * time.Minute)
	assert.Equal(t, 2, m.EvictIdle(30*time.Minute))
	_, ok = m.Lookup("u2")
	assert.True(t, ok)
}
