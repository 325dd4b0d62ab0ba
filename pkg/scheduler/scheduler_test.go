package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func TestVirtualOrdering(t *testing.T) {
	v := NewVirtual(epoch)
	var order []string
	v.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	v.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	v.AfterFunc(100*time.Millisecond, func() { order = append(order, "b") })

	v.Advance(99 * time.Millisecond)
	assert.Empty(t, order)
	assert.Equal(t, 3, v.Pending())

	v.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, epoch.Add(1099*time.Millisecond), v.Now())
}

func TestVirtualNowInsideCallback(t *testing.T) {
	v := NewVirtual(epoch)
	var seen time.Time
	v.AfterFunc(250*time.Millisecond, func() { seen = v.Now() })
	v.Advance(time.Second)
	assert.Equal(t, epoch.Add(250*time.Millisecond), seen)
}

func TestVirtualStop(t *testing.T) {
	v := NewVirtual(epoch)
	fired := false
	timer := v.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	v.Advance(2 * time.Second)
	assert.False(t, fired)
	assert.Zero(t, v.Pending())
}

func TestVirtualCallbackArmsWithinWindow(t *testing.T) {
	v := NewVirtual(epoch)
	count := 0
	var arm func()
	arm = func() {
		count++
		if count < 3 {
			v.AfterFunc(100*time.Millisecond, arm)
		}
	}
	v.AfterFunc(100*time.Millisecond, arm)
	v.Advance(time.Second)
	assert.Equal(t, 3, count)
}

func TestEvery(t *testing.T) {
	v := NewVirtual(epoch)
	ticks := 0
	tk := Every(v, time.Second, func() { ticks++ })

	v.Advance(3500 * time.Millisecond)
	assert.Equal(t, 3, ticks)

	assert.True(t, tk.Stop())
	v.Advance(5 * time.Second)
	assert.Equal(t, 3, ticks)
	assert.False(t, tk.Stop())
}

func TestRealClockAfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real timer did not fire")
	}
}

func TestCronAddJob(t *testing.T) {
	cr := NewCron(time.UTC, nil)
	var runs atomic.Int32
	_, err := cr.AddJob("@every 1s", "noop", time.Second, FuncJob(func(ctx context.Context) {
		_, hasDeadline := ctx.Deadline()
		if hasDeadline {
			runs.Add(1)
		}
	}))
	require.NoError(t, err)
	assert.Len(t, cr.Entries(), 1)

	_, err = cr.AddJob("not a spec", "bad", 0, FuncJob(func(context.Context) {}))
	assert.Error(t, err)
}
