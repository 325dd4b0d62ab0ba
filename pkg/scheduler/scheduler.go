package scheduler

import (
	"context"
	"sync"
	"time"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Clock 是所有定时逻辑的唯一时间来源，测试中替换为 Virtual
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type Timer interface {
	// Stop 返回 false 表示回调已触发或已停止
	Stop() bool
}

type realClock struct{}

func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

type ticker struct {
	mu      sync.Mutex
	clock   Clock
	d       time.Duration
	fn      func()
	current Timer
	stopped bool
}

// Every 每隔 d 调用一次 fn，首次在 d 之后；基于 Clock.AfterFunc 逐次重挂
func Every(clock Clock, d time.Duration, fn func()) Timer {
	t := &ticker{clock: clock, d: d, fn: fn}
	t.mu.Lock()
	t.current = clock.AfterFunc(d, t.fire)
	t.mu.Unlock()
	return t
}

func (t *ticker) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.current = t.clock.AfterFunc(t.d, t.fire)
	t.mu.Unlock()
	t.fn()
}

func (t *ticker) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return t.current.Stop()
}
