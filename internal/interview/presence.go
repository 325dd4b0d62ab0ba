package interview

import (
	"sync"
	"time"

	"Alora/pkg/media"
	"Alora/pkg/scheduler"
)

const DefaultPresenceDebounce = 400 * time.Millisecond

type PresenceOptions struct {
	Clock    scheduler.Clock
	Markers  []string
	Debounce time.Duration
	// OnTransition 在释放内部锁后调用，present 为新的在场状态
	OnTransition func(present, ever bool)
}

// PresenceMonitor 参与者变化先防抖，再轮询一次参与者列表判断 agent 是否在场
type PresenceMonitor struct {
	mu       sync.Mutex
	clock    scheduler.Clock
	markers  []string
	debounce time.Duration
	onChange func(present, ever bool)

	source  func() []media.Participant
	timer   scheduler.Timer
	gen     uint64
	present bool
	ever    bool
}

func NewPresenceMonitor(opts PresenceOptions) *PresenceMonitor {
	if opts.Clock == nil {
		opts.Clock = scheduler.Real()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultPresenceDebounce
	}
	if opts.OnTransition == nil {
		opts.OnTransition = func(bool, bool) {}
	}
	return &PresenceMonitor{clock: opts.Clock, markers: opts.Markers, debounce: opts.Debounce, onChange: opts.OnTransition}
}

// Attach 绑定参与者来源，并安排一次初始检查
func (p *PresenceMonitor) Attach(source func() []media.Participant) {
	p.mu.Lock()
	p.source = source
	p.mu.Unlock()
	p.Notify()
}

// Notify 参与者变化通知，重新计时
func (p *PresenceMonitor) Notify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == nil {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = p.clock.AfterFunc(p.debounce, func() { p.poll(gen) })
}

func (p *PresenceMonitor) poll(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.source == nil {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	present := false
	for _, part := range p.source() {
		if media.IsAgent(part, p.markers) {
			present = true
			break
		}
	}
	if present == p.present {
		p.mu.Unlock()
		return
	}
	p.present = present
	if present {
		p.ever = true
	}
	ever := p.ever
	cb := p.onChange
	p.mu.Unlock()
	cb(present, ever)
}

// Detach 断开来源并停止计时；ever 保留
func (p *PresenceMonitor) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
	p.source = nil
	p.present = false
}

// Reset 新会话开始时清空
func (p *PresenceMonitor) Reset() {
	p.Detach()
	p.mu.Lock()
	p.ever = false
	p.mu.Unlock()
}

func (p *PresenceMonitor) Present() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present
}

func (p *PresenceMonitor) EverDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ever
}
