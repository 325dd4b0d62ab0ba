package interview

import (
	"strings"
	"sync"
	"time"

	"Alora/pkg/errors"
	"Alora/pkg/scheduler"
)

var ErrNoOwner = errors.Sentinel(errors.CodeInvalidInput, "Missing client id.")

// Owner 会话归属：登录用户按用户 ID，匿名浏览器按 X-Client-ID
type Owner struct {
	Key    string
	UserID string
	Email  string
}

func OwnerFor(userID, email, clientID string) (Owner, error) {
	if userID != "" {
		return Owner{Key: userID, UserID: userID, Email: email}, nil
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return Owner{}, ErrNoOwner
	}
	return Owner{Key: "anon:" + clientID}, nil
}

// Manager 每个 owner 一个 Controller；长时间未访问的空闲会话由 EvictIdle 回收
type Manager struct {
	mu          sync.Mutex
	deps        Deps
	base        Options
	clock       scheduler.Clock
	controllers map[string]*managed
	closed      bool
}

type managed struct {
	ctl  *Controller
	seen time.Time
}

func NewManager(deps Deps, base Options) *Manager {
	if deps.Clock == nil {
		deps.Clock = scheduler.Real()
	}
	return &Manager{deps: deps, base: base, clock: deps.Clock, controllers: make(map[string]*managed)}
}

// Get 取出或创建 owner 的 Controller
func (m *Manager) Get(owner Owner) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	now := m.clock.Now()
	if e, ok := m.controllers[owner.Key]; ok {
		e.seen = now
		e.ctl.SetIdentity(owner.UserID, owner.Email)
		return e.ctl, nil
	}
	opts := m.base
	opts.Owner, opts.UserID, opts.Email = owner.Key, owner.UserID, owner.Email
	c := NewController(m.deps, opts)
	m.controllers[owner.Key] = &managed{ctl: c, seen: now}
	return c, nil
}

// Lookup 只查不建
func (m *Manager) Lookup(key string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.controllers[key]
	if !ok {
		return nil, false
	}
	e.seen = m.clock.Now()
	return e.ctl, true
}

// EvictIdle 关闭超过 maxIdle 未被访问、且没有进行中工作的会话，返回回收数量
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	cutoff := m.clock.Now().Add(-maxIdle)
	var victims []*Controller
	m.mu.Lock()
	for key, e := range m.controllers {
		if e.seen.After(cutoff) || !e.ctl.Dormant() {
			continue
		}
		delete(m.controllers, key)
		victims = append(victims, e.ctl)
	}
	m.mu.Unlock()
	for _, c := range victims {
		c.Close()
	}
	return len(victims)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}

// Close 关停时断开所有会话
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	all := m.controllers
	m.controllers = make(map[string]*managed)
	m.mu.Unlock()
	for _, e := range all {
		e.ctl.Close()
	}
}
