package interview

import (
	"strings"
	"sync"
	"time"

	"Alora/pkg/backend"
	"Alora/pkg/media"
	"Alora/pkg/scheduler"
)

const (
	DefaultPartialDebounce = 150 * time.Millisecond
	DefaultSpeakingReset   = 1200 * time.Millisecond
)

// Message 一条转写；同一 ID 再次到达表示修订或定稿
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Final     bool      `json:"is_final"`
	Agent     bool      `json:"is_agent"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Message) Role() string {
	if m.Agent {
		return backend.RoleAgent
	}
	return backend.RoleUser
}

type Speaker string

const (
	SpeakerNone  Speaker = ""
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

type TranscriptOptions struct {
	Clock           scheduler.Clock
	Markers         []string
	PartialDebounce time.Duration
	SpeakingReset   time.Duration
	// Emit 在持有内部锁时调用，不能阻塞也不能回调 Transcript
	Emit func(kind string, data any)
}

// Transcript 按到达顺序处理转写片段：定稿就地替换或追加，非定稿防抖后进入 streaming 槽
type Transcript struct {
	mu            sync.Mutex
	clock         scheduler.Clock
	markers       []string
	debounce      time.Duration
	speakingReset time.Duration
	emit          func(kind string, data any)

	messages  []Message
	index     map[string]int
	finalized map[string]bool
	streaming *Message
	pending   *Message

	debounceTimer scheduler.Timer
	debounceGen   uint64
	speaker       Speaker
	speakingTimer scheduler.Timer
	speakingGen   uint64
}

func NewTranscript(opts TranscriptOptions) *Transcript {
	if opts.Clock == nil {
		opts.Clock = scheduler.Real()
	}
	if opts.PartialDebounce <= 0 {
		opts.PartialDebounce = DefaultPartialDebounce
	}
	if opts.SpeakingReset <= 0 {
		opts.SpeakingReset = DefaultSpeakingReset
	}
	if opts.Emit == nil {
		opts.Emit = func(string, any) {}
	}
	return &Transcript{
		clock:         opts.Clock,
		markers:       opts.Markers,
		debounce:      opts.PartialDebounce,
		speakingReset: opts.SpeakingReset,
		emit:          opts.Emit,
		index:         make(map[string]int),
		finalized:     make(map[string]bool),
	}
}

func (t *Transcript) Handle(seg media.Segment) {
	agent := media.IsAgent(seg.Participant, t.markers)
	text := strings.TrimSpace(seg.Text)

	t.mu.Lock()
	defer t.mu.Unlock()

	if seg.Final {
		t.finalLocked(seg.ID, text, agent)
		return
	}
	if t.finalized[seg.ID] || text == "" {
		return
	}
	created := t.clock.Now()
	if t.pending != nil && t.pending.ID == seg.ID {
		created = t.pending.CreatedAt
	} else if t.streaming != nil && t.streaming.ID == seg.ID {
		created = t.streaming.CreatedAt
	}
	t.pending = &Message{ID: seg.ID, Text: text, Agent: agent, CreatedAt: created}
	t.armDebounceLocked()
	t.speakLocked(agent)
}

func (t *Transcript) finalLocked(id, text string, agent bool) {
	t.cancelDebounceLocked()
	if t.streaming != nil {
		t.streaming = nil
		t.emit("streaming", nil)
	}
	t.finalized[id] = true
	if text == "" {
		return
	}

	msg := Message{ID: id, Text: text, Final: true, Agent: agent, CreatedAt: t.clock.Now()}
	if i, ok := t.index[id]; ok {
		msg.CreatedAt = t.messages[i].CreatedAt
		if t.messages[i] == msg {
			return
		}
		t.messages[i] = msg
	} else {
		t.index[id] = len(t.messages)
		t.messages = append(t.messages, msg)
	}
	t.emit("transcript", msg)
	t.speakLocked(agent)
}

// 尾部防抖：每个非定稿片段都重新计时，只发布最后一个
func (t *Transcript) armDebounceLocked() {
	if t.debounceTimer != nil {
		t.debounceTimer.Stop()
	}
	t.debounceGen++
	gen := t.debounceGen
	t.debounceTimer = t.clock.AfterFunc(t.debounce, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if gen != t.debounceGen || t.pending == nil {
			return
		}
		t.streaming = t.pending
		t.pending = nil
		t.debounceTimer = nil
		t.emit("streaming", *t.streaming)
	})
}

func (t *Transcript) cancelDebounceLocked() {
	if t.debounceTimer != nil {
		t.debounceTimer.Stop()
		t.debounceTimer = nil
	}
	t.debounceGen++
	t.pending = nil
}

// agent 与 user 的说话状态互斥，静默一段时间后自动复位
func (t *Transcript) speakLocked(agent bool) {
	sp := SpeakerUser
	if agent {
		sp = SpeakerAgent
	}
	if sp != t.speaker {
		t.speaker = sp
		t.emit("speaking", sp)
	}
	if t.speakingTimer != nil {
		t.speakingTimer.Stop()
	}
	t.speakingGen++
	gen := t.speakingGen
	t.speakingTimer = t.clock.AfterFunc(t.speakingReset, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if gen != t.speakingGen {
			return
		}
		t.speakingTimer = nil
		if t.speaker != SpeakerNone {
			t.speaker = SpeakerNone
			t.emit("speaking", SpeakerNone)
		}
	})
}

func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Streaming 当前已发布的非定稿片段
func (t *Transcript) Streaming() *Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.streaming == nil {
		return nil
	}
	m := *t.streaming
	return &m
}

func (t *Transcript) Speaking() Speaker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speaker
}

// Final 已定稿消息加上仍在 streaming 的片段
func (t *Transcript) Final() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages), len(t.messages)+1)
	copy(out, t.messages)
	frag := t.streaming
	if t.pending != nil {
		frag = t.pending
	}
	if frag != nil && !t.finalized[frag.ID] && frag.Text != "" {
		m := *frag
		m.Final = true
		out = append(out, m)
	}
	return out
}

// Stop 停掉所有定时器，保留内容
func (t *Transcript) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Transcript) stopLocked() {
	if t.debounceTimer != nil {
		t.debounceTimer.Stop()
		t.debounceTimer = nil
	}
	t.debounceGen++
	if t.pending != nil {
		// 未发布的片段直接进入 streaming，结束时会被带上
		t.streaming = t.pending
		t.pending = nil
	}
	if t.speakingTimer != nil {
		t.speakingTimer.Stop()
		t.speakingTimer = nil
	}
	t.speakingGen++
	t.speaker = SpeakerNone
}

// Reset 丢弃全部内容
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.messages = nil
	t.index = make(map[string]int)
	t.finalized = make(map[string]bool)
	t.streaming = nil
}

// Entries 转成总结接口需要的格式
func Entries(msgs []Message) []backend.TranscriptEntry {
	out := make([]backend.TranscriptEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, backend.TranscriptEntry{Role: m.Role(), Text: m.Text, CreatedAt: m.CreatedAt.UnixMilli()})
	}
	return out
}
