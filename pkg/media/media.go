package media

import (
	"context"
	"strings"
)

// Participant 房间里的远端参与者
type Participant struct {
	Identity string `json:"identity"`
	Metadata string `json:"metadata,omitempty"`
}

// Segment 一段转写，Final 为假时是中间结果
type Segment struct {
	ID          string      `json:"id"`
	Text        string      `json:"text"`
	Final       bool        `json:"final"`
	Participant Participant `json:"participant"`
}

// Room 已连接的房间；回调可能来自任意 goroutine，返回的取消函数可重复调用
type Room interface {
	OnParticipantChange(fn func()) (unsubscribe func())
	OnTranscriptionSegment(fn func(Segment)) (unsubscribe func())
	Participants() []Participant
	Disconnect() error
}

type Transport interface {
	Connect(ctx context.Context, sessionID, token string) (Room, error)
}

var DefaultAgentMarkers = []string{"agent", "ai"}

// IsAgent identity 或 metadata 含任一标记即视为 agent，不区分大小写
func IsAgent(p Participant, markers []string) bool {
	if len(markers) == 0 {
		markers = DefaultAgentMarkers
	}
	identity := strings.ToLower(p.Identity)
	metadata := strings.ToLower(p.Metadata)
	for _, m := range markers {
		m = strings.ToLower(m)
		if m == "" {
			continue
		}
		if strings.Contains(identity, m) || strings.Contains(metadata, m) {
			return true
		}
	}
	return false
}

// Handlers 按注册顺序保存回调
type Handlers[T any] struct {
	next int
	fns  map[int]T
}

func (h *Handlers[T]) Add(fn T) int {
	if h.fns == nil {
		h.fns = make(map[int]T)
	}
	h.next++
	h.fns[h.next] = fn
	return h.next
}

func (h *Handlers[T]) Remove(id int) { delete(h.fns, id) }

func (h *Handlers[T]) Snapshot() []T {
	out := make([]T, 0, len(h.fns))
	for i := 1; i <= h.next; i++ {
		if fn, ok := h.fns[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (h *Handlers[T]) Clear() { h.fns = nil }
