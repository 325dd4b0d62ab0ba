// Package bridge 由浏览器喂数据的媒体通道：已经在房间里的页面通过 websocket 转发参与者和转写事件
package bridge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Alora/pkg/media"
)

const (
	FrameParticipants   = "participants"
	FrameParticipantIn  = "participant_joined"
	FrameParticipantOut = "participant_left"
	FrameTrackPublished = "track_published"
	FrameSegment        = "segment"

	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

var ErrNoRoom = errors.New("bridge: no connected room for session")

// Frame 浏览器发来的一帧
type Frame struct {
	Type         string              `json:"type"`
	Participants []media.Participant `json:"participants,omitempty"`
	Participant  *media.Participant  `json:"participant,omitempty"`
	Segments     []media.Segment     `json:"segments,omitempty"`
}

type Transport struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func New(log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		rooms: make(map[string]*Room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Connect 登记会话的房间，旧的会被替换并断开
func (t *Transport) Connect(ctx context.Context, sessionID, token string) (media.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	room := &Room{sessionID: sessionID, done: make(chan struct{}), owner: t}
	t.mu.Lock()
	prev := t.rooms[sessionID]
	t.rooms[sessionID] = room
	t.mu.Unlock()
	if prev != nil {
		_ = prev.Disconnect()
	}
	return room, nil
}

func (t *Transport) room(sessionID string) *Room {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rooms[sessionID]
}

func (t *Transport) release(r *Room) {
	t.mu.Lock()
	if t.rooms[r.sessionID] == r {
		delete(t.rooms, r.sessionID)
	}
	t.mu.Unlock()
}

// Serve 升级连接并把帧灌进房间，直到任一方关闭
func (t *Transport) Serve(w http.ResponseWriter, r *http.Request, sessionID string) error {
	room := t.room(sessionID)
	if room == nil {
		http.Error(w, ErrNoRoom.Error(), http.StatusConflict)
		return ErrNoRoom
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go t.keepAlive(conn, room, stop)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.log.Warn("media bridge read failed", zap.String("session_id", sessionID), zap.Error(err))
			}
			return nil
		}
		room.Apply(f)
	}
}

func (t *Transport) keepAlive(conn *websocket.Conn, room *Room, stop <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-stop:
			return
		case <-room.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session disconnected"),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

type Room struct {
	mu           sync.Mutex
	sessionID    string
	participants []media.Participant
	onChange     media.Handlers[func()]
	onSegment    media.Handlers[func(media.Segment)]
	closed       bool
	done         chan struct{}
	owner        *Transport
}

func (r *Room) OnParticipantChange(fn func()) func() {
	r.mu.Lock()
	id := r.onChange.Add(fn)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.onChange.Remove(id)
		r.mu.Unlock()
	}
}

func (r *Room) OnTranscriptionSegment(fn func(media.Segment)) func() {
	r.mu.Lock()
	id := r.onSegment.Add(fn)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.onSegment.Remove(id)
		r.mu.Unlock()
	}
}

func (r *Room) Participants() []media.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]media.Participant(nil), r.participants...)
}

func (r *Room) Disconnect() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.onChange.Clear()
	r.onSegment.Clear()
	close(r.done)
	r.mu.Unlock()
	r.owner.release(r)
	return nil
}

// Apply 按帧更新房间，锁外按顺序通知订阅者
func (r *Room) Apply(f Frame) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	changed := false
	switch f.Type {
	case FrameParticipants:
		r.participants = append([]media.Participant(nil), f.Participants...)
		changed = true
	case FrameParticipantIn:
		if f.Participant != nil {
			r.participants = upsert(r.participants, *f.Participant)
			changed = true
		}
	case FrameParticipantOut:
		if f.Participant != nil {
			r.participants = remove(r.participants, f.Participant.Identity)
			changed = true
		}
	case FrameTrackPublished:
		changed = true
	}
	var changeFns []func()
	if changed {
		changeFns = r.onChange.Snapshot()
	}
	var segmentFns []func(media.Segment)
	if f.Type == FrameSegment {
		segmentFns = r.onSegment.Snapshot()
	}
	r.mu.Unlock()

	for _, fn := range changeFns {
		fn()
	}
	for _, seg := range f.Segments {
		for _, fn := range segmentFns {
			fn(seg)
		}
	}
}

func upsert(list []media.Participant, p media.Participant) []media.Participant {
	for i := range list {
		if list[i].Identity == p.Identity {
			list[i] = p
			return list
		}
	}
	return append(list, p)
}

func remove(list []media.Participant, identity string) []media.Participant {
	out := list[:0]
	for _, p := range list {
		if p.Identity != identity {
			out = append(out, p)
		}
	}
	return out
}
