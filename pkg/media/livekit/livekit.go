// Package livekit 以隐身观察者身份加入 LiveKit 房间，把参与者与转写事件包装成 media.Room
package livekit

import (
	"context"
	"fmt"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"

	"Alora/pkg/media"
)

type Transport struct {
	url string
	log *zap.Logger
}

func New(url string, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{url: url, log: log}
}

func (t *Transport) Connect(ctx context.Context, sessionID, token string) (media.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := &Room{log: t.log.With(zap.String("session_id", sessionID))}

	cb := lksdk.NewRoomCallback()
	cb.OnParticipantConnected = func(*lksdk.RemoteParticipant) { r.emitChange() }
	cb.OnParticipantDisconnected = func(*lksdk.RemoteParticipant) { r.emitChange() }
	cb.OnTrackPublished = func(*lksdk.RemoteTrackPublication, *lksdk.RemoteParticipant) { r.emitChange() }
	cb.OnTranscriptionReceived = func(segs []*lksdk.TranscriptionSegment, p lksdk.Participant, _ lksdk.TrackPublication) {
		r.emitSegments(toSegments(segs, p))
	}
	cb.OnDisconnected = func() { r.log.Info("livekit room disconnected") }

	room, err := lksdk.ConnectToRoomWithToken(t.url, token, cb, lksdk.WithAutoSubscribe(false))
	if err != nil {
		return nil, fmt.Errorf("connect livekit room: %w", err)
	}
	r.mu.Lock()
	r.room = room
	r.mu.Unlock()
	return r, nil
}

type Room struct {
	mu        sync.Mutex
	room      *lksdk.Room
	onChange  media.Handlers[func()]
	onSegment media.Handlers[func(media.Segment)]
	closed    bool
	log       *zap.Logger
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
	room := r.room
	r.mu.Unlock()
	if room == nil {
		return nil
	}
	remote := room.GetRemoteParticipants()
	out := make([]media.Participant, 0, len(remote))
	for _, p := range remote {
		out = append(out, media.Participant{Identity: p.Identity(), Metadata: p.Metadata()})
	}
	return out
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
	room := r.room
	r.mu.Unlock()
	if room != nil {
		room.Disconnect()
	}
	return nil
}

func (r *Room) emitChange() {
	r.mu.Lock()
	fns := r.onChange.Snapshot()
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (r *Room) emitSegments(segs []media.Segment) {
	r.mu.Lock()
	fns := r.onSegment.Snapshot()
	r.mu.Unlock()
	for _, s := range segs {
		for _, fn := range fns {
			fn(s)
		}
	}
}

func toSegments(segs []*lksdk.TranscriptionSegment, p lksdk.Participant) []media.Segment {
	var who media.Participant
	if p != nil {
		who = media.Participant{Identity: p.Identity(), Metadata: p.Metadata()}
	}
	out := make([]media.Segment, 0, len(segs))
	for _, s := range segs {
		if s == nil {
			continue
		}
		out = append(out, media.Segment{ID: s.ID, Text: s.Text, Final: s.Final, Participant: who})
	}
	return out
}
