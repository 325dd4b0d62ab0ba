package interview

import (
	"context"
	"sync"
	"testing"
	"time"

	"Alora/internal/models"
	"Alora/pkg/backend"
	"Alora/pkg/media"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeRoom struct {
	mu          sync.Mutex
	parts       []media.Participant
	change      media.Handlers[func()]
	segs        media.Handlers[func(media.Segment)]
	disconnects int
}

func (r *fakeRoom) OnParticipantChange(fn func()) func() {
	r.mu.Lock()
	id := r.change.Add(fn)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.change.Remove(id)
		r.mu.Unlock()
	}
}

func (r *fakeRoom) OnTranscriptionSegment(fn func(media.Segment)) func() {
	r.mu.Lock()
	id := r.segs.Add(fn)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.segs.Remove(id)
		r.mu.Unlock()
	}
}

func (r *fakeRoom) Participants() []media.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]media.Participant(nil), r.parts...)
}

func (r *fakeRoom) Disconnect() error {
	r.mu.Lock()
	r.disconnects++
	r.mu.Unlock()
	return nil
}

func (r *fakeRoom) Disconnects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnects
}

func (r *fakeRoom) join(identity string) {
	r.mu.Lock()
	r.parts = append(r.parts, media.Participant{Identity: identity})
	fns := r.change.Snapshot()
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (r *fakeRoom) leave(identity string) {
	r.mu.Lock()
	kept := r.parts[:0]
	for _, p := range r.parts {
		if p.Identity != identity {
			kept = append(kept, p)
		}
	}
	r.parts = kept
	fns := r.change.Snapshot()
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (r *fakeRoom) say(identity, id, text string, final bool) {
	r.mu.Lock()
	fns := r.segs.Snapshot()
	r.mu.Unlock()
	seg := media.Segment{ID: id, Text: text, Final: final, Participant: media.Participant{Identity: identity}}
	for _, fn := range fns {
		fn(seg)
	}
}

func (r *fakeRoom) handlerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.change.Snapshot()) + len(r.segs.Snapshot())
}

type fakeTransport struct {
	mu       sync.Mutex
	room     *fakeRoom
	err      error
	connects int
	lastSID  string
}

func (f *fakeTransport) Connect(_ context.Context, sessionID, _ string) (media.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.lastSID = sessionID
	if f.err != nil {
		return nil, f.err
	}
	return f.room, nil
}

func (f *fakeTransport) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

type fakeSessions struct {
	mu      sync.Mutex
	next    string
	created int
	err     error
}

func (f *fakeSessions) CreateSession(context.Context, int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.created++
	return f.next, nil
}

func (f *fakeSessions) IssueMediaToken(_ context.Context, sid string) (string, error) {
	return "token-" + sid, nil
}

type fakeSummarizer struct {
	mu   sync.Mutex
	reqs []backend.SummaryRequest
	sum  *backend.Summary
	err  error
	gate chan struct{}
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string, req backend.SummaryRequest) (*backend.Summary, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.sum != nil {
		return f.sum, nil
	}
	return &backend.Summary{OverallSummary: "Good session."}, nil
}

func (f *fakeSummarizer) Requests() []backend.SummaryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.SummaryRequest(nil), f.reqs...)
}

type fakeRecorder struct {
	mu        sync.Mutex
	started   []string
	completed []models.CompleteInput
	err       error
}

func (f *fakeRecorder) MarkStarted(_ context.Context, userID, sessionID string) (*models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, sessionID)
	return &models.Interview{ID: "i1", UserID: userID, SessionID: sessionID}, nil
}

func (f *fakeRecorder) CompleteInterview(_ context.Context, in models.CompleteInput) (*models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.completed = append(f.completed, in)
	return &models.Interview{ID: "i1", UserID: in.UserID, SessionID: in.SessionID}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*models.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

type fakeEventLog struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEventLog) LogSessionEvent(_ context.Context, e *models.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e.EventType)
	return nil
}

func (f *fakeEventLog) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type sinkEvent struct {
	owner string
	kind  string
	data  any
}

type recSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *recSink) Publish(owner, kind string, data any) {
	s.mu.Lock()
	s.events = append(s.events, sinkEvent{owner, kind, data})
	s.mu.Unlock()
}

func (s *recSink) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (s *recSink) last(kind string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].kind == kind {
			return s.events[i].data
		}
	}
	return nil
}

func waitCompletion(t *testing.T, ch <-chan Completion) Completion {
	t.Helper()
	if ch == nil {
		t.Fatal("nil completion channel")
	}
	select {
	case c := <-ch:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("completion not delivered")
		return Completion{}
	}
}
