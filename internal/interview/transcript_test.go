package interview

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Alora/pkg/backend"
	"Alora/pkg/media"
	"Alora/pkg/scheduler"
)

type emitted struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (e *emitted) emit(kind string, data any) {
	e.mu.Lock()
	e.events = append(e.events, sinkEvent{kind: kind, data: data})
	e.mu.Unlock()
}

func (e *emitted) of(kind string) []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []any
	for _, ev := range e.events {
		if ev.kind == kind {
			out = append(out, ev.data)
		}
	}
	return out
}

func newTestTranscript() (*Transcript, *scheduler.Virtual, *emitted) {
	clock := scheduler.NewVirtual(t0)
	rec := &emitted{}
	tr := NewTranscript(TranscriptOptions{Clock: clock, Emit: rec.emit})
	return tr, clock, rec
}

func seg(identity, id, text string, final bool) media.Segment {
	return media.Segment{ID: id, Text: text, Final: final, Participant: media.Participant{Identity: identity}}
}

func TestTranscriptDuplicateFinalIsIdempotent(t *testing.T) {
	tr, _, rec := newTestTranscript()

	tr.Handle(seg("agent-1", "a1", "Tell me about yourself.", true))
	tr.Handle(seg("agent-1", "a1", "Tell me about yourself.", true))

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Agent)
	assert.True(t, msgs[0].Final)
	assert.Len(t, rec.of("transcript"), 1)
}

func TestTranscriptFinalRevisionReplacesInPlace(t *testing.T) {
	tr, clock, _ := newTestTranscript()

	tr.Handle(seg("agent-1", "a1", "Hello", true))
	tr.Handle(seg("candidate", "u1", "Hi there", true))
	clock.Advance(time.Second)
	tr.Handle(seg("agent-1", "a1", "Hello, welcome.", true))

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello, welcome.", msgs[0].Text)
	assert.Equal(t, t0, msgs[0].CreatedAt)
	assert.Equal(t, "Hi there", msgs[1].Text)
}

func TestTranscriptPartialsDebounceToOnePublish(t *testing.T) {
	tr, clock, rec := newTestTranscript()

	for i := 0; i < 10; i++ {
		tr.Handle(seg("candidate", "p1", fmt.Sprintf("word %d", i), false))
		clock.Advance(10 * time.Millisecond)
	}
	assert.Empty(t, rec.of("streaming"))
	assert.Nil(t, tr.Streaming())

	clock.Advance(DefaultPartialDebounce)
	streams := rec.of("streaming")
	require.Len(t, streams, 1)
	assert.Equal(t, "word 9", streams[0].(Message).Text)
	require.NotNil(t, tr.Streaming())
	assert.Empty(t, tr.Messages())
}

func TestTranscriptFinalClearsStreamingAndIgnoresLatePartial(t *testing.T) {
	tr, clock, rec := newTestTranscript()

	tr.Handle(seg("candidate", "p1", "I have", false))
	clock.Advance(DefaultPartialDebounce)
	require.NotNil(t, tr.Streaming())

	tr.Handle(seg("candidate", "p1", "I have five years of Go.", true))
	assert.Nil(t, tr.Streaming())
	streams := rec.of("streaming")
	require.Len(t, streams, 2)
	assert.Nil(t, streams[1])

	tr.Handle(seg("candidate", "p1", "I have five", false))
	clock.Advance(time.Second)
	assert.Nil(t, tr.Streaming())
	assert.Len(t, rec.of("streaming"), 2)
	assert.Len(t, tr.Messages(), 1)
}

func TestTranscriptFinalCancelsPendingPartial(t *testing.T) {
	tr, clock, rec := newTestTranscript()

	tr.Handle(seg("candidate", "p1", "so", false))
	tr.Handle(seg("candidate", "p1", "so basically", true))
	clock.Advance(time.Second)

	assert.Empty(t, rec.of("streaming"))
	assert.Len(t, tr.Messages(), 1)
}

func TestTranscriptSpeakingIsExclusiveAndResets(t *testing.T) {
	tr, clock, rec := newTestTranscript()

	tr.Handle(seg("agent-1", "a1", "Question one.", true))
	assert.Equal(t, SpeakerAgent, tr.Speaking())
	tr.Handle(seg("candidate", "u1", "Answer", false))
	assert.Equal(t, SpeakerUser, tr.Speaking())

	clock.Advance(DefaultSpeakingReset - time.Millisecond)
	assert.Equal(t, SpeakerUser, tr.Speaking())
	clock.Advance(time.Millisecond)
	assert.Equal(t, SpeakerNone, tr.Speaking())
	assert.Equal(t, []any{SpeakerAgent, SpeakerUser, SpeakerNone}, rec.of("speaking"))
}

func TestTranscriptFinalIncludesFragment(t *testing.T) {
	tr, _, _ := newTestTranscript()

	tr.Handle(seg("agent-1", "a1", "Why Go?", true))
	tr.Handle(seg("candidate", "u1", "Because of", false))

	final := tr.Final()
	require.Len(t, final, 2)
	assert.Equal(t, "Because of", final[1].Text)
	assert.True(t, final[1].Final)

	tr.Stop()
	assert.Len(t, tr.Final(), 2)
	assert.Equal(t, SpeakerNone, tr.Speaking())

	entries := Entries(tr.Final())
	assert.Equal(t, backend.RoleAgent, entries[0].Role)
	assert.Equal(t, backend.RoleUser, entries[1].Role)
	assert.Equal(t, t0.UnixMilli(), entries[0].CreatedAt)

	tr.Reset()
	assert.Empty(t, tr.Final())
	assert.Nil(t, tr.Streaming())
}

func TestTranscriptIgnoresEmptyText(t *testing.T) {
	tr, clock, rec := newTestTranscript()
	tr.Handle(seg("candidate", "u1", "   ", false))
	tr.Handle(seg("candidate", "u2", "", true))
	clock.Advance(time.Second)
	assert.Empty(t, tr.Messages())
	assert.Empty(t, rec.of("streaming"))
	assert.Empty(t, rec.of("transcript"))
}
