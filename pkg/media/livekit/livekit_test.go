package livekit

import (
	"testing"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/stretchr/testify/assert"

	"Alora/pkg/media"
)

func TestSegmentMapping(t *testing.T) {
	segs := toSegments([]*lksdk.TranscriptionSegment{
		{ID: "seg-1", Text: "hello", Final: false},
		nil,
		{ID: "seg-1", Text: "hello there", Final: true},
	}, nil)
	assert.Equal(t, []media.Segment{
		{ID: "seg-1", Text: "hello"},
		{ID: "seg-1", Text: "hello there", Final: true},
	}, segs)
}

func TestDispatchAndTeardown(t *testing.T) {
	r := &Room{}
	changes := 0
	var got []string
	r.OnParticipantChange(func() { changes++ })
	unsub := r.OnTranscriptionSegment(func(s media.Segment) { got = append(got, s.ID) })

	r.emitChange()
	r.emitSegments([]media.Segment{{ID: "a"}, {ID: "b"}})
	unsub()
	r.emitSegments([]media.Segment{{ID: "c"}})

	assert.Equal(t, 1, changes)
	assert.Equal(t, []string{"a", "b"}, got)

	assert.NoError(t, r.Disconnect())
	r.emitChange()
	assert.Equal(t, 1, changes)
	assert.Empty(t, r.Participants())
}
