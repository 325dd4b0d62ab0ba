package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAgent(t *testing.T) {
	cases := []struct {
		p    Participant
		want bool
	}{
		{Participant{Identity: "Agent-7f2"}, true},
		{Participant{Identity: "interviewer", Metadata: `{"role":"AI"}`}, true},
		{Participant{Identity: "candidate-42"}, false},
		{Participant{Identity: "user", Metadata: `{"kind":"human"}`}, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsAgent(c.p, nil), c.p.Identity)
	}
	assert.True(t, IsAgent(Participant{Identity: "bot-1"}, []string{"BOT"}))
	assert.False(t, IsAgent(Participant{Identity: "agent"}, []string{"bot"}))
}

func TestHandlersKeepRegistrationOrder(t *testing.T) {
	var h Handlers[string]
	a := h.Add("a")
	h.Add("b")
	h.Add("c")
	h.Remove(a)
	assert.Equal(t, []string{"b", "c"}, h.Snapshot())
	h.Clear()
	assert.Empty(t, h.Snapshot())
}
