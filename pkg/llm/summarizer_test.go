package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Alora/pkg/backend"
)

func completionServer(t *testing.T, content string, seen *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if seen != nil && len(req.Messages) == 2 {
			*seen = req.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
			"usage": map[string]int{"total_tokens": 42},
		})
	}))
}

func TestSummarize(t *testing.T) {
	var prompt string
	srv := completionServer(t, "```json\n{\"title\":\"Backend loop\",\"overall_summary\":\"Good.\",\"scorecard\":{\"communication\":4},\"strengths\":[\"clear\"],\"improvements\":[],\"next_steps\":[]}\n```", &prompt)
	defer srv.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	s := NewSummarizer("sk-test", srv.URL+"/v1", "test", logger)

	sum, err := s.Summarize(context.Background(), "s1", backend.SummaryRequest{
		Transcript: []backend.TranscriptEntry{{Role: "agent", Text: "Hello"}, {Role: "user", Text: "Hi there"}},
		EndedBy:    "user",
		TurnsTotal: 2, TurnsAI: 1, TurnsUser: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Backend loop", sum.Title)
	assert.Equal(t, 4.0, sum.Scorecard.Communication)
	assert.Equal(t, "user", sum.SessionMeta.EndedBy)
	assert.Equal(t, 2, sum.SessionMeta.TurnsTotal)
	assert.Contains(t, prompt, "agent: Hello\nuser: Hi there")
}

func TestSummarizeMalformed(t *testing.T) {
	srv := completionServer(t, "not json at all", nil)
	defer srv.Close()

	_, err := NewSummarizer("sk-test", srv.URL+"/v1", "test", nil).Summarize(context.Background(), "s1", backend.SummaryRequest{})
	assert.Error(t, err)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence(` {"a":1} `))
}
