package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Alora/pkg/errors"
)

func TestCreateSessionAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/create":
			assert.Equal(t, "10", r.URL.Query().Get("duration_minutes"))
			_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "s1"})
		case "/token":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "s1", r.FormValue("session_id"))
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok", "session_id": "s1"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, nil)
	sid, err := c.CreateSession(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "s1", sid)

	tok, err := c.IssueMediaToken(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestSummarizeSendsTranscript(t *testing.T) {
	var got SummaryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/s1/summary", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"overall_summary":"Solid.","scorecard":{"communication":4},"strengths":["clear"],"improvements":[],"next_steps":[],"session_meta":{"ended_by":"user"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	sum, err := c.Summarize(context.Background(), "s1", SummaryRequest{
		Transcript: []TranscriptEntry{{Role: RoleAgent, Text: "Hello"}, {Role: RoleUser, Text: "Hi there"}},
		EndedBy:    "user",
		TurnsTotal: 2, TurnsAI: 1, TurnsUser: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Solid.", sum.OverallSummary)
	assert.Equal(t, 4.0, sum.Scorecard.Communication)
	assert.Len(t, got.Transcript, 2)
	assert.Equal(t, 2, got.TurnsTotal)
}

func TestErrorMessages(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"detail string": {`{"detail":"Session not found"}`, "Session not found"},
		"detail list":   {`{"detail":[{"msg":"field required"},"bad"]}`, "field required | bad"},
		"message":       {`{"message":"nope"}`, "nope"},
		"html":          {`<html>oops</html>`, "Request failed with status 502"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, nil).CreateSession(context.Background(), 0)
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
			assert.Equal(t, errors.CodeExternal, errors.GetCode(err))
		})
	}
}

func TestEmptySessionIDIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	_, err := NewClient(srv.URL, time.Second, nil).CreateSession(context.Background(), 0)
	assert.Error(t, err)
}
