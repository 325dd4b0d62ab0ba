package models

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"Alora/pkg/backend"
	"Alora/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// 每个测试独立的内存库
	db, err := Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")), nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func intPtr(v int) *int { return &v }

func TestMarkInterviewStartedFirstStartWins(t *testing.T) {
	db := newTestDB(t)
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	first, err := MarkInterviewStarted(db, "u1", "s1", t0)
	require.NoError(t, err)
	assert.Equal(t, InterviewInProgress, first.Status)

	again, err := MarkInterviewStarted(db, "u1", "s1", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	require.NotNil(t, again.StartedAt)
	assert.True(t, t0.Equal(*again.StartedAt))

	var n int64
	db.Model(&Interview{}).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestCompleteInterview(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 1, 1, 10, 10, 0, 0, time.UTC)

	in := CompleteInput{
		UserID:    "u1",
		SessionID: "s1",
		Transcript: []backend.TranscriptEntry{
			{Role: backend.RoleAgent, Text: "Tell me about yourself."},
			{Role: backend.RoleUser, Text: "I build backends."},
		},
		Summary:               backend.Summary{OverallSummary: "Solid answers overall."},
		TargetDurationSeconds: intPtr(600),
		ActualDurationSeconds: intPtr(95),
		TurnsTotal:            2,
		Now:                   now,
	}
	row, err := CompleteInterview(db, in)
	require.NoError(t, err)
	assert.Equal(t, InterviewCompleted, row.Status)
	assert.Equal(t, "Solid answers overall.", *row.Title)
	assert.Equal(t, 95, *row.DurationSeconds)
	assert.True(t, now.Add(-95*time.Second).Equal(*row.StartedAt))

	// 再次完成：消息整体替换，总结 upsert
	in.Transcript = in.Transcript[:1]
	in.Summary = backend.Summary{Title: "Backend screen", OverallSummary: "Better."}
	in.ActualDurationSeconds = nil
	row2, err := CompleteInterview(db, in)
	require.NoError(t, err)
	assert.Equal(t, row.ID, row2.ID)
	assert.Equal(t, "Backend screen", *row2.Title)
	assert.Equal(t, 600, *row2.DurationSeconds)

	detail, err := GetInterviewDetail(db, "u1", row.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 1)
	require.NotNil(t, detail.Summary)
	assert.Equal(t, "Better.", detail.Summary.OverallSummary)

	_, err = GetInterviewDetail(db, "someone-else", row.ID)
	assert.True(t, errors.Is(err, ErrInterviewNotFound))
}

func TestCompleteInterviewKeepsMessagesWhenTranscriptEmpty(t *testing.T) {
	db := newTestDB(t)
	in := CompleteInput{
		UserID: "u1", SessionID: "s1",
		Transcript: []backend.TranscriptEntry{{Role: "user", Text: "hi"}},
		Summary:    backend.Summary{},
	}
	row, err := CompleteInterview(db, in)
	require.NoError(t, err)
	assert.Equal(t, "1 message interview", *row.Title)

	in.Transcript = nil
	_, err = CompleteInterview(db, in)
	require.NoError(t, err)
	detail, err := GetInterviewDetail(db, "u1", row.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 1)
}

func TestListInterviews(t *testing.T) {
	db := newTestDB(t)
	long := strings.Repeat("a", 130)
	_, err := CompleteInterview(db, CompleteInput{UserID: "u1", SessionID: "s1", Summary: backend.Summary{OverallSummary: long}})
	require.NoError(t, err)
	_, err = UpsertScheduledInterview(db, ScheduleInput{UserID: "u1", SessionID: "s2", ScheduledAt: time.Now().Add(time.Hour), Timezone: "UTC"})
	require.NoError(t, err)
	_, err = MarkInterviewStarted(db, "u2", "s3", time.Now())
	require.NoError(t, err)

	items, err := ListInterviews(db, "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	var preview *string
	for _, it := range items {
		if it.SessionID == "s1" {
			preview = it.SummaryPreview
		} else {
			assert.Nil(t, it.SummaryPreview)
			assert.Equal(t, InterviewScheduled, it.Status)
		}
	}
	require.NotNil(t, preview)
	assert.Len(t, *preview, 120)
	assert.True(t, strings.HasSuffix(*preview, "..."))
}

func TestSummaryPreview(t *testing.T) {
	assert.Equal(t, "short", SummaryPreview("short"))
	exact := strings.Repeat("b", 120)
	assert.Equal(t, exact, SummaryPreview(exact))
	assert.Equal(t, strings.Repeat("b", 117)+"...", SummaryPreview(exact+"b"))
}

func TestRepositoryNotificationsAndPresence(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))

	require.NoError(t, repo.CreateNotification(ctx, &Notification{UserID: "u1", Type: "interview_completed", Title: "Interview completed"}))
	require.NoError(t, repo.CreateNotification(ctx, &Notification{UserID: "u1", Type: "interview_scheduled", Payload: map[string]any{"session_id": "s1"}}))

	list, err := repo.ListNotifications(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, repo.MarkNotificationsRead(ctx, "u1", list[0].ID))
	require.NoError(t, repo.MarkNotificationsRead(ctx, "u1", ""))
	list, _ = repo.ListNotifications(ctx, "u1", 0)
	for _, n := range list {
		assert.NotNil(t, n.ReadAt)
	}

	p, err := repo.GetPresence(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, p)
	require.NoError(t, repo.UpsertPresence(ctx, "u1", "s1", "online"))
	require.NoError(t, repo.UpsertPresence(ctx, "u1", "s2", "in_interview"))
	p, err = repo.GetPresence(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "s2", p.SessionID)

	require.NoError(t, repo.LogSessionEvent(ctx, &SessionEvent{UserID: "u1", SessionID: "s1", EventType: "agent_connected"}))
	events, err := repo.ListSessionEvents(ctx, "u1", "s1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	require.NoError(t, repo.EnsureProfile(ctx, "u1", "u1@test.dev"))
	require.NoError(t, repo.EnsureProfile(ctx, "u1", "new@test.dev"))
	var prof Profile
	require.NoError(t, repo.DB().First(&prof, "id = ?", "u1").Error)
	assert.Equal(t, "new@test.dev", prof.Email)

	email, err := repo.ProfileEmail(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new@test.dev", email)
	email, err = repo.ProfileEmail(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, email)
}
