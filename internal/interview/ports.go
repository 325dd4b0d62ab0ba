package interview

import (
	"context"

	"Alora/internal/models"
	"Alora/pkg/backend"
)

type SessionService interface {
	CreateSession(ctx context.Context, durationMinutes int) (string, error)
	IssueMediaToken(ctx context.Context, sessionID string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, sessionID string, req backend.SummaryRequest) (*backend.Summary, error)
}

// Recorder 面试落库
type Recorder interface {
	MarkStarted(ctx context.Context, userID, sessionID string) (*models.Interview, error)
	CompleteInterview(ctx context.Context, in models.CompleteInput) (*models.Interview, error)
}

type Invalidator interface {
	InvalidateInterviews(ctx context.Context, userID string, interviewIDs ...string) error
}

type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

type EventLog interface {
	LogSessionEvent(ctx context.Context, e *models.SessionEvent) error
}

// EventSink 推送给前端的实时事件，实现必须非阻塞
type EventSink interface {
	Publish(owner, kind string, data any)
}
