package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository 绑定 *gorm.DB，给上层各服务用
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) DB() *gorm.DB { return r.db }

func (r *Repository) with(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

func (r *Repository) MarkStarted(ctx context.Context, userID, sessionID string) (*Interview, error) {
	return MarkInterviewStarted(r.with(ctx), userID, sessionID, r.now())
}

func (r *Repository) CompleteInterview(ctx context.Context, in CompleteInput) (*Interview, error) {
	if in.Now.IsZero() {
		in.Now = r.now()
	}
	return CompleteInterview(r.with(ctx), in)
}

func (r *Repository) UpsertScheduled(ctx context.Context, in ScheduleInput) (*Interview, error) {
	return UpsertScheduledInterview(r.with(ctx), in)
}

func (r *Repository) GetInterview(ctx context.Context, id string) (*Interview, error) {
	return GetInterview(r.with(ctx), id)
}

func (r *Repository) SetInterviewStatus(ctx context.Context, id, status string) error {
	return SetInterviewStatus(r.with(ctx), id, status)
}

func (r *Repository) FindInterviewBySession(ctx context.Context, userID, sessionID string) (*Interview, error) {
	return FindInterviewBySession(r.with(ctx), userID, sessionID)
}

func (r *Repository) ListInterviews(ctx context.Context, userID string, limit int) ([]InterviewListItem, error) {
	return ListInterviews(r.with(ctx), userID, limit)
}

func (r *Repository) GetInterviewDetail(ctx context.Context, userID, id string) (*InterviewDetail, error) {
	return GetInterviewDetail(r.with(ctx), userID, id)
}

func (r *Repository) CreateNotification(ctx context.Context, n *Notification) error {
	return CreateNotification(r.with(ctx), n)
}

func (r *Repository) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	return ListNotifications(r.with(ctx), userID, limit)
}

// MarkNotificationsRead id 为空时全部标记已读
func (r *Repository) MarkNotificationsRead(ctx context.Context, userID, id string) error {
	if id == "" {
		return MarkAllNotificationsRead(r.with(ctx), userID, r.now())
	}
	return MarkNotificationRead(r.with(ctx), userID, id, r.now())
}

func (r *Repository) UpsertPresence(ctx context.Context, userID, sessionID, status string) error {
	return UpsertPresence(r.with(ctx), &UserPresence{UserID: userID, SessionID: sessionID, Status: status, LastSeen: r.now()})
}

func (r *Repository) GetPresence(ctx context.Context, userID string) (*UserPresence, error) {
	return GetPresence(r.with(ctx), userID)
}

func (r *Repository) LogSessionEvent(ctx context.Context, e *SessionEvent) error {
	return LogSessionEvent(r.with(ctx), e)
}

func (r *Repository) ListSessionEvents(ctx context.Context, userID, sessionID string, limit int) ([]SessionEvent, error) {
	return ListSessionEvents(r.with(ctx), userID, sessionID, limit)
}

func (r *Repository) CreateDocument(ctx context.Context, d *Document) error {
	return CreateDocument(r.with(ctx), d)
}

func (r *Repository) ListDocuments(ctx context.Context, userID, interviewID string) ([]Document, error) {
	return ListDocuments(r.with(ctx), userID, interviewID)
}

func (r *Repository) EnsureProfile(ctx context.Context, userID, email string) error {
	return EnsureProfile(r.with(ctx), userID, email)
}

func (r *Repository) ProfileEmail(ctx context.Context, userID string) (string, error) {
	return GetProfileEmail(r.with(ctx), userID)
}
