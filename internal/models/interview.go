package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Alora/pkg/backend"
	"Alora/pkg/errors"
)

const (
	InterviewScheduled  = "scheduled"
	InterviewInProgress = "in_progress"
	InterviewCompleted  = "completed"
	InterviewCanceled   = "canceled"
	InterviewFailed     = "failed"
)

var ErrInterviewNotFound = errors.Sentinel(errors.CodeNotFound, "Interview not found")

type Interview struct {
	ID                    string     `json:"id" gorm:"primaryKey;size:36"`
	UserID                string     `json:"user_id" gorm:"size:36;not null;index;uniqueIndex:idx_interviews_user_session"`
	SessionID             string     `json:"session_id" gorm:"size:128;not null;uniqueIndex:idx_interviews_user_session"`
	Status                string     `json:"status" gorm:"size:20;not null;index"`
	Title                 *string    `json:"title,omitempty" gorm:"size:255"`
	ScheduledAt           *time.Time `json:"scheduled_at,omitempty" gorm:"index"`
	ScheduledTimezone     string     `json:"scheduled_timezone,omitempty" gorm:"size:64"`
	AutoStart             bool       `json:"auto_start" gorm:"not null;default:false"`
	TargetDurationSeconds *int       `json:"target_duration_seconds,omitempty"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	EndedAt               *time.Time `json:"ended_at,omitempty"`
	DurationSeconds       *int       `json:"duration_seconds,omitempty"`
	CreatedAt             time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt             time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (i *Interview) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

type InterviewMessage struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	InterviewID string    `json:"interview_id" gorm:"size:36;not null;index"`
	Seq         int       `json:"-" gorm:"not null;default:0"` // 到达顺序
	Role        string    `json:"role" gorm:"size:10;not null"`
	Text        string    `json:"text" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m *InterviewMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type InterviewSummary struct {
	InterviewID string          `json:"interview_id" gorm:"primaryKey;size:36"`
	Summary     backend.Summary `json:"summary" gorm:"serializer:json;type:text;not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// InterviewListItem 历史列表的一行
type InterviewListItem struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"session_id"`
	Status          string     `json:"status"`
	Title           *string    `json:"title,omitempty"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	EndedAt         *time.Time `json:"ended_at"`
	DurationSeconds *int       `json:"duration_seconds"`
	SummaryPreview  *string    `json:"summary_preview"`
}

type InterviewDetail struct {
	Interview Interview          `json:"interview"`
	Messages  []InterviewMessage `json:"messages"`
	Summary   *backend.Summary   `json:"summary"`
}

// MarkInterviewStarted 按 (user, session) 建行或更新；started_at 只写一次
func MarkInterviewStarted(db *gorm.DB, userID, sessionID string, now time.Time) (*Interview, error) {
	row := Interview{UserID: userID, SessionID: sessionID, Status: InterviewInProgress, StartedAt: &now}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, err
	}
	err := db.Model(&Interview{}).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Updates(map[string]any{
			"status":     InterviewInProgress,
			"started_at": gorm.Expr("COALESCE(started_at, ?)", now),
		}).Error
	if err != nil {
		return nil, err
	}
	return FindInterviewBySession(db, userID, sessionID)
}

// ScheduleInput 预约写入参数
type ScheduleInput struct {
	UserID                string
	SessionID             string
	ScheduledAt           time.Time
	Timezone              string
	AutoStart             bool
	TargetDurationSeconds *int
}

// UpsertScheduledInterview 写入 scheduled 行，同一会话重复预约时覆盖时间
func UpsertScheduledInterview(db *gorm.DB, in ScheduleInput) (*Interview, error) {
	at := in.ScheduledAt.UTC()
	row := Interview{
		UserID:                in.UserID,
		SessionID:             in.SessionID,
		Status:                InterviewScheduled,
		ScheduledAt:           &at,
		ScheduledTimezone:     in.Timezone,
		AutoStart:             in.AutoStart,
		TargetDurationSeconds: in.TargetDurationSeconds,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "scheduled_at", "scheduled_timezone", "auto_start", "target_duration_seconds", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return FindInterviewBySession(db, in.UserID, in.SessionID)
}

func FindInterviewBySession(db *gorm.DB, userID, sessionID string) (*Interview, error) {
	var row Interview
	err := db.Where("user_id = ? AND session_id = ?", userID, sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInterviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func GetInterview(db *gorm.DB, id string) (*Interview, error) {
	var row Interview
	err := db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInterviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func SetInterviewStatus(db *gorm.DB, id, status string) error {
	return db.Model(&Interview{}).Where("id = ?", id).Update("status", status).Error
}

// CompleteInput 结束一场面试时落库的全部内容
type CompleteInput struct {
	UserID                string
	SessionID             string
	Transcript            []backend.TranscriptEntry
	Summary               backend.Summary
	TargetDurationSeconds *int
	ActualDurationSeconds *int
	TurnsTotal            int
	Now                   time.Time
}

// CompleteInterview 在一个事务里写 interview、替换消息、upsert 总结
func CompleteInterview(db *gorm.DB, in CompleteInput) (*Interview, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	var out Interview
	err := db.Transaction(func(tx *gorm.DB) error {
		row, err := FindInterviewBySession(tx, in.UserID, in.SessionID)
		if err != nil && !errors.Is(err, ErrInterviewNotFound) {
			return err
		}
		if row == nil {
			row = &Interview{UserID: in.UserID, SessionID: in.SessionID}
		}

		turns := in.TurnsTotal
		if turns == 0 {
			turns = len(in.Transcript)
		}
		title := interviewTitle(in.Summary, turns)
		row.Status = InterviewCompleted
		row.Title = &title
		row.EndedAt = &now
		if in.TargetDurationSeconds != nil {
			row.TargetDurationSeconds = in.TargetDurationSeconds
		}
		duration := in.ActualDurationSeconds
		if duration == nil {
			duration = row.TargetDurationSeconds
		}
		row.DurationSeconds = duration
		if row.StartedAt == nil {
			started := now
			if duration != nil {
				started = now.Add(-time.Duration(*duration) * time.Second)
			}
			row.StartedAt = &started
		}
		if err := tx.Save(row).Error; err != nil {
			return err
		}

		if len(in.Transcript) > 0 {
			if err := tx.Where("interview_id = ?", row.ID).Delete(&InterviewMessage{}).Error; err != nil {
				return err
			}
			msgs := make([]InterviewMessage, 0, len(in.Transcript))
			for i, e := range in.Transcript {
				at := now
				if e.CreatedAt > 0 {
					at = time.UnixMilli(e.CreatedAt)
				}
				msgs = append(msgs, InterviewMessage{InterviewID: row.ID, Seq: i, Role: e.Role, Text: e.Text, CreatedAt: at})
			}
			if err := tx.Create(&msgs).Error; err != nil {
				return err
			}
		}

		sum := InterviewSummary{InterviewID: row.ID, Summary: in.Summary}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "interview_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"summary", "updated_at"}),
		}).Create(&sum).Error; err != nil {
			return err
		}
		out = *row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func interviewTitle(s backend.Summary, turns int) string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	if o := strings.TrimSpace(s.OverallSummary); o != "" {
		return truncateRunes(o, 80, "")
	}
	return fmt.Sprintf("%d message interview", turns)
}

// ListInterviews 最新的 limit 条，带总结摘要
func ListInterviews(db *gorm.DB, userID string, limit int) ([]InterviewListItem, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []Interview
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	previews := make(map[string]string, len(rows))
	if len(ids) > 0 {
		var sums []InterviewSummary
		if err := db.Where("interview_id IN ?", ids).Find(&sums).Error; err != nil {
			return nil, err
		}
		for _, s := range sums {
			previews[s.InterviewID] = s.Summary.OverallSummary
		}
	}

	items := make([]InterviewListItem, 0, len(rows))
	for _, r := range rows {
		item := InterviewListItem{
			ID:              r.ID,
			SessionID:       r.SessionID,
			Status:          r.Status,
			Title:           r.Title,
			ScheduledAt:     r.ScheduledAt,
			CreatedAt:       r.CreatedAt,
			EndedAt:         r.EndedAt,
			DurationSeconds: r.DurationSeconds,
		}
		if p, ok := previews[r.ID]; ok && p != "" {
			p = SummaryPreview(p)
			item.SummaryPreview = &p
		}
		items = append(items, item)
	}
	return items, nil
}

// SummaryPreview 超过 120 字符截到 117 加省略号
func SummaryPreview(s string) string {
	if utf8.RuneCountInString(s) <= 120 {
		return s
	}
	return truncateRunes(s, 117, "...")
}

func truncateRunes(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}

// GetInterviewDetail 仅返回属于该用户的面试
func GetInterviewDetail(db *gorm.DB, userID, id string) (*InterviewDetail, error) {
	var row Interview
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInterviewNotFound
	}
	if err != nil {
		return nil, err
	}
	detail := &InterviewDetail{Interview: row, Messages: []InterviewMessage{}}
	if err := db.Where("interview_id = ?", id).Order("seq ASC").Find(&detail.Messages).Error; err != nil {
		return nil, err
	}
	var sum InterviewSummary
	err = db.Where("interview_id = ?", id).First(&sum).Error
	switch {
	case err == nil:
		detail.Summary = &sum.Summary
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return detail, nil
}
