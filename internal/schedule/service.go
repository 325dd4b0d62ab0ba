package schedule

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"Alora/internal/interview"
	"Alora/internal/models"
	"Alora/pkg/errors"
	"Alora/pkg/metrics"
	"Alora/pkg/notification"
	"Alora/pkg/scheduler"
)

var (
	ErrUnauthenticated = errors.Sentinel(errors.CodeUnauthorized, "You must be signed in to schedule interviews.")
	ErrMissingFields   = errors.Sentinel(errors.CodeInvalidInput, "Missing scheduled_at or timezone.")
	ErrScheduleInPast  = errors.Sentinel(errors.CodeInvalidInput, "scheduled_at must be in the future.")
)

type Repository interface {
	UpsertScheduled(ctx context.Context, in models.ScheduleInput) (*models.Interview, error)
	SetInterviewStatus(ctx context.Context, id, status string) error
	GetInterview(ctx context.Context, id string) (*models.Interview, error)
	ProfileEmail(ctx context.Context, userID string) (string, error)
}

type SessionCreator interface {
	CreateSession(ctx context.Context, durationMinutes int) (string, error)
}

type Config struct {
	LeadTime        time.Duration
	MaxAttempts     int
	RetryBackoff    time.Duration
	AppBaseURL      string
	DefaultDuration time.Duration
	BatchSize       int
}

type Deps struct {
	Repo        Repository
	Sessions    SessionCreator
	Mailer      notification.Mailer
	Notifier    interview.Notifier
	Invalidator interview.Invalidator
	Queue       Queue
	Clock       scheduler.Clock
	Log         *zap.Logger
	Metrics     *metrics.Metrics
}

type Service struct {
	Deps
	cfg Config
}

func NewService(deps Deps, cfg Config) *Service {
	if deps.Clock == nil {
		deps.Clock = scheduler.Real()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 10 * time.Minute
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Minute
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = interview.DefaultDuration
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")
	return &Service{Deps: deps, cfg: cfg}
}

type CreateInput struct {
	UserID                string
	Email                 string
	SessionID             string
	ScheduledAt           time.Time
	Timezone              string
	AutoStart             bool
	TargetDurationSeconds *int
}

type ScheduleResult struct {
	ScheduleID            string               `json:"schedule_id"`
	SessionID             string               `json:"session_id"`
	ScheduledAt           time.Time            `json:"scheduled_at"`
	Timezone              string               `json:"timezone"`
	AutoStart             bool                 `json:"auto_start"`
	TargetDurationSeconds *int                 `json:"target_duration_seconds"`
	ReminderAt            *time.Time           `json:"reminder_at,omitempty"`
	Reminder              interview.SideEffect `json:"reminder"`
	Notify                interview.SideEffect `json:"notify"`
	Invalidate            interview.SideEffect `json:"invalidate"`
}

// JoinURL 邮件里的入会链接
func (s *Service) JoinURL(sessionID string) string {
	return s.cfg.AppBaseURL + "/interview/" + sessionID
}

// CreateSchedule 校验 → 确保会话 → 写 scheduled 行 → 确认邮件 → 通知 → 提醒入队 → 失效列表缓存
func (s *Service) CreateSchedule(ctx context.Context, in CreateInput) (*ScheduleResult, error) {
	if in.UserID == "" || in.Email == "" {
		return nil, ErrUnauthenticated
	}
	in.Timezone = strings.TrimSpace(in.Timezone)
	if in.ScheduledAt.IsZero() || in.Timezone == "" {
		return nil, ErrMissingFields
	}
	now := s.Clock.Now()
	if !in.ScheduledAt.After(now) {
		return nil, ErrScheduleInPast
	}
	if in.TargetDurationSeconds != nil && *in.TargetDurationSeconds <= 0 {
		in.TargetDurationSeconds = nil
	}
	log := s.Log.With(zap.String("user_id", in.UserID))
	began := time.Now()

	sid := strings.TrimSpace(in.SessionID)
	if sid == "" {
		created, err := s.Sessions.CreateSession(ctx, s.sessionMinutes(in.TargetDurationSeconds))
		if err != nil {
			s.Metrics.RecordBusinessOperation("schedule_create", "error")
			return nil, errors.WrapCode(err, errors.CodeExternal, "Unable to create a session.")
		}
		sid = created
	}

	row, err := s.Repo.UpsertScheduled(ctx, models.ScheduleInput{
		UserID:                in.UserID,
		SessionID:             sid,
		ScheduledAt:           in.ScheduledAt,
		Timezone:              in.Timezone,
		AutoStart:             in.AutoStart,
		TargetDurationSeconds: in.TargetDurationSeconds,
	})
	if err != nil {
		s.Metrics.RecordBusinessOperation("schedule_create", "error")
		return nil, errors.Wrap(err, "Failed to create schedule")
	}
	res := &ScheduleResult{
		ScheduleID:            row.ID,
		SessionID:             sid,
		ScheduledAt:           in.ScheduledAt.UTC(),
		Timezone:              in.Timezone,
		AutoStart:             in.AutoStart,
		TargetDurationSeconds: in.TargetDurationSeconds,
	}
	mail := notification.InterviewMail{
		ScheduledAt:     in.ScheduledAt,
		Timezone:        in.Timezone,
		DurationSeconds: derefInt(in.TargetDurationSeconds),
		JoinURL:         s.JoinURL(sid),
		AutoStart:       in.AutoStart,
	}

	if err := s.sendMail(ctx, in.Email, notification.SubjectScheduled, notification.RenderScheduled, mail); err != nil {
		log.Warn("confirmation email failed", zap.String("interview_id", row.ID), zap.Error(err))
		if serr := s.Repo.SetInterviewStatus(ctx, row.ID, models.InterviewFailed); serr != nil {
			log.Error("mark schedule failed", zap.String("interview_id", row.ID), zap.Error(serr))
		}
		s.invalidate(ctx, log, in.UserID, res)
		s.Metrics.RecordBusinessOperation("schedule_create", "error")
		return nil, errors.WrapCode(err, errors.CodeExternal, "Unable to send the confirmation email.")
	}

	res.Notify = s.notify(ctx, log, &models.Notification{
		UserID:  in.UserID,
		Type:    "schedule_created",
		Title:   "Interview scheduled",
		Message: fmt.Sprintf("Interview scheduled for %s.", res.ScheduledAt.Format(time.RFC3339)),
		Payload: map[string]any{
			"schedule_id":             row.ID,
			"session_id":              sid,
			"scheduled_at":            res.ScheduledAt.Format(time.RFC3339),
			"timezone":                in.Timezone,
			"auto_start":              in.AutoStart,
			"target_duration_seconds": in.TargetDurationSeconds,
		},
	})

	if at := in.ScheduledAt.Add(-s.cfg.LeadTime); at.After(now) {
		res.Reminder.Attempted = true
		if err := s.Queue.Add(ctx, row.ID, at); err != nil {
			res.Reminder.Err = err
			log.Warn("enqueue reminder failed", zap.String("interview_id", row.ID), zap.Error(err))
		} else {
			res.ReminderAt = &at
		}
	} else if err := s.Queue.Remove(ctx, row.ID); err != nil {
		// 改期进了提醒窗口，旧的提醒不能再发
		log.Warn("remove stale reminder failed", zap.String("interview_id", row.ID), zap.Error(err))
	}

	s.invalidate(ctx, log, in.UserID, res)
	s.Metrics.RecordBusinessOperation("schedule_create", "ok")
	s.Metrics.RecordBusinessDuration("schedule_create", time.Since(began))
	log.Info("interview scheduled", zap.String("interview_id", row.ID), zap.Time("scheduled_at", res.ScheduledAt))
	return res, nil
}

func (s *Service) sessionMinutes(target *int) int {
	d := s.cfg.DefaultDuration
	if target != nil {
		d = time.Duration(*target) * time.Second
	}
	return int(math.Ceil(d.Minutes()))
}

func (s *Service) sendMail(ctx context.Context, to, subject string, render func(notification.InterviewMail) (string, error), m notification.InterviewMail) error {
	html, err := render(m)
	if err != nil {
		return err
	}
	return s.Mailer.Send(ctx, to, subject, html)
}

func (s *Service) notify(ctx context.Context, log *zap.Logger, n *models.Notification) interview.SideEffect {
	if s.Notifier == nil {
		return interview.SideEffect{}
	}
	eff := interview.SideEffect{Attempted: true}
	if err := s.Notifier.Notify(ctx, n); err != nil {
		eff.Err = err
		log.Warn("notification failed", zap.String("type", n.Type), zap.Error(err))
	}
	return eff
}

func (s *Service) invalidate(ctx context.Context, log *zap.Logger, userID string, res *ScheduleResult) {
	if s.Invalidator == nil {
		return
	}
	res.Invalidate.Attempted = true
	if err := s.Invalidator.InvalidateInterviews(ctx, userID); err != nil {
		res.Invalidate.Err = err
		log.Warn("invalidate interview list failed", zap.Error(err))
	}
}

type SweepReport struct {
	Due      int `json:"due"`
	Sent     int `json:"sent"`
	Dropped  int `json:"dropped"`
	Retried  int `json:"retried"`
	Dead     int `json:"dead"`
	Skipped  int `json:"skipped"`
	Requeued int `json:"requeued"`
}

// SweepDueReminders 取出到期提醒逐个发送；先 Claim 再发，并发清扫不会重复发信
func (s *Service) SweepDueReminders(ctx context.Context) (*SweepReport, error) {
	now := s.Clock.Now()
	ids, err := s.Queue.Due(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to send reminders.")
	}
	report := &SweepReport{Due: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		claimed, err := s.Queue.Claim(ctx, id)
		if err != nil {
			s.Log.Warn("claim reminder failed", zap.String("interview_id", id), zap.Error(err))
			continue
		}
		if !claimed {
			report.Skipped++
			continue
		}
		s.deliver(ctx, id, now, report)
	}
	if report.Due > 0 {
		s.Log.Info("reminder sweep", zap.Int("due", report.Due), zap.Int("sent", report.Sent),
			zap.Int("dropped", report.Dropped), zap.Int("retried", report.Retried), zap.Int("dead", report.Dead))
	}
	return report, nil
}

func (s *Service) deliver(ctx context.Context, id string, now time.Time, report *SweepReport) {
	log := s.Log.With(zap.String("interview_id", id))
	drop := func(reason string) {
		report.Dropped++
		s.Metrics.RecordReminder("dropped")
		_ = s.Queue.Done(ctx, id)
		log.Debug("reminder dropped", zap.String("reason", reason))
	}

	row, err := s.Repo.GetInterview(ctx, id)
	if errors.Is(err, models.ErrInterviewNotFound) {
		drop("not found")
		return
	}
	if err != nil {
		s.retry(ctx, log, id, now, report, err)
		return
	}
	if row.Status != models.InterviewScheduled || row.ScheduledAt == nil {
		drop("not scheduled")
		return
	}
	if !row.ScheduledAt.After(now) {
		drop("already started")
		return
	}
	if at := row.ScheduledAt.Add(-s.cfg.LeadTime); at.After(now) {
		// 面试改到了更晚，按新时间重新排队
		if err := s.Queue.Add(ctx, id, at); err != nil {
			s.retry(ctx, log, id, now, report, err)
			return
		}
		report.Requeued++
		return
	}
	email, err := s.Repo.ProfileEmail(ctx, row.UserID)
	if err != nil {
		s.retry(ctx, log, id, now, report, err)
		return
	}
	if email == "" {
		drop("no email")
		return
	}

	tz := row.ScheduledTimezone
	if tz == "" {
		tz = "UTC"
	}
	err = s.sendMail(ctx, email, notification.SubjectReminder, notification.RenderReminder, notification.InterviewMail{
		ScheduledAt:     *row.ScheduledAt,
		Timezone:        tz,
		DurationSeconds: derefInt(row.TargetDurationSeconds),
		JoinURL:         s.JoinURL(row.SessionID),
		AutoStart:       row.AutoStart,
	})
	if err != nil {
		s.retry(ctx, log, id, now, report, err)
		return
	}

	s.notify(ctx, log, &models.Notification{
		UserID:  row.UserID,
		Type:    "schedule_reminder",
		Title:   "Interview starts soon",
		Message: "Your interview starts in about 10 minutes.",
		Payload: map[string]any{
			"session_id":              row.SessionID,
			"scheduled_at":            row.ScheduledAt.UTC().Format(time.RFC3339),
			"timezone":                tz,
			"auto_start":              row.AutoStart,
			"target_duration_seconds": row.TargetDurationSeconds,
		},
	})
	if err := s.Queue.Done(ctx, id); err != nil {
		log.Debug("clear reminder attempts", zap.Error(err))
	}
	report.Sent++
	s.Metrics.RecordReminder("sent")
}

// retry 第 n 次失败后在 now+backoff*n 重试，达到上限进死信
func (s *Service) retry(ctx context.Context, log *zap.Logger, id string, now time.Time, report *SweepReport, cause error) {
	prior, err := s.Queue.Attempts(ctx, id)
	if err != nil {
		log.Warn("read reminder attempts", zap.Error(err))
	}
	attempt := prior + 1
	if attempt >= s.cfg.MaxAttempts {
		if err := s.Queue.Bury(ctx, id, now); err != nil {
			log.Error("bury reminder failed", zap.Error(err))
		}
		report.Dead++
		s.Metrics.RecordReminder("dead")
		log.Error("reminder given up", zap.Int("attempts", attempt), zap.Error(cause))
		return
	}
	at := now.Add(s.cfg.RetryBackoff * time.Duration(attempt))
	if err := s.Queue.Reschedule(ctx, id, at); err != nil {
		log.Error("reschedule reminder failed", zap.Error(err))
	}
	report.Retried++
	s.Metrics.RecordReminder("retry")
	log.Warn("reminder send failed, will retry", zap.Int("attempt", attempt), zap.Time("retry_at", at), zap.Error(cause))
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
