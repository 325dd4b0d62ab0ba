package handlers

import (
	"net/http"
	"time"

	"Alora/internal/schedule"
	"Alora/pkg/middleware"
	"Alora/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) registerScheduleRoutes(r *gin.RouterGroup) {
	idem := middleware.Idempotency(middleware.IdempotencyConfig{
		TTL:   10 * time.Minute,
		Store: h.opts.IdemStore,
	})
	r.POST("/schedules", idem, h.createSchedule)
}

type scheduleRequest struct {
	SessionID             string `json:"session_id"`
	ScheduledAt           string `json:"scheduled_at"`
	Timezone              string `json:"timezone"`
	AutoStart             bool   `json:"auto_start"`
	TargetDurationSeconds *int   `json:"target_duration_seconds"`
}

func (h *Handlers) createSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWith(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	in := schedule.CreateInput{
		UserID:                middleware.UserID(c),
		Email:                 middleware.UserEmail(c),
		SessionID:             req.SessionID,
		Timezone:              req.Timezone,
		AutoStart:             req.AutoStart,
		TargetDurationSeconds: req.TargetDurationSeconds,
	}
	if in.UserID != "" && in.Email == "" {
		// token 里没有邮箱时用档案里的
		in.Email, _ = h.Repo.ProfileEmail(c.Request.Context(), in.UserID)
	}
	if req.ScheduledAt != "" {
		at, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			response.FailWith(c, http.StatusBadRequest, "scheduled_at must be an ISO 8601 timestamp.")
			return
		}
		in.ScheduledAt = at
	}
	res, err := h.Schedules.CreateSchedule(c.Request.Context(), in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, res)
}

// sweepSchedules 外部 cron 触发一次提醒扫描
func (h *Handlers) sweepSchedules(c *gin.Context) {
	report, err := h.Schedules.SweepDueReminders(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, report)
}
