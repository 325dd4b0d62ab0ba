package handlers

import (
	"net/http"
	"time"

	"Alora/internal/interview"
	"Alora/internal/listeners"
	"Alora/pkg/errors"
	"Alora/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (h *Handlers) registerSessionRoutes(r *gin.RouterGroup) {
	s := r.Group("/session")
	s.GET("", h.getSession)
	s.POST("/start", h.startSession)
	s.POST("/end", h.endSession)
	s.POST("/visibility", h.setVisibility)
	s.POST("/prepare", h.prepareSession)
	s.POST("/reset", h.resetSession)
	s.GET("/events", h.sessionEvents)
	s.GET("/media", h.sessionMedia)
}

func (h *Handlers) controller(c *gin.Context) (*interview.Controller, interview.Owner, bool) {
	owner, ok := h.owner(c)
	if !ok {
		return nil, owner, false
	}
	ctl, err := h.Sessions.Get(owner)
	if err != nil {
		response.Fail(c, err)
		return nil, owner, false
	}
	return ctl, owner, true
}

func (h *Handlers) getSession(c *gin.Context) {
	ctl, _, ok := h.controller(c)
	if !ok {
		return
	}
	response.Success(c, ctl.Snapshot())
}

type startRequest struct {
	SessionID       string `json:"session_id"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (h *Handlers) startSession(c *gin.Context) {
	var req startRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ctl, _, ok := h.controller(c)
	if !ok {
		return
	}
	if req.SessionID != "" || req.DurationSeconds > 0 {
		// 运行中 Prepare 会返回 busy，交给 Start 的幂等处理
		err := ctl.Prepare(req.SessionID, time.Duration(req.DurationSeconds)*time.Second)
		if err != nil && !errors.Is(err, interview.ErrSessionBusy) {
			response.Fail(c, err)
			return
		}
	}
	if err := ctl.Start(c.Request.Context()); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, ctl.Snapshot())
}

type endRequest struct {
	Reason string `json:"reason"`
}

// endSession 等待总结完成；客户端先断开时结果仍会通过 SSE 推送
func (h *Handlers) endSession(c *gin.Context) {
	var req endRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ctl, _, ok := h.controller(c)
	if !ok {
		return
	}
	ch, _ := ctl.End(req.Reason)
	if ch == nil {
		response.Success(c, gin.H{"completion": nil, "session": ctl.Snapshot()})
		return
	}
	select {
	case comp := <-ch:
		if comp.Err != nil {
			response.Fail(c, comp.Err)
			return
		}
		response.Success(c, gin.H{"completion": comp, "session": ctl.Snapshot()})
	case <-c.Request.Context().Done():
		h.Log.Debug("end request left before summary", zap.Error(c.Request.Context().Err()))
	}
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

func (h *Handlers) setVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWith(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	ctl, _, ok := h.controller(c)
	if !ok {
		return
	}
	ctl.SetVisible(req.Visible)
	response.Success(c, ctl.Snapshot())
}

type prepareRequest struct {
	SessionID       string     `json:"session_id"`
	DurationSeconds int        `json:"duration_seconds"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	AutoStart       bool       `json:"auto_start"`
}

func (h *Handlers) prepareSession(c *gin.Context) {
	var req prepareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWith(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	ctl, _, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctl.Prepare(req.SessionID, time.Duration(req.DurationSeconds)*time.Second); err != nil {
		response.Fail(c, err)
		return
	}
	if req.ScheduledAt != nil {
		ctl.ScheduleAutoStart(*req.ScheduledAt, req.AutoStart)
	}
	response.Success(c, ctl.Snapshot())
}

func (h *Handlers) resetSession(c *gin.Context) {
	ctl, _, ok := h.controller(c)
	if !ok {
		return
	}
	ctl.Reset()
	response.Success(c, ctl.Snapshot())
}

// sessionEvents 每个连接一个 client id，同一会话可以多开标签页
func (h *Handlers) sessionEvents(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	groups := []string{listeners.SessionGroup(owner.Key)}
	if owner.UserID != "" {
		groups = append(groups, listeners.UserGroup(owner.UserID))
	}
	h.Hub.Serve(c, owner.Key+":"+uuid.NewString(), groups...)
}

func (h *Handlers) sessionMedia(c *gin.Context) {
	if h.Bridge == nil {
		response.FailWith(c, http.StatusNotFound, "Media bridge is not enabled.")
		return
	}
	sid := c.Query("session_id")
	if sid == "" {
		response.FailWith(c, http.StatusBadRequest, "Missing session_id.")
		return
	}
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	// 只有会话归属者且会话正在进行时才能推帧
	ctl, found := h.Sessions.Lookup(owner.Key)
	if !found || !ctl.Owns(sid) {
		response.FailWith(c, http.StatusForbidden, "Session does not belong to this client.")
		return
	}
	if err := h.Bridge.Serve(c.Writer, c.Request, sid); err != nil {
		h.Log.Info("media bridge closed", zap.String("session_id", sid), zap.Error(err))
	}
}
