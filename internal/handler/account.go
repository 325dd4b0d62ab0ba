package handlers

import (
	"net/http"
	"strconv"
	"time"

	"Alora/internal/models"
	"Alora/pkg/middleware"
	"Alora/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// presenceTTL 前端每 30 秒心跳一次，三次没收到即视为离线
const presenceTTL = 90 * time.Second

func (h *Handlers) registerAccountRoutes(r *gin.RouterGroup) {
	r.GET("/notifications", h.listNotifications)
	r.POST("/notifications/read", h.readNotifications)
	r.GET("/presence", h.getPresence)
	r.POST("/presence", h.updatePresence)
	r.GET("/events", h.listEvents)
	r.POST("/events", h.logEvent)
}

func (h *Handlers) presenceKey(uid string) string {
	return h.opts.RedisPrefix + ":presence:" + uid
}

func (h *Handlers) listNotifications(c *gin.Context) {
	uid := middleware.UserID(c)
	if uid == "" {
		response.Success(c, gin.H{"notifications": []models.Notification{}})
		return
	}
	items, err := h.Repo.ListNotifications(c.Request.Context(), uid, queryLimit(c, 50, 200))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"notifications": items})
}

type readRequest struct {
	NotificationID string `json:"notification_id"`
	All            bool   `json:"all"`
}

func (h *Handlers) readNotifications(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req readRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.NotificationID == "" && !req.All {
		response.FailWith(c, http.StatusBadRequest, "Missing notification_id.")
		return
	}
	id := req.NotificationID
	if req.All {
		id = ""
	}
	if err := h.Repo.MarkNotificationsRead(c.Request.Context(), uid, id); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"read": true})
}

type presenceRequest struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

func (h *Handlers) updatePresence(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req presenceRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.Status == "" {
		req.Status = "online"
	}
	ctx := c.Request.Context()
	if h.Redis != nil {
		now := strconv.FormatInt(time.Now().UnixMilli(), 10)
		if err := h.Redis.Set(ctx, h.presenceKey(uid), now, presenceTTL).Err(); err != nil {
			h.Log.Warn("presence heartbeat failed", zap.String("user_id", uid), zap.Error(err))
		}
	}
	if err := h.Repo.UpsertPresence(ctx, uid, req.SessionID, req.Status); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"status": req.Status})
}

// getPresence online 以 Redis 心跳为准，没有 Redis 时看库里的 last_seen
func (h *Handlers) getPresence(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p, err := h.Repo.GetPresence(ctx, uid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	online := p != nil && time.Since(p.LastSeen) < presenceTTL
	if h.Redis != nil {
		n, err := h.Redis.Exists(ctx, h.presenceKey(uid)).Result()
		if err == nil {
			online = n == 1
		}
	}
	response.Success(c, gin.H{"presence": p, "online": online})
}

func (h *Handlers) listEvents(c *gin.Context) {
	uid := middleware.UserID(c)
	if uid == "" {
		response.Success(c, gin.H{"events": []models.SessionEvent{}})
		return
	}
	sid := c.Query("session_id")
	if sid == "" {
		response.FailWith(c, http.StatusBadRequest, "Missing session_id.")
		return
	}
	events, err := h.Repo.ListSessionEvents(c.Request.Context(), uid, sid, queryLimit(c, 100, 500))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"events": events})
}

type eventRequest struct {
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
}

func (h *Handlers) logEvent(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req eventRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.SessionID == "" || req.EventType == "" {
		response.FailWith(c, http.StatusBadRequest, "Missing session_id or event_type.")
		return
	}
	e := &models.SessionEvent{UserID: uid, SessionID: req.SessionID, EventType: req.EventType, Payload: req.Payload}
	if err := h.Repo.LogSessionEvent(c.Request.Context(), e); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"event_id": e.ID})
}
