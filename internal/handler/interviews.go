package handlers

import (
	"Alora/internal/models"
	"Alora/pkg/middleware"
	"Alora/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) registerInterviewRoutes(r *gin.RouterGroup) {
	r.GET("/interviews", h.listInterviews)
	r.GET("/interviews/:id", h.getInterview)
}

// listInterviews 匿名用户返回空列表
func (h *Handlers) listInterviews(c *gin.Context) {
	uid := middleware.UserID(c)
	if uid == "" {
		response.Success(c, gin.H{"interviews": []models.InterviewListItem{}})
		return
	}
	items, err := h.History.ListInterviews(c.Request.Context(), uid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"interviews": items})
}

func (h *Handlers) getInterview(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	detail, err := h.History.GetInterviewDetail(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, detail)
}
