package handlers

import (
	"net/http"

	"Alora/internal/documents"
	"Alora/pkg/errors"
	"Alora/pkg/middleware"
	"Alora/pkg/response"

	"github.com/gin-gonic/gin"
)

// 表单里除文件外的字段留出的余量
const multipartOverhead = 1 << 20

func (h *Handlers) registerDocumentRoutes(r *gin.RouterGroup) {
	d := r.Group("/documents")
	d.GET("", h.listDocuments)
	d.POST("/upload", h.uploadDocument)
	d.POST("/text", h.uploadText)
}

func (h *Handlers) uploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, documents.MaxFileSize+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, documents.ErrTooLarge)
			return
		}
		response.Fail(c, documents.ErrMissingFields)
		return
	}
	f, err := header.Open()
	if err != nil {
		response.Fail(c, documents.ErrMissingFields)
		return
	}
	defer f.Close()

	res, err := h.Documents.UploadFile(c.Request.Context(), documents.FileInput{
		UserID:       middleware.UserID(c),
		Email:        middleware.UserEmail(c),
		SessionID:    c.PostForm("session_id"),
		DocumentType: c.PostForm("document_type"),
		FileName:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Body:         f,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, res)
}

type textRequest struct {
	SessionID    string `json:"session_id"`
	DocumentType string `json:"document_type"`
	Content      string `json:"content"`
}

func (h *Handlers) uploadText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWith(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	res, err := h.Documents.UploadText(c.Request.Context(), documents.TextInput{
		UserID:       middleware.UserID(c),
		Email:        middleware.UserEmail(c),
		SessionID:    req.SessionID,
		DocumentType: req.DocumentType,
		Content:      req.Content,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, res)
}

// listDocuments 可按 interview_id 过滤
func (h *Handlers) listDocuments(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	docs, err := h.Repo.ListDocuments(c.Request.Context(), uid, c.Query("interview_id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}
