package documents

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Alora/internal/models"
	"Alora/pkg/errors"
	"Alora/pkg/scheduler"
	"Alora/pkg/storage"
)

const (
	MaxFileSize   = 10 * 1024 * 1024
	PreviewLength = 200
)

var (
	ErrMissingFields = errors.Sentinel(errors.CodeInvalidInput, "Missing session_id, document_type, or file.")
	ErrTooLarge      = errors.Sentinel(errors.CodeTooLarge, "File exceeds 10MB limit.")
	ErrEmptyText     = errors.Sentinel(errors.CodeInvalidInput, "Document text is empty.")
)

// 上传接受的类型；落库只区分 cv/resume/job_description/other
var (
	acceptedTypes = map[string]bool{
		"cv": true, "resume": true, "job_description": true,
		"company_info": true, "notes": true, "other": true,
	}
	storedTypes = map[string]bool{"cv": true, "resume": true, "job_description": true, "other": true}
)

func ParseType(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, acceptedTypes[s]
}

func storedType(t string) string {
	if storedTypes[t] {
		return t
	}
	return "other"
}

type Repository interface {
	EnsureProfile(ctx context.Context, userID, email string) error
	FindInterviewBySession(ctx context.Context, userID, sessionID string) (*models.Interview, error)
	CreateDocument(ctx context.Context, d *models.Document) error
}

type Service struct {
	objects storage.ObjectStore
	repo    Repository
	clock   scheduler.Clock
	log     *zap.Logger
}

func NewService(store storage.ObjectStore, repo Repository, clock scheduler.Clock, log *zap.Logger) *Service {
	if clock == nil {
		clock = scheduler.Real()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{objects: store, repo: repo, clock: clock, log: log}
}

type FileInput struct {
	UserID       string
	Email        string
	SessionID    string
	DocumentType string
	FileName     string
	ContentType  string
	Size         int64
	Body         io.Reader
}

type TextInput struct {
	UserID       string
	Email        string
	SessionID    string
	DocumentType string
	Content      string
}

type Response struct {
	DocumentID     string `json:"document_id"`
	FileName       string `json:"filename"`
	DocumentType   string `json:"document_type"`
	ContentPreview string `json:"content_preview,omitempty"`
	CharacterCount int    `json:"character_count,omitempty"`
}

func (s *Service) UploadFile(ctx context.Context, in FileInput) (*Response, error) {
	docType, ok := ParseType(in.DocumentType)
	if strings.TrimSpace(in.SessionID) == "" || !ok || in.Body == nil {
		return nil, ErrMissingFields
	}
	if in.Size > MaxFileSize {
		return nil, ErrTooLarge
	}
	name := SanitizeFileName(in.FileName)
	if name == "" {
		name = s.fallbackName(docType, "pdf")
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	// 申报大小不可信，多读一个字节用来判断是否超限
	body := &countingReader{r: io.LimitReader(in.Body, MaxFileSize+1)}
	id, err := s.save(ctx, in.UserID, in.Email, in.SessionID, docType, name, contentType, in.Size, body)
	if err != nil {
		return nil, err
	}
	return &Response{DocumentID: id, FileName: name, DocumentType: docType}, nil
}

func (s *Service) UploadText(ctx context.Context, in TextInput) (*Response, error) {
	docType, ok := ParseType(in.DocumentType)
	if strings.TrimSpace(in.SessionID) == "" || !ok {
		return nil, ErrMissingFields
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, ErrEmptyText
	}
	if len(in.Content) > MaxFileSize {
		return nil, ErrTooLarge
	}
	name := s.fallbackName(docType, "txt")
	body := &countingReader{r: strings.NewReader(in.Content)}
	id, err := s.save(ctx, in.UserID, in.Email, in.SessionID, docType, name, "text/plain", int64(len(in.Content)), body)
	if err != nil {
		return nil, err
	}
	return &Response{
		DocumentID:     id,
		FileName:       name,
		DocumentType:   docType,
		ContentPreview: preview(in.Content),
		CharacterCount: utf8.RuneCountInString(in.Content),
	}, nil
}

func (s *Service) save(ctx context.Context, userID, email, sessionID, docType, name, contentType string, size int64, body *countingReader) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	key := fmt.Sprintf("sessions/%s/%s/%d-%s", sessionID, docType, s.clock.Now().UnixMilli(), name)
	log := s.log.With(zap.String("session_id", sessionID), zap.String("key", key))

	if err := s.objects.Put(ctx, key, body, size, contentType); err != nil {
		log.Warn("document upload failed", zap.Error(err))
		return "", errors.WrapCode(err, errors.CodeInternal, "Upload failed")
	}
	if body.n > MaxFileSize {
		_ = s.objects.Delete(ctx, key)
		return "", ErrTooLarge
	}
	if userID == "" {
		return uuid.NewString(), nil
	}

	if err := s.repo.EnsureProfile(ctx, userID, email); err != nil {
		log.Warn("ensure profile failed", zap.Error(err))
	}
	doc := &models.Document{
		UserID:        userID,
		DocumentType:  storedType(docType),
		FileName:      name,
		StoragePath:   key,
		ContentType:   contentType,
		FileSizeBytes: body.n,
	}
	if row, err := s.repo.FindInterviewBySession(ctx, userID, sessionID); err == nil {
		doc.InterviewID = &row.ID
	} else if !errors.Is(err, models.ErrInterviewNotFound) {
		log.Warn("lookup interview for document failed", zap.Error(err))
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return "", errors.Wrap(err, "Upload failed")
	}
	log.Info("document stored", zap.String("document_id", doc.ID), zap.Int64("bytes", body.n))
	return doc.ID, nil
}

func (s *Service) fallbackName(docType, ext string) string {
	t := unsafeType.ReplaceAllString(docType, "-")
	if t == "" {
		t = "document"
	}
	return fmt.Sprintf("%s-%d.%s", t, s.clock.Now().UnixMilli(), ext)
}

var (
	unsafeName = regexp.MustCompile(`[^a-z0-9._-]+`)
	dashRun    = regexp.MustCompile(`-+`)
	unsafeType = regexp.MustCompile(`(?i)[^a-z0-9_-]+`)
)

// SanitizeFileName 小写，非安全字符折成单个 -，去掉首尾 -
func SanitizeFileName(name string) string {
	name = unsafeName.ReplaceAllString(strings.ToLower(name), "-")
	name = dashRun.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= PreviewLength {
		return s
	}
	return string([]rune(s)[:PreviewLength])
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
