package documents

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Alora/internal/models"
	"Alora/pkg/errors"
	"Alora/pkg/scheduler"
	"Alora/pkg/storage"
)

var t0 = time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *storage.MemoryStore, *models.Repository) {
	t.Helper()
	db, err := models.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")), nil)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	repo := models.NewRepository(db)
	store := storage.NewMemoryStore()
	return NewService(store, repo, scheduler.NewVirtual(t0), nil), store, repo
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "my-cv-2026.pdf", SanitizeFileName("  My CV 2026.PDF"))
	assert.Equal(t, "a_b.txt", SanitizeFileName("--a_b.txt--"))
	assert.Equal(t, "", SanitizeFileName("简历"))
}

func TestUploadFileLinksInterview(t *testing.T) {
	ctx := context.Background()
	svc, store, repo := newService(t)
	row, err := repo.MarkStarted(ctx, "u1", "s1")
	require.NoError(t, err)

	res, err := svc.UploadFile(ctx, FileInput{
		UserID: "u1", Email: "u1@example.com", SessionID: "s1", DocumentType: "company_info",
		FileName: "Acme Corp.pdf", ContentType: "application/pdf", Size: 5, Body: bytes.NewReader([]byte("%PDF-")),
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-corp.pdf", res.FileName)
	assert.Equal(t, "company_info", res.DocumentType)
	assert.Empty(t, res.ContentPreview)

	docs, err := models.ListDocuments(repo.DB(), "u1", row.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, res.DocumentID, docs[0].ID)
	assert.Equal(t, "other", docs[0].DocumentType)
	assert.Equal(t, int64(5), docs[0].FileSizeBytes)
	key := fmt.Sprintf("sessions/s1/company_info/%d-acme-corp.pdf", t0.UnixMilli())
	assert.Equal(t, key, docs[0].StoragePath)
	assert.Equal(t, "application/pdf", store.ContentType(key))
}

func TestUploadFileAnonymousFallbackName(t *testing.T) {
	ctx := context.Background()
	svc, store, repo := newService(t)
	res, err := svc.UploadFile(ctx, FileInput{SessionID: "s1", DocumentType: "cv", FileName: "???", Size: 3, Body: strings.NewReader("abc")})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("cv-%d.pdf", t0.UnixMilli()), res.FileName)
	assert.NotEmpty(t, res.DocumentID)

	ok, err := store.Exists(ctx, fmt.Sprintf("sessions/s1/cv/%d-%s", t0.UnixMilli(), res.FileName))
	require.NoError(t, err)
	assert.True(t, ok)
	var n int64
	require.NoError(t, repo.DB().Model(&models.Document{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUploadRejections(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.UploadFile(ctx, FileInput{SessionID: "s1", DocumentType: "poem", Size: 1, Body: strings.NewReader("x")})
	assert.True(t, errors.Is(err, ErrMissingFields))

	_, err = svc.UploadFile(ctx, FileInput{SessionID: "s1", DocumentType: "cv", Size: MaxFileSize + 1, Body: strings.NewReader("x")})
	assert.True(t, errors.Is(err, ErrTooLarge))
	assert.Equal(t, 413, errors.HTTPStatus(err))

	_, err = svc.UploadFile(ctx, FileInput{SessionID: "s1", DocumentType: "cv", Size: 1, Body: bytes.NewReader(make([]byte, MaxFileSize+10))})
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = svc.UploadText(ctx, TextInput{SessionID: "s1", DocumentType: "notes", Content: "  \n"})
	assert.True(t, errors.Is(err, ErrEmptyText))
	_, err = svc.UploadText(ctx, TextInput{DocumentType: "notes", Content: "hi"})
	assert.True(t, errors.Is(err, ErrMissingFields))
}

func TestUploadTextPreview(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(t)
	content := strings.Repeat("é", 250)

	res, err := svc.UploadText(ctx, TextInput{UserID: "u1", SessionID: "s1", DocumentType: "job_description", Content: content})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("job_description-%d.txt", t0.UnixMilli()), res.FileName)
	assert.Equal(t, 250, res.CharacterCount)
	assert.Equal(t, strings.Repeat("é", 200), res.ContentPreview)
	assert.Equal(t, "text/plain", store.ContentType(fmt.Sprintf("sessions/s1/job_description/%d-%s", t0.UnixMilli(), res.FileName)))
}
