package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Document struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	UserID        string    `json:"user_id" gorm:"size:36;not null;index"`
	InterviewID   *string   `json:"interview_id,omitempty" gorm:"size:36;index"`
	DocumentType  string    `json:"document_type" gorm:"size:32;not null"` // cv | resume | job_description | other
	FileName      string    `json:"file_name" gorm:"not null"`
	StoragePath   string    `json:"storage_path" gorm:"not null"`
	ContentType   string    `json:"content_type"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

func CreateDocument(db *gorm.DB, d *Document) error {
	return db.Create(d).Error
}

func ListDocuments(db *gorm.DB, userID string, interviewID string) ([]Document, error) {
	out := []Document{}
	q := db.Where("user_id = ?", userID)
	if interviewID != "" {
		q = q.Where("interview_id = ?", interviewID)
	}
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}
