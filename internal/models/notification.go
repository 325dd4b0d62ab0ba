package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Notification struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	UserID    string         `json:"-" gorm:"size:36;not null;index"`
	Type      string         `json:"type" gorm:"size:64;not null"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload" gorm:"serializer:json;type:text"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

func CreateNotification(db *gorm.DB, n *Notification) error {
	return db.Create(n).Error
}

// ListNotifications 默认 50 条，最新在前
func ListNotifications(db *gorm.DB, userID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := []Notification{}
	err := db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func MarkNotificationRead(db *gorm.DB, userID, id string, now time.Time) error {
	return db.Model(&Notification{}).
		Where("user_id = ? AND id = ? AND read_at IS NULL", userID, id).
		Update("read_at", now).Error
}

func MarkAllNotificationsRead(db *gorm.DB, userID string, now time.Time) error {
	return db.Model(&Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", now).Error
}
