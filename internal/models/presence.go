package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserPresence struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;size:36"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status" gorm:"size:32"`
	LastSeen  time.Time `json:"last_seen" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func UpsertPresence(db *gorm.DB, p *UserPresence) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "status", "last_seen", "updated_at"}),
	}).Create(p).Error
}

// GetPresence 没有记录时返回 nil
func GetPresence(db *gorm.DB, userID string) (*UserPresence, error) {
	var p UserPresence
	err := db.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type SessionEvent struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	UserID    string         `json:"-" gorm:"size:36;not null;index"`
	SessionID string         `json:"session_id" gorm:"size:128;not null;index"`
	EventType string         `json:"event_type" gorm:"size:64;not null;index"`
	Payload   map[string]any `json:"payload" gorm:"serializer:json;type:text"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}

func (e *SessionEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

func LogSessionEvent(db *gorm.DB, e *SessionEvent) error {
	return db.Create(e).Error
}

// ListSessionEvents 按时间正序，默认 100 条
func ListSessionEvents(db *gorm.DB, userID, sessionID string, limit int) ([]SessionEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out := []SessionEvent{}
	err := db.Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("created_at ASC").Limit(limit).Find(&out).Error
	return out, err
}
