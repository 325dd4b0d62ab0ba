package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile 与身份服务的用户一一对应
type Profile struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Email     string    `json:"email" gorm:"size:255;index"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// EnsureProfile 首次见到用户时建档，已有则只补 email
func EnsureProfile(db *gorm.DB, userID, email string) error {
	p := Profile{ID: userID, Email: email}
	return db.Where(Profile{ID: userID}).Assign(Profile{Email: email}).FirstOrCreate(&p).Error
}

// GetProfileEmail 用户不存在时返回空串
func GetProfileEmail(db *gorm.DB, userID string) (string, error) {
	var p Profile
	err := db.Select("email").Where("id = ?", userID).Limit(1).Find(&p).Error
	if err != nil {
		return "", err
	}
	return p.Email, nil
}

// 以下计费相关表只建结构，不参与业务

type Plan struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	Code       string         `json:"code" gorm:"size:64;not null;index"`
	Name       string         `json:"name" gorm:"not null"`
	Interval   string         `json:"interval" gorm:"size:10;not null"` // month | year
	PriceCents int            `json:"price_cents" gorm:"not null"`
	Currency   string         `json:"currency" gorm:"size:8;not null;default:usd"`
	IsActive   bool           `json:"is_active" gorm:"not null;default:true"`
	Limits     map[string]any `json:"limits" gorm:"serializer:json;type:text"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (p *Plan) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type Subscription struct {
	ID                   string     `json:"id" gorm:"primaryKey;size:36"`
	UserID               string     `json:"user_id" gorm:"size:36;not null;index"`
	PlanID               *string    `json:"plan_id" gorm:"size:36"`
	Status               string     `json:"status" gorm:"size:20;not null"`
	CurrentPeriodStart   *time.Time `json:"current_period_start"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end" gorm:"not null;default:false"`
	StripeCustomerID     string     `json:"-"`
	StripeSubscriptionID string     `json:"-"`
	CreatedAt            time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type UsageCounter struct {
	UserID           string    `json:"user_id" gorm:"primaryKey;size:36"`
	PeriodStart      time.Time `json:"period_start" gorm:"primaryKey"`
	PeriodEnd        time.Time `json:"period_end" gorm:"not null"`
	InterviewsUsed   int       `json:"interviews_used" gorm:"not null;default:0"`
	MinutesUsed      int       `json:"minutes_used" gorm:"not null;default:0"`
	UploadsUsed      int       `json:"uploads_used" gorm:"not null;default:0"`
	StorageBytesUsed int64     `json:"storage_bytes_used" gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}
