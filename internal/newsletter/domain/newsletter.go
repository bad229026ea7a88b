package domain

import "time"

// Newsletter is a recurring topic subscription owned by a user. It is never
// hard-deleted while issues reference it, deactivate instead.
type Newsletter struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	UserID     string     `json:"user_id" gorm:"index;not null"`
	Name       string     `json:"name" gorm:"not null"`
	Topic      string     `json:"topic" gorm:"not null"`
	Style      string     `json:"style" gorm:"default:professional"`
	Schedule   string     `json:"schedule"` // daily/weekly/biweekly/monthly or cron expression
	MaxSources int        `json:"max_sources" gorm:"default:5"`
	IsActive   bool       `json:"is_active" gorm:"default:true"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
