package domain

import "time"

// SubscriptionStatus mirrors the billing provider's view of the user
type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type User struct {
	ID                 string             `json:"id" gorm:"primaryKey"`
	Email              string             `json:"email" gorm:"uniqueIndex;not null"`
	Password           string             `json:"-"` // Never return password in JSON
	Name               string             `json:"name"`
	SubscriptionID     string             `json:"subscription_id,omitempty" gorm:"index"` // external billing subscription ID
	SubscriptionStatus SubscriptionStatus `json:"subscription_status" gorm:"default:none"`
	IsActive           bool               `json:"is_active" gorm:"default:true"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type RefreshToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeliveryEligible reports whether issues may still be sent to this user.
// past_due keeps access: the grace period is enforced by the billing
// provider's own dunning flow, only an explicit cancellation blocks sends.
func (u *User) DeliveryEligible() bool {
	return u.IsActive && u.SubscriptionStatus != SubscriptionCancelled
}
