package domain

import "time"

// WebhookEvent is the ingest record for one provider event. EventID is the
// provider's ID, so redelivered events collide on the unique index and are
// dropped without reprocessing.
type WebhookEvent struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	EventID    string    `json:"event_id" gorm:"uniqueIndex;not null"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    string    `json:"-" gorm:"type:text"` // raw body, kept for audit
}

// Subscription mirrors the billing provider's subscription object.
// ExternalID is the provider's subscription ID.
type Subscription struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	ExternalID  string     `json:"external_id" gorm:"uniqueIndex;not null"`
	UserID      string     `json:"user_id" gorm:"index"`
	CustomerID  string     `json:"customer_id"`
	Status      string     `json:"status"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Transaction records one provider transaction. ExternalID is the provider's
// transaction ID.
type Transaction struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	ExternalID     string    `json:"external_id" gorm:"uniqueIndex;not null"`
	UserID         string    `json:"user_id" gorm:"index"`
	SubscriptionID string    `json:"subscription_id"`
	CustomerID     string    `json:"customer_id"`
	Status         string    `json:"status"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	BilledAt       time.Time `json:"billed_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
