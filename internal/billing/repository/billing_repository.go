package repository

import (
	"errors"
	"time"

	"thinkwrapper-backend/internal/billing/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingRepository defines the interface for billing data access
type BillingRepository interface {
	// RecordEvent inserts the event. created is false when an event with the
	// same provider event ID was already recorded.
	RecordEvent(event *domain.WebhookEvent) (created bool, err error)

	// DeleteEvent removes a recorded event by provider event ID. The ingress
	// rolls the dedup row back when applying the event failed, so the
	// provider's redelivery is processed instead of dropped as a duplicate.
	DeleteEvent(eventID string) error

	FindSubscriptionByExternalID(externalID string) (*domain.Subscription, error)
	UpsertSubscription(sub *domain.Subscription) error

	FindTransactionByExternalID(externalID string) (*domain.Transaction, error)
	SaveTransaction(tx *domain.Transaction) error
}

type billingRepository struct {
	db *gorm.DB
}

// NewBillingRepository creates a new instance of billingRepository
func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &billingRepository{
		db: db,
	}
}

func (r *billingRepository) RecordEvent(event *domain.WebhookEvent) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	err := r.db.Create(event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *billingRepository) DeleteEvent(eventID string) error {
	return r.db.Where("event_id = ?", eventID).Delete(&domain.WebhookEvent{}).Error
}

func (r *billingRepository) FindSubscriptionByExternalID(externalID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.Where("external_id = ?", externalID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *billingRepository) UpsertSubscription(sub *domain.Subscription) error {
	existing, err := r.FindSubscriptionByExternalID(sub.ExternalID)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing == nil {
		sub.ID = uuid.New().String()
		sub.CreatedAt = now
		sub.UpdatedAt = now
		return r.db.Create(sub).Error
	}

	existing.Status = sub.Status
	if sub.UserID != "" {
		existing.UserID = sub.UserID
	}
	if sub.CustomerID != "" {
		existing.CustomerID = sub.CustomerID
	}
	if sub.CancelledAt != nil {
		existing.CancelledAt = sub.CancelledAt
	}
	existing.UpdatedAt = now
	*sub = *existing
	return r.db.Save(existing).Error
}

func (r *billingRepository) FindTransactionByExternalID(externalID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := r.db.Where("external_id = ?", externalID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (r *billingRepository) SaveTransaction(tx *domain.Transaction) error {
	existing, err := r.FindTransactionByExternalID(tx.ExternalID)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing == nil {
		tx.ID = uuid.New().String()
		tx.CreatedAt = now
		tx.UpdatedAt = now
		return r.db.Create(tx).Error
	}

	existing.Status = tx.Status
	if tx.Amount != "" {
		existing.Amount = tx.Amount
	}
	if tx.Currency != "" {
		existing.Currency = tx.Currency
	}
	if tx.UserID != "" {
		existing.UserID = tx.UserID
	}
	existing.UpdatedAt = now
	*tx = *existing
	return r.db.Save(existing).Error
}
