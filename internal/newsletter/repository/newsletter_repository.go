package repository

import (
	"errors"
	"time"

	"thinkwrapper-backend/internal/newsletter/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewsletterRepository defines the interface for newsletter data access
type NewsletterRepository interface {
	Create(newsletter *domain.Newsletter) error
	FindByID(id string) (*domain.Newsletter, error)
	FindByUserID(userID string) ([]*domain.Newsletter, error)
	FindActive() ([]*domain.Newsletter, error)
	Update(newsletter *domain.Newsletter) error
	// AdvanceLastSentAt moves last_sent_at forward to sentAt, only if it is
	// currently older (monotonic, safe under concurrent workers)
	AdvanceLastSentAt(id string, sentAt time.Time) error
}

// newsletterRepository implements NewsletterRepository using GORM
type newsletterRepository struct {
	db *gorm.DB
}

func NewNewsletterRepository(db *gorm.DB) NewsletterRepository {
	return &newsletterRepository{db: db}
}

func (r *newsletterRepository) Create(newsletter *domain.Newsletter) error {
	if newsletter.ID == "" {
		newsletter.ID = uuid.New().String()
	}
	newsletter.IsActive = true
	newsletter.CreatedAt = time.Now()
	newsletter.UpdatedAt = time.Now()
	return r.db.Create(newsletter).Error
}

func (r *newsletterRepository) FindByID(id string) (*domain.Newsletter, error) {
	var newsletter domain.Newsletter
	err := r.db.Where("id = ?", id).First(&newsletter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &newsletter, nil
}

func (r *newsletterRepository) FindByUserID(userID string) ([]*domain.Newsletter, error) {
	var newsletters []*domain.Newsletter
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&newsletters).Error
	return newsletters, err
}

func (r *newsletterRepository) FindActive() ([]*domain.Newsletter, error) {
	var newsletters []*domain.Newsletter
	err := r.db.Where("is_active = ?", true).Find(&newsletters).Error
	return newsletters, err
}

func (r *newsletterRepository) Update(newsletter *domain.Newsletter) error {
	newsletter.UpdatedAt = time.Now()
	return r.db.Save(newsletter).Error
}

func (r *newsletterRepository) AdvanceLastSentAt(id string, sentAt time.Time) error {
	return r.db.Model(&domain.Newsletter{}).
		Where("id = ? AND (last_sent_at IS NULL OR last_sent_at < ?)", id, sentAt).
		Updates(map[string]interface{}{
			"last_sent_at": sentAt,
			"updated_at":   time.Now(),
		}).Error
}
