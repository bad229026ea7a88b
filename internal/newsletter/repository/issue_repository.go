package repository

import (
	"errors"
	"time"

	"thinkwrapper-backend/internal/newsletter/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IssueRepository defines the interface for issue data access. Issues are
// immutable after creation except for sent_at.
type IssueRepository interface {
	Create(issue *domain.Issue) error
	FindByID(id string) (*domain.Issue, error)
	FindByNewsletterID(newsletterID string, limit int) ([]*domain.Issue, error)
	MarkSent(id string, sentAt time.Time) error
}

// issueRepository implements IssueRepository using GORM
type issueRepository struct {
	db *gorm.DB
}

func NewIssueRepository(db *gorm.DB) IssueRepository {
	return &issueRepository{db: db}
}

func (r *issueRepository) Create(issue *domain.Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.New().String()
	}
	if issue.GeneratedAt.IsZero() {
		issue.GeneratedAt = time.Now()
	}
	return r.db.Create(issue).Error
}

func (r *issueRepository) FindByID(id string) (*domain.Issue, error) {
	var issue domain.Issue
	err := r.db.Where("id = ?", id).First(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &issue, nil
}

func (r *issueRepository) FindByNewsletterID(newsletterID string, limit int) ([]*domain.Issue, error) {
	if limit <= 0 {
		limit = 20
	}
	var issues []*domain.Issue
	err := r.db.Where("newsletter_id = ?", newsletterID).
		Order("generated_at DESC").Limit(limit).Find(&issues).Error
	return issues, err
}

func (r *issueRepository) MarkSent(id string, sentAt time.Time) error {
	return r.db.Model(&domain.Issue{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("sent_at", sentAt).Error
}
