package usecase

import (
	"errors"
	"time"

	"thinkwrapper-backend/internal/newsletter/domain"
	"thinkwrapper-backend/internal/newsletter/repository"
)

var (
	ErrNotFound     = errors.New("newsletter not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// NewsletterUpdateRequest carries optional field updates
type NewsletterUpdateRequest struct {
	Name       *string `json:"name"`
	Topic      *string `json:"topic"`
	Style      *string `json:"style"`
	Schedule   *string `json:"schedule"`
	MaxSources *int    `json:"max_sources"`
	IsActive   *bool   `json:"is_active"`
}

// NewsletterUsecase handles user-facing newsletter management
type NewsletterUsecase struct {
	newsletterRepo repository.NewsletterRepository
	issueRepo      repository.IssueRepository
}

func NewNewsletterUsecase(newsletterRepo repository.NewsletterRepository, issueRepo repository.IssueRepository) *NewsletterUsecase {
	return &NewsletterUsecase{
		newsletterRepo: newsletterRepo,
		issueRepo:      issueRepo,
	}
}

func (u *NewsletterUsecase) Create(userID, name, topic, style, schedule string, maxSources int) (*domain.Newsletter, error) {
	if err := domain.ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	if style == "" {
		style = "professional"
	}
	if maxSources <= 0 {
		maxSources = 5
	}

	newsletter := &domain.Newsletter{
		UserID:     userID,
		Name:       name,
		Topic:      topic,
		Style:      style,
		Schedule:   schedule,
		MaxSources: maxSources,
	}
	if err := u.newsletterRepo.Create(newsletter); err != nil {
		return nil, err
	}
	return newsletter, nil
}

func (u *NewsletterUsecase) GetByID(userID, id string) (*domain.Newsletter, error) {
	newsletter, err := u.newsletterRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if newsletter == nil {
		return nil, ErrNotFound
	}
	if newsletter.UserID != userID {
		return nil, ErrUnauthorized
	}
	return newsletter, nil
}

func (u *NewsletterUsecase) ListByUser(userID string) ([]*domain.Newsletter, error) {
	return u.newsletterRepo.FindByUserID(userID)
}

func (u *NewsletterUsecase) Update(userID, id string, updates NewsletterUpdateRequest) (*domain.Newsletter, error) {
	newsletter, err := u.GetByID(userID, id)
	if err != nil {
		return nil, err
	}

	if updates.Name != nil {
		newsletter.Name = *updates.Name
	}
	if updates.Topic != nil {
		newsletter.Topic = *updates.Topic
	}
	if updates.Style != nil {
		newsletter.Style = *updates.Style
	}
	if updates.Schedule != nil {
		if err := domain.ValidateSchedule(*updates.Schedule); err != nil {
			return nil, err
		}
		newsletter.Schedule = *updates.Schedule
	}
	if updates.MaxSources != nil && *updates.MaxSources > 0 {
		newsletter.MaxSources = *updates.MaxSources
	}
	if updates.IsActive != nil {
		newsletter.IsActive = *updates.IsActive
	}

	newsletter.UpdatedAt = time.Now()
	if err := u.newsletterRepo.Update(newsletter); err != nil {
		return nil, err
	}
	return newsletter, nil
}

// Deactivate soft-disables a newsletter. Issues keep referencing it, so
// there is no hard delete.
func (u *NewsletterUsecase) Deactivate(userID, id string) error {
	newsletter, err := u.GetByID(userID, id)
	if err != nil {
		return err
	}
	newsletter.IsActive = false
	return u.newsletterRepo.Update(newsletter)
}

func (u *NewsletterUsecase) ListIssues(userID, newsletterID string, limit int) ([]*domain.Issue, error) {
	if _, err := u.GetByID(userID, newsletterID); err != nil {
		return nil, err
	}
	return u.issueRepo.FindByNewsletterID(newsletterID, limit)
}

func (u *NewsletterUsecase) GetIssue(userID, newsletterID, issueID string) (*domain.Issue, error) {
	if _, err := u.GetByID(userID, newsletterID); err != nil {
		return nil, err
	}
	issue, err := u.issueRepo.FindByID(issueID)
	if err != nil {
		return nil, err
	}
	if issue == nil || issue.NewsletterID != newsletterID {
		return nil, ErrNotFound
	}
	return issue, nil
}
