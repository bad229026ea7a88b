package usecase

import (
	"log"
	"time"

	"thinkwrapper-backend/internal/task/domain"
	"thinkwrapper-backend/internal/task/repository"
)

// TaskStatusView is what a polling client sees for a task. Pending and
// running mean "try again later"; failed_terminal carries a human-readable
// reason, never a stack trace.
type TaskStatusView struct {
	ID            string            `json:"id"`
	Kind          domain.TaskKind   `json:"kind"`
	NewsletterID  string            `json:"newsletter_id"`
	Status        domain.TaskStatus `json:"status"`
	Attempts      int               `json:"attempts"`
	ResultIssueID string            `json:"result_issue_id,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Service is the task submission API consumed by the route layer
type Service struct {
	taskRepo    repository.TaskRepository
	maxAttempts int
}

func NewService(taskRepo repository.TaskRepository, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Service{
		taskRepo:    taskRepo,
		maxAttempts: maxAttempts,
	}
}

// SubmitGenerate enqueues a generate task for the newsletter. Submitting
// while a non-terminal generate task exists is a no-op returning the
// existing task.
func (s *Service) SubmitGenerate(newsletterID string) (*domain.Task, error) {
	task := &domain.Task{
		Kind:           domain.KindGenerate,
		NewsletterID:   newsletterID,
		MaxAttempts:    s.maxAttempts,
		NextRunAt:      time.Now(),
		IdempotencyKey: domain.GenerateKey(newsletterID),
	}

	existing, created, err := s.taskRepo.EnqueueIdempotent(task)
	if err != nil {
		return nil, err
	}
	if !created {
		log.Printf("[Tasks] Generate for newsletter %s already queued as task %s", newsletterID, existing.ID)
	}
	return existing, nil
}

// SubmitDeliver enqueues a deliver task for one (issue, recipient) pair
func (s *Service) SubmitDeliver(issueID, newsletterID, recipient string) (*domain.Task, error) {
	task := &domain.Task{
		Kind:           domain.KindDeliver,
		NewsletterID:   newsletterID,
		IssueID:        issueID,
		Recipient:      recipient,
		MaxAttempts:    s.maxAttempts,
		NextRunAt:      time.Now(),
		IdempotencyKey: domain.DeliverKey(issueID, recipient),
	}

	existing, _, err := s.taskRepo.EnqueueIdempotent(task)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// GetStatus returns the polling view for a task, or nil when unknown
func (s *Service) GetStatus(taskID string) (*TaskStatusView, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	view := &TaskStatusView{
		ID:            task.ID,
		Kind:          task.Kind,
		NewsletterID:  task.NewsletterID,
		Status:        task.Status,
		Attempts:      task.Attempts,
		ResultIssueID: task.ResultIssueID,
	}
	if task.Status == domain.StatusFailedTerminal {
		view.Error = task.LastError
	}
	return view, nil
}
