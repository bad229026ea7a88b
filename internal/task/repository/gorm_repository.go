package repository

import (
	"errors"
	"fmt"
	"time"

	"thinkwrapper-backend/internal/task/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var runnableStatuses = []domain.TaskStatus{domain.StatusPending, domain.StatusFailedRetryable}

var terminalStatuses = []domain.TaskStatus{domain.StatusSucceeded, domain.StatusFailedTerminal}

// gormTaskRepository implements TaskRepository using GORM. Requires the
// connection to be opened with TranslateError so unique violations surface
// as gorm.ErrDuplicatedKey.
type gormTaskRepository struct {
	db *gorm.DB
}

func NewGormTaskRepository(db *gorm.DB) TaskRepository {
	return &gormTaskRepository{db: db}
}

func (r *gormTaskRepository) EnqueueIdempotent(task *domain.Task) (*domain.Task, bool, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = domain.StatusPending
	}
	if task.NextRunAt.IsZero() {
		task.NextRunAt = time.Now()
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()

	err := r.db.Create(task).Error
	if err == nil {
		return task, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}

	// Duplicate non-terminal task for this key: return the existing one
	var existing domain.Task
	if ferr := r.db.Where("idempotency_key = ?", task.IdempotencyKey).First(&existing).Error; ferr != nil {
		if errors.Is(ferr, gorm.ErrRecordNotFound) {
			// The holder finished between our insert and the lookup; one
			// sweep cycle later the enqueue goes through. Treat as conflict.
			return nil, false, err
		}
		return nil, false, ferr
	}
	return &existing, false, nil
}

func (r *gormTaskRepository) FindByID(id string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *gormTaskRepository) ClaimNext(now time.Time, lease time.Duration) (*domain.Task, error) {
	// Optimistic claim loop: read a candidate, then compare-and-swap on
	// (status, attempts). Losing the race just means another worker owns it.
	for i := 0; i < 5; i++ {
		var task domain.Task
		err := r.db.Where("status IN ? AND next_run_at <= ?", runnableStatuses, now).
			Order("next_run_at ASC").First(&task).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}

		leaseUntil := now.Add(lease)
		res := r.db.Model(&domain.Task{}).
			Where("id = ? AND status = ? AND attempts = ?", task.ID, task.Status, task.Attempts).
			Updates(map[string]interface{}{
				"status":           domain.StatusRunning,
				"attempts":         task.Attempts + 1,
				"lease_expires_at": leaseUntil,
				"updated_at":       now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			task.Status = domain.StatusRunning
			task.Attempts++
			task.LeaseExpiresAt = &leaseUntil
			return &task, nil
		}
	}
	return nil, nil
}

func (r *gormTaskRepository) RecordIssue(task *domain.Task, issueID string) error {
	res := r.db.Model(&domain.Task{}).
		Where("id = ? AND status = ?", task.ID, domain.StatusRunning).
		Updates(map[string]interface{}{
			"result_issue_id": issueID,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %s no longer running, issue not recorded", task.ID)
	}
	task.ResultIssueID = issueID
	return nil
}

func (r *gormTaskRepository) MarkSucceeded(task *domain.Task, resultIssueID string) error {
	return r.finish(task, map[string]interface{}{
		"status":          domain.StatusSucceeded,
		"result_issue_id": resultIssueID,
		"last_error":      "",
	})
}

func (r *gormTaskRepository) MarkRetry(task *domain.Task, nextRunAt time.Time, reason string) error {
	res := r.db.Model(&domain.Task{}).
		Where("id = ? AND status = ?", task.ID, domain.StatusRunning).
		Updates(map[string]interface{}{
			"status":           domain.StatusFailedRetryable,
			"next_run_at":      nextRunAt,
			"last_error":       reason,
			"lease_expires_at": nil,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %s no longer running, retry not recorded", task.ID)
	}
	task.Status = domain.StatusFailedRetryable
	task.NextRunAt = nextRunAt
	task.LastError = reason
	return nil
}

func (r *gormTaskRepository) MarkTerminal(task *domain.Task, reason string) error {
	return r.finish(task, map[string]interface{}{
		"status":     domain.StatusFailedTerminal,
		"last_error": reason,
	})
}

// finish applies a terminal transition and frees the idempotency slot by
// suffixing the key with the task ID.
func (r *gormTaskRepository) finish(task *domain.Task, updates map[string]interface{}) error {
	updates["idempotency_key"] = task.IdempotencyKey + "#" + task.ID
	updates["lease_expires_at"] = nil
	updates["updated_at"] = time.Now()

	res := r.db.Model(&domain.Task{}).
		Where("id = ? AND status = ?", task.ID, domain.StatusRunning).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %s no longer running, transition not recorded", task.ID)
	}
	task.Status = updates["status"].(domain.TaskStatus)
	task.IdempotencyKey = updates["idempotency_key"].(string)
	return nil
}

func (r *gormTaskRepository) ReclaimExpired(now time.Time) (int64, error) {
	res := r.db.Model(&domain.Task{}).
		Where("status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?", domain.StatusRunning, now).
		Updates(map[string]interface{}{
			"status":           domain.StatusPending,
			"next_run_at":      now,
			"lease_expires_at": nil,
			"last_error":       "lease expired, reclaimed",
			"updated_at":       now,
		})
	return res.RowsAffected, res.Error
}

func (r *gormTaskRepository) DeleteTerminalBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("status IN ? AND updated_at < ?", terminalStatuses, cutoff).
		Delete(&domain.Task{})
	return res.RowsAffected, res.Error
}
