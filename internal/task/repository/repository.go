package repository

import (
	"time"

	"thinkwrapper-backend/internal/task/domain"
)

// TaskRepository defines the interface for task data access. Every mutation
// is a single conditional update (claim-and-transition), there is no
// application-level mutex shared across workers.
type TaskRepository interface {
	// EnqueueIdempotent inserts the task unless a non-terminal task with the
	// same idempotency key exists; then the existing task is returned and
	// created is false.
	EnqueueIdempotent(task *domain.Task) (existing *domain.Task, created bool, err error)

	// FindByID returns the task or nil when unknown
	FindByID(id string) (*domain.Task, error)

	// ClaimNext atomically claims one runnable task (pending or
	// failed_retryable with next_run_at <= now), moves it to running with a
	// lease and an incremented attempt count. Returns nil when nothing is
	// runnable.
	ClaimNext(now time.Time, lease time.Duration) (*domain.Task, error)

	// RecordIssue persists the issue a generate attempt produced before the
	// delivery fan-out runs, so a retried attempt reuses the issue instead
	// of generating a second one.
	RecordIssue(task *domain.Task, issueID string) error

	// MarkSucceeded finishes the task and frees its idempotency slot
	MarkSucceeded(task *domain.Task, resultIssueID string) error

	// MarkRetry schedules the next attempt after backoff
	MarkRetry(task *domain.Task, nextRunAt time.Time, reason string) error

	// MarkTerminal records a final failure with a human-readable reason and
	// frees the idempotency slot
	MarkTerminal(task *domain.Task, reason string) error

	// ReclaimExpired releases running tasks whose lease has expired back to
	// pending so another worker can pick them up. Returns how many were
	// reclaimed.
	ReclaimExpired(now time.Time) (int64, error)

	// DeleteTerminalBefore prunes terminal tasks older than cutoff
	DeleteTerminalBefore(cutoff time.Time) (int64, error)
}
