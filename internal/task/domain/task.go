package domain

import (
	"fmt"
	"time"
)

// TaskKind distinguishes the two units of asynchronous work
type TaskKind string

const (
	KindGenerate TaskKind = "generate"
	KindDeliver  TaskKind = "deliver"
)

// TaskStatus represents the current state of a task.
//
// pending -> running -> succeeded
//                    -> failed_retryable -> running (after backoff)
//                    -> failed_terminal
type TaskStatus string

const (
	StatusPending         TaskStatus = "pending"
	StatusRunning         TaskStatus = "running"
	StatusSucceeded       TaskStatus = "succeeded"
	StatusFailedRetryable TaskStatus = "failed_retryable"
	StatusFailedTerminal  TaskStatus = "failed_terminal"
)

// Task is a unit of asynchronous work owned by the scheduler. The
// idempotency key carries the uniqueness invariants: at most one
// non-terminal generate task per newsletter, at most one non-terminal
// deliver task per (issue, recipient). On reaching a terminal state the key
// is suffixed with the task ID so the slot frees up while history is kept
// for the retention window.
type Task struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	Kind           TaskKind   `json:"kind" gorm:"not null;index"`
	NewsletterID   string     `json:"newsletter_id,omitempty" gorm:"index"`
	IssueID        string     `json:"issue_id,omitempty" gorm:"index"`
	Recipient      string     `json:"recipient,omitempty"`
	Status         TaskStatus `json:"status" gorm:"index;default:pending"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	NextRunAt      time.Time  `json:"next_run_at" gorm:"index"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	IdempotencyKey string     `json:"idempotency_key" gorm:"uniqueIndex;not null"`
	LastError      string     `json:"last_error,omitempty"`
	ResultIssueID  string     `json:"result_issue_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Terminal reports whether the task has reached a final state
func (t *Task) Terminal() bool {
	return t.Status == StatusSucceeded || t.Status == StatusFailedTerminal
}

// GenerateKey is the idempotency key for a generate task
func GenerateKey(newsletterID string) string {
	return fmt.Sprintf("generate:%s", newsletterID)
}

// DeliverKey is the idempotency key for a deliver task
func DeliverKey(issueID, recipient string) string {
	return fmt.Sprintf("deliver:%s:%s", issueID, recipient)
}
