package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	authrepo "thinkwrapper-backend/internal/auth/repository"
	nldomain "thinkwrapper-backend/internal/newsletter/domain"
	nlrepo "thinkwrapper-backend/internal/newsletter/repository"
	nlusecase "thinkwrapper-backend/internal/newsletter/usecase"
	"thinkwrapper-backend/internal/task/domain"
	"thinkwrapper-backend/internal/task/repository"
	"thinkwrapper-backend/pkg/faults"
	"thinkwrapper-backend/pkg/mailer"
)

const (
	pollInterval = 2 * time.Second
	maxBackoff   = time.Hour
)

// ExecutorConfig tunes the worker pool
type ExecutorConfig struct {
	WorkerCount   int
	TaskTimeout   time.Duration
	LeaseDuration time.Duration
	BackoffBase   time.Duration
}

// Executor runs claimed tasks on a pool of workers. Provider calls happen
// outside any lock; the lease on the claimed task is the only form of
// ownership.
type Executor struct {
	taskRepo       repository.TaskRepository
	tasks          *Service
	pipeline       *nlusecase.Pipeline
	newsletterRepo nlrepo.NewsletterRepository
	issueRepo      nlrepo.IssueRepository
	userRepo       authrepo.UserRepository
	sender         mailer.Sender

	cfg      ExecutorConfig
	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

func NewExecutor(
	taskRepo repository.TaskRepository,
	tasks *Service,
	pipeline *nlusecase.Pipeline,
	newsletterRepo nlrepo.NewsletterRepository,
	issueRepo nlrepo.IssueRepository,
	userRepo authrepo.UserRepository,
	sender mailer.Sender,
	cfg ExecutorConfig,
) *Executor {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 3
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 5 * time.Minute
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	return &Executor{
		taskRepo:       taskRepo,
		tasks:          tasks,
		pipeline:       pipeline,
		newsletterRepo: newsletterRepo,
		issueRepo:      issueRepo,
		userRepo:       userRepo,
		sender:         sender,
		cfg:            cfg,
		stopChan:       make(chan struct{}),
	}
}

// Start launches the worker pool
func (e *Executor) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}

	for i := 0; i < e.cfg.WorkerCount; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	e.started = true
	log.Printf("[Executor] Started %d workers", e.cfg.WorkerCount)
}

// Stop waits for in-flight tasks to finish
func (e *Executor) Stop() {
	close(e.stopChan)
	e.wg.Wait()
	log.Println("[Executor] All workers stopped")
}

func (e *Executor) worker(id int) {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopChan:
			log.Printf("[Executor] Worker %d stopped", id)
			return
		default:
		}

		task, err := e.taskRepo.ClaimNext(time.Now(), e.cfg.LeaseDuration)
		if err != nil {
			log.Printf("[Executor] Worker %d claim error: %v", id, err)
			e.sleep(pollInterval)
			continue
		}
		if task == nil {
			e.sleep(pollInterval)
			continue
		}

		e.execute(task)
	}
}

func (e *Executor) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-e.stopChan:
	}
}

// execute runs one attempt of a claimed task with a hard wall-clock timeout
func (e *Executor) execute(task *domain.Task) {
	// A reclaimed task may have burnt its attempt budget on crashed workers
	if task.Attempts > task.MaxAttempts {
		e.fail(task, fmt.Errorf("attempt cap exhausted"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.TaskTimeout)
	defer cancel()

	var err error
	switch task.Kind {
	case domain.KindGenerate:
		err = e.runGenerate(ctx, task)
	case domain.KindDeliver:
		err = e.runDeliver(ctx, task)
	default:
		err = faults.Permanent("unknown task kind %q", task.Kind)
	}

	if err == nil {
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = faults.Transient("attempt timed out after %s", e.cfg.TaskTimeout)
	}
	e.fail(task, err)
}

// fail routes a failed attempt to retry or terminal per the taxonomy
func (e *Executor) fail(task *domain.Task, cause error) {
	reason := cause.Error()

	if faults.IsPermanent(cause) || task.Attempts >= task.MaxAttempts {
		log.Printf("[Executor] Task %s (%s) failed terminally after %d attempts: %v", task.ID, task.Kind, task.Attempts, cause)
		if err := e.taskRepo.MarkTerminal(task, reason); err != nil {
			log.Printf("[Executor] Failed to mark task %s terminal: %v", task.ID, err)
		}
		return
	}

	next := time.Now().Add(e.backoff(task.Attempts))
	log.Printf("[Executor] Task %s (%s) attempt %d/%d failed, retrying at %s: %v",
		task.ID, task.Kind, task.Attempts, task.MaxAttempts, next.Format(time.RFC3339), cause)
	if err := e.taskRepo.MarkRetry(task, next, reason); err != nil {
		log.Printf("[Executor] Failed to mark task %s for retry: %v", task.ID, err)
	}
}

// backoff is exponential with +/-20% jitter, capped at an hour
func (e *Executor) backoff(attempt int) time.Duration {
	d := e.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			d = maxBackoff
			break
		}
	}
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * jitter)
}

func (e *Executor) runGenerate(ctx context.Context, task *domain.Task) error {
	newsletter, err := e.newsletterRepo.FindByID(task.NewsletterID)
	if err != nil {
		return fmt.Errorf("failed to load newsletter: %w", err)
	}
	if newsletter == nil {
		return faults.Permanent("newsletter %s no longer exists", task.NewsletterID)
	}
	if !newsletter.IsActive {
		return faults.Permanent("newsletter %s is deactivated", task.NewsletterID)
	}

	// A retried attempt reuses the issue a previous attempt already stored
	// on the task, so a fan-out failure never duplicates generation.
	var issue *nldomain.Issue
	if task.ResultIssueID != "" {
		issue, err = e.issueRepo.FindByID(task.ResultIssueID)
		if err != nil {
			return fmt.Errorf("failed to load issue: %w", err)
		}
	}
	if issue == nil {
		issue, err = e.pipeline.Produce(ctx, newsletter)
		if err != nil {
			return err
		}
		if err := e.taskRepo.RecordIssue(task, issue.ID); err != nil {
			return fmt.Errorf("failed to record issue: %w", err)
		}
	}

	// Fan out one deliver task per eligible recipient, then advance
	// last_sent_at. Any failure here leaves the task retryable; the
	// idempotency keys make re-running the fan-out safe for the deliveries
	// that did enqueue.
	recipients, err := e.recipients(newsletter)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	for _, to := range recipients {
		if _, derr := e.tasks.SubmitDeliver(issue.ID, newsletter.ID, to); derr != nil {
			return fmt.Errorf("failed to enqueue delivery of issue %s to %s: %w", issue.ID, to, derr)
		}
	}

	if err := e.newsletterRepo.AdvanceLastSentAt(newsletter.ID, issue.GeneratedAt); err != nil {
		return fmt.Errorf("failed to advance last_sent_at: %w", err)
	}

	if err := e.taskRepo.MarkSucceeded(task, issue.ID); err != nil {
		return fmt.Errorf("failed to record success: %w", err)
	}
	return nil
}

// recipients resolves the delivery list for a newsletter: currently its
// owner, when still delivery-eligible.
func (e *Executor) recipients(newsletter *nldomain.Newsletter) ([]string, error) {
	owner, err := e.userRepo.FindByID(newsletter.UserID)
	if err != nil {
		return nil, err
	}
	if owner == nil || !owner.DeliveryEligible() {
		return nil, nil
	}
	return []string{owner.Email}, nil
}

func (e *Executor) runDeliver(ctx context.Context, task *domain.Task) error {
	issue, err := e.issueRepo.FindByID(task.IssueID)
	if err != nil {
		return fmt.Errorf("failed to load issue: %w", err)
	}
	if issue == nil {
		return faults.Permanent("issue %s no longer exists", task.IssueID)
	}

	if err := e.sender.Send(ctx, task.Recipient, issue.Subject, issue.HTMLBody, issue.TextBody); err != nil {
		if errors.Is(err, faults.ErrNotConfigured) {
			return faults.Permanent("delivery channel not configured")
		}
		return err
	}

	if err := e.issueRepo.MarkSent(issue.ID, time.Now()); err != nil {
		log.Printf("[Executor] Failed to mark issue %s sent: %v", issue.ID, err)
	}

	if err := e.taskRepo.MarkSucceeded(task, issue.ID); err != nil {
		return fmt.Errorf("failed to record success: %w", err)
	}

	log.Printf("[Executor] Delivered issue %s to %s", issue.ID, task.Recipient)
	return nil
}
