package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	authdomain "thinkwrapper-backend/internal/auth/domain"
	nldomain "thinkwrapper-backend/internal/newsletter/domain"
	nlusecase "thinkwrapper-backend/internal/newsletter/usecase"
	"thinkwrapper-backend/internal/task/domain"
	"thinkwrapper-backend/pkg/ai"
	"thinkwrapper-backend/pkg/faults"
	"thinkwrapper-backend/pkg/render"
	"thinkwrapper-backend/pkg/search"
)

// memTaskRepo implements repository.TaskRepository in memory with the same
// idempotency semantics as the gorm implementation.
type memTaskRepo struct {
	mu              sync.Mutex
	tasks           []*domain.Task
	nextID          int
	failNextEnqueue int
}

func (m *memTaskRepo) EnqueueIdempotent(task *domain.Task) (*domain.Task, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNextEnqueue > 0 {
		m.failNextEnqueue--
		return nil, false, fmt.Errorf("storage down")
	}
	for _, t := range m.tasks {
		if t.IdempotencyKey == task.IdempotencyKey {
			return t, false, nil
		}
	}
	m.nextID++
	task.ID = fmt.Sprintf("task-%d", m.nextID)
	task.Status = domain.StatusPending
	task.CreatedAt = time.Now()
	m.tasks = append(m.tasks, task)
	return task, true, nil
}

func (m *memTaskRepo) FindByID(id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (m *memTaskRepo) ClaimNext(now time.Time, lease time.Duration) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		runnable := t.Status == domain.StatusPending || t.Status == domain.StatusFailedRetryable
		if runnable && !t.NextRunAt.After(now) {
			t.Status = domain.StatusRunning
			t.Attempts++
			exp := now.Add(lease)
			t.LeaseExpiresAt = &exp
			return t, nil
		}
	}
	return nil, nil
}

func (m *memTaskRepo) RecordIssue(task *domain.Task, issueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.ResultIssueID = issueID
	return nil
}

func (m *memTaskRepo) MarkSucceeded(task *domain.Task, resultIssueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.Status = domain.StatusSucceeded
	task.ResultIssueID = resultIssueID
	task.IdempotencyKey = task.IdempotencyKey + "#" + task.ID
	return nil
}

func (m *memTaskRepo) MarkRetry(task *domain.Task, nextRunAt time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.Status = domain.StatusFailedRetryable
	task.NextRunAt = nextRunAt
	task.LastError = reason
	task.LeaseExpiresAt = nil
	return nil
}

func (m *memTaskRepo) MarkTerminal(task *domain.Task, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.Status = domain.StatusFailedTerminal
	task.LastError = reason
	task.IdempotencyKey = task.IdempotencyKey + "#" + task.ID
	return nil
}

func (m *memTaskRepo) ReclaimExpired(now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.tasks {
		if t.Status == domain.StatusRunning && t.LeaseExpiresAt != nil && t.LeaseExpiresAt.Before(now) {
			t.Status = domain.StatusPending
			t.NextRunAt = now
			t.LeaseExpiresAt = nil
			t.LastError = "lease expired, reclaimed"
			n++
		}
	}
	return n, nil
}

func (m *memTaskRepo) DeleteTerminalBefore(cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*domain.Task
	var n int64
	for _, t := range m.tasks {
		if t.Terminal() && t.UpdatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	m.tasks = kept
	return n, nil
}

func (m *memTaskRepo) byKind(kind domain.TaskKind) []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, t := range m.tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// memIssueRepo implements nlrepo.IssueRepository in memory
type memIssueRepo struct {
	mu     sync.Mutex
	issues []*nldomain.Issue
	nextID int
}

func (m *memIssueRepo) Create(issue *nldomain.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if issue.ID == "" {
		issue.ID = fmt.Sprintf("issue-%d", m.nextID)
	}
	m.issues = append(m.issues, issue)
	return nil
}

func (m *memIssueRepo) FindByID(id string) (*nldomain.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.issues {
		if i.ID == id {
			return i, nil
		}
	}
	return nil, nil
}

func (m *memIssueRepo) FindByNewsletterID(newsletterID string, limit int) ([]*nldomain.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*nldomain.Issue
	for _, i := range m.issues {
		if i.NewsletterID == newsletterID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memIssueRepo) MarkSent(id string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.issues {
		if i.ID == id && i.SentAt == nil {
			t := sentAt
			i.SentAt = &t
		}
	}
	return nil
}

// memNewsletterRepo implements nlrepo.NewsletterRepository in memory
type memNewsletterRepo struct {
	mu          sync.Mutex
	newsletters map[string]*nldomain.Newsletter
}

func newMemNewsletterRepo() *memNewsletterRepo {
	return &memNewsletterRepo{newsletters: make(map[string]*nldomain.Newsletter)}
}

func (m *memNewsletterRepo) Create(n *nldomain.Newsletter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newsletters[n.ID] = n
	return nil
}

func (m *memNewsletterRepo) FindByID(id string) (*nldomain.Newsletter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newsletters[id], nil
}

func (m *memNewsletterRepo) FindByUserID(userID string) ([]*nldomain.Newsletter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*nldomain.Newsletter
	for _, n := range m.newsletters {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNewsletterRepo) FindActive() ([]*nldomain.Newsletter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*nldomain.Newsletter
	for _, n := range m.newsletters {
		if n.IsActive {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNewsletterRepo) Update(n *nldomain.Newsletter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newsletters[n.ID] = n
	return nil
}

func (m *memNewsletterRepo) AdvanceLastSentAt(id string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.newsletters[id]
	if !ok {
		return nil
	}
	if n.LastSentAt == nil || n.LastSentAt.Before(sentAt) {
		t := sentAt
		n.LastSentAt = &t
	}
	return nil
}

// memUserRepo implements authrepo.UserRepository in memory
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*authdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*authdomain.User)}
}

func (m *memUserRepo) Create(u *authdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) FindByID(id string) (*authdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memUserRepo) FindBySubscriptionID(subscriptionID string) (*authdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.SubscriptionID == subscriptionID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Update(u *authdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memUserRepo) SaveRefreshToken(token *authdomain.RefreshToken) error     { return nil }
func (m *memUserRepo) DeleteRefreshToken(token string) error                     { return nil }
func (m *memUserRepo) FindRefreshToken(t string) (*authdomain.RefreshToken, error) { return nil, nil }

// recordingSender implements mailer.Sender and records sends
type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	err   error
	calls int
}

func (s *recordingSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to)
	return nil
}

// failingSynthesis implements ai.SynthesisService and always errors
type failingSynthesis struct {
	err   error
	calls int
}

func (f *failingSynthesis) Synthesize(ctx context.Context, topic, style string, sources []ai.SourceItem) (*ai.Draft, error) {
	f.calls++
	return nil, f.err
}

type stubSynthesis struct{}

func (stubSynthesis) Synthesize(ctx context.Context, topic, style string, sources []ai.SourceItem) (*ai.Draft, error) {
	return &ai.Draft{
		Subject:  "Test Digest",
		Summary:  "summary",
		Sections: []ai.Section{{Heading: "News", Body: "body"}},
		Provider: "test",
	}, nil
}

// countingSynthesis succeeds like stubSynthesis but counts invocations
type countingSynthesis struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSynthesis) Synthesize(ctx context.Context, topic, style string, sources []ai.SourceItem) (*ai.Draft, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return stubSynthesis{}.Synthesize(ctx, topic, style, sources)
}

type emptySearch struct{}

func (emptySearch) Search(ctx context.Context, query string, count int) ([]search.Result, error) {
	return nil, nil
}

type executorFixture struct {
	taskRepo       *memTaskRepo
	newsletterRepo *memNewsletterRepo
	issueRepo      *memIssueRepo
	userRepo       *memUserRepo
	sender         *recordingSender
	service        *Service
	executor       *Executor
}

func newExecutorFixture(synth ai.SynthesisService) *executorFixture {
	taskRepo := &memTaskRepo{}
	newsletterRepo := newMemNewsletterRepo()
	issueRepo := &memIssueRepo{}
	userRepo := newMemUserRepo()
	sender := &recordingSender{}

	service := NewService(taskRepo, 3)
	pipeline := nlusecase.NewPipeline(emptySearch{}, synth, render.NewRenderer(), issueRepo)
	executor := NewExecutor(taskRepo, service, pipeline, newsletterRepo, issueRepo, userRepo, sender, ExecutorConfig{
		WorkerCount: 1,
		BackoffBase: time.Millisecond,
	})

	return &executorFixture{
		taskRepo:       taskRepo,
		newsletterRepo: newsletterRepo,
		issueRepo:      issueRepo,
		userRepo:       userRepo,
		sender:         sender,
		service:        service,
		executor:       executor,
	}
}

func (f *executorFixture) seedNewsletter(ownerEligible bool) {
	status := authdomain.SubscriptionActive
	if !ownerEligible {
		status = authdomain.SubscriptionCancelled
	}
	f.userRepo.Create(&authdomain.User{
		ID:                 "user-1",
		Email:              "owner@example.com",
		SubscriptionStatus: status,
		IsActive:           true,
	})
	f.newsletterRepo.Create(&nldomain.Newsletter{
		ID:         "nl-1",
		UserID:     "user-1",
		Name:       "Digest",
		Topic:      "go",
		Style:      "professional",
		Schedule:   nldomain.ScheduleWeekly,
		MaxSources: 3,
		IsActive:   true,
	})
}

// drain claims and executes tasks until nothing is runnable
func (f *executorFixture) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 50; i++ {
		task, err := f.taskRepo.ClaimNext(time.Now().Add(time.Hour), time.Minute)
		if err != nil {
			t.Fatalf("claim error: %v", err)
		}
		if task == nil {
			return
		}
		f.executor.execute(task)
	}
	t.Fatal("drain did not converge")
}

func TestGenerateFansOutDelivery(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(stubSynthesis{})
	f.seedNewsletter(true)

	genTask, err := f.service.SubmitGenerate("nl-1")
	if err != nil {
		t.Fatalf("SubmitGenerate: %v", err)
	}
	f.drain(t)

	if genTask.Status != domain.StatusSucceeded {
		t.Fatalf("generate task status = %s, want succeeded", genTask.Status)
	}
	if genTask.ResultIssueID == "" {
		t.Fatal("generate task should record the produced issue")
	}

	delivers := f.taskRepo.byKind(domain.KindDeliver)
	if len(delivers) != 1 {
		t.Fatalf("got %d deliver tasks, want 1", len(delivers))
	}
	if delivers[0].Recipient != "owner@example.com" {
		t.Errorf("deliver recipient = %s", delivers[0].Recipient)
	}
	if delivers[0].Status != domain.StatusSucceeded {
		t.Errorf("deliver task status = %s, want succeeded", delivers[0].Status)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0] != "owner@example.com" {
		t.Errorf("sender got %v", f.sender.sent)
	}

	nl, _ := f.newsletterRepo.FindByID("nl-1")
	if nl.LastSentAt == nil {
		t.Error("last_sent_at should advance after generation")
	}

	issue, _ := f.issueRepo.FindByID(genTask.ResultIssueID)
	if issue == nil || issue.SentAt == nil {
		t.Error("issue should be marked sent after delivery")
	}
}

func TestFanOutFaultRetriesWithoutRegenerating(t *testing.T) {
	t.Parallel()

	synth := &countingSynthesis{}
	f := newExecutorFixture(synth)
	f.seedNewsletter(true)

	task, err := f.service.SubmitGenerate("nl-1")
	if err != nil {
		t.Fatalf("SubmitGenerate: %v", err)
	}

	// The deliver enqueue fails on the first attempt. The task must stay
	// retryable so the recipient's delivery is not silently lost.
	f.taskRepo.mu.Lock()
	f.taskRepo.failNextEnqueue = 1
	f.taskRepo.mu.Unlock()
	f.drain(t)

	if task.Status != domain.StatusSucceeded {
		t.Fatalf("generate task status = %s, want succeeded after retry", task.Status)
	}
	if task.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", task.Attempts)
	}

	delivers := f.taskRepo.byKind(domain.KindDeliver)
	if len(delivers) != 1 {
		t.Fatalf("got %d deliver tasks, want 1", len(delivers))
	}
	if delivers[0].Status != domain.StatusSucceeded {
		t.Errorf("deliver task status = %s, want succeeded", delivers[0].Status)
	}

	// The retried attempt reuses the stored issue instead of producing a
	// second one
	if synth.calls != 1 {
		t.Errorf("synthesis ran %d times, want 1", synth.calls)
	}
	if len(f.issueRepo.issues) != 1 {
		t.Errorf("got %d issues, want 1", len(f.issueRepo.issues))
	}
}

func TestIneligibleOwnerGetsNoDelivery(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(stubSynthesis{})
	f.seedNewsletter(false)

	if _, err := f.service.SubmitGenerate("nl-1"); err != nil {
		t.Fatalf("SubmitGenerate: %v", err)
	}
	f.drain(t)

	if delivers := f.taskRepo.byKind(domain.KindDeliver); len(delivers) != 0 {
		t.Fatalf("cancelled owner must not receive issues, got %d deliver tasks", len(delivers))
	}
	// Generation itself still succeeds and records history
	if len(f.issueRepo.issues) != 1 {
		t.Fatalf("issue should still be generated, got %d", len(f.issueRepo.issues))
	}
}

func TestTransientFailureRespectsAttemptCap(t *testing.T) {
	t.Parallel()

	synth := &failingSynthesis{err: faults.Transient("rate limited")}
	f := newExecutorFixture(synth)
	f.seedNewsletter(true)

	task, err := f.service.SubmitGenerate("nl-1")
	if err != nil {
		t.Fatalf("SubmitGenerate: %v", err)
	}
	f.drain(t)

	if synth.calls != 3 {
		t.Errorf("synthesis attempted %d times, want exactly 3", synth.calls)
	}
	if task.Status != domain.StatusFailedTerminal {
		t.Errorf("task status = %s, want failed_terminal", task.Status)
	}
	if task.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", task.Attempts)
	}
	if task.LastError == "" {
		t.Error("terminal task should carry a failure reason")
	}
}

func TestPermanentFailureSkipsRetries(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(stubSynthesis{})
	// No newsletter seeded: the generate task references a missing one

	task, err := f.service.SubmitGenerate("nl-missing")
	if err != nil {
		t.Fatalf("SubmitGenerate: %v", err)
	}
	f.drain(t)

	if task.Status != domain.StatusFailedTerminal {
		t.Fatalf("task status = %s, want failed_terminal", task.Status)
	}
	if task.Attempts != 1 {
		t.Errorf("permanent failure should not retry, attempts = %d", task.Attempts)
	}
}

func TestSubmitGenerateIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(stubSynthesis{})
	f.seedNewsletter(true)

	first, err := f.service.SubmitGenerate("nl-1")
	if err != nil {
		t.Fatalf("SubmitGenerate: %v", err)
	}
	second, err := f.service.SubmitGenerate("nl-1")
	if err != nil {
		t.Fatalf("SubmitGenerate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("resubmitting while a task is outstanding must return the existing task")
	}

	f.drain(t)

	// Terminal tasks free the idempotency slot
	third, err := f.service.SubmitGenerate("nl-1")
	if err != nil {
		t.Fatalf("SubmitGenerate after completion: %v", err)
	}
	if third.ID == first.ID {
		t.Fatal("a finished task must not block new submissions")
	}
}

func TestLeaseReclaimMakesTaskRunnable(t *testing.T) {
	t.Parallel()

	f := newExecutorFixture(stubSynthesis{})
	f.seedNewsletter(true)

	if _, err := f.service.SubmitGenerate("nl-1"); err != nil {
		t.Fatalf("SubmitGenerate: %v", err)
	}

	now := time.Now()
	task, err := f.taskRepo.ClaimNext(now, time.Minute)
	if err != nil || task == nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Worker crashes: nothing is runnable until the lease expires
	if again, _ := f.taskRepo.ClaimNext(now, time.Minute); again != nil {
		t.Fatal("running task must not be claimable")
	}

	reclaimed, err := f.taskRepo.ReclaimExpired(now.Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("ReclaimExpired: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed = %d, want 1", reclaimed)
	}

	task2, _ := f.taskRepo.ClaimNext(now.Add(2*time.Minute), time.Minute)
	if task2 == nil {
		t.Fatal("reclaimed task should be claimable again")
	}
	if task2.Attempts != 2 {
		t.Errorf("attempts after reclaim = %d, want 2", task2.Attempts)
	}
}
