package scheduler

import (
	"log"
	"time"

	nlrepo "thinkwrapper-backend/internal/newsletter/repository"
	"thinkwrapper-backend/internal/task/repository"
	"thinkwrapper-backend/internal/task/usecase"
)

// Sweeper periodically scans active newsletters and enqueues a generate
// task for each one that is due. Enqueue is idempotent, so overlapping
// sweeps (or a second instance for high availability) never double-enqueue.
// The same tick also reclaims expired leases and prunes old terminal tasks.
type Sweeper struct {
	newsletterRepo nlrepo.NewsletterRepository
	taskRepo       repository.TaskRepository
	tasks          *usecase.Service
	interval       time.Duration
	retention      time.Duration
	stopChan       chan struct{}
}

func NewSweeper(
	newsletterRepo nlrepo.NewsletterRepository,
	taskRepo repository.TaskRepository,
	tasks *usecase.Service,
	interval, retention time.Duration,
) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Sweeper{
		newsletterRepo: newsletterRepo,
		taskRepo:       taskRepo,
		tasks:          tasks,
		interval:       interval,
		retention:      retention,
		stopChan:       make(chan struct{}),
	}
}

// Start begins the sweep loop
func (s *Sweeper) Start() {
	log.Printf("[Sweeper] Starting newsletter sweep (interval: %s)", s.interval)

	go func() {
		// Run immediately on start
		s.Sweep(time.Now())

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(time.Now())
			case <-s.stopChan:
				log.Println("[Sweeper] Stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the sweeper
func (s *Sweeper) Stop() {
	close(s.stopChan)
}

// Sweep runs one pass. Exported so tests and an ops endpoint can trigger it.
func (s *Sweeper) Sweep(now time.Time) {
	if reclaimed, err := s.taskRepo.ReclaimExpired(now); err != nil {
		log.Printf("[Sweeper] Lease reclaim error: %v", err)
	} else if reclaimed > 0 {
		log.Printf("[Sweeper] Reclaimed %d expired task leases", reclaimed)
	}

	newsletters, err := s.newsletterRepo.FindActive()
	if err != nil {
		log.Printf("[Sweeper] Error listing active newsletters: %v", err)
		return
	}

	enqueued := 0
	for _, n := range newsletters {
		due, err := n.IsDue(now)
		if err != nil {
			log.Printf("[Sweeper] Newsletter %s has unusable schedule: %v", n.ID, err)
			continue
		}
		if !due {
			continue
		}

		if _, err := s.tasks.SubmitGenerate(n.ID); err != nil {
			log.Printf("[Sweeper] Failed to enqueue generation for newsletter %s: %v", n.ID, err)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		log.Printf("[Sweeper] Checked %d newsletters, enqueued %d generations", len(newsletters), enqueued)
	}

	if pruned, err := s.taskRepo.DeleteTerminalBefore(now.Add(-s.retention)); err != nil {
		log.Printf("[Sweeper] Retention cleanup error: %v", err)
	} else if pruned > 0 {
		log.Printf("[Sweeper] Pruned %d terminal tasks older than %s", pruned, s.retention)
	}
}
