// Package scheduler runs the periodic liveness sweeps over the book ledger:
// books stuck in processing past the staleness window are failed, and pages
// that failed recently get their audio jobs re-enqueued.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kitaabse/audiobooks/internal/entities"
)

// StaleBookSweeper reclaims books stuck mid-pipeline.
type StaleBookSweeper interface {
	MarkStaleProcessingFailed(window time.Duration) (int64, error)
}

// FailedPageLister lists pages eligible for the retry amnesty.
type FailedPageLister interface {
	ListRecentFailed(window time.Duration) ([]entities.BookPage, error)
}

// AudioEnqueuer re-schedules page audio jobs.
type AudioEnqueuer interface {
	EnqueuePageAudio(bookID uint, pageNumber int) error
}

// Config controls sweep cadence and windows.
type Config struct {
	StaleSchedule   string
	RetrySchedule   string
	StalenessWindow time.Duration
	RetryRecency    time.Duration
}

// SweepScheduler manages the periodic sweeps.
type SweepScheduler struct {
	books    StaleBookSweeper
	pages    FailedPageLister
	enqueuer AudioEnqueuer
	config   Config

	cron       *cron.Cron
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewSweepScheduler creates a scheduler for the ledger sweeps.
func NewSweepScheduler(books StaleBookSweeper, pages FailedPageLister, enqueuer AudioEnqueuer, cfg Config) *SweepScheduler {
	return &SweepScheduler{
		books:    books,
		pages:    pages,
		enqueuer: enqueuer,
		config:   cfg,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start registers and begins the sweep jobs.
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.StaleSchedule, s.RunStaleSweep); err != nil {
		return fmt.Errorf("schedule stale-book sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(s.config.RetrySchedule, s.RunRetrySweep); err != nil {
		return fmt.Errorf("schedule failed-page retry sweep: %w", err)
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Sweep scheduler: started (stale '%s', retry '%s')",
		s.config.StaleSchedule, s.config.RetrySchedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for running sweeps.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	log.Printf("Sweep scheduler: stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *SweepScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunStaleSweep fails every book stuck in processing past the staleness
// window. Safe to run repeatedly.
func (s *SweepScheduler) RunStaleSweep() {
	n, err := s.books.MarkStaleProcessingFailed(s.config.StalenessWindow)
	if err != nil {
		log.Printf("Stale-book sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Stale-book sweep: reclaimed %d book(s)", n)
	}
}

// RunRetrySweep re-enqueues audio jobs for pages that failed within the
// recency window. Pages older than the window stay failed: the amnesty is
// bounded, not infinite.
func (s *SweepScheduler) RunRetrySweep() {
	pages, err := s.pages.ListRecentFailed(s.config.RetryRecency)
	if err != nil {
		log.Printf("Failed-page retry sweep failed: %v", err)
		return
	}
	for _, page := range pages {
		if err := s.enqueuer.EnqueuePageAudio(page.BookID, page.PageNumber); err != nil {
			log.Printf("Retry sweep: could not re-enqueue book %d page %d: %v",
				page.BookID, page.PageNumber, err)
			continue
		}
		log.Printf("Retry sweep: re-enqueued audio for book %d page %d", page.BookID, page.PageNumber)
	}
}
