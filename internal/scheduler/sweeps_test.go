package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitaabse/audiobooks/internal/entities"
)

type fakeSweeper struct {
	windows []time.Duration
	n       int64
}

func (f *fakeSweeper) MarkStaleProcessingFailed(window time.Duration) (int64, error) {
	f.windows = append(f.windows, window)
	return f.n, nil
}

type fakeLister struct {
	pages []entities.BookPage
	err   error
}

func (f *fakeLister) ListRecentFailed(window time.Duration) ([]entities.BookPage, error) {
	return f.pages, f.err
}

type fakeEnqueuer struct {
	jobs    [][2]int
	failFor int // page number that refuses to enqueue
}

func (f *fakeEnqueuer) EnqueuePageAudio(bookID uint, pageNumber int) error {
	if pageNumber == f.failFor {
		return errors.New("queue unavailable")
	}
	f.jobs = append(f.jobs, [2]int{int(bookID), pageNumber})
	return nil
}

func testConfig() Config {
	return Config{
		StaleSchedule:   "*/10 * * * *",
		RetrySchedule:   "0 * * * *",
		StalenessWindow: 2 * time.Hour,
		RetryRecency:    24 * time.Hour,
	}
}

func TestRunStaleSweep(t *testing.T) {
	sweeper := &fakeSweeper{n: 2}
	s := NewSweepScheduler(sweeper, &fakeLister{}, &fakeEnqueuer{}, testConfig())

	s.RunStaleSweep()
	s.RunStaleSweep()

	require.Len(t, sweeper.windows, 2)
	assert.Equal(t, 2*time.Hour, sweeper.windows[0])
}

func TestRunRetrySweep(t *testing.T) {
	lister := &fakeLister{pages: []entities.BookPage{
		{BookID: 1, PageNumber: 2},
		{BookID: 1, PageNumber: 5},
		{BookID: 3, PageNumber: 1},
	}}
	enqueuer := &fakeEnqueuer{failFor: 5}
	s := NewSweepScheduler(&fakeSweeper{}, lister, enqueuer, testConfig())

	s.RunRetrySweep()

	// Page 5 failed to enqueue; the sweep continues with the rest.
	assert.Equal(t, [][2]int{{1, 2}, {3, 1}}, enqueuer.jobs)
}

func TestStartStop(t *testing.T) {
	s := NewSweepScheduler(&fakeSweeper{}, &fakeLister{}, &fakeEnqueuer{}, testConfig())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	// Starting twice is a no-op.
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.StaleSchedule = "not-a-schedule"
	s := NewSweepScheduler(&fakeSweeper{}, &fakeLister{}, &fakeEnqueuer{}, cfg)

	assert.Error(t, s.Start(context.Background()))
}
