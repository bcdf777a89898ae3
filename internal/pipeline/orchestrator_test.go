package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/database/pages"
	"github.com/kitaabse/audiobooks/internal/entities"
	"github.com/kitaabse/audiobooks/internal/extractor"
	"github.com/kitaabse/audiobooks/internal/tts"
)

// fakeSynthesizer writes a tiny file and reports a fixed duration, or fails.
type fakeSynthesizer struct {
	duration float64
	err      error
	calls    int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, outputPath, language, voice string) (*tts.SynthesisResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := os.WriteFile(outputPath, []byte("mp3"), 0o644); err != nil {
		return nil, err
	}
	return &tts.SynthesisResult{DurationSeconds: f.duration}, nil
}

// fakeStore returns deterministic URLs without touching any backend.
type fakeStore struct {
	err   error
	calls int
}

func (f *fakeStore) Store(ctx context.Context, localPath, namespace, key string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/" + namespace + "/" + key, nil
}

func (f *fakeStore) Delete(ctx context.Context, namespace, key string) error { return nil }

// fakeScheduler records enqueued jobs.
type fakeScheduler struct {
	audioJobs [][2]uint
	pdfJobs   []uint
	err       error
}

func (f *fakeScheduler) EnqueuePageAudio(bookID uint, pageNumber int) error {
	if f.err != nil {
		return f.err
	}
	f.audioJobs = append(f.audioJobs, [2]uint{bookID, uint(pageNumber)})
	return nil
}

func (f *fakeScheduler) EnqueueBookPDF(bookID uint) error {
	f.pdfJobs = append(f.pdfJobs, bookID)
	return nil
}

// fakeExtractor replays a canned result through the progress callback.
type fakeExtractor struct {
	result *extractor.Result
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, path, language string, progress extractor.ProgressFunc) (*extractor.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if progress != nil {
		chars := 0
		for _, p := range f.result.Pages {
			chars += len(p.Text)
			progress(p.PageNumber, f.result.TotalPages, chars)
		}
	}
	return f.result, nil
}

type testEnv struct {
	db        *gorm.DB
	books     *books.Repository
	pages     *pages.Repository
	synth     *fakeSynthesizer
	store     *fakeStore
	scheduler *fakeScheduler
	extractor *fakeExtractor
	orch      *Orchestrator
	cleanup   func()
}

func setupEnv(t *testing.T) *testEnv {
	dbPath := "./test_pipeline_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Book{}, &entities.BookPage{}))

	env := &testEnv{
		db:        db,
		books:     books.NewRepository(db),
		pages:     pages.NewRepository(db),
		synth:     &fakeSynthesizer{duration: 30},
		store:     &fakeStore{},
		scheduler: &fakeScheduler{},
		extractor: &fakeExtractor{},
	}
	env.orch = NewOrchestrator(Config{
		Books:     env.books,
		Pages:     env.pages,
		Extractor: env.extractor,
		TTS:       env.synth,
		Store:     env.store,
		Scheduler: env.scheduler,
	})
	env.cleanup = func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}
	return env
}

func (e *testEnv) createBook(t *testing.T, pageTexts []string) *entities.Book {
	book := &entities.Book{
		Title:            "Test Book",
		Language:         "hindi",
		IsActive:         true,
		ProcessingStatus: entities.StatusProcessing,
	}
	require.NoError(t, e.db.Create(book).Error)

	if len(pageTexts) > 0 {
		rows := make([]entities.BookPage, 0, len(pageTexts))
		for i, text := range pageTexts {
			rows = append(rows, entities.BookPage{PageNumber: i + 1, TextContent: text})
		}
		require.NoError(t, e.pages.BulkCreate(book.ID, rows))
	}
	return book
}

func TestRunAudioJob_Success(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	book := env.createBook(t, []string{"some page text"})

	require.NoError(t, env.orch.RunAudioJob(context.Background(), book.ID, 1))

	page, err := env.pages.GetByNumber(book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, page.ProcessingStatus)
	assert.Equal(t, "https://cdn.example/audio/book_"+itoa(book.ID)+"/page_0001.mp3", page.AudioURL)
	assert.Equal(t, 30.0, page.AudioDuration)
	require.NotNil(t, page.ProcessedAt)

	updated, err := env.books.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, updated.ProcessingStatus)
	assert.Equal(t, 100, updated.ProcessingProgress)
}

func TestRunAudioJob_IdempotentSkip(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	book := env.createBook(t, []string{"text"})
	require.NoError(t, env.pages.MarkCompleted(book.ID, 1, "https://cdn.example/original.mp3", 12))

	require.NoError(t, env.orch.RunAudioJob(context.Background(), book.ID, 1))

	// Neither the synthesizer nor the store were touched, and the stored
	// artifact is unchanged.
	assert.Zero(t, env.synth.calls)
	assert.Zero(t, env.store.calls)

	page, err := env.pages.GetByNumber(book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/original.mp3", page.AudioURL)
	assert.Equal(t, 12.0, page.AudioDuration)
}

func TestRunAudioJob_EmptyTextDegeneratesToCompleted(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	book := env.createBook(t, []string{"   \n  "})

	require.NoError(t, env.orch.RunAudioJob(context.Background(), book.ID, 1))

	page, err := env.pages.GetByNumber(book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, page.ProcessingStatus)
	assert.Equal(t, entities.NoTextContent, page.ProcessingError)
	assert.Empty(t, page.AudioURL)
	assert.Zero(t, env.synth.calls)

	// The empty page still counts toward book completion.
	updated, err := env.books.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, updated.ProcessingStatus)
}

func TestRunAudioJob_SynthesisFailureRecordsErrorAndPropagates(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	book := env.createBook(t, []string{"text"})
	env.synth.err = errors.New("voice service unavailable")

	err := env.orch.RunAudioJob(context.Background(), book.ID, 1)
	require.Error(t, err)

	page, getErr := env.pages.GetByNumber(book.ID, 1)
	require.NoError(t, getErr)
	assert.Equal(t, entities.StatusFailed, page.ProcessingStatus)
	assert.Contains(t, page.ProcessingError, "voice service unavailable")
}

func TestRunAudioJob_RetryAfterCrashedAttempt(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	book := env.createBook(t, []string{"text"})
	// Simulate a prior attempt that died mid-flight.
	require.NoError(t, env.pages.MarkProcessing(book.ID, 1))

	require.NoError(t, env.orch.RunAudioJob(context.Background(), book.ID, 1))

	page, err := env.pages.GetByNumber(book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, page.ProcessingStatus)
	assert.Equal(t, 1, env.synth.calls)
}

func TestRunAudioJob_MissingBookOrPageDropsJob(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	// Unknown book: the job is dropped, not retried.
	require.NoError(t, env.orch.RunAudioJob(context.Background(), 999, 1))

	book := env.createBook(t, []string{"text"})
	require.NoError(t, env.orch.RunAudioJob(context.Background(), book.ID, 42))
	assert.Zero(t, env.synth.calls)
}

func TestRunAudioJob_CompletionIsOrderIndependent(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	// Spec example: page 2 is empty; pages finish out of order.
	book := env.createBook(t, []string{"page one", "", "page three"})

	for _, pageNum := range []int{3, 2, 1} {
		require.NoError(t, env.orch.RunAudioJob(context.Background(), book.ID, pageNum))
	}

	p1, _ := env.pages.GetByNumber(book.ID, 1)
	p2, _ := env.pages.GetByNumber(book.ID, 2)
	p3, _ := env.pages.GetByNumber(book.ID, 3)

	assert.Equal(t, entities.StatusCompleted, p1.ProcessingStatus)
	assert.NotEmpty(t, p1.AudioURL)
	assert.Equal(t, entities.StatusCompleted, p2.ProcessingStatus)
	assert.Empty(t, p2.AudioURL)
	assert.Equal(t, entities.NoTextContent, p2.ProcessingError)
	assert.Equal(t, entities.StatusCompleted, p3.ProcessingStatus)
	assert.NotEmpty(t, p3.AudioURL)

	updated, err := env.books.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, updated.ProcessingStatus)
	assert.Equal(t, 100, updated.ProcessingProgress)
	assert.Equal(t, p1.AudioDuration+p3.AudioDuration, updated.TotalDuration)
}

func TestProcessUpload_EventOrdering(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	book := env.createBook(t, nil)
	env.extractor.result = &extractor.Result{
		TotalPages: 3,
		Pages: []extractor.PageText{
			{PageNumber: 1, Text: "one"},
			{PageNumber: 2, Text: ""},
			{PageNumber: 3, Text: "three"},
		},
	}

	recorder := &Recorder{}
	result, err := env.orch.ProcessUpload(context.Background(), book, "/tmp/ignored.pdf", recorder)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalPages)

	names := make([]string, 0, len(recorder.Events))
	for _, e := range recorder.Events {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{
		EventProcessingStarted,
		EventPageProgress, EventPageProgress, EventPageProgress,
		EventStatus,
		EventAudioGenerationStarted,
	}, names)

	// page_progress frames walk the pages in ascending order.
	current := 0
	for _, e := range recorder.Events {
		if e.Name != EventPageProgress {
			continue
		}
		current++
		assert.Equal(t, current, e.Data["current_page"])
		assert.Equal(t, 3, e.Data["total_pages"])
	}

	// All pages materialized pending; one audio job per page.
	pageRows, err := env.pages.ListByBook(book.ID)
	require.NoError(t, err)
	require.Len(t, pageRows, 3)
	assert.Len(t, env.scheduler.audioJobs, 3)
}

func TestProcessUpload_ExtractionFailureCreatesNoPages(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	book := env.createBook(t, nil)
	env.extractor.err = errors.New("corrupt xref table")

	recorder := &Recorder{}
	_, err := env.orch.ProcessUpload(context.Background(), book, "/tmp/ignored.pdf", recorder)
	require.ErrorIs(t, err, ErrExtractionFailed)

	pageRows, listErr := env.pages.ListByBook(book.ID)
	require.NoError(t, listErr)
	assert.Empty(t, pageRows)

	updated, getErr := env.books.GetByID(book.ID)
	require.NoError(t, getErr)
	assert.Equal(t, entities.StatusFailed, updated.ProcessingStatus)
	assert.Contains(t, updated.ProcessingError, "corrupt xref table")

	assert.Empty(t, env.scheduler.audioJobs)
}

func TestScheduleReprocess(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	book := env.createBook(t, nil)
	require.NoError(t, env.books.MarkFailed(book.ID, "Processing timeout"))

	require.NoError(t, env.orch.ScheduleReprocess(book.ID))

	assert.Equal(t, []uint{book.ID}, env.scheduler.pdfJobs)

	updated, err := env.books.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusProcessing, updated.ProcessingStatus)
	assert.Empty(t, updated.ProcessingError)
}

func TestProcessBookPDF_ReplacesExistingPages(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	book := env.createBook(t, []string{"old one", "old two", "old three"})
	require.NoError(t, env.db.Model(&entities.Book{}).Where("id = ?", book.ID).
		Update("pdf_url", srv.URL).Error)

	env.extractor.result = &extractor.Result{
		TotalPages: 2,
		Pages: []extractor.PageText{
			{PageNumber: 1, Text: "new one"},
			{PageNumber: 2, Text: "new two"},
		},
	}

	require.NoError(t, env.orch.ProcessBookPDF(context.Background(), book.ID))

	pageRows, err := env.pages.ListByBook(book.ID)
	require.NoError(t, err)
	require.Len(t, pageRows, 2)
	assert.Equal(t, "new one", pageRows[0].TextContent)
	assert.Equal(t, entities.StatusPending, pageRows[0].ProcessingStatus)
	assert.Len(t, env.scheduler.audioJobs, 2)

	updated, err := env.books.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.TotalPages)
	assert.Equal(t, entities.StatusProcessing, updated.ProcessingStatus)
}

func TestProcessBookPDF_FetchFailureMarksBookFailed(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	book := env.createBook(t, nil)
	require.NoError(t, env.db.Model(&entities.Book{}).Where("id = ?", book.ID).
		Update("pdf_url", srv.URL).Error)

	err := env.orch.ProcessBookPDF(context.Background(), book.ID)
	require.Error(t, err)

	updated, getErr := env.books.GetByID(book.ID)
	require.NoError(t, getErr)
	assert.Equal(t, entities.StatusFailed, updated.ProcessingStatus)
	assert.Contains(t, updated.ProcessingError, "download pdf")
}

func TestProcessBookPDF_MissingBookDropsJob(t *testing.T) {
	env := setupEnv(t)
	defer env.cleanup()

	require.NoError(t, env.orch.ProcessBookPDF(context.Background(), 999))
	assert.Empty(t, env.scheduler.audioJobs)
}

func itoa(v uint) string {
	return fmt.Sprintf("%d", v)
}
