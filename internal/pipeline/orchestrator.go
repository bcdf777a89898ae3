// Package pipeline drives a book from upload to fully synthesized audiobook:
// text extraction, page materialization, per-page audio jobs and progress
// aggregation. Each audio job is an independently retryable unit of work
// owning a single page row, so jobs for different pages run concurrently
// without cross-page locking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/entities"
	"github.com/kitaabse/audiobooks/internal/extractor"
	"github.com/kitaabse/audiobooks/internal/storage"
	"github.com/kitaabse/audiobooks/internal/tts"
)

// BookLedger is the book-level slice of the persisted state machine.
type BookLedger interface {
	GetByID(id uint) (*entities.Book, error)
	MarkProcessing(id uint) error
	MarkFailed(id uint, errText string) error
	UpdateProgress(bookID uint) error
}

// PageLedger is the page-level slice of the persisted state machine.
type PageLedger interface {
	BulkCreate(bookID uint, texts []entities.BookPage) error
	GetByNumber(bookID uint, pageNumber int) (*entities.BookPage, error)
	MarkProcessing(bookID uint, pageNumber int) error
	MarkCompleted(bookID uint, pageNumber int, audioURL string, duration float64) error
	MarkCompletedNoAudio(bookID uint, pageNumber int) error
	MarkFailed(bookID uint, pageNumber int, errText string) error
}

// JobScheduler enqueues units of work onto the durable queue. Delivery is
// at-least-once; handlers must stay idempotent.
type JobScheduler interface {
	EnqueuePageAudio(bookID uint, pageNumber int) error
	EnqueueBookPDF(bookID uint) error
}

// ErrExtractionFailed wraps collaborator errors during text extraction. No
// page rows exist when it is returned.
var ErrExtractionFailed = errors.New("extraction failed")

// Config carries the orchestrator's collaborators.
type Config struct {
	Books     BookLedger
	Pages     PageLedger
	Extractor extractor.PageExtractor
	TTS       tts.Synthesizer
	Store     storage.ArtifactStore
	Scheduler JobScheduler

	// Voice is passed to the synthesizer for every page. Default "female".
	Voice string
}

// Orchestrator coordinates extraction and per-page audio generation.
type Orchestrator struct {
	books     BookLedger
	pages     PageLedger
	extractor extractor.PageExtractor
	tts       tts.Synthesizer
	store     storage.ArtifactStore
	scheduler JobScheduler
	voice     string

	httpClient *http.Client
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(cfg Config) *Orchestrator {
	voice := cfg.Voice
	if voice == "" {
		voice = "female"
	}
	return &Orchestrator{
		books:      cfg.Books,
		pages:      cfg.Pages,
		extractor:  cfg.Extractor,
		tts:        cfg.TTS,
		store:      cfg.Store,
		scheduler:  cfg.Scheduler,
		voice:      voice,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// BeginExtraction runs the page extractor over the PDF at path. On failure
// no page records are created and the error wraps ErrExtractionFailed.
func (o *Orchestrator) BeginExtraction(ctx context.Context, path, language string, progress extractor.ProgressFunc) (*extractor.Result, error) {
	result, err := o.extractor.Extract(ctx, path, language, progress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return result, nil
}

// MaterializePages creates one pending page row per extracted entry, in
// order, and records the page count on the book.
func (o *Orchestrator) MaterializePages(bookID uint, result *extractor.Result) error {
	texts := make([]entities.BookPage, 0, len(result.Pages))
	for _, p := range result.Pages {
		texts = append(texts, entities.BookPage{
			PageNumber:  p.PageNumber,
			TextContent: p.Text,
		})
	}
	if err := o.pages.BulkCreate(bookID, texts); err != nil {
		return fmt.Errorf("materialize pages for book %d: %w", bookID, err)
	}
	return nil
}

// ScheduleAudio enqueues the audio unit of work for one page.
func (o *Orchestrator) ScheduleAudio(bookID uint, pageNumber int) error {
	return o.scheduler.EnqueuePageAudio(bookID, pageNumber)
}

// ScheduleReprocess marks the book as processing again and enqueues a
// background extraction pass over its stored PDF. Existing pages are
// replaced when the job materializes the new ledger.
func (o *Orchestrator) ScheduleReprocess(bookID uint) error {
	if err := o.books.MarkProcessing(bookID); err != nil {
		return fmt.Errorf("mark book processing: %w", err)
	}
	return o.scheduler.EnqueueBookPDF(bookID)
}

// ScheduleAllAudio enqueues audio jobs for every page of the book.
func (o *Orchestrator) ScheduleAllAudio(bookID uint, totalPages int) error {
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		if err := o.ScheduleAudio(bookID, pageNum); err != nil {
			return fmt.Errorf("schedule audio for book %d page %d: %w", bookID, pageNum, err)
		}
	}
	return nil
}

// ProcessUpload performs the synchronous upload-time flow after the book row
// and stored PDF exist: extract pages (narrating progress through the
// emitter), materialize the page ledger and schedule all audio jobs. The
// caller emits the surrounding status and terminal frames.
func (o *Orchestrator) ProcessUpload(ctx context.Context, book *entities.Book, pdfPath string, emitter Emitter) (*extractor.Result, error) {
	if emitter == nil {
		emitter = NopEmitter{}
	}

	if err := o.books.MarkProcessing(book.ID); err != nil {
		return nil, fmt.Errorf("mark book processing: %w", err)
	}

	started := false
	progress := func(current, total, chars int) {
		// processing_started carries the page count, which is only known
		// once the first callback fires.
		if !started {
			started = true
			emitter.Emit(Event{Name: EventProcessingStarted, Data: map[string]any{
				"book_id":     book.ID,
				"total_pages": total,
			}})
		}
		emitter.Emit(Event{Name: EventPageProgress, Data: map[string]any{
			"current_page":    current,
			"total_pages":     total,
			"chars_extracted": chars,
		}})
	}

	result, err := o.BeginExtraction(ctx, pdfPath, book.Language, progress)
	if err != nil {
		if markErr := o.books.MarkFailed(book.ID, err.Error()); markErr != nil {
			log.Printf("Failed to record extraction failure for book %d: %v", book.ID, markErr)
		}
		return nil, err
	}

	emitter.Emit(StatusEvent(fmt.Sprintf("Text extraction complete: %d pages", result.TotalPages)))

	if err := o.MaterializePages(book.ID, result); err != nil {
		if markErr := o.books.MarkFailed(book.ID, err.Error()); markErr != nil {
			log.Printf("Failed to record materialization failure for book %d: %v", book.ID, markErr)
		}
		return nil, err
	}

	if err := o.ScheduleAllAudio(book.ID, result.TotalPages); err != nil {
		return nil, err
	}

	emitter.Emit(Event{Name: EventAudioGenerationStarted, Data: map[string]any{
		"book_id":     book.ID,
		"total_pages": result.TotalPages,
	}})

	return result, nil
}

// RunAudioJob is the body of the per-page unit of work. It is idempotent:
// invoked on an already-completed page it returns success without touching
// the stored audio. A returned error signals the queue to retry.
func (o *Orchestrator) RunAudioJob(ctx context.Context, bookID uint, pageNumber int) error {
	book, err := o.books.GetByID(bookID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Audio job: book %d not found, dropping job", bookID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load book %d: %w", bookID, err)
	}

	page, err := o.pages.GetByNumber(bookID, pageNumber)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Audio job: book %d page %d not found, dropping job", bookID, pageNumber)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load page %d of book %d: %w", pageNumber, bookID, err)
	}

	// Skip policy: re-delivery of a finished page is a success, not an error.
	if page.ProcessingStatus == entities.StatusCompleted {
		log.Printf("Audio job: book %d page %d already completed, skipping", bookID, pageNumber)
		return nil
	}

	// Re-entry point for retries, including pages stranded in processing
	// by a crashed attempt.
	if err := o.pages.MarkProcessing(bookID, pageNumber); err != nil {
		return fmt.Errorf("mark page processing: %w", err)
	}

	if !page.HasText() {
		if err := o.pages.MarkCompletedNoAudio(bookID, pageNumber); err != nil {
			return fmt.Errorf("mark empty page completed: %w", err)
		}
		return o.books.UpdateProgress(bookID)
	}

	if err := o.synthesizePage(ctx, book, page); err != nil {
		if markErr := o.pages.MarkFailed(bookID, pageNumber, err.Error()); markErr != nil {
			log.Printf("Failed to record page failure for book %d page %d: %v", bookID, pageNumber, markErr)
		}
		return err
	}

	return o.books.UpdateProgress(bookID)
}

// synthesizePage renders one page's audio into a temp file, stores it and
// completes the page. The temp file is removed on every exit path.
func (o *Orchestrator) synthesizePage(ctx context.Context, book *entities.Book, page *entities.BookPage) error {
	tmp, err := os.CreateTemp("", fmt.Sprintf("page_%d_%d_*.mp3", book.ID, page.PageNumber))
	if err != nil {
		return fmt.Errorf("create temp audio file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	result, err := o.tts.Synthesize(ctx, page.TextContent, tmpPath, book.Language, o.voice)
	if err != nil {
		return fmt.Errorf("synthesize page %d: %w", page.PageNumber, err)
	}

	namespace, key := storage.AudioKey(book.ID, page.PageNumber)
	audioURL, err := o.store.Store(ctx, tmpPath, namespace, key)
	if err != nil {
		return fmt.Errorf("store audio for page %d: %w", page.PageNumber, err)
	}

	if err := o.pages.MarkCompleted(book.ID, page.PageNumber, audioURL, result.DurationSeconds); err != nil {
		return fmt.Errorf("mark page completed: %w", err)
	}

	log.Printf("Audio generated for book %d page %d (%.1fs)", book.ID, page.PageNumber, result.DurationSeconds)
	return nil
}

// ProcessBookPDF is the background (re)processing unit of work: it fetches
// the stored PDF, extracts pages, materializes the ledger and schedules
// audio generation. A returned error signals the queue to retry; the book
// is marked failed so the ledger never hides the condition.
func (o *Orchestrator) ProcessBookPDF(ctx context.Context, bookID uint) error {
	book, err := o.books.GetByID(bookID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("PDF job: book %d not found, dropping job", bookID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load book %d: %w", bookID, err)
	}

	if err := o.books.MarkProcessing(bookID); err != nil {
		return fmt.Errorf("mark book processing: %w", err)
	}

	err = o.processBookPDF(ctx, book)
	if err != nil {
		if markErr := o.books.MarkFailed(bookID, err.Error()); markErr != nil {
			log.Printf("Failed to record processing failure for book %d: %v", bookID, markErr)
		}
		return err
	}
	return nil
}

func (o *Orchestrator) processBookPDF(ctx context.Context, book *entities.Book) error {
	pdfPath, err := o.fetchToTemp(ctx, book.PDFURL)
	if err != nil {
		return fmt.Errorf("download pdf for book %d: %w", book.ID, err)
	}
	defer os.Remove(pdfPath)

	result, err := o.BeginExtraction(ctx, pdfPath, book.Language, nil)
	if err != nil {
		return err
	}
	if err := o.MaterializePages(book.ID, result); err != nil {
		return err
	}
	return o.ScheduleAllAudio(book.ID, result.TotalPages)
}

// fetchToTemp downloads a stored artifact to a local temp file and returns
// its path. The caller owns the file.
func (o *Orchestrator) fetchToTemp(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp("", "book_*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
