// Package pages provides database operations for per-page pipeline state.
package pages

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/entities"
)

// Repository handles all page ledger database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new pages repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// BulkCreate records total_pages on the book and inserts one pending page
// per entry, in order, within a single transaction. Existing pages of the
// book are replaced, so reprocessing a stored PDF starts from a clean
// ledger instead of colliding with the unique page index. A concurrent
// status reader never observes pages without the page count; the reverse
// window is bounded by the transaction commit.
func (r *Repository) BulkCreate(bookID uint, texts []entities.BookPage) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("book_id = ?", bookID).Delete(&entities.BookPage{}).Error
		if err != nil {
			return fmt.Errorf("clear existing pages: %w", err)
		}
		err = tx.Model(&entities.Book{}).Where("id = ?", bookID).
			Update("total_pages", len(texts)).Error
		if err != nil {
			return fmt.Errorf("set total pages: %w", err)
		}
		for i := range texts {
			texts[i].BookID = bookID
			texts[i].ProcessingStatus = entities.StatusPending
		}
		if len(texts) == 0 {
			return nil
		}
		if err := tx.Create(&texts).Error; err != nil {
			return fmt.Errorf("create pages: %w", err)
		}
		return nil
	})
}

// GetByNumber retrieves one page of a book.
func (r *Repository) GetByNumber(bookID uint, pageNumber int) (*entities.BookPage, error) {
	var page entities.BookPage
	err := r.db.Where("book_id = ? AND page_number = ?", bookID, pageNumber).First(&page).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// ListByBook retrieves all pages of a book ordered by page number.
func (r *Repository) ListByBook(bookID uint) ([]entities.BookPage, error) {
	var pages []entities.BookPage
	err := r.db.Where("book_id = ?", bookID).Order("page_number ASC").Find(&pages).Error
	return pages, err
}

// CountByStatus returns the page counts of a book grouped by processing status.
func (r *Repository) CountByStatus(bookID uint) (map[entities.ProcessingStatus]int64, error) {
	type row struct {
		ProcessingStatus entities.ProcessingStatus
		N                int64
	}
	var rows []row
	err := r.db.Model(&entities.BookPage{}).
		Select("processing_status, COUNT(*) AS n").
		Where("book_id = ?", bookID).
		Group("processing_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[entities.ProcessingStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.ProcessingStatus] = r.N
	}
	return counts, nil
}

// MarkProcessing moves a page into the processing state. A page left in
// processing by a crashed attempt is reset the same way, so retries re-enter
// here rather than being skipped.
func (r *Repository) MarkProcessing(bookID uint, pageNumber int) error {
	return r.update(bookID, pageNumber, map[string]any{
		"processing_status": entities.StatusProcessing,
		"processing_error":  "",
	})
}

// MarkCompleted records the stored audio artifact and finishes the page.
func (r *Repository) MarkCompleted(bookID uint, pageNumber int, audioURL string, duration float64) error {
	now := time.Now()
	return r.update(bookID, pageNumber, map[string]any{
		"processing_status": entities.StatusCompleted,
		"audio_url":         audioURL,
		"audio_duration":    duration,
		"processed_at":      &now,
	})
}

// MarkCompletedNoAudio finishes a page that has no synthesizable text.
// This is a degenerate success, not a failure.
func (r *Repository) MarkCompletedNoAudio(bookID uint, pageNumber int) error {
	return r.update(bookID, pageNumber, map[string]any{
		"processing_status": entities.StatusCompleted,
		"processing_error":  entities.NoTextContent,
	})
}

// MarkFailed records a synthesis failure and its error text.
func (r *Repository) MarkFailed(bookID uint, pageNumber int, errText string) error {
	return r.update(bookID, pageNumber, map[string]any{
		"processing_status": entities.StatusFailed,
		"processing_error":  errText,
	})
}

// ListRecentFailed returns pages that failed within the recency window,
// candidates for the bounded retry sweep.
func (r *Repository) ListRecentFailed(window time.Duration) ([]entities.BookPage, error) {
	cutoff := time.Now().Add(-window)
	var pages []entities.BookPage
	err := r.db.Where("processing_status = ? AND created_at >= ?", entities.StatusFailed, cutoff).
		Find(&pages).Error
	return pages, err
}

func (r *Repository) update(bookID uint, pageNumber int, fields map[string]any) error {
	result := r.db.Model(&entities.BookPage{}).
		Where("book_id = ? AND page_number = ?", bookID, pageNumber).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
