// Package books provides database operations for the book ledger: creation,
// queries, soft deletion and the processing-progress state machine.
package books

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/entities"
)

// StaleProcessingError is recorded on books reclaimed by the staleness sweep.
const StaleProcessingError = "Processing timeout"

// ListFilter narrows public book listings.
type ListFilter struct {
	Search   string
	Language string
	Genre    string
	Status   string
	Limit    int
	Offset   int
}

// Repository handles all book ledger database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new book record.
func (r *Repository) Create(book *entities.Book) error {
	return r.db.Create(book).Error
}

// GetByID retrieves an active book by ID.
func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("is_active = ?", true).First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ListPublic retrieves active public books matching the filter, newest first.
func (r *Repository) ListPublic(filter ListFilter) ([]entities.Book, int64, error) {
	query := r.db.Model(&entities.Book{}).Where("is_public = ? AND is_active = ?", true, true)

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("title LIKE ? OR author LIKE ? OR description LIKE ?", like, like, like)
	}
	if filter.Language != "" {
		query = query.Where("language = ?", filter.Language)
	}
	if filter.Genre != "" {
		query = query.Where("genre = ?", filter.Genre)
	}
	if filter.Status != "" {
		query = query.Where("processing_status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("uploaded_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var books []entities.Book
	err := query.Find(&books).Error
	return books, total, err
}

// ListByUploader retrieves a user's active books, newest first, optionally
// filtered by processing status.
func (r *Repository) ListByUploader(uploaderID uint, status string) ([]entities.Book, error) {
	query := r.db.Where("uploader_id = ? AND is_active = ?", uploaderID, true)
	if status != "" {
		query = query.Where("processing_status = ?", status)
	}
	var books []entities.Book
	err := query.Order("uploaded_at DESC").Find(&books).Error
	return books, err
}

// UpdateFields applies a partial update to a book.
func (r *Repository) UpdateFields(id uint, fields map[string]any) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).Updates(fields).Error
}

// SoftDelete marks a book inactive. Pages and progress rows remain.
func (r *Repository) SoftDelete(id uint) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).Update("is_active", false).Error
}

// IncrementListenCount bumps the listen counter by one.
func (r *Repository) IncrementListenCount(id uint) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).
		UpdateColumn("listen_count", gorm.Expr("listen_count + 1")).Error
}

// SetTotalPages records the extracted page count on the book.
func (r *Repository) SetTotalPages(id uint, totalPages int) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).Update("total_pages", totalPages).Error
}

// MarkProcessing transitions a book into the processing state.
func (r *Repository) MarkProcessing(id uint) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).Updates(map[string]any{
		"processing_status": entities.StatusProcessing,
		"processing_error":  "",
	}).Error
}

// MarkFailed records a terminal processing failure on the book.
func (r *Repository) MarkFailed(id uint, errText string) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).Updates(map[string]any{
		"processing_status": entities.StatusFailed,
		"processing_error":  errText,
	}).Error
}

// UpdateProgress recomputes the book's processing progress from the
// authoritative page counts. When every page has completed, the book is
// marked completed and total_duration is set to the sum of page durations
// (pages without audio contribute zero).
//
// Safe to call concurrently from multiple page-completion events: every
// caller derives the same fields from the same persisted counts, so
// last-write-wins is harmless.
func (r *Repository) UpdateProgress(bookID uint) error {
	var total, completed int64

	if err := r.db.Model(&entities.BookPage{}).Where("book_id = ?", bookID).Count(&total).Error; err != nil {
		return fmt.Errorf("count pages for book %d: %w", bookID, err)
	}
	if total == 0 {
		return nil
	}
	err := r.db.Model(&entities.BookPage{}).
		Where("book_id = ? AND processing_status = ?", bookID, entities.StatusCompleted).
		Count(&completed).Error
	if err != nil {
		return fmt.Errorf("count completed pages for book %d: %w", bookID, err)
	}

	progress := int(completed * 100 / total)
	fields := map[string]any{"processing_progress": progress}

	if completed == total {
		var totalDuration float64
		err := r.db.Model(&entities.BookPage{}).
			Where("book_id = ?", bookID).
			Select("COALESCE(SUM(audio_duration), 0)").
			Scan(&totalDuration).Error
		if err != nil {
			return fmt.Errorf("sum durations for book %d: %w", bookID, err)
		}
		now := time.Now()
		fields["processing_status"] = entities.StatusCompleted
		fields["processed_at"] = &now
		fields["total_duration"] = totalDuration
	}

	if err := r.db.Model(&entities.Book{}).Where("id = ?", bookID).Updates(fields).Error; err != nil {
		return fmt.Errorf("update progress for book %d: %w", bookID, err)
	}

	log.Printf("Book %d progress updated: %d%%", bookID, progress)
	return nil
}

// MarkStaleProcessingFailed fails every book that has sat in the processing
// state past the staleness window. Returns the number of books reclaimed.
// Idempotent: reclaimed books leave the processing state, so a second sweep
// does not match them again.
func (r *Repository) MarkStaleProcessingFailed(window time.Duration) (int64, error) {
	cutoff := time.Now().Add(-window)
	result := r.db.Model(&entities.Book{}).
		Where("processing_status = ? AND updated_at < ?", entities.StatusProcessing, cutoff).
		Updates(map[string]any{
			"processing_status": entities.StatusFailed,
			"processing_error":  StaleProcessingError,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Staleness sweep: marked %d stuck book(s) as failed", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
