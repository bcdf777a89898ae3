// Package progress provides database operations for per-user listening
// progress. Rows are created lazily on the first read or write for a
// (user, book) pair and updated as an upsert on every playback checkpoint.
package progress

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/entities"
)

// Repository handles listening progress database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new progress repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreate returns the progress row for the pair, creating an empty one
// when none exists yet. The created flag lets callers count first listens.
func (r *Repository) GetOrCreate(userID, bookID uint) (*entities.ListeningProgress, bool, error) {
	var p entities.ListeningProgress
	err := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&p).Error
	if err == nil {
		return &p, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	p = entities.ListeningProgress{
		UserID:         userID,
		BookID:         bookID,
		LastListenedAt: time.Now(),
	}
	if err := r.db.Create(&p).Error; err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

// UpdateCheckpoint records a playback checkpoint. The completion percentage
// is derived from the checkpoint page against the book's page count; moving
// back to an earlier page lowers it, which is allowed since users re-read.
func (r *Repository) UpdateCheckpoint(p *entities.ListeningProgress, totalPages, pageNumber, position, listenedTime int) error {
	p.CurrentPage = pageNumber
	p.CurrentPosition = position
	p.TotalListenedTime += listenedTime
	p.LastListenedAt = time.Now()

	if totalPages > 0 {
		p.CompletionPercentage = pageNumber * 100 / totalPages
		p.IsCompleted = pageNumber >= totalPages
	}

	return r.db.Save(p).Error
}

// ListByUser returns a user's progress rows, most recently listened first.
// inProgress restricts to started but unfinished books; completed restricts
// to finished ones.
func (r *Repository) ListByUser(userID uint, inProgress, completed bool) ([]entities.ListeningProgress, error) {
	query := r.db.Preload("Book").Where("user_id = ?", userID)
	if inProgress {
		query = query.Where("is_completed = ? AND completion_percentage > 0", false)
	} else if completed {
		query = query.Where("is_completed = ?", true)
	}
	var rows []entities.ListeningProgress
	err := query.Order("last_listened_at DESC").Find(&rows).Error
	return rows, err
}
