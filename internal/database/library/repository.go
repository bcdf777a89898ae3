// Package library provides database operations for user library membership
// and the favorite flag.
package library

import (
	"errors"

	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/entities"
)

// ErrAlreadyInLibrary is returned when adding a book twice.
var ErrAlreadyInLibrary = errors.New("book already in library")

// Repository handles user library database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new library repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Add places a book in the user's library.
func (r *Repository) Add(userID, bookID uint) error {
	var existing entities.UserLibrary
	err := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&existing).Error
	if err == nil {
		return ErrAlreadyInLibrary
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.Create(&entities.UserLibrary{UserID: userID, BookID: bookID}).Error
}

// Remove deletes the membership row.
func (r *Repository) Remove(userID, bookID uint) error {
	result := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).
		Delete(&entities.UserLibrary{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ToggleFavorite flips the favorite flag, creating the membership row if the
// book is not in the library yet. Returns the new flag value.
func (r *Repository) ToggleFavorite(userID, bookID uint) (bool, error) {
	var item entities.UserLibrary
	err := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		item = entities.UserLibrary{UserID: userID, BookID: bookID, IsFavorite: true}
		if err := r.db.Create(&item).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	item.IsFavorite = !item.IsFavorite
	if err := r.db.Save(&item).Error; err != nil {
		return false, err
	}
	return item.IsFavorite, nil
}

// ListByUser returns the user's library entries, newest first.
func (r *Repository) ListByUser(userID uint, favoritesOnly bool) ([]entities.UserLibrary, error) {
	query := r.db.Preload("Book").Where("user_id = ?", userID)
	if favoritesOnly {
		query = query.Where("is_favorite = ?", true)
	}
	var items []entities.UserLibrary
	err := query.Order("added_at DESC").Find(&items).Error
	return items, err
}
