package entities

import "time"

// ListeningProgress tracks one user's playback position within one book.
// Created lazily on the first progress read or write for the pair.
type ListeningProgress struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index;uniqueIndex:idx_user_book_progress" json:"user_id"`
	BookID uint `gorm:"index;uniqueIndex:idx_user_book_progress" json:"book_id"`

	CurrentPage     int `json:"current_page"`
	CurrentPosition int `json:"current_position"`
	// CompletionPercentage is derived from current_page/total_pages at
	// update time. It only moves backwards when the user explicitly
	// returns to an earlier page.
	CompletionPercentage int  `json:"completion_percentage"`
	TotalListenedTime    int  `json:"total_listened_time"`
	IsCompleted          bool `json:"is_completed"`

	LastListenedAt time.Time `json:"last_listened_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Book Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

// UserLibrary is a membership row: the user keeps the book in their
// library, optionally flagged as favorite.
type UserLibrary struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;uniqueIndex:idx_user_book_library" json:"user_id"`
	BookID     uint      `gorm:"index;uniqueIndex:idx_user_book_library" json:"book_id"`
	IsFavorite bool      `json:"is_favorite"`
	AddedAt    time.Time `gorm:"autoCreateTime" json:"added_at"`

	Book Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}
