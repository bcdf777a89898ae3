package entities

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// ProcessingStatus tracks a book or page through the audio pipeline.
type ProcessingStatus string

const (
	StatusUploaded   ProcessingStatus = "uploaded"
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// NoTextContent is recorded on pages that complete without audio because
// they carry no extractable text.
const NoTextContent = "No text content"

type Book struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UploaderID  uint   `gorm:"index" json:"uploader_id"`
	Title       string `gorm:"index;size:512" json:"title"`
	Author      string `gorm:"index;size:256" json:"author"`
	Description string `gorm:"size:4096" json:"description,omitempty"`
	Language    string `gorm:"index;size:32" json:"language"`
	Genre       string `gorm:"index;size:64" json:"genre,omitempty"`
	CoverURL    string `gorm:"size:2048" json:"cover_url,omitempty"`
	PDFURL      string `gorm:"size:2048" json:"pdf_url,omitempty"`
	IsPublic    bool   `gorm:"index" json:"is_public"`
	IsActive    bool   `gorm:"index;default:true" json:"is_active"`

	TotalPages         int              `json:"total_pages"`
	ProcessingStatus   ProcessingStatus `gorm:"index;size:20;default:uploaded" json:"processing_status"`
	ProcessingProgress int              `json:"processing_progress"`
	ProcessingError    string           `gorm:"size:2048" json:"processing_error,omitempty"`
	ProcessedAt        *time.Time       `json:"processed_at,omitempty"`

	// TotalDuration is the sum of page audio durations in seconds.
	TotalDuration float64 `json:"total_duration"`
	ListenCount   int     `json:"listen_count"`

	Pages []BookPage `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"pages,omitempty"`

	UploadedAt time.Time      `gorm:"autoCreateTime" json:"uploaded_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type BookPage struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	BookID uint `gorm:"index;uniqueIndex:idx_book_page" json:"book_id"`
	// PageNumber is 1-based and stable once the page is created.
	PageNumber  int    `gorm:"uniqueIndex:idx_book_page" json:"page_number"`
	TextContent string `json:"text_content"`

	ProcessingStatus ProcessingStatus `gorm:"index;size:20;default:pending" json:"processing_status"`
	ProcessingError  string           `gorm:"size:2048" json:"processing_error,omitempty"`

	AudioURL      string     `gorm:"size:2048" json:"audio_url,omitempty"`
	AudioDuration float64    `json:"audio_duration,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasText reports whether the page carries synthesizable text.
// Whitespace-only pages are treated the same as empty ones.
func (p *BookPage) HasText() bool {
	return strings.TrimSpace(p.TextContent) != ""
}
