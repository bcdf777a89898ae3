package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/database/pages"
	"github.com/kitaabse/audiobooks/internal/entities"
)

type StatusController struct {
	books *books.Repository
	pages *pages.Repository

	// estimateSecondsPerPage feeds the remaining-time estimate shown
	// while audio generation is in flight.
	estimateSecondsPerPage int
}

func NewStatusController(booksRepo *books.Repository, pagesRepo *pages.Repository, estimateSecondsPerPage int) *StatusController {
	if estimateSecondsPerPage <= 0 {
		estimateSecondsPerPage = 30
	}
	return &StatusController{
		books:                  booksRepo,
		pages:                  pagesRepo,
		estimateSecondsPerPage: estimateSecondsPerPage,
	}
}

type statusResponse struct {
	BookID                 uint                      `json:"book_id"`
	ProcessingStatus       entities.ProcessingStatus `json:"processing_status"`
	ProcessingProgress     int                       `json:"processing_progress"`
	ProcessingError        string                    `json:"processing_error,omitempty"`
	TotalPages             int                       `json:"total_pages"`
	PageCounts             map[string]int64          `json:"page_counts"`
	AudioReady             bool                      `json:"audio_ready"`
	EstimatedTimeRemaining string                    `json:"estimated_time_remaining"`
}

// Get reports pipeline progress for a book. It only reads the ledger;
// polling it never perturbs in-flight work.
func (s *StatusController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := s.books.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book status")
		return
	}
	if !book.IsPublic && book.UploaderID != GetUserID(c) {
		respondNotFound(c, "book")
		return
	}

	counts, err := s.pages.CountByStatus(book.ID)
	if err != nil {
		respondInternalError(c, err, "count page statuses")
		return
	}

	pageCounts := map[string]int64{
		"pending":    counts[entities.StatusPending],
		"processing": counts[entities.StatusProcessing],
		"completed":  counts[entities.StatusCompleted],
		"failed":     counts[entities.StatusFailed],
	}

	remaining := pageCounts["pending"] + pageCounts["processing"]
	estimate := formatEstimate(remaining * int64(s.estimateSecondsPerPage))
	if remaining == 0 && book.ProcessingStatus == entities.StatusProcessing {
		// Extraction is still running and pages aren't materialized
		// yet; zero unfinished rows doesn't mean the work is done.
		estimate = "Calculating..."
	}

	c.JSON(http.StatusOK, statusResponse{
		BookID:                 book.ID,
		ProcessingStatus:       book.ProcessingStatus,
		ProcessingProgress:     book.ProcessingProgress,
		ProcessingError:        book.ProcessingError,
		TotalPages:             book.TotalPages,
		PageCounts:             pageCounts,
		AudioReady:             book.ProcessingStatus == entities.StatusCompleted,
		EstimatedTimeRemaining: estimate,
	})
}

// formatEstimate renders a rough remaining-time figure. Precision is not
// the point; users just want to know whether to wait or come back later.
func formatEstimate(seconds int64) string {
	switch {
	case seconds <= 0:
		return "Complete!"
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}
