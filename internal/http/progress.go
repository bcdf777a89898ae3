package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/database/progress"
	"github.com/kitaabse/audiobooks/internal/entities"
)

type ProgressController struct {
	books    *books.Repository
	progress *progress.Repository
}

func NewProgressController(booksRepo *books.Repository, progressRepo *progress.Repository) *ProgressController {
	return &ProgressController{books: booksRepo, progress: progressRepo}
}

// Get returns the caller's listening position for a book, creating the
// row on first read. A fresh row counts as a new listen for the book.
func (p *ProgressController) Get(c *gin.Context) {
	book, ok := p.visibleBook(c)
	if !ok {
		return
	}

	row, created, err := p.progress.GetOrCreate(GetUserID(c), book.ID)
	if err != nil {
		respondInternalError(c, err, "get progress")
		return
	}
	if created {
		if err := p.books.IncrementListenCount(book.ID); err != nil {
			respondInternalError(c, err, "increment listen count")
			return
		}
	}

	c.JSON(http.StatusOK, row)
}

type updateProgressRequest struct {
	PageNumber   int `json:"page_number" binding:"required,min=1"`
	Position     int `json:"position" binding:"min=0"`
	ListenedTime int `json:"listened_time" binding:"min=0"`
}

// Update upserts the caller's listening checkpoint.
func (p *ProgressController) Update(c *gin.Context) {
	book, ok := p.visibleBook(c)
	if !ok {
		return
	}

	var req updateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid progress payload: "+err.Error())
		return
	}
	if book.TotalPages > 0 && req.PageNumber > book.TotalPages {
		respondBadRequest(c, "page_number exceeds total pages")
		return
	}

	row, created, err := p.progress.GetOrCreate(GetUserID(c), book.ID)
	if err != nil {
		respondInternalError(c, err, "get progress")
		return
	}
	if created {
		if err := p.books.IncrementListenCount(book.ID); err != nil {
			respondInternalError(c, err, "increment listen count")
			return
		}
	}

	if err := p.progress.UpdateCheckpoint(row, book.TotalPages, req.PageNumber, req.Position, req.ListenedTime); err != nil {
		respondInternalError(c, err, "update progress")
		return
	}

	c.JSON(http.StatusOK, row)
}

// ListAll returns the caller's progress across every book, newest
// activity first.
func (p *ProgressController) ListAll(c *gin.Context) {
	inProgress, _ := strconv.ParseBool(c.DefaultQuery("in_progress", "false"))
	completed, _ := strconv.ParseBool(c.DefaultQuery("completed", "false"))

	rows, err := p.progress.ListByUser(GetUserID(c), inProgress, completed)
	if err != nil {
		respondInternalError(c, err, "list progress")
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": rows, "count": len(rows)})
}

func (p *ProgressController) visibleBook(c *gin.Context) (*entities.Book, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	book, err := p.books.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return nil, false
		}
		respondInternalError(c, err, "get book")
		return nil, false
	}
	if !book.IsPublic && book.UploaderID != GetUserID(c) {
		respondNotFound(c, "book")
		return nil, false
	}
	return book, true
}
