package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/database/library"
)

type LibraryController struct {
	books   *books.Repository
	library *library.Repository
}

func NewLibraryController(booksRepo *books.Repository, libraryRepo *library.Repository) *LibraryController {
	return &LibraryController{books: booksRepo, library: libraryRepo}
}

// List returns the caller's saved books, optionally favorites only.
func (l *LibraryController) List(c *gin.Context) {
	favoritesOnly, _ := strconv.ParseBool(c.DefaultQuery("favorites_only", "false"))

	items, err := l.library.ListByUser(GetUserID(c), favoritesOnly)
	if err != nil {
		respondInternalError(c, err, "list library")
		return
	}

	c.JSON(http.StatusOK, gin.H{"library": items, "count": len(items)})
}

type addToLibraryRequest struct {
	BookID uint `json:"book_id" binding:"required"`
}

// Add saves a book to the caller's library.
func (l *LibraryController) Add(c *gin.Context) {
	var req addToLibraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "book_id is required")
		return
	}

	book, err := l.books.GetByID(req.BookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}
	if !book.IsPublic && book.UploaderID != GetUserID(c) {
		respondNotFound(c, "book")
		return
	}

	if err := l.library.Add(GetUserID(c), book.ID); err != nil {
		if errors.Is(err, library.ErrAlreadyInLibrary) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
			return
		}
		respondInternalError(c, err, "add to library")
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Message: "book added to library"})
}

// Remove drops a book from the caller's library.
func (l *LibraryController) Remove(c *gin.Context) {
	bookID, ok := parseIDParam(c, "book_id")
	if !ok {
		return
	}

	if err := l.library.Remove(GetUserID(c), bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "library entry")
			return
		}
		respondInternalError(c, err, "remove from library")
		return
	}

	respondSuccess(c, "book removed from library")
}

// ToggleFavorite flips the favorite flag, adding the book to the
// library first when needed.
func (l *LibraryController) ToggleFavorite(c *gin.Context) {
	bookID, ok := parseIDParam(c, "book_id")
	if !ok {
		return
	}

	if _, err := l.books.GetByID(bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	isFavorite, err := l.library.ToggleFavorite(GetUserID(c), bookID)
	if err != nil {
		respondInternalError(c, err, "toggle favorite")
		return
	}

	c.JSON(http.StatusOK, gin.H{"book_id": bookID, "is_favorite": isFavorite})
}
