package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/database/pages"
)

type PagesController struct {
	books *books.Repository
	pages *pages.Repository
}

func NewPagesController(booksRepo *books.Repository, pagesRepo *pages.Repository) *PagesController {
	return &PagesController{books: booksRepo, pages: pagesRepo}
}

// List returns the book header plus its pages in reading order, each
// with its audio URL once synthesis has completed.
func (p *PagesController) List(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := p.books.GetByID(id)
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

	bookPages, err := p.pages.ListByBook(book.ID)
	if err != nil {
		respondInternalError(c, err, "list pages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"book":  book,
		"pages": bookPages,
		"count": len(bookPages),
	})
}
