package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/entities"
)

type BooksController struct {
	books *books.Repository
}

func NewBooksController(repo *books.Repository) *BooksController {
	return &BooksController{books: repo}
}

// ListPublic returns the public catalog with optional search and filters.
func (b *BooksController) ListPublic(c *gin.Context) {
	limit, offset := parsePagination(c)
	filter := books.ListFilter{
		Search:   c.Query("search"),
		Language: c.Query("language"),
		Genre:    c.Query("genre"),
		Status:   c.Query("status"),
		Limit:    limit,
		Offset:   offset,
	}

	items, total, err := b.books.ListPublic(filter)
	if err != nil {
		respondInternalError(c, err, "list public books")
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(items)) < total,
	})
}

// ListMine returns every book the authenticated user uploaded,
// optionally filtered by processing status.
func (b *BooksController) ListMine(c *gin.Context) {
	items, err := b.books.ListByUploader(GetUserID(c), c.Query("status"))
	if err != nil {
		respondInternalError(c, err, "list own books")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": items, "count": len(items)})
}

// Get returns a single book. Private books are visible to their
// uploader only.
func (b *BooksController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := b.books.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	if !book.IsPublic && book.UploaderID != GetUserID(c) {
		// A private book should not leak its existence.
		respondNotFound(c, "book")
		return
	}

	c.JSON(http.StatusOK, book)
}

type updateBookRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
	Language    *string `json:"language"`
	Genre       *string `json:"genre"`
	IsPublic    *bool   `json:"is_public"`
}

// Update patches the metadata fields the uploader is allowed to change.
func (b *BooksController) Update(c *gin.Context) {
	book, ok := b.ownedBook(c)
	if !ok {
		return
	}

	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid update payload: "+err.Error())
		return
	}

	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Author != nil {
		fields["author"] = *req.Author
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Language != nil {
		fields["language"] = *req.Language
	}
	if req.Genre != nil {
		fields["genre"] = *req.Genre
	}
	if req.IsPublic != nil {
		fields["is_public"] = *req.IsPublic
	}
	if len(fields) == 0 {
		respondBadRequest(c, "no updatable fields provided")
		return
	}

	if err := b.books.UpdateFields(book.ID, fields); err != nil {
		respondInternalError(c, err, "update book")
		return
	}

	updated, err := b.books.GetByID(book.ID)
	if err != nil {
		respondInternalError(c, err, "reload book")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete soft-deletes a book. Pages and audio artifacts stay behind for
// potential restore.
func (b *BooksController) Delete(c *gin.Context) {
	book, ok := b.ownedBook(c)
	if !ok {
		return
	}

	if err := b.books.SoftDelete(book.ID); err != nil {
		respondInternalError(c, err, "delete book")
		return
	}
	respondSuccess(c, "book deleted")
}

// ownedBook loads the book from the :id param and verifies the caller
// uploaded it. Writes the error response itself on failure.
func (b *BooksController) ownedBook(c *gin.Context) (*entities.Book, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	book, err := b.books.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return nil, false
		}
		respondInternalError(c, err, "get book")
		return nil, false
	}

	if book.UploaderID != GetUserID(c) {
		respondForbidden(c, "only the uploader can modify this book")
		return nil, false
	}
	return book, true
}
