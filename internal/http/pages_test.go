package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitaabse/audiobooks/internal/entities"
)

func TestPagesController_List(t *testing.T) {
	t.Run("returns pages in reading order with audio URLs", func(t *testing.T) {
		ts, cleanup := newTestServer(t)
		defer cleanup()

		uploaderID, _ := ts.registerUser(t, "uploader")
		book := ts.createBook(t, &entities.Book{Title: "Listed", UploaderID: uploaderID, IsPublic: true, IsActive: true})
		require.NoError(t, ts.pages.BulkCreate(book.ID, []entities.BookPage{
			{PageNumber: 1, TextContent: "one"},
			{PageNumber: 2, TextContent: "two"},
		}))
		require.NoError(t, ts.pages.MarkCompleted(book.ID, 1, "https://cdn.example/p1.mp3", 12.5))

		w := ts.doJSON("GET", "/api/books/"+itoa(book.ID)+"/pages", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Book  entities.Book       `json:"book"`
			Pages []entities.BookPage `json:"pages"`
			Count int                 `json:"count"`
		}
		decodeJSON(t, w, &resp)
		require.Equal(t, 2, resp.Count)
		assert.Equal(t, 1, resp.Pages[0].PageNumber)
		assert.Equal(t, "https://cdn.example/p1.mp3", resp.Pages[0].AudioURL)
		assert.Empty(t, resp.Pages[1].AudioURL)
	})

	t.Run("private book pages hidden from strangers", func(t *testing.T) {
		ts, cleanup := newTestServer(t)
		defer cleanup()

		uploaderID, _ := ts.registerUser(t, "uploader")
		book := ts.createBook(t, &entities.Book{Title: "Private", UploaderID: uploaderID, IsActive: true})

		w := ts.doJSON("GET", "/api/books/"+itoa(book.ID)+"/pages", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
