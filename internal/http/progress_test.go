package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitaabse/audiobooks/internal/entities"
)

func TestProgressController_Get(t *testing.T) {
	t.Run("first read creates the row and counts a listen", func(t *testing.T) {
		ts, cleanup := newTestServer(t)
		defer cleanup()

		uploaderID, _ := ts.registerUser(t, "uploader")
		_, token := ts.registerUser(t, "listener")
		book := ts.createBook(t, &entities.Book{
			Title: "Book", UploaderID: uploaderID, IsPublic: true, IsActive: true, TotalPages: 10,
		})

		w := ts.doJSON("GET", "/api/books/"+itoa(book.ID)+"/progress", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var row entities.ListeningProgress
		decodeJSON(t, w, &row)
		assert.Equal(t, book.ID, row.BookID)
		assert.Equal(t, 0, row.CurrentPage)

		reloaded, err := ts.books.GetByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, reloaded.ListenCount)

		// A second read reuses the row; the listen count stays put.
		w = ts.doJSON("GET", "/api/books/"+itoa(book.ID)+"/progress", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		reloaded, err = ts.books.GetByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, reloaded.ListenCount)
	})

	t.Run("requires authentication", func(t *testing.T) {
		ts, cleanup := newTestServer(t)
		defer cleanup()

		uploaderID, _ := ts.registerUser(t, "uploader")
		book := ts.createBook(t, &entities.Book{Title: "Book", UploaderID: uploaderID, IsPublic: true, IsActive: true})

		w := ts.doJSON("GET", "/api/books/"+itoa(book.ID)+"/progress", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestProgressController_Update(t *testing.T) {
	t.Run("upserts the checkpoint", func(t *testing.T) {
		ts, cleanup := newTestServer(t)
		defer cleanup()

		uploaderID, _ := ts.registerUser(t, "uploader")
		_, token := ts.registerUser(t, "listener")
		book := ts.createBook(t, &entities.Book{
			Title: "Book", UploaderID: uploaderID, IsPublic: true, IsActive: true, TotalPages: 10,
		})

		w := ts.doJSON("PUT", "/api/books/"+itoa(book.ID)+"/progress", token, map[string]any{
			"page_number":   5,
			"position":      42,
			"listened_time": 120,
		})
		require.Equal(t, http.StatusOK, w.Code)

		var row entities.ListeningProgress
		decodeJSON(t, w, &row)
		assert.Equal(t, 5, row.CurrentPage)
		assert.Equal(t, 42, row.CurrentPosition)
		assert.Equal(t, 50, row.CompletionPercentage)
		assert.Equal(t, 120, row.TotalListenedTime)
		assert.False(t, row.IsCompleted)

		// Reaching the last page completes the book for this listener.
		w = ts.doJSON("PUT", "/api/books/"+itoa(book.ID)+"/progress", token, map[string]any{
			"page_number":   10,
			"listened_time": 300,
		})
		require.Equal(t, http.StatusOK, w.Code)
		decodeJSON(t, w, &row)
		assert.True(t, row.IsCompleted)
		assert.Equal(t, 100, row.CompletionPercentage)
		assert.Equal(t, 420, row.TotalListenedTime)
	})

	t.Run("rejects page beyond total", func(t *testing.T) {
		ts, cleanup := newTestServer(t)
		defer cleanup()

		uploaderID, _ := ts.registerUser(t, "uploader")
		_, token := ts.registerUser(t, "listener")
		book := ts.createBook(t, &entities.Book{
			Title: "Book", UploaderID: uploaderID, IsPublic: true, IsActive: true, TotalPages: 3,
		})

		w := ts.doJSON("PUT", "/api/books/"+itoa(book.ID)+"/progress", token, map[string]any{
			"page_number": 4,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProgressController_ListAll(t *testing.T) {
	ts, cleanup := newTestServer(t)
	defer cleanup()

	uploaderID, _ := ts.registerUser(t, "uploader")
	_, token := ts.registerUser(t, "listener")
	first := ts.createBook(t, &entities.Book{Title: "First", UploaderID: uploaderID, IsPublic: true, IsActive: true, TotalPages: 2})
	second := ts.createBook(t, &entities.Book{Title: "Second", UploaderID: uploaderID, IsPublic: true, IsActive: true, TotalPages: 2})

	ts.doJSON("PUT", "/api/books/"+itoa(first.ID)+"/progress", token, map[string]any{"page_number": 2})
	ts.doJSON("PUT", "/api/books/"+itoa(second.ID)+"/progress", token, map[string]any{"page_number": 1})

	w := ts.doJSON("GET", "/api/progress", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Progress []entities.ListeningProgress `json:"progress"`
		Count    int                          `json:"count"`
	}
	decodeJSON(t, w, &resp)
	assert.Equal(t, 2, resp.Count)

	// completed filter keeps only the finished book
	w = ts.doJSON("GET", "/api/progress?completed=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeJSON(t, w, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, first.ID, resp.Progress[0].BookID)
}
