package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kitaabse/audiobooks/internal/auth"
	"github.com/kitaabse/audiobooks/internal/config"
	"github.com/kitaabse/audiobooks/internal/database"
	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/database/library"
	"github.com/kitaabse/audiobooks/internal/database/pages"
	"github.com/kitaabse/audiobooks/internal/database/progress"
	"github.com/kitaabse/audiobooks/internal/entities"
	"github.com/kitaabse/audiobooks/internal/extractor"
	"github.com/kitaabse/audiobooks/internal/pipeline"
	"github.com/kitaabse/audiobooks/internal/tts"
)

// --- pipeline stubs ---

type stubExtractor struct {
	result *extractor.Result
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, path, language string, progress extractor.ProgressFunc) (*extractor.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if progress != nil {
		chars := 0
		for _, p := range s.result.Pages {
			chars += len(p.Text)
			progress(p.PageNumber, s.result.TotalPages, chars)
		}
	}
	return s.result, nil
}

type stubSynthesizer struct{}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text, outputPath, language, voice string) (*tts.SynthesisResult, error) {
	if err := os.WriteFile(outputPath, []byte("mp3"), 0o644); err != nil {
		return nil, err
	}
	return &tts.SynthesisResult{DurationSeconds: 5}, nil
}

type stubStore struct {
	stored []string
}

func (s *stubStore) Store(ctx context.Context, localPath, namespace, key string) (string, error) {
	url := "https://cdn.example/" + namespace + "/" + key
	s.stored = append(s.stored, url)
	return url, nil
}

func (s *stubStore) Delete(ctx context.Context, namespace, key string) error { return nil }

type stubScheduler struct {
	audioJobs [][2]int
	pdfJobs   []uint
}

func (s *stubScheduler) EnqueuePageAudio(bookID uint, pageNumber int) error {
	s.audioJobs = append(s.audioJobs, [2]int{int(bookID), pageNumber})
	return nil
}

func (s *stubScheduler) EnqueueBookPDF(bookID uint) error {
	s.pdfJobs = append(s.pdfJobs, bookID)
	return nil
}

// --- server fixture ---

type testServer struct {
	router    *gin.Engine
	db        *database.Database
	books     *books.Repository
	pages     *pages.Repository
	progress  *progress.Repository
	library   *library.Repository
	auth      *auth.Service
	extractor *stubExtractor
	store     *stubStore
	scheduler *stubScheduler
}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_http_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	ts := &testServer{
		db:       db,
		books:    books.NewRepository(db.DB),
		pages:    pages.NewRepository(db.DB),
		progress: progress.NewRepository(db.DB),
		library:  library.NewRepository(db.DB),
		extractor: &stubExtractor{result: &extractor.Result{
			TotalPages: 2,
			Pages: []extractor.PageText{
				{PageNumber: 1, Text: "Page one text."},
				{PageNumber: 2, Text: "Page two text."},
			},
		}},
		store:     &stubStore{},
		scheduler: &stubScheduler{},
	}

	ts.auth = auth.NewService(db.DB, config.Auth{
		JWTSecret:   "test-secret",
		TokenExpiry: time.Hour,
		BcryptCost:  4,
	})

	orch := pipeline.NewOrchestrator(pipeline.Config{
		Books:     ts.books,
		Pages:     ts.pages,
		Extractor: ts.extractor,
		TTS:       &stubSynthesizer{},
		Store:     ts.store,
		Scheduler: ts.scheduler,
	})

	ts.router = NewRouter(RouterConfig{
		Database:       db,
		Books:          ts.books,
		Pages:          ts.pages,
		Progress:       ts.progress,
		Library:        ts.library,
		AuthService:    ts.auth,
		AuthMiddleware: auth.NewMiddleware(ts.auth),
		Orchestrator:   orch,
		Store:          ts.store,
		Upload: config.Upload{
			MaxPDFBytes:            50 * 1024 * 1024,
			MaxCoverBytes:          5 * 1024 * 1024,
			EstimateSecondsPerPage: 30,
		},
		Version: "test",
	})

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return ts, cleanup
}

// registerUser creates a user directly through the service and returns
// the id and a bearer token.
func (ts *testServer) registerUser(t *testing.T, username string) (uint, string) {
	t.Helper()
	user, err := ts.auth.Register(username, username+"@example.com", "password123")
	require.NoError(t, err)
	token, err := ts.auth.IssueToken(user.ID)
	require.NoError(t, err)
	return user.ID, token
}

func (ts *testServer) createBook(t *testing.T, book *entities.Book) *entities.Book {
	t.Helper()
	require.NoError(t, ts.books.Create(book))
	return book
}

// doJSON performs a JSON request against the router.
func (ts *testServer) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
