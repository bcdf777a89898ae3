package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/audit"
	"github.com/kitaabse/audiobooks/internal/config"
	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/entities"
	"github.com/kitaabse/audiobooks/internal/pipeline"
	"github.com/kitaabse/audiobooks/internal/storage"
)

// sseEmitter streams pipeline events to the client as server-sent
// events, one flush per event so the browser sees progress live.
type sseEmitter struct {
	c *gin.Context
}

func (e *sseEmitter) Emit(ev pipeline.Event) {
	payload := []byte("{}")
	if ev.Data != nil {
		if data, err := json.Marshal(ev.Data); err == nil {
			payload = data
		}
	}
	fmt.Fprintf(e.c.Writer, "event: %s\ndata: %s\n\n", ev.Name, payload)
	e.c.Writer.Flush()
}

type UploadController struct {
	books        *books.Repository
	orchestrator *pipeline.Orchestrator
	store        storage.ArtifactStore
	auditor      *audit.Auditor
	limits       config.Upload
}

func NewUploadController(booksRepo *books.Repository, orch *pipeline.Orchestrator, store storage.ArtifactStore, auditor *audit.Auditor, limits config.Upload) *UploadController {
	return &UploadController{
		books:        booksRepo,
		orchestrator: orch,
		store:        store,
		auditor:      auditor,
		limits:       limits,
	}
}

var allowedCoverExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

// Upload accepts a PDF (plus optional cover and metadata), stores the
// artifacts, extracts text, and schedules per-page audio synthesis.
// Extraction runs on the request goroutine; with Accept:
// text/event-stream the caller watches it happen through SSE frames,
// otherwise a single JSON response arrives once pages are scheduled.
func (u *UploadController) Upload(c *gin.Context) {
	wantsStream := strings.Contains(c.GetHeader("Accept"), "text/event-stream")

	var emitter pipeline.Emitter = pipeline.NopEmitter{}
	if wantsStream {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		emitter = &sseEmitter{c: c}
		emitter.Emit(pipeline.StatusEvent("Authentication successful"))
	}

	fail := func(status int, message string) {
		if wantsStream {
			emitter.Emit(pipeline.ErrorEvent(message))
			return
		}
		c.JSON(status, ErrorResponse{Error: message})
	}

	pdfHeader, coverHeader, book, errMsg := u.parseForm(c)
	if errMsg != "" {
		fail(http.StatusBadRequest, errMsg)
		return
	}
	if wantsStream {
		emitter.Emit(pipeline.StatusEvent("File validated"))
	}

	pdfPath, err := saveToTemp(c, pdfHeader, "upload-*.pdf")
	if err != nil {
		fail(http.StatusInternalServerError, "could not persist uploaded file")
		return
	}
	defer os.Remove(pdfPath)

	book.UploaderID = GetUserID(c)
	book.ProcessingStatus = entities.StatusUploaded
	if err := u.books.Create(book); err != nil {
		fail(http.StatusInternalServerError, "could not create book record")
		return
	}

	if u.auditor != nil {
		record := audit.UploadRecord{
			BookID:     book.ID,
			UploaderID: book.UploaderID,
			Title:      book.Title,
			Filename:   pdfHeader.Filename,
			SizeBytes:  pdfHeader.Size,
			Language:   book.Language,
			IsPublic:   book.IsPublic,
			ReceivedAt: time.Now(),
		}
		if _, err := u.auditor.SaveJSON(record); err != nil {
			log.Printf("Failed to audit upload for book %d: %v", book.ID, err)
		}
	}

	if msg := u.storeArtifacts(c, book, pdfPath, coverHeader); msg != "" {
		_ = u.books.MarkFailed(book.ID, msg)
		fail(http.StatusInternalServerError, msg)
		return
	}
	if wantsStream {
		emitter.Emit(pipeline.StatusEvent("Upload complete"))
	}

	if _, err := u.orchestrator.ProcessUpload(c.Request.Context(), book, pdfPath, emitter); err != nil {
		// The ledger already records the failure; the client just
		// needs the terminal frame.
		fail(http.StatusUnprocessableEntity, "text extraction failed: "+err.Error())
		return
	}

	statusURL := fmt.Sprintf("/api/books/%d/status", book.ID)
	if wantsStream {
		emitter.Emit(pipeline.Event{
			Name: pipeline.EventCompleted,
			Data: map[string]any{"book_id": book.ID, "status_url": statusURL},
		})
		return
	}
	// The in-memory record predates extraction; reload so the response
	// carries the page count and status the ledger already has.
	created, err := u.books.GetByID(book.ID)
	if err != nil {
		respondInternalError(c, err, "reload created book")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"book": created, "status_url": statusURL})
}

// Reprocess re-runs extraction and audio generation for a book from its
// stored PDF. The work happens on the background queue; the caller polls
// the status endpoint. Uploader only.
func (u *UploadController) Reprocess(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := u.books.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}
	if book.UploaderID != GetUserID(c) {
		respondForbidden(c, "only the uploader can reprocess this book")
		return
	}
	if book.PDFURL == "" {
		respondBadRequest(c, "book has no stored PDF to reprocess")
		return
	}
	if book.ProcessingStatus == entities.StatusProcessing {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "book is already being processed"})
		return
	}

	if err := u.orchestrator.ScheduleReprocess(book.ID); err != nil {
		respondInternalError(c, err, "schedule reprocessing")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"book_id":    book.ID,
		"status_url": fmt.Sprintf("/api/books/%d/status", book.ID),
	})
}

// parseForm validates the multipart payload and builds the unsaved
// book record. Returns a client-facing message on validation failure.
func (u *UploadController) parseForm(c *gin.Context) (pdf, cover *multipart.FileHeader, book *entities.Book, errMsg string) {
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		return nil, nil, nil, "title is required"
	}

	pdf, err := c.FormFile("pdf_file")
	if err != nil {
		return nil, nil, nil, "pdf_file is required"
	}
	if !strings.EqualFold(filepath.Ext(pdf.Filename), ".pdf") {
		return nil, nil, nil, "pdf_file must be a PDF document"
	}
	if pdf.Size > u.limits.MaxPDFBytes {
		return nil, nil, nil, fmt.Sprintf("pdf_file exceeds the %dMB limit", u.limits.MaxPDFBytes/(1024*1024))
	}

	if header, err := c.FormFile("cover_image"); err == nil {
		if !allowedCoverExts[strings.ToLower(filepath.Ext(header.Filename))] {
			return nil, nil, nil, "cover_image must be a jpg, png or webp image"
		}
		if header.Size > u.limits.MaxCoverBytes {
			return nil, nil, nil, fmt.Sprintf("cover_image exceeds the %dMB limit", u.limits.MaxCoverBytes/(1024*1024))
		}
		cover = header
	}

	isPublic, _ := strconv.ParseBool(c.DefaultPostForm("is_public", "false"))
	language := strings.TrimSpace(c.PostForm("language"))
	if language == "" {
		language = "en"
	}

	return pdf, cover, &entities.Book{
		Title:       title,
		Author:      strings.TrimSpace(c.PostForm("author")),
		Description: strings.TrimSpace(c.PostForm("description")),
		Language:    language,
		Genre:       strings.TrimSpace(c.PostForm("genre")),
		IsPublic:    isPublic,
		IsActive:    true,
	}, ""
}

// storeArtifacts pushes the PDF and optional cover to the object store
// and records their URLs on the book.
func (u *UploadController) storeArtifacts(c *gin.Context, book *entities.Book, pdfPath string, cover *multipart.FileHeader) string {
	fields := map[string]any{}

	ns, key := storage.PDFKey(book.ID)
	pdfURL, err := u.store.Store(c.Request.Context(), pdfPath, ns, key)
	if err != nil {
		return "could not store PDF: " + err.Error()
	}
	book.PDFURL = pdfURL
	fields["pdf_url"] = pdfURL

	if cover != nil {
		ext := strings.ToLower(filepath.Ext(cover.Filename))
		coverPath, err := saveToTemp(c, cover, "cover-*"+ext)
		if err != nil {
			return "could not persist cover image"
		}
		defer os.Remove(coverPath)

		ns, key := storage.CoverKey(book.ID, ext)
		coverURL, err := u.store.Store(c.Request.Context(), coverPath, ns, key)
		if err != nil {
			return "could not store cover image: " + err.Error()
		}
		book.CoverURL = coverURL
		fields["cover_url"] = coverURL
	}

	if err := u.books.UpdateFields(book.ID, fields); err != nil {
		return "could not record artifact URLs: " + err.Error()
	}
	return ""
}

func saveToTemp(c *gin.Context, header *multipart.FileHeader, pattern string) (string, error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	tmp.Close()

	if err := c.SaveUploadedFile(header, path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
