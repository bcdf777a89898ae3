package tasks

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/kitaabse/audiobooks/internal/pipeline"
)

// ProcessBookPDFTask extracts a stored book PDF in the background and fans
// out per-page audio jobs. Enqueued by the reprocess endpoint; existing
// pages are replaced when the new ledger is materialized.
type ProcessBookPDFTask struct {
	BookID uint `json:"book_id"`
}

// Config returns the queue configuration for PDF processing tasks.
func (t ProcessBookPDFTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "process_book_pdf",
		MaxAttempts: 3,
		Backoff:     60 * time.Second,
		Timeout:     15 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ProcessBookPDFProcessor creates the processor for PDF processing tasks.
func ProcessBookPDFProcessor(orch *pipeline.Orchestrator) backlite.QueueProcessor[ProcessBookPDFTask] {
	return func(ctx context.Context, task ProcessBookPDFTask) error {
		return orch.ProcessBookPDF(ctx, task.BookID)
	}
}

// NewProcessBookPDFQueue creates the backlite queue for PDF processing tasks.
func NewProcessBookPDFQueue(orch *pipeline.Orchestrator) backlite.Queue {
	return backlite.NewQueue(ProcessBookPDFProcessor(orch))
}
