package tasks

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/kitaabse/audiobooks/internal/pipeline"
)

// GeneratePageAudioTask synthesizes one page's audio. It is the retryable
// primitive of the pipeline: at-least-once delivery, idempotent handler.
type GeneratePageAudioTask struct {
	BookID     uint `json:"book_id"`
	PageNumber int  `json:"page_number"`
}

// Config returns the queue configuration for page audio tasks.
func (t GeneratePageAudioTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "generate_page_audio",
		MaxAttempts: 3,
		Backoff:     60 * time.Second,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// GeneratePageAudioProcessor creates the processor for page audio tasks.
func GeneratePageAudioProcessor(orch *pipeline.Orchestrator) backlite.QueueProcessor[GeneratePageAudioTask] {
	return func(ctx context.Context, task GeneratePageAudioTask) error {
		return orch.RunAudioJob(ctx, task.BookID, task.PageNumber)
	}
}

// NewGeneratePageAudioQueue creates the backlite queue for page audio tasks.
func NewGeneratePageAudioQueue(orch *pipeline.Orchestrator) backlite.Queue {
	return backlite.NewQueue(GeneratePageAudioProcessor(orch))
}
