package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/database/pages"
	"github.com/kitaabse/audiobooks/internal/extractor"
	"github.com/kitaabse/audiobooks/internal/pipeline"
	"github.com/kitaabse/audiobooks/internal/scheduler"
	"github.com/kitaabse/audiobooks/internal/storage"
	"github.com/kitaabse/audiobooks/internal/tasks"
	"github.com/kitaabse/audiobooks/internal/tts"
)

// =============================================================================
// Persisted State Machine
// =============================================================================

// Ledger implementations
var _ pipeline.BookLedger = (*books.Repository)(nil)
var _ pipeline.PageLedger = (*pages.Repository)(nil)

// Sweep data sources
var _ scheduler.StaleBookSweeper = (*books.Repository)(nil)
var _ scheduler.FailedPageLister = (*pages.Repository)(nil)

// =============================================================================
// Work Scheduling
// =============================================================================

// JobScheduler implementations
var _ pipeline.JobScheduler = (*tasks.Client)(nil)
var _ scheduler.AudioEnqueuer = (*tasks.Client)(nil)

// =============================================================================
// External Services
// =============================================================================

// PageExtractor implementations
var _ extractor.PageExtractor = (*extractor.Native)(nil)
var _ extractor.PageExtractor = (*extractor.Gemini)(nil)
var _ extractor.PageExtractor = (*extractor.WithFallback)(nil)

// Synthesizer implementations
var _ tts.Synthesizer = (*tts.HTTPSynthesizer)(nil)

// ArtifactStore implementations
var _ storage.ArtifactStore = (*storage.MinioStore)(nil)
