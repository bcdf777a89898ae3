// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Persisted State Machine
//
//   - BookLedger: book-level status transitions and progress aggregation
//     (internal/pipeline/orchestrator.go)
//   - PageLedger: page-level status transitions (internal/pipeline/orchestrator.go)
//
// ## Work Scheduling
//
//   - JobScheduler: enqueues durable units of work (internal/pipeline/orchestrator.go)
//   - StaleBookSweeper / FailedPageLister / AudioEnqueuer: data sources and
//     sinks for the periodic sweeps (internal/scheduler/sweeps.go)
//
// ## External Services
//
//   - PageExtractor: per-page text extraction from a PDF (internal/extractor/extractor.go)
//   - Synthesizer: text to speech rendering (internal/tts/synthesizer.go)
//   - ArtifactStore: object storage for PDFs, covers and audio (internal/storage/object_store.go)
//
// ## Progress Narration
//
//   - Emitter: upload-time event stream (internal/pipeline/stream.go)
//
// # Adding a New Extractor Backend
//
// Implement extractor.PageExtractor, register it in buildExtractor
// (internal/entrypoint/entrypoint.go) and add a compile-time check here.
// Extractors must invoke the progress callback once per page in ascending
// order and treat per-page decode failures as empty text rather than errors.
package interfaces
