package extractor

import (
	"context"
	"log"
)

// WithFallback prefers the primary extractor and falls back to the secondary
// when the primary fails outright or produces no text at all (typical for
// scanned PDFs, where the native parser sees only empty pages).
//
// Progress events are forwarded from whichever backend ends up producing the
// result, so consumers still see one monotonic pass over the pages.
type WithFallback struct {
	Primary   PageExtractor
	Secondary PageExtractor
}

// NewWithFallback composes two extractors.
func NewWithFallback(primary, secondary PageExtractor) *WithFallback {
	return &WithFallback{Primary: primary, Secondary: secondary}
}

// Extract runs the primary extractor first; when it fails or yields an
// entirely empty document the secondary runs instead. The primary's progress
// callbacks are suppressed so the consumer never sees two passes.
func (w *WithFallback) Extract(ctx context.Context, path, language string, progress ProgressFunc) (*Result, error) {
	result, err := w.Primary.Extract(ctx, path, language, nil)
	if err == nil && hasAnyText(result) {
		// Replay progress for the accepted result.
		replayProgress(result, progress)
		return result, nil
	}
	if w.Secondary == nil {
		if err != nil {
			return nil, err
		}
		replayProgress(result, progress)
		return result, nil
	}

	if err != nil {
		log.Printf("Extractor fallback: primary failed (%v), trying secondary", err)
	} else {
		log.Printf("Extractor fallback: primary found no text, trying secondary")
	}
	return w.Secondary.Extract(ctx, path, language, progress)
}

func hasAnyText(r *Result) bool {
	for _, p := range r.Pages {
		if p.Text != "" {
			return true
		}
	}
	return false
}

func replayProgress(r *Result, progress ProgressFunc) {
	if progress == nil {
		return
	}
	chars := 0
	for _, p := range r.Pages {
		chars += len(p.Text)
		progress(p.PageNumber, r.TotalPages, chars)
	}
}
