// Package extractor turns an uploaded PDF into an ordered sequence of
// per-page text. Two backends are provided: native text extraction for
// born-digital PDFs and a Gemini vision backend for scanned or
// Hindi-script documents whose embedded text is missing or garbled.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ProgressFunc is invoked synchronously once per extracted page, in
// increasing page order, with a running character count.
type ProgressFunc func(currentPage, totalPages, charsExtracted int)

// PageText is one extracted page.
type PageText struct {
	PageNumber int
	Text       string
}

// Result is a successful extraction: the full ordered page sequence.
type Result struct {
	TotalPages int
	Pages      []PageText
}

// PageExtractor extracts per-page text from a PDF at path.
type PageExtractor interface {
	Extract(ctx context.Context, path, language string, progress ProgressFunc) (*Result, error)
}

// Native extracts embedded text with a pure-Go PDF parser.
type Native struct{}

// NewNative creates a native text extractor.
func NewNative() *Native {
	return &Native{}
}

// Extract reads every page's embedded plain text. Pages whose text cannot
// be decoded yield empty text rather than failing the whole document.
func (n *Native) Extract(ctx context.Context, path, language string, progress ProgressFunc) (*Result, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	totalPages := reader.NumPage()
	if totalPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	result := &Result{TotalPages: totalPages}
	chars := 0
	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text := ""
		page := reader.Page(i)
		if !page.V.IsNull() {
			if t, err := page.GetPlainText(nil); err == nil {
				text = normalizeText(t)
			}
		}

		result.Pages = append(result.Pages, PageText{PageNumber: i, Text: text})
		chars += len(text)
		if progress != nil {
			progress(i, totalPages, chars)
		}
	}

	return result, nil
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
