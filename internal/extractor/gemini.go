package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini extracts page text through the Gemini vision API. The whole PDF is
// sent inline with a per-page prompt; one request is made per page with a
// configurable pause between requests to respect free-tier rate limits.
type Gemini struct {
	apiKey       string
	model        string
	baseURL      string
	requestPause time.Duration
	httpClient   *http.Client
}

// NewGemini constructs a vision extractor with the provided API key.
func NewGemini(apiKey, model string, requestPause time.Duration) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{
		apiKey:       apiKey,
		model:        model,
		baseURL:      defaultGeminiBaseURL,
		requestPause: requestPause,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Extract asks the model for each page's text in turn.
func (g *Gemini) Extract(ctx context.Context, path, language string, progress ProgressFunc) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	totalPages, err := pageCount(path)
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(raw)
	result := &Result{TotalPages: totalPages}
	chars := 0

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := g.extractPage(ctx, encoded, i, language)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		text = normalizeText(text)

		result.Pages = append(result.Pages, PageText{PageNumber: i, Text: text})
		chars += len(text)
		if progress != nil {
			progress(i, totalPages, chars)
		}

		if g.requestPause > 0 && i < totalPages {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.requestPause):
			}
		}
	}

	return result, nil
}

func (g *Gemini) extractPage(ctx context.Context, encodedPDF string, pageNumber int, language string) (string, error) {
	prompt := fmt.Sprintf(
		"Extract the complete text of page %d of this PDF document, exactly as written. "+
			"The document language is %s. Respond with the page text only, no commentary. "+
			"If the page contains no text, respond with an empty message.",
		pageNumber, language)

	reqBody := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiBlob{MimeType: "application/pdf", Data: encodedPDF}},
				{Text: prompt},
			},
		}},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp geminiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("gemini api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("gemini api error: %s", resp.Status)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func pageCount(path string) (int, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	n := reader.NumPage()
	if n == 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}

type geminiBlob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
