// Package tts wraps the speech synthesis service that turns page text into
// audio artifacts.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// SynthesisResult describes a produced audio artifact.
type SynthesisResult struct {
	DurationSeconds float64
}

// Synthesizer renders text to speech, writing the audio to outputPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outputPath, language, voice string) (*SynthesisResult, error)
}

// HTTPSynthesizer calls an OpenAI-compatible speech endpoint (e.g. an
// edge-tts bridge). The response body is the MP3 payload; the duration is
// reported via the X-Audio-Duration header when the service provides it,
// otherwise estimated from the text length.
type HTTPSynthesizer struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPSynthesizer creates a synthesizer client for the given endpoint.
func NewHTTPSynthesizer(endpoint, apiKey string) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

type speechRequest struct {
	Input    string `json:"input"`
	Voice    string `json:"voice"`
	Language string `json:"language,omitempty"`
	Format   string `json:"response_format"`
}

// Synthesize renders the text and writes the MP3 to outputPath.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, outputPath, language, voice string) (*SynthesisResult, error) {
	body, err := json.Marshal(speechRequest{
		Input:    text,
		Voice:    voice,
		Language: language,
		Format:   "mp3",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts service error: %s: %s", resp.Status, bytes.TrimSpace(detail))
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create audio file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return nil, fmt.Errorf("write audio file: %w", err)
	}

	duration := parseDurationHeader(resp.Header.Get("X-Audio-Duration"))
	if duration <= 0 {
		duration = estimateDuration(text)
	}

	return &SynthesisResult{DurationSeconds: duration}, nil
}

func parseDurationHeader(value string) float64 {
	if value == "" {
		return 0
	}
	d, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return d
}

// estimateDuration approximates speech length at a reading pace of roughly
// 15 characters per second.
func estimateDuration(text string) float64 {
	chars := len([]rune(text))
	if chars == 0 {
		return 0
	}
	return float64(chars) / 15.0
}
