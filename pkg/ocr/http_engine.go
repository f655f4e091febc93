package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// HTTPEngine calls the OCR sidecar's /imagetotext endpoint.
type HTTPEngine struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// NewHTTPEngine builds a client for the sidecar at baseURL.
func NewHTTPEngine(baseURL, language string, timeout time.Duration) (*HTTPEngine, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ocr service URL required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPEngine{
		baseURL:    baseURL,
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type sidecarResult struct {
	RecTexts  []string  `json:"rec_texts"`
	RecScores []float64 `json:"rec_scores"`
}

type sidecarResponse struct {
	Success   bool            `json:"success"`
	Text      string          `json:"text"`
	Error     string          `json:"error"`
	RawResult []sidecarResult `json:"raw_result"`
}

// Recognize posts the image as multipart form data and maps the sidecar's
// response into lines. Line order is preserved as returned by the engine.
func (e *HTTPEngine) Recognize(ctx context.Context, imageBytes []byte) ([]Line, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "sample.png")
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	if _, err := part.Write(imageBytes); err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	if e.language != "" {
		if err := writer.WriteField("lang", e.language); err != nil {
			return nil, fmt.Errorf("build ocr request: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/imagetotext", &body)
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ocr request: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read ocr response: %w", err)
	}
	var parsed sidecarResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse ocr response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("ocr failed: %s", parsed.Error)
	}
	return linesFromResponse(parsed), nil
}

func linesFromResponse(resp sidecarResponse) []Line {
	var lines []Line
	for _, result := range resp.RawResult {
		for i, text := range result.RecTexts {
			confidence := 1.0
			if i < len(result.RecScores) {
				confidence = result.RecScores[i]
			}
			lines = append(lines, Line{Text: text, Confidence: confidence})
		}
	}
	if len(lines) == 0 && strings.TrimSpace(resp.Text) != "" {
		// Older sidecars return only the joined text.
		lines = append(lines, Line{Text: resp.Text, Confidence: 1.0})
	}
	return lines
}
