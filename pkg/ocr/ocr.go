// Package ocr talks to the PaddleOCR sidecar service. The core treats the
// engine as a black box: image bytes in, recognized lines with confidences
// out. Engine failures are never fatal to ingestion.
package ocr

import (
	"context"
	"strings"
)

// Line is one recognized text line in engine order.
type Line struct {
	Text       string
	Confidence float64
}

// Engine recognizes text in an image.
type Engine interface {
	Recognize(ctx context.Context, imageBytes []byte) ([]Line, error)
}

// JoinLines concatenates lines whose confidence exceeds minConfidence,
// preserving engine order. Low-confidence lines are dropped rather than
// guessed at.
func JoinLines(lines []Line, minConfidence float64) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.Confidence <= minConfidence {
			continue
		}
		if text := strings.TrimSpace(line.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
