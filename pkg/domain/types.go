package domain

import (
	"strings"
	"time"
)

type SampleStatus string

const (
	StatusPending  SampleStatus = "pending"
	StatusApproved SampleStatus = "approved"
	StatusRejected SampleStatus = "rejected"
)

// OCRLine is a single recognized text line with the engine's confidence.
type OCRLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Sample is one uploaded handwriting image and its labeling state.
// JSON field names match the on-disk labels document, so a dataset
// collected by an older deployment loads unchanged.
type Sample struct {
	ID            string       `json:"id"`
	File          string       `json:"file"`
	OrigName      string       `json:"orig_name"`
	ProvidedText  string       `json:"provided_text"`
	PredictedText string       `json:"predicted_text"`
	CorrectedText string       `json:"corrected_text"`
	Status        SampleStatus `json:"status"`
	Notes         string       `json:"notes"`
	UploadTime    time.Time    `json:"upload_time"`
	ApprovalTime  *time.Time   `json:"approval_time,omitempty"`
	RejectionTime *time.Time   `json:"rejection_time,omitempty"`
	FileSize      int64        `json:"file_size"`
	FileHash      string       `json:"file_hash"`
	OCRLines      []OCRLine    `json:"ocr_lines,omitempty"`
}

// BestText returns the highest-priority non-empty transcription:
// corrected over provided over predicted.
func (s Sample) BestText() string {
	for _, text := range []string{s.CorrectedText, s.ProvidedText, s.PredictedText} {
		if t := strings.TrimSpace(text); t != "" {
			return t
		}
	}
	return ""
}
