package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"inkwell/pkg/domain"
)

// SampleModel is the GORM mapping of a sample record.
type SampleModel struct {
	ID            string `gorm:"primaryKey"`
	File          string `gorm:"not null"`
	OrigName      string
	ProvidedText  string `gorm:"type:text"`
	PredictedText string `gorm:"type:text"`
	CorrectedText string `gorm:"type:text"`
	Status        string `gorm:"not null;index"`
	Notes         string
	UploadTime    time.Time `gorm:"not null;index"`
	ApprovalTime  *time.Time
	RejectionTime *time.Time
	FileSize      int64          `gorm:"not null"`
	FileHash      string         `gorm:"not null;uniqueIndex"`
	OCRLines      datatypes.JSON `gorm:"type:jsonb"`
}

func modelFromSample(sample domain.Sample) (SampleModel, error) {
	model := SampleModel{
		ID:            sample.ID,
		File:          sample.File,
		OrigName:      sample.OrigName,
		ProvidedText:  sample.ProvidedText,
		PredictedText: sample.PredictedText,
		CorrectedText: sample.CorrectedText,
		Status:        string(sample.Status),
		Notes:         sample.Notes,
		UploadTime:    sample.UploadTime,
		ApprovalTime:  sample.ApprovalTime,
		RejectionTime: sample.RejectionTime,
		FileSize:      sample.FileSize,
		FileHash:      sample.FileHash,
	}
	if len(sample.OCRLines) > 0 {
		raw, err := json.Marshal(sample.OCRLines)
		if err != nil {
			return SampleModel{}, err
		}
		model.OCRLines = datatypes.JSON(raw)
	}
	return model, nil
}

func sampleFromModel(model SampleModel) domain.Sample {
	sample := domain.Sample{
		ID:            model.ID,
		File:          model.File,
		OrigName:      model.OrigName,
		ProvidedText:  model.ProvidedText,
		PredictedText: model.PredictedText,
		CorrectedText: model.CorrectedText,
		Status:        domain.SampleStatus(model.Status),
		Notes:         model.Notes,
		UploadTime:    model.UploadTime,
		ApprovalTime:  model.ApprovalTime,
		RejectionTime: model.RejectionTime,
		FileSize:      model.FileSize,
		FileHash:      model.FileHash,
	}
	if len(model.OCRLines) > 0 {
		// Best effort: malformed stored lines become an empty slice.
		_ = json.Unmarshal(model.OCRLines, &sample.OCRLines)
	}
	return sample
}
