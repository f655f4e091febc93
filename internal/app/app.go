// Package app implements the core sample lifecycle: ingestion with
// hash-based de-duplication, the review workflow that moves images between
// the pending and approved areas, dataset analysis with a training
// readiness signal, and training data export.
package app

import (
	"errors"
	"time"

	"inkwell/pkg/filestore"
	"inkwell/pkg/ocr"
	"inkwell/pkg/storage"
	"inkwell/pkg/store"
)

// Config holds the collaborators and policy knobs for the core service.
type Config struct {
	Store store.Store
	Files *filestore.Areas

	// OCR is optional; nil disables prediction.
	OCR              ocr.Engine
	OCRMinConfidence float64

	// Objects is optional; nil disables training bundle publishing.
	Objects storage.ObjectStore

	TrainingDir string
	ReportsDir  string

	MaxUploadBytes    int64
	AllowedExtensions []string

	MinApprovedSamples int
}

// App wires the label store, the file areas, and the OCR collaborator.
type App struct {
	store   store.Store
	files   *filestore.Areas
	engine  ocr.Engine
	objects storage.ObjectStore

	trainingDir string
	reportsDir  string

	maxUploadBytes   int64
	allowedExts      map[string]bool
	ocrMinConfidence float64
	minApproved      int

	now func() time.Time
}

// New validates collaborators and builds the core service.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("label store required")
	}
	if cfg.Files == nil {
		return nil, errors.New("file areas required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 * 1024 * 1024
	}
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".webp"}
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[ext] = true
	}
	minConfidence := cfg.OCRMinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	minApproved := cfg.MinApprovedSamples
	if minApproved <= 0 {
		minApproved = 100
	}
	return &App{
		store:            cfg.Store,
		files:            cfg.Files,
		engine:           cfg.OCR,
		objects:          cfg.Objects,
		trainingDir:      cfg.TrainingDir,
		reportsDir:       cfg.ReportsDir,
		maxUploadBytes:   maxUploadBytes,
		allowedExts:      allowed,
		ocrMinConfidence: minConfidence,
		minApproved:      minApproved,
		now:              time.Now,
	}, nil
}

// OCREnabled reports whether an OCR engine is configured.
func (a *App) OCREnabled() bool {
	return a.engine != nil
}

// MaxUploadBytes returns the configured upload size cap.
func (a *App) MaxUploadBytes() int64 {
	return a.maxUploadBytes
}
