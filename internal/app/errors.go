package app

import (
	"errors"

	"inkwell/pkg/store"
)

// Validation errors reject bad input immediately; nothing about them is
// retryable.
var (
	ErrEmptyFile          = errors.New("empty file")
	ErrFileTooLarge       = errors.New("file too large")
	ErrUnsupportedType    = errors.New("unsupported file type")
	ErrEmptyCorrectedText = errors.New("corrected text is required")
)

// ErrNotFound is returned for unknown sample ids and missing files.
var ErrNotFound = errors.New("upload not found")

// IsValidation reports whether err is a bad-input rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrEmptyCorrectedText)
}

// IsNotFound reports whether err means the sample or its file is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, store.ErrNotFound)
}
