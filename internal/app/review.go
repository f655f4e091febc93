package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/pkg/domain"
	"inkwell/pkg/filestore"
	"inkwell/pkg/store"
)

// Approve moves the sample's image from the pending area to the approved
// area and records the corrected transcription. The file move happens
// first; if the metadata write then fails, the move is compensated so the
// image is back where the record says it is.
func (a *App) Approve(id, correctedText string) error {
	correctedText = strings.TrimSpace(correctedText)
	if correctedText == "" {
		return ErrEmptyCorrectedText
	}
	sample, ok, err := a.store.Get(id)
	if err != nil {
		return fmt.Errorf("load upload: %w", err)
	}
	if !ok {
		return ErrNotFound
	}

	if err := a.files.Promote(sample.File); err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return fmt.Errorf("%w: source file missing", ErrNotFound)
		}
		return fmt.Errorf("move to approved: %w", err)
	}

	approvedAt := a.now().UTC()
	err = a.store.Update(id, func(s *domain.Sample) {
		s.Status = domain.StatusApproved
		s.CorrectedText = correctedText
		s.Notes = "approved by admin"
		s.ApprovalTime = &approvedAt
	})
	if err != nil {
		// Best-effort compensation; the original error is what the
		// caller needs to see.
		if backErr := a.files.Demote(sample.File); backErr != nil {
			slog.Error("compensation move failed, file stranded in approved area",
				"id", id, "file", sample.File, "err", backErr)
		}
		return fmt.Errorf("record approval: %w", err)
	}
	slog.Info("upload approved", "id", id, "file", sample.File)
	return nil
}

// Reject marks the sample rejected with a reason. The image stays in the
// pending area so the sample can be re-reviewed later.
func (a *App) Reject(id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "rejected by admin"
	}
	rejectedAt := a.now().UTC()
	err := a.store.Update(id, func(s *domain.Sample) {
		s.Status = domain.StatusRejected
		s.Notes = reason
		s.RejectionTime = &rejectedAt
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("record rejection: %w", err)
	}
	slog.Info("upload rejected", "id", id, "reason", reason)
	return nil
}

// Remove deletes the sample's image from whichever area holds it, then the
// record. File removal is best effort: a failed unlink is logged but never
// blocks record removal.
func (a *App) Remove(id string) error {
	sample, ok, err := a.store.Get(id)
	if err != nil {
		return fmt.Errorf("load upload: %w", err)
	}
	if !ok {
		return ErrNotFound
	}

	removed, err := a.files.Remove(sample.File)
	if err != nil {
		slog.Error("file removal incomplete", "id", id, "file", sample.File, "err", err)
	}

	if err := a.store.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete record: %w", err)
	}
	slog.Info("upload deleted", "id", id, "files_removed", removed)
	return nil
}

// GetSample returns one record.
func (a *App) GetSample(id string) (domain.Sample, error) {
	sample, ok, err := a.store.Get(id)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("load upload: %w", err)
	}
	if !ok {
		return domain.Sample{}, ErrNotFound
	}
	return sample, nil
}

// ListSamples returns every record, oldest first.
func (a *App) ListSamples() ([]domain.Sample, error) {
	return a.store.List()
}
