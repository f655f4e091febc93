package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"inkwell/pkg/domain"
	"inkwell/pkg/ocr"
)

// mimeToExt maps declared image content types to stored extensions. The
// declared type wins over the client filename; the filename is advisory.
var mimeToExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
	"image/webp": ".webp",
}

const defaultExt = ".jpg"

// IngestRequest carries one uploaded image.
type IngestRequest struct {
	Content      []byte
	OrigName     string
	ContentType  string
	ProvidedText string
}

// IngestResult reports the outcome of an upload.
type IngestResult struct {
	ID        string
	Predicted string
	Duplicate bool
}

// Ingest validates the upload, de-duplicates by content hash, stores the
// image in the pending area, runs OCR when configured, and records the
// sample. Re-uploading byte-identical content returns the existing record
// without creating anything.
func (a *App) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if len(req.Content) == 0 {
		return IngestResult{}, ErrEmptyFile
	}
	if int64(len(req.Content)) > a.maxUploadBytes {
		return IngestResult{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, len(req.Content), a.maxUploadBytes)
	}
	ext, err := a.resolveExtension(req.ContentType, req.OrigName)
	if err != nil {
		return IngestResult{}, err
	}

	digest := sha256.Sum256(req.Content)
	hash := hex.EncodeToString(digest[:])

	if existing, found, err := a.store.FindByHash(hash); err != nil {
		return IngestResult{}, fmt.Errorf("dedup lookup: %w", err)
	} else if found {
		slog.Warn("duplicate upload", "id", existing.ID, "orig_name", req.OrigName, "hash", hash[:8])
		return IngestResult{ID: existing.ID, Predicted: existing.PredictedText, Duplicate: true}, nil
	}

	id := uuid.NewString()
	name := id + ext
	if err := a.files.SavePending(name, req.Content); err != nil {
		return IngestResult{}, fmt.Errorf("save upload: %w", err)
	}

	predicted, lines := a.predict(ctx, req.Content)

	sample := domain.Sample{
		ID:            id,
		File:          name,
		OrigName:      req.OrigName,
		ProvidedText:  strings.TrimSpace(req.ProvidedText),
		PredictedText: predicted,
		Status:        domain.StatusPending,
		UploadTime:    a.now().UTC(),
		FileSize:      int64(len(req.Content)),
		FileHash:      hash,
		OCRLines:      lines,
	}
	if err := a.store.Add(sample); err != nil {
		// No orphan files: the stored image goes with the failed record.
		if cleanupErr := a.files.RemovePending(name); cleanupErr != nil {
			slog.Error("cleanup of orphaned upload failed", "file", name, "err", cleanupErr)
		}
		return IngestResult{}, fmt.Errorf("record upload: %w", err)
	}
	slog.Info("upload ingested", "id", id, "file", name, "size", sample.FileSize)
	return IngestResult{ID: id, Predicted: predicted}, nil
}

// resolveExtension picks the stored extension: declared content type first,
// client filename second, default last — and only when the upload claims to
// be an image at all.
func (a *App) resolveExtension(contentType, origName string) (string, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if ext, ok := mimeToExt[contentType]; ok && a.allowedExts[ext] {
		return ext, nil
	}
	if ext := strings.ToLower(filepath.Ext(origName)); ext != "" && a.allowedExts[ext] {
		return ext, nil
	}
	if strings.HasPrefix(contentType, "image/") && a.allowedExts[defaultExt] {
		return defaultExt, nil
	}
	return "", fmt.Errorf("%w: content type %q, filename %q", ErrUnsupportedType, contentType, origName)
}

// predict runs OCR when configured. Engine failure yields an empty
// prediction, never an ingestion error.
func (a *App) predict(ctx context.Context, content []byte) (string, []domain.OCRLine) {
	if a.engine == nil {
		return "", nil
	}
	lines, err := a.engine.Recognize(ctx, content)
	if err != nil {
		slog.Error("ocr failed", "err", err)
		return "", nil
	}
	recorded := make([]domain.OCRLine, 0, len(lines))
	for _, line := range lines {
		recorded = append(recorded, domain.OCRLine{Text: line.Text, Confidence: line.Confidence})
	}
	return ocr.JoinLines(lines, a.ocrMinConfidence), recorded
}
