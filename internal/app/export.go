package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"inkwell/pkg/domain"
)

const (
	maxLabelLength = 1000
	copyWorkers    = 4
)

// SkippedSample records an approved sample left out of the bundle.
type SkippedSample struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ExportResult describes a finished training bundle.
type ExportResult struct {
	Exported      int             `json:"exported"`
	TotalApproved int             `json:"total_approved"`
	Skipped       []SkippedSample `json:"skipped,omitempty"`
	TrainFile     string          `json:"train_file"`
	ValFile       string          `json:"val_file"`
	ReportFile    string          `json:"report_file"`
	PublishedURL  string          `json:"published_url,omitempty"`
}

// ExportTrainingData copies every usable approved sample into the training
// directory and writes the train.txt and val.txt manifests. Copies are
// hash-verified against the recorded file hash. When an object store is
// configured the bundle manifests and images are also published there.
func (a *App) ExportTrainingData(ctx context.Context) (ExportResult, error) {
	if a.trainingDir == "" {
		return ExportResult{}, fmt.Errorf("training directory not configured")
	}
	samples, err := a.store.List()
	if err != nil {
		return ExportResult{}, fmt.Errorf("load samples: %w", err)
	}

	var approved []domain.Sample
	for _, sample := range samples {
		if sample.Status == domain.StatusApproved {
			approved = append(approved, sample)
		}
	}

	imagesDir := filepath.Join(a.trainingDir, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("create training dir: %w", err)
	}

	result := ExportResult{TotalApproved: len(approved)}

	var (
		mu    sync.Mutex
		lines []manifestLine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(copyWorkers)

	for _, sample := range approved {
		sample := sample
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			skip := func(reason string) {
				mu.Lock()
				result.Skipped = append(result.Skipped, SkippedSample{ID: sample.ID, Reason: reason})
				mu.Unlock()
			}
			if sample.File == "" {
				skip("no stored filename")
				return nil
			}
			text := sanitizeLabel(sample.BestText())
			if text == "" {
				skip("no usable text")
				return nil
			}
			src := a.files.ApprovedPath(sample.File)
			dst := filepath.Join(imagesDir, sample.File)
			if err := verifiedCopy(src, dst, sample.FileHash); err != nil {
				slog.Warn("training export skipped sample", "id", sample.ID, "error", err)
				skip(err.Error())
				return nil
			}
			mu.Lock()
			lines = append(lines, manifestLine{file: sample.File, text: text})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ExportResult{}, fmt.Errorf("copy training images: %w", err)
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].file < lines[j].file })
	sort.Slice(result.Skipped, func(i, j int) bool { return result.Skipped[i].ID < result.Skipped[j].ID })
	result.Exported = len(lines)

	var manifest strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&manifest, "%s\t%s\n", line.file, line.text)
	}
	trainPath := filepath.Join(a.trainingDir, "train.txt")
	valPath := filepath.Join(a.trainingDir, "val.txt")
	if err := os.WriteFile(trainPath, []byte(manifest.String()), 0o644); err != nil {
		return ExportResult{}, fmt.Errorf("write train manifest: %w", err)
	}
	// The validation manifest mirrors the training one. Splitting the set
	// is the training pipeline's decision, not this service's.
	if err := os.WriteFile(valPath, []byte(manifest.String()), 0o644); err != nil {
		return ExportResult{}, fmt.Errorf("write val manifest: %w", err)
	}
	result.TrainFile = trainPath
	result.ValFile = valPath

	reportPath := filepath.Join(a.trainingDir, "preparation_report.txt")
	if err := os.WriteFile(reportPath, []byte(a.preparationReport(result)), 0o644); err != nil {
		return ExportResult{}, fmt.Errorf("write preparation report: %w", err)
	}
	result.ReportFile = reportPath

	if a.objects != nil {
		url, err := a.publishBundle(ctx, lines, manifest.String())
		if err != nil {
			return ExportResult{}, fmt.Errorf("publish bundle: %w", err)
		}
		result.PublishedURL = url
	}
	return result, nil
}

func (a *App) preparationReport(result ExportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Training Data Preparation Report\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", a.now().UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Approved samples: %d\n", result.TotalApproved)
	fmt.Fprintf(&b, "Exported samples: %d\n", result.Exported)
	fmt.Fprintf(&b, "Skipped samples: %d\n", len(result.Skipped))
	for _, s := range result.Skipped {
		fmt.Fprintf(&b, "  - %s: %s\n", s.ID, s.Reason)
	}
	return b.String()
}

type manifestLine struct {
	file string
	text string
}

func (a *App) publishBundle(ctx context.Context, lines []manifestLine, manifest string) (string, error) {
	prefix := fmt.Sprintf("bundles/%s", a.now().UTC().Format("20060102_150405"))
	for _, name := range []string{"train.txt", "val.txt"} {
		key := prefix + "/" + name
		if err := a.objects.Put(ctx, key, strings.NewReader(manifest), int64(len(manifest)), "text/plain"); err != nil {
			return "", err
		}
	}
	for _, line := range lines {
		path := filepath.Join(a.trainingDir, "images", line.file)
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		err = a.objects.Put(ctx, prefix+"/images/"+line.file, f, info.Size(), "application/octet-stream")
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return a.objects.PresignGet(ctx, prefix+"/train.txt", 24*time.Hour)
}

// verifiedCopy copies src to dst and confirms the bytes written match the
// recorded hash. A mismatch means the approved file was altered after
// ingestion, so the sample is excluded from training.
func verifiedCopy(src, dst, wantHash string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("approved file missing")
		}
		return fmt.Errorf("read approved file: %w", err)
	}
	if wantHash != "" {
		sum := sha256.Sum256(content)
		if hex.EncodeToString(sum[:]) != wantHash {
			return fmt.Errorf("file hash mismatch")
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".export-*")
	if err != nil {
		return fmt.Errorf("create temp copy: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, bytes.NewReader(content)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close copy: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("place copy: %w", err)
	}
	return nil
}

// sanitizeLabel collapses all whitespace runs to single spaces and caps the
// label length so manifest lines stay single-line and bounded.
func sanitizeLabel(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxLabelLength {
		runes := []rune(text)
		if len(runes) > maxLabelLength {
			runes = runes[:maxLabelLength]
		}
		text = strings.TrimSpace(string(runes))
	}
	return text
}
