package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inkwell/pkg/domain"
)

func TestExportTrainingData(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.mustIngest(t, "bytes-a", "a.jpg", "image/jpeg", "")
	b := env.mustIngest(t, "bytes-b", "b.png", "image/png", "")
	env.mustIngest(t, "bytes-c", "c.jpg", "image/jpeg", "still pending")
	if err := env.app.Approve(a.ID, "first  line\twith\nnoise"); err != nil {
		t.Fatalf("approve a: %v", err)
	}
	if err := env.app.Approve(b.ID, "second line"); err != nil {
		t.Fatalf("approve b: %v", err)
	}

	result, err := env.app.ExportTrainingData(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.TotalApproved != 2 || result.Exported != 2 || len(result.Skipped) != 0 {
		t.Fatalf("result = %+v", result)
	}

	manifest, err := os.ReadFile(result.TrainFile)
	if err != nil {
		t.Fatalf("read train.txt: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(manifest), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("manifest lines = %d:\n%s", len(lines), manifest)
	}
	for _, line := range lines {
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			t.Fatalf("malformed manifest line %q", line)
		}
		if strings.ContainsAny(parts[1], "\t\n") {
			t.Fatalf("label not sanitized: %q", parts[1])
		}
		copied := filepath.Join(env.dir, "train_data", "images", parts[0])
		if _, err := os.Stat(copied); err != nil {
			t.Fatalf("exported image missing: %v", err)
		}
	}
	if !strings.Contains(string(manifest), "first line with noise") {
		t.Fatalf("whitespace not collapsed:\n%s", manifest)
	}

	val, err := os.ReadFile(result.ValFile)
	if err != nil {
		t.Fatalf("read val.txt: %v", err)
	}
	if string(val) != string(manifest) {
		t.Fatalf("val.txt does not mirror train.txt")
	}

	report, err := os.ReadFile(result.ReportFile)
	if err != nil {
		t.Fatalf("read preparation report: %v", err)
	}
	if !strings.Contains(string(report), "Exported samples: 2") {
		t.Fatalf("report content:\n%s", report)
	}
}

func TestExportUsesBestText(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.mustIngest(t, "bytes-a", "a.jpg", "image/jpeg", "provided text")
	if err := env.app.Approve(res.ID, "corrected text"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	result, err := env.app.ExportTrainingData(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	manifest, err := os.ReadFile(result.TrainFile)
	if err != nil {
		t.Fatalf("read train.txt: %v", err)
	}
	if !strings.Contains(string(manifest), "\tcorrected text") {
		t.Fatalf("corrected text not preferred:\n%s", manifest)
	}
}

func TestExportSkipsTamperedFile(t *testing.T) {
	env := newTestEnv(t, nil)
	good := env.mustIngest(t, "bytes-good", "a.jpg", "image/jpeg", "")
	bad := env.mustIngest(t, "bytes-bad", "b.jpg", "image/jpeg", "")
	if err := env.app.Approve(good.ID, "good text"); err != nil {
		t.Fatalf("approve good: %v", err)
	}
	if err := env.app.Approve(bad.ID, "bad text"); err != nil {
		t.Fatalf("approve bad: %v", err)
	}
	badSample := env.mustGet(t, bad.ID)
	if err := os.WriteFile(env.areas.ApprovedPath(badSample.File), []byte("altered"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	result, err := env.app.ExportTrainingData(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Exported != 1 || len(result.Skipped) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Skipped[0].ID != bad.ID || !strings.Contains(result.Skipped[0].Reason, "hash mismatch") {
		t.Fatalf("skipped = %+v", result.Skipped)
	}
}

func TestExportSkipsMissingFileAndEmptyText(t *testing.T) {
	env := newTestEnv(t, nil)
	missing := env.mustIngest(t, "bytes-m", "a.jpg", "image/jpeg", "")
	if err := env.app.Approve(missing.ID, "text"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	missingSample := env.mustGet(t, missing.ID)
	if err := os.Remove(env.areas.ApprovedPath(missingSample.File)); err != nil {
		t.Fatalf("remove approved file: %v", err)
	}

	empty := env.mustIngest(t, "bytes-e", "b.jpg", "image/jpeg", "")
	if err := env.app.Approve(empty.ID, "placeholder"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := env.store.Update(empty.ID, func(s *domain.Sample) {
		s.CorrectedText = ""
		s.ProvidedText = ""
		s.PredictedText = ""
	}); err != nil {
		t.Fatalf("strip texts: %v", err)
	}

	result, err := env.app.ExportTrainingData(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Exported != 0 || len(result.Skipped) != 2 {
		t.Fatalf("result = %+v", result)
	}
	reasons := map[string]string{}
	for _, s := range result.Skipped {
		reasons[s.ID] = s.Reason
	}
	if !strings.Contains(reasons[missing.ID], "missing") {
		t.Fatalf("missing-file reason = %q", reasons[missing.ID])
	}
	if reasons[empty.ID] != "no usable text" {
		t.Fatalf("empty-text reason = %q", reasons[empty.ID])
	}
}

func TestExportCapsLabelLength(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.mustIngest(t, "bytes-a", "a.jpg", "image/jpeg", "")
	long := strings.Repeat("word ", 400)
	if err := env.app.Approve(res.ID, long); err != nil {
		t.Fatalf("approve: %v", err)
	}

	result, err := env.app.ExportTrainingData(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	manifest, err := os.ReadFile(result.TrainFile)
	if err != nil {
		t.Fatalf("read train.txt: %v", err)
	}
	line := strings.TrimRight(string(manifest), "\n")
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) != 2 {
		t.Fatalf("malformed line %q", line)
	}
	if len(parts[1]) > maxLabelLength {
		t.Fatalf("label length = %d, cap %d", len(parts[1]), maxLabelLength)
	}
}

func TestReadinessSeesExportedTrainingData(t *testing.T) {
	env := newTestEnv(t, nil)
	seedApproved(t, env, 3, func(i int) string { return fmt.Sprintf("unique text %d", i) })

	before, err := env.app.Readiness()
	if err != nil {
		t.Fatalf("readiness: %v", err)
	}
	if before.TrainingDataExists {
		t.Fatalf("training data reported before export")
	}

	if _, err := env.app.ExportTrainingData(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}

	after, err := env.app.Readiness()
	if err != nil {
		t.Fatalf("readiness: %v", err)
	}
	if !after.TrainingDataExists {
		t.Fatalf("training data not detected after export")
	}
}
