package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesEnvOverridesAndDefaults(t *testing.T) {
	t.Setenv("INKWELL_MAX_UPLOAD_BYTES", "2097152")
	t.Setenv("INKWELL_OCR_ENABLED", "true")
	t.Setenv("INKWELL_OCR_SERVICE_URL", "http://localhost:1235")
	t.Setenv("INKWELL_OCR_MIN_CONFIDENCE", "0.6")
	t.Setenv("INKWELL_ADMIN_TOKEN", "env-secret")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "1234"
logLevel: "info"
dataDir: "data"
adminToken: "file-secret"
maxUploadBytes: 1048576
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MaxUploadBytes != 2097152 {
		t.Fatalf("maxUploadBytes = %d, want 2097152", cfg.MaxUploadBytes)
	}
	if !cfg.OCREnabled {
		t.Fatalf("ocrEnabled = false, want true")
	}
	if cfg.OCRServiceURL != "http://localhost:1235" {
		t.Fatalf("ocrServiceURL = %q", cfg.OCRServiceURL)
	}
	if cfg.OCRMinConfidence != 0.6 {
		t.Fatalf("ocrMinConfidence = %f, want 0.6", cfg.OCRMinConfidence)
	}
	if cfg.AdminToken != "env-secret" {
		t.Fatalf("adminToken = %q, want env override", cfg.AdminToken)
	}
	if cfg.PendingDir != filepath.Join("data", "images") {
		t.Fatalf("pendingDir = %q", cfg.PendingDir)
	}
	if cfg.ApprovedDir != filepath.Join("data", "approved") {
		t.Fatalf("approvedDir = %q", cfg.ApprovedDir)
	}
	if cfg.LabelsFile != filepath.Join("data", "labels.json") {
		t.Fatalf("labelsFile = %q", cfg.LabelsFile)
	}
	if cfg.MinApprovedSamples != 100 {
		t.Fatalf("minApprovedSamples = %d, want default 100", cfg.MinApprovedSamples)
	}
	if len(cfg.AllowedExtensions) == 0 {
		t.Fatalf("expected default allowed extensions")
	}
}

func TestLoadRejectsMissingAdminToken(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "1234"
dataDir: "data"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error for missing admin token")
	}
}

func TestLoadRejectsOCRWithoutServiceURL(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "1234"
adminToken: "secret"
ocrEnabled: true
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error when ocrEnabled without ocrServiceURL")
	}
}

func TestLoadRejectsReviewerWithoutSessionSecret(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "1234"
adminToken: "secret"
reviewerUsername: "reviewer"
reviewerPasswordHash: "$2a$10$abcdefghijklmnopqrstuv"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error for reviewer account without session secret")
	}
}
