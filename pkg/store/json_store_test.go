package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inkwell/pkg/domain"
)

func newTestStore(t *testing.T) (*JSONStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.json")
	s, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("new json store: %v", err)
	}
	return s, path
}

func sampleFixture(id, hash string) domain.Sample {
	return domain.Sample{
		ID:         id,
		File:       id + ".png",
		OrigName:   "scan.png",
		Status:     domain.StatusPending,
		UploadTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		FileSize:   42,
		FileHash:   hash,
	}
}

func TestAddGetDelete(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Add(sampleFixture("s1", "h1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(sampleFixture("s1", "h2")); err != ErrDuplicateID {
		t.Fatalf("duplicate add = %v, want ErrDuplicateID", err)
	}
	got, ok, err := s.Get("s1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.FileHash != "h1" {
		t.Fatalf("hash = %q", got.FileHash)
	}
	if err := s.Delete("s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete("s1"); err != ErrNotFound {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
	if _, ok, _ := s.Get("s1"); ok {
		t.Fatalf("expected record gone after delete")
	}
}

func TestUpdateMutatesUnderLock(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Add(sampleFixture("s1", "h1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := s.Update("s1", func(sample *domain.Sample) {
		sample.Status = domain.StatusRejected
		sample.Notes = "blurry"
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _, _ := s.Get("s1")
	if got.Status != domain.StatusRejected || got.Notes != "blurry" {
		t.Fatalf("unexpected record after update: %+v", got)
	}
	if err := s.Update("nope", func(*domain.Sample) {}); err != ErrNotFound {
		t.Fatalf("update unknown = %v, want ErrNotFound", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	s, path := newTestStore(t)
	if err := s.Add(sampleFixture("s1", "h1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(sampleFixture("s2", "h2")); err != nil {
		t.Fatalf("add: %v", err)
	}

	reopened, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	count, err := reopened.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	got, ok, _ := reopened.Get("s2")
	if !ok || got.File != "s2.png" {
		t.Fatalf("unexpected reopened record: ok=%v %+v", ok, got)
	}
}

func TestFindByHash(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Add(sampleFixture("s1", "h1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, ok, err := s.FindByHash("h1")
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if got.ID != "s1" {
		t.Fatalf("id = %q", got.ID)
	}
	if _, ok, _ := s.FindByHash("missing"); ok {
		t.Fatalf("expected no match for unknown hash")
	}
}

func TestCorruptDocumentQuarantined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	s, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("new store over corrupt file: %v", err)
	}
	count, _ := s.Count()
	if count != 0 {
		t.Fatalf("count = %d, want 0 after quarantine", count)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	found := false
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".backup.") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected quarantined backup file, dir has %v", entries)
	}

	// The store remains usable afterwards.
	if err := s.Add(sampleFixture("s1", "h1")); err != nil {
		t.Fatalf("add after quarantine: %v", err)
	}
}

func TestListOrderedByUploadTime(t *testing.T) {
	s, _ := newTestStore(t)
	older := sampleFixture("a", "h1")
	older.UploadTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := sampleFixture("b", "h2")
	newer.UploadTime = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Add(newer); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(older); err != nil {
		t.Fatalf("add: %v", err)
	}
	list, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestLoadsLegacyDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.json")
	legacy := `{
  "abc-123": {
    "id": "abc-123",
    "file": "abc-123.jpg",
    "orig_name": "my scan.jpg",
    "provided_text": "hello",
    "predicted_text": "hell0",
    "corrected_text": "",
    "status": "pending",
    "notes": "",
    "upload_time": "2025-06-01T10:00:00Z",
    "file_size": 1234,
    "file_hash": "deadbeef"
  }
}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}
	s, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	got, ok, _ := s.Get("abc-123")
	if !ok {
		t.Fatalf("expected legacy record")
	}
	if got.OrigName != "my scan.jpg" || got.FileHash != "deadbeef" || got.Status != domain.StatusPending {
		t.Fatalf("unexpected legacy record: %+v", got)
	}
}
