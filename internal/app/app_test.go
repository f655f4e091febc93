package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"inkwell/pkg/domain"
	"inkwell/pkg/filestore"
	"inkwell/pkg/ocr"
	"inkwell/pkg/store"
)

type stubEngine struct {
	lines []ocr.Line
	err   error
	calls int
}

func (s *stubEngine) Recognize(_ context.Context, _ []byte) ([]ocr.Line, error) {
	s.calls++
	return s.lines, s.err
}

// flakyStore wraps a real store so tests can force persistence failures.
type flakyStore struct {
	store.Store
	failAdd    bool
	failUpdate bool
}

func (f *flakyStore) Add(s domain.Sample) error {
	if f.failAdd {
		return errors.New("forced add failure")
	}
	return f.Store.Add(s)
}

func (f *flakyStore) Update(id string, mutate func(*domain.Sample)) error {
	if f.failUpdate {
		return errors.New("forced update failure")
	}
	return f.Store.Update(id, mutate)
}

type testEnv struct {
	app   *App
	areas *filestore.Areas
	store *flakyStore
	dir   string
}

func newTestEnv(t *testing.T, engine ocr.Engine) *testEnv {
	t.Helper()
	dir := t.TempDir()
	js, err := store.NewJSONStore(filepath.Join(dir, "labels.json"))
	if err != nil {
		t.Fatalf("new json store: %v", err)
	}
	areas, err := filestore.New(filepath.Join(dir, "images"), filepath.Join(dir, "approved"))
	if err != nil {
		t.Fatalf("new file areas: %v", err)
	}
	fs := &flakyStore{Store: js}
	app, err := New(Config{
		Store:              fs,
		Files:              areas,
		OCR:                engine,
		TrainingDir:        filepath.Join(dir, "train_data"),
		ReportsDir:         filepath.Join(dir, "reports"),
		MinApprovedSamples: 3,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return &testEnv{app: app, areas: areas, store: fs, dir: dir}
}

func (e *testEnv) mustIngest(t *testing.T, content, name, contentType, provided string) IngestResult {
	t.Helper()
	res, err := e.app.Ingest(context.Background(), IngestRequest{
		Content:      []byte(content),
		OrigName:     name,
		ContentType:  contentType,
		ProvidedText: provided,
	})
	if err != nil {
		t.Fatalf("ingest %s: %v", name, err)
	}
	return res
}

func (e *testEnv) mustGet(t *testing.T, id string) domain.Sample {
	t.Helper()
	sample, err := e.app.GetSample(id)
	if err != nil {
		t.Fatalf("get sample %s: %v", id, err)
	}
	return sample
}
