package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"inkwell/pkg/domain"
)

// JSONStore keeps every sample record in one JSON document on disk. Every
// mutation rewrites the whole file through a temp file + rename, so readers
// of the path never observe a half-written document.
type JSONStore struct {
	mu      sync.Mutex
	path    string
	samples map[string]domain.Sample
}

// NewJSONStore loads the document at path. A missing file yields an empty
// store. A corrupted file is renamed aside with a timestamp suffix and the
// store starts empty: corruption is recoverable, not fatal.
func NewJSONStore(path string) (*JSONStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("labels file path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create labels dir: %w", err)
	}
	s := &JSONStore{path: path, samples: make(map[string]domain.Sample)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("labels file missing, starting empty", "path", s.path)
			return nil
		}
		return fmt.Errorf("read labels file: %w", err)
	}
	samples := make(map[string]domain.Sample)
	if err := json.Unmarshal(data, &samples); err != nil {
		backup := fmt.Sprintf("%s.backup.%s", s.path, time.Now().UTC().Format("20060102_150405"))
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			return fmt.Errorf("quarantine corrupt labels file: %w", renameErr)
		}
		slog.Error("labels file corrupted, quarantined", "path", s.path, "backup", backup, "err", err)
		return nil
	}
	// IDs live both as map key and record field; the key wins.
	for id, sample := range samples {
		sample.ID = id
		samples[id] = sample
	}
	s.samples = samples
	slog.Info("loaded labels", "path", s.path, "count", len(samples))
	return nil
}

// persist writes the full document. Callers must hold s.mu.
func (s *JSONStore) persist() error {
	data, err := json.MarshalIndent(s.samples, "", "  ")
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".labels-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp labels file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write labels: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp labels file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace labels file: %w", err)
	}
	return nil
}

// Add inserts a new sample record.
func (s *JSONStore) Add(sample domain.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.samples[sample.ID]; exists {
		return ErrDuplicateID
	}
	s.samples[sample.ID] = sample
	if err := s.persist(); err != nil {
		delete(s.samples, sample.ID)
		return err
	}
	return nil
}

// Update applies mutate to an existing record under the store lock.
func (s *JSONStore) Update(id string, mutate func(*domain.Sample)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample, ok := s.samples[id]
	if !ok {
		return ErrNotFound
	}
	previous := sample
	mutate(&sample)
	sample.ID = id
	s.samples[id] = sample
	if err := s.persist(); err != nil {
		s.samples[id] = previous
		return err
	}
	return nil
}

// Delete removes a record.
func (s *JSONStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample, ok := s.samples[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.samples, id)
	if err := s.persist(); err != nil {
		s.samples[id] = sample
		return err
	}
	return nil
}

// Get returns a record by id.
func (s *JSONStore) Get(id string) (domain.Sample, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample, ok := s.samples[id]
	return sample, ok, nil
}

// List returns all records ordered by upload time, oldest first.
func (s *JSONStore) List() ([]domain.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Sample, 0, len(s.samples))
	for _, sample := range s.samples {
		out = append(out, sample)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadTime.Equal(out[j].UploadTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadTime.Before(out[j].UploadTime)
	})
	return out, nil
}

// FindByHash returns the record with the given content hash, if any.
func (s *JSONStore) FindByHash(hash string) (domain.Sample, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range s.samples {
		if sample.FileHash == hash {
			return sample, true, nil
		}
	}
	return domain.Sample{}, false, nil
}

// Count returns the number of records.
func (s *JSONStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples), nil
}
