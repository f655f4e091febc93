// Package filestore manages the two on-disk image areas. A sample's image
// lives in exactly one of them: the pending area (pending and rejected
// samples) or the approved area. Moves are single renames so a crash cannot
// leave a file in both places.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Location names the area a file currently occupies.
type Location string

const (
	LocationPending  Location = "pending"
	LocationApproved Location = "approved"
	LocationMissing  Location = "missing"
)

var ErrNotFound = errors.New("file not found")

// Areas owns the pending and approved directories.
type Areas struct {
	pendingDir  string
	approvedDir string
}

// New creates both directories if missing.
func New(pendingDir, approvedDir string) (*Areas, error) {
	if strings.TrimSpace(pendingDir) == "" || strings.TrimSpace(approvedDir) == "" {
		return nil, errors.New("pending and approved directories are required")
	}
	for _, dir := range []string{pendingDir, approvedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create area dir: %w", err)
		}
	}
	return &Areas{pendingDir: pendingDir, approvedDir: approvedDir}, nil
}

// SavePending writes content into the pending area under name. The write
// goes to a temp file first and is renamed into place so a partially
// written image is never visible under its final name.
func (a *Areas) SavePending(name string, content []byte) error {
	target := filepath.Join(a.pendingDir, safeName(name))
	tmp, err := os.CreateTemp(a.pendingDir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("place file: %w", err)
	}
	return nil
}

// Promote moves a file from the pending area to the approved area.
func (a *Areas) Promote(name string) error {
	name = safeName(name)
	src := filepath.Join(a.pendingDir, name)
	dst := filepath.Join(a.approvedDir, name)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stat pending file: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move to approved: %w", err)
	}
	return nil
}

// Demote moves a file back from the approved area to the pending area.
// It is the compensation step for a Promote whose metadata write failed.
func (a *Areas) Demote(name string) error {
	name = safeName(name)
	src := filepath.Join(a.approvedDir, name)
	dst := filepath.Join(a.pendingDir, name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move back to pending: %w", err)
	}
	return nil
}

// Remove deletes the file from both areas, best effort. It reports how many
// copies were removed; absence in both areas is not an error.
func (a *Areas) Remove(name string) (int, error) {
	name = safeName(name)
	removed := 0
	var firstErr error
	for _, dir := range []string{a.pendingDir, a.approvedDir} {
		path := filepath.Join(dir, name)
		err := os.Remove(path)
		if err == nil {
			removed++
			continue
		}
		if !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return removed, firstErr
}

// RemovePending deletes only the pending copy. Used to undo a SavePending
// after a failed metadata write.
func (a *Areas) RemovePending(name string) error {
	err := os.Remove(filepath.Join(a.pendingDir, safeName(name)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pending file: %w", err)
	}
	return nil
}

// Locate reports which area currently holds the file.
func (a *Areas) Locate(name string) Location {
	name = safeName(name)
	if fileExists(filepath.Join(a.pendingDir, name)) {
		return LocationPending
	}
	if fileExists(filepath.Join(a.approvedDir, name)) {
		return LocationApproved
	}
	return LocationMissing
}

// PendingPath returns the path a pending file would occupy.
func (a *Areas) PendingPath(name string) string {
	return filepath.Join(a.pendingDir, safeName(name))
}

// ApprovedPath returns the path an approved file would occupy.
func (a *Areas) ApprovedPath(name string) string {
	return filepath.Join(a.approvedDir, safeName(name))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// safeName strips any path components from a stored filename. Stored names
// are always <id>.<ext>, so anything else is hostile input.
func safeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(os.PathSeparator) {
		return "_"
	}
	return name
}
