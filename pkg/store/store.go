// Package store persists sample metadata. The default backend is a single
// JSON document rewritten atomically on every mutation; a Postgres backend
// is available for deployments that already run a database.
package store

import (
	"errors"

	"inkwell/pkg/domain"
)

var (
	// ErrNotFound is returned by operations on an unknown sample id.
	ErrNotFound = errors.New("sample not found")
	// ErrDuplicateID is returned when adding a sample whose id exists.
	ErrDuplicateID = errors.New("sample id already exists")
)

// Store defines persistence operations for sample records.
//
// Update takes a mutate closure so the read-modify-write cycle happens
// under the store's own lock; callers never hold stale copies across a
// concurrent writer.
type Store interface {
	Add(domain.Sample) error
	Update(id string, mutate func(*domain.Sample)) error
	Delete(id string) error
	Get(id string) (domain.Sample, bool, error)
	List() ([]domain.Sample, error)
	FindByHash(hash string) (domain.Sample, bool, error)
	Count() (int, error)
}
