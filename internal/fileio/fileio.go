// Package fileio abstracts the table store's one I/O dependency: a
// filesystem-like capability that can open, atomically create, list and
// delete objects, whether the backing store is a local disk or an object
// store with only eventually-consistent listing.
package fileio

import (
	"io"
	"time"
)

// FileStatus describes one entry returned by List.
type FileStatus struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FileIO is the capability every other component depends on instead of
// talking to os or a cloud SDK directly.
type FileIO interface {
	// Open opens an existing file for reading.
	Open(path string) (io.ReadCloser, error)

	// Create opens path for writing, truncating or creating it. Concurrent
	// writers may clobber each other; callers that need exclusivity use
	// CreateExclusive.
	Create(path string) (io.WriteCloser, error)

	// CreateExclusive creates path only if it does not already exist,
	// failing with ErrAlreadyExists otherwise. This is the primitive
	// snapshot and manifest publication rely on for atomicity: two writers
	// racing to create the same snapshot file can only have one winner.
	CreateExclusive(path string) (io.WriteCloser, error)

	Delete(path string) error
	Exists(path string) (bool, error)

	// List returns the direct children of a directory, sorted by name.
	List(path string) ([]FileStatus, error)

	MkdirAll(path string) error

	// IsObjectStore reports whether the backing store only offers
	// eventually-consistent listing, so callers know to prefer hint files
	// over directory scans wherever possible.
	IsObjectStore() bool
}

// Lock is the external-lock hook used to serialize commits against stores
// whose CreateExclusive is not atomic (or not available), per the commit
// package's optimistic-concurrency loop.
type Lock interface {
	// TryLock attempts to acquire the named lock, returning false if held.
	TryLock(name string) (bool, error)
	Unlock(name string) error
}
