package fileio

import (
	"sync"

	"github.com/lakestore/core/pkg/errors"
)

// LocalLock is an in-process Lock backed by a mutex set, sufficient for a
// FileIO whose CreateExclusive is already atomic (Local, Memory) and is used
// only to serialize goroutines inside one process.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]bool)}
}

func (l *LocalLock) TryLock(name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return false, nil
	}
	l.held[name] = true
	return true, nil
}

func (l *LocalLock) Unlock(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

// ObjectLock implements the external-lock hook on top of an ObjectStore
// whose CreateExclusive is only best-effort: it marks a lock key with
// CreateExclusive and relies on the caller eventually calling Unlock, which
// deletes the key. Used when committing against an object store where
// FileStoreCommit cannot rely on atomic rename alone.
type ObjectLock struct {
	store  *ObjectStore
	prefix string
}

func NewObjectLock(store *ObjectStore, prefix string) *ObjectLock {
	return &ObjectLock{store: store, prefix: prefix}
}

func (l *ObjectLock) lockPath(name string) string {
	return l.prefix + "/" + name + ".lock"
}

func (l *ObjectLock) TryLock(name string) (bool, error) {
	w, err := l.store.CreateExclusive(l.lockPath(name))
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	return true, w.Close()
}

func (l *ObjectLock) Unlock(name string) error {
	err := l.store.Delete(l.lockPath(name))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
