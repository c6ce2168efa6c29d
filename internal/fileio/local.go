package fileio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Local is a FileIO backed by the host filesystem. CreateExclusive writes to
// a temp file in the same directory and hard-links it onto the final path,
// which fails if that path already exists, so that the publish step of a
// commit is atomic even under concurrent writers.
type Local struct {
	logger zerolog.Logger
}

func NewLocal(logger zerolog.Logger) *Local {
	return &Local{logger: logger.With().Str("component", "fileio.local").Logger()}
}

func (l *Local) IsObjectStore() bool { return false }

func (l *Local) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNotFound(path)
		}
		return nil, wrapIOError(err, path)
	}
	return f, nil
}

func (l *Local) Create(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, wrapIOError(err, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, wrapIOError(err, path)
	}
	return f, nil
}

func (l *Local) CreateExclusive(path string) (io.WriteCloser, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapIOError(err, path)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%s", uuid.NewString()))
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, wrapIOError(err, tmp)
	}
	return &atomicRenameWriter{file: f, tmpPath: tmp, finalPath: path}, nil
}

func (l *Local) Delete(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errNotFound(path)
		}
		return wrapIOError(err, path)
	}
	return nil
}

func (l *Local) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, wrapIOError(err, path)
}

func (l *Local) List(path string) ([]FileStatus, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNotFound(path)
		}
		return nil, wrapIOError(err, path)
	}

	out := make([]FileStatus, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, wrapIOError(err, path)
		}
		out = append(out, FileStatus{
			Path:    filepath.Join(path, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   e.IsDir(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (l *Local) MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return wrapIOError(err, path)
	}
	return nil
}

// atomicRenameWriter buffers writes to a temp file and links it onto the
// final path on Close, failing if the final path was created meanwhile.
type atomicRenameWriter struct {
	file      *os.File
	tmpPath   string
	finalPath string
}

func (w *atomicRenameWriter) Write(p []byte) (int, error) { return w.file.Write(p) }

func (w *atomicRenameWriter) Close() error {
	if err := w.file.Sync(); err != nil {
		os.Remove(w.tmpPath)
		return wrapIOError(err, w.finalPath)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return wrapIOError(err, w.finalPath)
	}
	// os.Link fails with EEXIST when finalPath exists, so the existence check
	// and the publish are one atomic step.
	if err := os.Link(w.tmpPath, w.finalPath); err != nil {
		os.Remove(w.tmpPath)
		if os.IsExist(err) {
			return errAlreadyExists(w.finalPath)
		}
		return wrapIOError(err, w.finalPath)
	}
	os.Remove(w.tmpPath)
	return nil
}

func wrapIOError(cause error, path string) error {
	return errorsNewIOFatal(cause, path)
}
