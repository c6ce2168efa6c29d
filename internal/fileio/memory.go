package fileio

import (
	"bytes"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Memory is an in-memory FileIO used by tests and by table configurations
// that never need durability across process restarts.
type Memory struct {
	logger zerolog.Logger

	mu    sync.RWMutex
	files map[string]*memEntry
	dirs  map[string]bool
}

type memEntry struct {
	data    []byte
	modTime time.Time
}

// NewMemory returns an empty in-memory FileIO.
func NewMemory(logger zerolog.Logger) *Memory {
	return &Memory{
		logger: logger.With().Str("component", "fileio.memory").Logger(),
		files:  make(map[string]*memEntry),
		dirs:   make(map[string]bool),
	}
}

func (m *Memory) IsObjectStore() bool { return false }

func (m *Memory) Open(path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clean := filepath.Clean(path)
	e, ok := m.files[clean]
	if !ok {
		return nil, errNotFound(path)
	}
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return &memReader{Reader: bytes.NewReader(data)}, nil
}

func (m *Memory) Create(path string) (io.WriteCloser, error) {
	clean := filepath.Clean(path)
	m.ensureParents(clean)
	return &memWriter{fs: m, path: clean}, nil
}

func (m *Memory) CreateExclusive(path string) (io.WriteCloser, error) {
	clean := filepath.Clean(path)
	m.mu.Lock()
	if _, exists := m.files[clean]; exists {
		m.mu.Unlock()
		return nil, errAlreadyExists(path)
	}
	// Reserve the slot so a racing CreateExclusive sees it immediately.
	m.files[clean] = &memEntry{modTime: time.Now()}
	m.mu.Unlock()
	m.ensureParents(clean)
	return &memWriter{fs: m, path: clean}, nil
}

func (m *Memory) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clean := filepath.Clean(path)
	if _, ok := m.files[clean]; !ok {
		return errNotFound(path)
	}
	delete(m.files, clean)
	return nil
}

func (m *Memory) Exists(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clean := filepath.Clean(path)
	_, isFile := m.files[clean]
	return isFile || m.dirs[clean], nil
}

func (m *Memory) List(path string) ([]FileStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clean := filepath.Clean(path)
	seen := map[string]bool{}
	var out []FileStatus

	prefix := clean + "/"
	for p, e := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rel := strings.TrimPrefix(p, prefix)
		name := strings.SplitN(rel, "/", 2)[0]
		if seen[name] {
			continue
		}
		seen[name] = true
		isDir := strings.Contains(rel, "/")
		status := FileStatus{Path: filepath.Join(clean, name), IsDir: isDir}
		if !isDir {
			status.Size = int64(len(e.data))
			status.ModTime = e.modTime
		}
		out = append(out, status)
	}
	for d := range m.dirs {
		if !strings.HasPrefix(d, prefix) {
			continue
		}
		rel := strings.TrimPrefix(d, prefix)
		if rel == "" || strings.Contains(rel, "/") {
			continue
		}
		if !seen[rel] {
			seen[rel] = true
			out = append(out, FileStatus{Path: filepath.Join(clean, rel), IsDir: true})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) MkdirAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markDirsLocked(filepath.Clean(path))
	return nil
}

func (m *Memory) ensureParents(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markDirsLocked(filepath.Dir(path))
}

func (m *Memory) markDirsLocked(dir string) {
	for dir != "." && dir != "/" && dir != "" {
		if m.dirs[dir] {
			return
		}
		m.dirs[dir] = true
		dir = filepath.Dir(dir)
	}
}

// memReader embeds *bytes.Reader rather than wrapping it in io.NopCloser so
// that callers needing random access (the parquet reader requires
// io.ReaderAt plus io.Seeker) still see those methods promoted through.
type memReader struct {
	*bytes.Reader
}

func (r *memReader) Close() error { return nil }

type memWriter struct {
	fs   *Memory
	path string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.files[w.path] = &memEntry{data: w.buf.Bytes(), modTime: time.Now()}
	return nil
}
