// Package snapshot manages the table's point-in-time commit log: the
// snapshot JSON files, the LATEST/EARLIEST hint files that let readers skip
// a directory listing, and safe backward traversal that tolerates files
// deleted by a concurrent expiration.
package snapshot

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/pkg/errors"
)

// ComponentType identifies this component in logs.
const ComponentType = "snapshot_manager"

// CommitKind classifies the operation that produced a snapshot.
type CommitKind string

const (
	CommitAppend    CommitKind = "APPEND"
	CommitCompact   CommitKind = "COMPACT"
	CommitOverwrite CommitKind = "OVERWRITE"
	CommitAnalyze   CommitKind = "ANALYZE"
)

// Snapshot is the immutable record of one committed table state.
type Snapshot struct {
	ID                    int64      `json:"id"`
	SchemaID              int64      `json:"schema_id"`
	BaseManifestList      string     `json:"base_manifest_list,omitempty"`
	DeltaManifestList     string     `json:"delta_manifest_list"`
	ChangelogManifestList string     `json:"changelog_manifest_list,omitempty"`
	CommitKind            CommitKind `json:"commit_kind"`
	CommitUser            string     `json:"commit_user"`
	CommitIdentifier      int64      `json:"commit_identifier"`
	TimeMillis            int64      `json:"time_millis"`
	TotalRecordCount      int64      `json:"total_record_count,omitempty"`
	DeltaRecordCount      int64      `json:"delta_record_count,omitempty"`
}

func (s *Snapshot) marshal() ([]byte, error) { return json.MarshalIndent(s, "", "  ") }

// Manager owns the snapshot directory: the per-id JSON files and the
// LATEST/EARLIEST hints.
type Manager struct {
	io     fileio.FileIO
	layout *layout.Manager
	logger zerolog.Logger
}

func NewManager(io fileio.FileIO, layoutMgr *layout.Manager, logger zerolog.Logger) *Manager {
	return &Manager{io: io, layout: layoutMgr, logger: logger.With().Str("component", ComponentType).Logger()}
}

func (m *Manager) GetType() string { return ComponentType }

// LatestSnapshotID reads the LATEST hint; if it is missing or points at a
// file that no longer exists (a stale hint left by a crashed committer or
// expiration), it falls back to a directory listing.
func (m *Manager) LatestSnapshotID() (int64, bool, error) {
	if id, ok, err := m.readHint(m.layout.LatestHintFile()); err == nil && ok {
		if m.hintStillValid(id) {
			return id, true, nil
		}
	}
	ids, err := m.listIDs()
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[len(ids)-1], true, nil
}

// hintStillValid peeks a candidate snapshot file's own id field with gjson
// rather than fully unmarshaling it, cheaply confirming the hint was not
// left pointing at a file recycled by a crashed writer.
func (m *Manager) hintStillValid(id int64) bool {
	r, err := m.io.Open(m.layout.SnapshotFile(id))
	if err != nil {
		return false
	}
	defer r.Close()
	data, err := readAll(r)
	if err != nil {
		return false
	}
	gotID, _, ok := peekIDAndSchema(data)
	return ok && gotID == id
}

// EarliestSnapshotID mirrors LatestSnapshotID for the EARLIEST hint.
func (m *Manager) EarliestSnapshotID() (int64, bool, error) {
	if id, ok, err := m.readHint(m.layout.EarliestHintFile()); err == nil && ok {
		if exists, _ := m.SnapshotExists(id); exists {
			return id, true, nil
		}
	}
	ids, err := m.listIDs()
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

// SnapshotExists checks for the presence of a snapshot file without parsing it.
func (m *Manager) SnapshotExists(id int64) (bool, error) {
	return m.io.Exists(m.layout.SnapshotFile(id))
}

// SnapshotPath returns the path of a snapshot file.
func (m *Manager) SnapshotPath(id int64) string {
	return m.layout.SnapshotFile(id)
}

// Snapshot reads and parses one snapshot by id.
func (m *Manager) Snapshot(id int64) (*Snapshot, error) {
	r, err := m.io.Open(m.layout.SnapshotFile(id))
	if err != nil {
		return nil, errors.New(ErrNotFound, "snapshot not found", err).AddContext("snapshot_id", strconv.FormatInt(id, 10))
	}
	defer r.Close()
	data, err := readAll(r)
	if err != nil {
		return nil, errors.New(ErrReadFailed, "failed to read snapshot file", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.New(ErrReadFailed, "failed to decode snapshot file", err)
	}
	return &s, nil
}

// peekIDAndSchema extracts just the id/schema_id fields from a snapshot's
// raw bytes using gjson, avoiding a full unmarshal when the caller only
// needs to probe whether a hint still points somewhere sane.
func peekIDAndSchema(data []byte) (int64, int64, bool) {
	idRes := gjson.GetBytes(data, "id")
	schemaRes := gjson.GetBytes(data, "schema_id")
	if !idRes.Exists() || !schemaRes.Exists() {
		return 0, 0, false
	}
	return idRes.Int(), schemaRes.Int(), true
}

// WriteSnapshot publishes a new snapshot file, exclusively: the caller (the
// commit package) is responsible for retrying on AlreadyExists with a
// higher id.
func (m *Manager) WriteSnapshot(s *Snapshot) error {
	data, err := s.marshal()
	if err != nil {
		return errors.New(ErrWriteFailed, "failed to encode snapshot", err)
	}
	w, err := m.io.CreateExclusive(m.layout.SnapshotFile(s.ID))
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.New(ErrWriteFailed, "failed to write snapshot file", err)
	}
	return w.Close()
}

// CommitLatestHint best-effort writes the LATEST hint. Failure is logged
// and swallowed: a missing or stale hint only costs a directory listing on
// the next read, never correctness.
func (m *Manager) CommitLatestHint(id int64) {
	m.writeHint(m.layout.LatestHintFile(), id)
}

// CommitEarliestHint best-effort writes the EARLIEST hint.
func (m *Manager) CommitEarliestHint(id int64) {
	m.writeHint(m.layout.EarliestHintFile(), id)
}

func (m *Manager) writeHint(path string, id int64) {
	w, err := m.io.Create(path)
	if err != nil {
		m.logger.Warn().Err(err).Str("path", path).Msg("failed to open hint file for write")
		return
	}
	if _, err := w.Write([]byte(strconv.FormatInt(id, 10))); err != nil {
		w.Close()
		m.logger.Warn().Err(err).Str("path", path).Msg("failed to write hint file")
		return
	}
	if err := w.Close(); err != nil {
		m.logger.Warn().Err(err).Str("path", path).Msg("failed to close hint file")
	}
}

func (m *Manager) readHint(path string) (int64, bool, error) {
	r, err := m.io.Open(path)
	if err != nil {
		return 0, false, nil
	}
	defer r.Close()
	data, err := readAll(r)
	if err != nil {
		return 0, false, errors.New(ErrCorruptHint, "failed to read hint file", err).AddContext("path", path)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false, errors.New(ErrCorruptHint, "hint file does not contain an integer id", err).AddContext("path", path)
	}
	return id, true, nil
}

func (m *Manager) listIDs() ([]int64, error) {
	entries, err := m.io.List(m.layout.SnapshotDir())
	if err != nil {
		return nil, errors.New(ErrReadFailed, "failed to list snapshot directory", err)
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		name := e.Path[strings.LastIndex(e.Path, "/")+1:]
		if !strings.HasPrefix(name, "snapshot-") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(name, "snapshot-"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// TraversalPredicate inspects one snapshot during a backward traversal and
// reports whether traversal should continue to older snapshots.
type TraversalPredicate func(s *Snapshot) (keepGoing bool)

// TraversalSnapshotsFromLatestSafely walks backward from the latest
// snapshot, calling predicate on each one it can still read. A snapshot
// file deleted out from under the traversal by a concurrent expiration is
// skipped rather than treated as an error.
func (m *Manager) TraversalSnapshotsFromLatestSafely(predicate TraversalPredicate) error {
	latest, ok, err := m.LatestSnapshotID()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	earliest, ok, err := m.EarliestSnapshotID()
	if err != nil {
		return err
	}
	if !ok {
		earliest = latest
	}

	for id := latest; id >= earliest; id-- {
		s, err := m.Snapshot(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		if !predicate(s) {
			return nil
		}
	}
	return nil
}

// SnapshotsBetween returns every snapshot in [fromID, toID], skipping ids
// whose file has since been deleted, for the commit package's conflict
// check against intervening snapshots.
func (m *Manager) SnapshotsBetween(fromID, toID int64) ([]*Snapshot, error) {
	out := make([]*Snapshot, 0, toID-fromID+1)
	for id := fromID; id <= toID; id++ {
		s, err := m.Snapshot(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
