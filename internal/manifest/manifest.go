// Package manifest implements the metadata layer one level below a
// snapshot: manifest entries recording which data files a snapshot added or
// removed, manifest files grouping a batch of entries (which may span many
// buckets), and a manifest list tying a snapshot to its manifest files.
package manifest

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/format"
	"github.com/lakestore/core/pkg/errors"
)

// Kind classifies a ManifestEntry.
type Kind int

const (
	KindAdd Kind = iota
	KindDelete
)

// DataFileMeta is everything the scan and expire paths need to know about a
// single data or changelog file without opening it.
type DataFileMeta struct {
	FileName        string         `avro:"file_name"`
	FileSize        int64          `avro:"file_size"`
	RowCount        int64          `avro:"row_count"`
	MinKey          []byte         `avro:"min_key"`
	MaxKey          []byte         `avro:"max_key"`
	MinSequence     int64          `avro:"min_sequence"`
	MaxSequence     int64          `avro:"max_sequence"`
	Level           int            `avro:"level"`
	SchemaID        int64          `avro:"schema_id"`
	ValueStatsCols  []int          `avro:"value_stats_cols"`
	NullCounts      map[int]int64  `avro:"null_counts"`
	CreationTimeMs  int64          `avro:"creation_time_ms"`
	ExtraFiles      []string       `avro:"extra_files"`
}

// ManifestEntry records one file's addition or removal from a bucket,
// scoped by partition.
type ManifestEntry struct {
	Kind            Kind          `avro:"kind"`
	PartitionValues []string      `avro:"partition_values"`
	Bucket          int           `avro:"bucket"`
	TotalBuckets    int           `avro:"total_buckets"`
	File            DataFileMeta  `avro:"file"`
}

// ManifestFile is a physical file on disk holding a batch of entries,
// written once and never modified — compaction and commits create new
// manifest files rather than rewriting existing ones.
type ManifestFile struct {
	Name    string
	Entries []ManifestEntry
}

// ManifestFileMeta is the manifest list's pointer to one ManifestFile,
// carrying enough aggregate counts for expire/scan to skip opening it.
type ManifestFileMeta struct {
	FileName       string `avro:"file_name"`
	FileSize       int64  `avro:"file_size"`
	NumAddedFiles  int64  `avro:"num_added_files"`
	NumDeletedFiles int64 `avro:"num_deleted_files"`
	SchemaID       int64  `avro:"schema_id"`
}

// ManifestList is the ordered set of manifest files a snapshot references.
type ManifestList struct {
	Manifests []ManifestFileMeta
}

const manifestEntrySchema = `{
	"type": "record",
	"name": "ManifestEntry",
	"fields": [
		{"name": "kind", "type": "int"},
		{"name": "partition_values", "type": {"type": "array", "items": "string"}},
		{"name": "bucket", "type": "int"},
		{"name": "total_buckets", "type": "int"},
		{"name": "file", "type": {
			"type": "record",
			"name": "DataFileMeta",
			"fields": [
				{"name": "file_name", "type": "string"},
				{"name": "file_size", "type": "long"},
				{"name": "row_count", "type": "long"},
				{"name": "min_key", "type": "bytes"},
				{"name": "max_key", "type": "bytes"},
				{"name": "min_sequence", "type": "long"},
				{"name": "max_sequence", "type": "long"},
				{"name": "level", "type": "int"},
				{"name": "schema_id", "type": "long"},
				{"name": "value_stats_cols", "type": {"type": "array", "items": "int"}},
				{"name": "null_counts", "type": {"type": "map", "values": "long"}},
				{"name": "creation_time_ms", "type": "long"},
				{"name": "extra_files", "type": {"type": "array", "items": "string"}}
			]
		}}
	]
}`

const manifestFileWrapperSchema = `{
	"type": "record",
	"name": "ManifestFileWrapper",
	"fields": [
		{"name": "entries", "type": {"type": "array", "items": ` + manifestEntrySchema + `}}
	]
}`

const manifestListSchema = `{
	"type": "record",
	"name": "ManifestList",
	"fields": [
		{"name": "manifests", "type": {"type": "array", "items": {
			"type": "record",
			"name": "ManifestFileMeta",
			"fields": [
				{"name": "file_name", "type": "string"},
				{"name": "file_size", "type": "long"},
				{"name": "num_added_files", "type": "long"},
				{"name": "num_deleted_files", "type": "long"},
				{"name": "schema_id", "type": "long"}
			]
		}}}
	]
}`

type manifestFileWrapper struct {
	Entries []ManifestEntry `avro:"entries"`
}

type manifestListWrapper struct {
	Manifests []ManifestFileMeta `avro:"manifests"`
}

// Codec writes and reads ManifestFile/ManifestList objects through the
// shared avro encoding.
type Codec struct {
	io           fileio.FileIO
	entryCodec   *format.AvroCodec
	listCodec    *format.AvroCodec
}

func NewCodec(io fileio.FileIO) (*Codec, error) {
	entryCodec, err := format.NewAvroCodec(manifestFileWrapperSchema)
	if err != nil {
		return nil, err
	}
	listCodec, err := format.NewAvroCodec(manifestListSchema)
	if err != nil {
		return nil, err
	}
	return &Codec{io: io, entryCodec: entryCodec, listCodec: listCodec}, nil
}

// NewManifestFileName mints a unique manifest file name.
func NewManifestFileName() string {
	return fmt.Sprintf("manifest-%s.avro", uuid.NewString())
}

// NewManifestListFileName mints a unique manifest list file name.
func NewManifestListFileName() string {
	return fmt.Sprintf("manifest-list-%s.avro", uuid.NewString())
}

// WriteManifestFile encodes mf and writes it to path, returning the
// resulting file size for the caller to record in a ManifestFileMeta.
func (c *Codec) WriteManifestFile(path string, mf *ManifestFile) (int64, error) {
	data, err := c.entryCodec.Encode(&manifestFileWrapper{Entries: mf.Entries})
	if err != nil {
		return 0, errors.New(ErrWriteFailed, "failed to encode manifest file", err)
	}
	w, err := c.io.Create(path)
	if err != nil {
		return 0, errors.New(ErrWriteFailed, "failed to open manifest file for write", err).AddContext("path", path)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return 0, errors.New(ErrWriteFailed, "failed to write manifest file", err).AddContext("path", path)
	}
	if err := w.Close(); err != nil {
		return 0, errors.New(ErrWriteFailed, "failed to close manifest file", err).AddContext("path", path)
	}
	return int64(len(data)), nil
}

// ReadManifestFile reads and decodes a manifest file.
func (c *Codec) ReadManifestFile(path string) (*ManifestFile, error) {
	data, err := readAll(c.io, path)
	if err != nil {
		return nil, errors.New(ErrReadFailed, "failed to read manifest file", err).AddContext("path", path)
	}
	var wrapper manifestFileWrapper
	if err := c.entryCodec.Decode(data, &wrapper); err != nil {
		return nil, errors.New(ErrReadFailed, "failed to decode manifest file", err).AddContext("path", path)
	}
	return &ManifestFile{Entries: wrapper.Entries}, nil
}

// WriteManifestList encodes ml and writes it to path.
func (c *Codec) WriteManifestList(path string, ml *ManifestList) (int64, error) {
	data, err := c.listCodec.Encode(&manifestListWrapper{Manifests: ml.Manifests})
	if err != nil {
		return 0, errors.New(ErrWriteFailed, "failed to encode manifest list", err)
	}
	w, err := c.io.Create(path)
	if err != nil {
		return 0, errors.New(ErrWriteFailed, "failed to open manifest list for write", err).AddContext("path", path)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return 0, errors.New(ErrWriteFailed, "failed to write manifest list", err).AddContext("path", path)
	}
	if err := w.Close(); err != nil {
		return 0, errors.New(ErrWriteFailed, "failed to close manifest list", err).AddContext("path", path)
	}
	return int64(len(data)), nil
}

// ReadManifestList reads and decodes a manifest list.
func (c *Codec) ReadManifestList(path string) (*ManifestList, error) {
	data, err := readAll(c.io, path)
	if err != nil {
		return nil, errors.New(ErrReadFailed, "failed to read manifest list", err).AddContext("path", path)
	}
	var wrapper manifestListWrapper
	if err := c.listCodec.Decode(data, &wrapper); err != nil {
		return nil, errors.New(ErrReadFailed, "failed to decode manifest list", err).AddContext("path", path)
	}
	return &ManifestList{Manifests: wrapper.Manifests}, nil
}

func readAll(io fileio.FileIO, path string) ([]byte, error) {
	r, err := io.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAllBytes(r)
}

func readAllBytes(r io.Reader) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := r.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Merge produces the ManifestEntry set a full compaction or scan would see
// after collapsing ADD/DELETE pairs: an entry deleted in a later file
// cancels an earlier ADD for the same file name.
func Merge(files []*ManifestFile) []ManifestEntry {
	added := make(map[string]ManifestEntry)
	deleted := make(map[string]bool)

	for _, f := range files {
		for _, e := range f.Entries {
			switch e.Kind {
			case KindAdd:
				added[e.File.FileName] = e
				delete(deleted, e.File.FileName)
			case KindDelete:
				delete(added, e.File.FileName)
				deleted[e.File.FileName] = true
			}
		}
	}

	out := make([]ManifestEntry, 0, len(added))
	for _, e := range added {
		out = append(out, e)
	}
	return out
}
