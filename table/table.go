// Package table is the top-level facade wiring schema, snapshot, manifest,
// commit, scan, read, enumerator and lsm into the single Table API an
// application actually calls: Create/Open a table, Write rows into it,
// Commit, Scan, read back the result, list its system tables, and run
// expiration.
package table

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/lakestore/core/internal/commit"
	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/format"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/lsm"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/mergefunc"
	"github.com/lakestore/core/internal/scan"
	"github.com/lakestore/core/internal/schema"
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/internal/systable"
	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// ComponentType identifies this component in logs.
const ComponentType = "table"

// compactTaskTimeout bounds one compaction task submitted to the shared
// WorkerPool; a stuck compaction must not wedge the pool forever.
const compactTaskTimeout = 5 * time.Minute

// Table is one open table: every component a writer, reader or maintenance
// job needs, wired once against a single root path.
type Table struct {
	io        fileio.FileIO
	layoutMgr *layout.Manager
	ff        format.FileFormat
	formats   *format.Registry

	schemas   *schema.Manager
	snapshots *snapshot.Manager
	manifests *manifest.Codec

	committer *commit.FileStoreCommit
	scanner   *scan.Scan
	systables *systable.Registry

	cfg    *config.Config
	pool   *lsm.WorkerPool
	logger zerolog.Logger

	mu         sync.Mutex
	schemaID   int64
	rowType    *types.RowType
	valueType  *types.RowType
	primaryKey []string
	partition  []string
	isPK       bool

	partitionIdx []int
	bucketKeyIdx []int
	mergeSpec    mergefunc.Spec

	writers map[bucketKey]*lsm.MergeTreeWriter
	appends map[bucketKey]*appendOnlyWriter

	commitUser   string
	nextCommitID int64
}

// Create mints schema 0 for a new table at root and opens it.
func Create(io fileio.FileIO, root string, def schema.TableDef, logger zerolog.Logger) (*Table, error) {
	layoutMgr := layout.NewManager(root)
	schemas := schema.NewManager(io, layoutMgr, logger)
	if _, err := schemas.CreateTable(def); err != nil {
		return nil, err
	}
	return Open(io, root, logger)
}

// Open wires every component against an existing table's latest schema.
func Open(io fileio.FileIO, root string, logger zerolog.Logger) (*Table, error) {
	logger = logger.With().Str("component", ComponentType).Logger()
	layoutMgr := layout.NewManager(root)
	schemas := schema.NewManager(io, layoutMgr, logger)

	ts, err := schemas.Latest()
	if err != nil {
		return nil, err
	}
	cfg, err := configFromOptions(ts.Options)
	if err != nil {
		return nil, err
	}
	rowType, err := ts.RowType()
	if err != nil {
		return nil, err
	}

	snapshots := snapshot.NewManager(io, layoutMgr, logger)
	manifests, err := manifest.NewCodec(io)
	if err != nil {
		return nil, err
	}
	committer := commit.NewFileStoreCommit(io, layoutMgr, snapshots, manifests, cfg, fileio.NewLocalLock(), logger)
	scanner := scan.NewScan(io, layoutMgr, snapshots, manifests, schemas, cfg, logger)

	formats := format.NewRegistry()
	formats.Register(format.NewParquet(cfg.FileCompression, cfg.CompressionLevel))
	ff, ok := formats.Get(cfg.FileFormat)
	if !ok {
		return nil, errors.New(ErrConfigInvalid, "unsupported file format", nil).AddContext("format", cfg.FileFormat)
	}

	lister := systable.NewFileLister(io, layoutMgr, manifests)
	systables := systable.NewRegistry(snapshots, schemas, lister)

	pool := lsm.NewWorkerPool(cfg.CompactionMaxWorkers, compactTaskTimeout, logger)
	if err := pool.Start(); err != nil {
		return nil, errors.New(ErrConfigInvalid, "failed to start compaction worker pool", err)
	}

	valueType := nonPartitionRowType(rowType, ts.PartitionKeys)
	t := &Table{
		io: io, layoutMgr: layoutMgr, ff: ff, formats: formats,
		schemas: schemas, snapshots: snapshots, manifests: manifests,
		committer: committer, scanner: scanner, systables: systables,
		cfg: cfg, pool: pool, logger: logger,
		schemaID:   ts.ID,
		rowType:    rowType,
		valueType:  valueType,
		primaryKey: ts.PrimaryKeys,
		partition:  ts.PartitionKeys,
		isPK:       isPrimaryKeyTable(ts.PrimaryKeys, ts.PartitionKeys),
		writers:    make(map[bucketKey]*lsm.MergeTreeWriter),
		appends:    make(map[bucketKey]*appendOnlyWriter),
		// ulid keeps commitUser unique per opened Table instance, so two
		// processes writing the same table never collide on the
		// (commitUser, commitIdentifier) pair internal/commit's replay-safety
		// check dedups on.
		commitUser: "table-writer-" + ulid.Make().String(),
	}
	t.partitionIdx = fieldIndexes(rowType, ts.PartitionKeys)
	t.bucketKeyIdx = t.resolveBucketKeyIdx(ts)
	t.mergeSpec = mergeSpecFor(cfg, ts.Options, valueType)
	if _, err := mergefunc.New(t.mergeSpec); err != nil {
		return nil, err
	}
	return t, nil
}

// Close stops the shared compaction worker pool. It does not flush pending
// writes; callers must PrepareCommit/Commit first.
func (t *Table) Close() error {
	return t.pool.Stop()
}

// Config returns the table's resolved configuration.
func (t *Table) Config() *config.Config { return t.cfg }

// RowType returns the table's full row schema, partition columns included.
func (t *Table) RowType() *types.RowType { return t.rowType }

// SystemTable opens one of the table's virtual metadata tables by name.
func (t *Table) SystemTable(name systable.Name) (systable.RowIterator, error) {
	return t.systables.Open(name)
}

func (t *Table) resolveBucketKeyIdx(ts *schema.TableSchema) []int {
	if len(t.cfg.BucketKeys) > 0 {
		return fieldIndexes(t.valueType, t.cfg.BucketKeys)
	}
	if len(ts.PrimaryKeys) > 0 {
		return fieldIndexes(t.valueType, nonPartitionKeys(ts.PrimaryKeys, ts.PartitionKeys))
	}
	idx := make([]int, len(t.valueType.Fields))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func fieldIndexes(rt *types.RowType, names []string) []int {
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = rt.IndexOf(n)
	}
	return idx
}

func nonPartitionKeys(keys, partitionKeys []string) []string {
	partSet := make(map[string]bool, len(partitionKeys))
	for _, k := range partitionKeys {
		partSet[k] = true
	}
	var out []string
	for _, k := range keys {
		if !partSet[k] {
			out = append(out, k)
		}
	}
	return out
}

// nonPartitionRowType drops partition columns from rt: their values live in
// the directory path (internal/layout.PartitionPath), never in file content.
func nonPartitionRowType(rt *types.RowType, partitionKeys []string) *types.RowType {
	partSet := make(map[string]bool, len(partitionKeys))
	for _, k := range partitionKeys {
		partSet[k] = true
	}
	fields := make([]types.Field, 0, len(rt.Fields))
	for _, f := range rt.Fields {
		if !partSet[f.Name] {
			fields = append(fields, f)
		}
	}
	return types.NewRowType(fields...)
}

// isPrimaryKeyTable mirrors internal/scan's definition: a table is
// primary-keyed when it has key fields outside its partition columns.
func isPrimaryKeyTable(primaryKeys, partitionKeys []string) bool {
	return len(nonPartitionKeys(primaryKeys, partitionKeys)) > 0
}

func (t *Table) partitionPathOf(row []any) string {
	values := make([]string, len(t.partitionIdx))
	for i, idx := range t.partitionIdx {
		values[i] = toPartitionString(row[idx])
	}
	return t.layoutMgr.PartitionPath(values)
}

func toPartitionString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
