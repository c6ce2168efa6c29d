package read

import (
	"io"
	"path/filepath"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/format"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/scan"
	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// AppendOnlyFileStoreRead opens a split's files in file order and presents
// them as a single concatenated row stream, for tables with no primary key
// and no value-count dedup.
type AppendOnlyFileStoreRead struct {
	io        fileio.FileIO
	layoutMgr *layout.Manager
	ff        format.FileFormat
	rowType   *types.RowType
}

func NewAppendOnlyFileStoreRead(io fileio.FileIO, layoutMgr *layout.Manager, ff format.FileFormat, rowType *types.RowType) *AppendOnlyFileStoreRead {
	return &AppendOnlyFileStoreRead{io: io, layoutMgr: layoutMgr, ff: ff, rowType: rowType}
}

// CreateReader returns a ConcatRecordReader over split's files, each opened
// via the file format's reader factory. Projection and predicate are
// applied to every decoded row before it is returned.
func (r *AppendOnlyFileStoreRead) CreateReader(split *scan.Split, opts Options) (RecordReader, error) {
	partitionPath := r.layoutMgr.PartitionPath(split.PartitionValues)
	bucketPath := r.layoutMgr.BucketPath(partitionPath, split.Bucket)

	paths := make([]string, len(split.Files))
	for i, f := range split.Files {
		paths[i] = filepath.Join(bucketPath, f.FileName)
	}

	return &concatRecordReader{io: r.io, ff: r.ff, rowType: r.rowType, paths: paths, opts: opts}, nil
}

// concatRecordReader lazily opens each path in order, exhausting one before
// opening the next, so only one file handle is ever held open.
type concatRecordReader struct {
	io      fileio.FileIO
	ff      format.FileFormat
	rowType *types.RowType
	paths   []string
	opts    Options

	idx     int
	closer  io.Closer
	current format.Reader
	batch   format.RecordBatch
	pos     int
}

func (c *concatRecordReader) Next() (Row, error) {
	for {
		if c.current != nil && c.pos < len(c.batch.Rows) {
			values := c.batch.Rows[c.pos]
			c.pos++
			if !c.opts.accept(values) {
				continue
			}
			return Row{Values: c.opts.project(values), Kind: 0}, nil
		}

		if c.current != nil {
			batch, err := c.current.Next()
			if err == io.EOF {
				if err := c.current.Close(); err != nil {
					return Row{}, err
				}
				if err := c.closer.Close(); err != nil {
					return Row{}, err
				}
				c.current = nil
				c.closer = nil
				continue
			}
			if err != nil {
				return Row{}, errors.New(ErrReadFailed, "failed to read append-only batch", err).AddContext("path", c.paths[c.idx-1])
			}
			c.batch = batch
			c.pos = 0
			continue
		}

		if c.idx >= len(c.paths) {
			return Row{}, io.EOF
		}
		path := c.paths[c.idx]
		c.idx++

		f, err := c.io.Open(path)
		if err != nil {
			return Row{}, errors.New(ErrOpenFailed, "failed to open append-only data file", err).AddContext("path", path)
		}
		fr, err := c.ff.NewReader(f, c.rowType)
		if err != nil {
			f.Close()
			return Row{}, errors.New(ErrOpenFailed, "failed to create format reader", err).AddContext("path", path)
		}
		c.closer = f
		c.current = fr
		c.batch = format.RecordBatch{}
		c.pos = 0
	}
}

func (c *concatRecordReader) Close() error {
	if c.current == nil {
		return nil
	}
	err1 := c.current.Close()
	err2 := c.closer.Close()
	c.current = nil
	c.closer = nil
	if err1 != nil {
		return err1
	}
	return err2
}
