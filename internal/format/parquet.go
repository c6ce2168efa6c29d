package format

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// Parquet is the columnar FileFormat backing data and changelog files. It
// wraps apache/arrow-go's pqarrow writer/reader so every data file carries
// real Parquet statistics the stats extractor can read back without a full
// row-group scan.
type Parquet struct {
	Compression string
	Level       int
}

func NewParquet(compression string, level int) *Parquet {
	return &Parquet{Compression: compression, Level: level}
}

func (p *Parquet) Name() string      { return "parquet" }
func (p *Parquet) Extension() string { return "parquet" }

func (p *Parquet) NewWriter(w io.Writer, schema *types.RowType) (Writer, error) {
	arrowSchema, err := ToArrowSchema(schema)
	if err != nil {
		return nil, err
	}
	codec, err := codecFor(p.Compression)
	if err != nil {
		return nil, err
	}
	if err := ValidateCompressionLevel(p.Compression, p.Level); err != nil {
		return nil, err
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithStats(true),
	)
	fw, err := pqarrow.NewFileWriter(arrowSchema, nopCloserWriter{w}, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, errors.New(ErrEncodeFailed, "failed to open parquet writer", err)
	}

	return &parquetWriter{
		fw:     fw,
		schema: schema,
		arrow:  arrowSchema,
		alloc:  memory.NewGoAllocator(),
		stats:  make(map[int]*FieldStats),
	}, nil
}

func (p *Parquet) NewReader(r io.Reader, schema *types.RowType) (Reader, error) {
	ra, ok := r.(parquet.ReaderAtSeeker)
	if !ok {
		return nil, errors.New(ErrDecodeFailed, "parquet reader requires a ReaderAt+Seeker source", nil)
	}
	pf, err := file.NewParquetReader(ra)
	if err != nil {
		return nil, errors.New(ErrDecodeFailed, "failed to open parquet file", err)
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, errors.New(ErrDecodeFailed, "failed to create parquet arrow reader", err)
	}
	table, err := fr.ReadTable(nil)
	if err != nil {
		return nil, errors.New(ErrDecodeFailed, "failed to read parquet table", err)
	}
	return &parquetReader{schema: schema, table: table, rowIdx: 0}, nil
}

type nopCloserWriter struct{ io.Writer }

func (nopCloserWriter) Close() error { return nil }

type parquetWriter struct {
	fw     *pqarrow.FileWriter
	schema *types.RowType
	arrow  *arrow.Schema
	alloc  memory.Allocator
	stats  map[int]*FieldStats
}

func (w *parquetWriter) Write(batch RecordBatch) error {
	builders := make([]array.Builder, len(w.schema.Fields))
	for i, f := range w.schema.Fields {
		arrowType, err := toArrowType(f.Type)
		if err != nil {
			return err
		}
		builders[i] = array.NewBuilder(w.alloc, arrowType)
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for _, row := range batch.Rows {
		for i, val := range row {
			appendValue(builders[i], val)
		}
	}

	cols := make([]arrow.Array, len(builders))
	for i, b := range builders {
		cols[i] = b.NewArray()
		defer cols[i].Release()
	}

	rec := array.NewRecord(w.arrow, cols, int64(len(batch.Rows)))
	defer rec.Release()

	w.accumulateStats(rec)

	if err := w.fw.WriteBuffered(rec); err != nil {
		return errors.New(ErrEncodeFailed, "failed to write parquet record batch", err)
	}
	return nil
}

func (w *parquetWriter) accumulateStats(rec arrow.Record) {
	for i, f := range w.schema.Fields {
		st, ok := w.stats[f.ID]
		if !ok {
			st = &FieldStats{FieldID: f.ID}
			w.stats[f.ID] = st
		}
		col := rec.Column(i)
		st.ValueCount += int64(col.Len())
		st.NullCount += int64(col.NullN())
	}
}

func (w *parquetWriter) Close() ([]FieldStats, error) {
	if err := w.fw.Close(); err != nil {
		return nil, errors.New(ErrEncodeFailed, "failed to close parquet writer", err)
	}
	out := make([]FieldStats, 0, len(w.stats))
	for _, s := range w.stats {
		out = append(out, *s)
	}
	return out, nil
}

type parquetReader struct {
	schema *types.RowType
	table  arrow.Table
	rowIdx int64
}

func (r *parquetReader) Next() (RecordBatch, error) {
	if r.rowIdx >= r.table.NumRows() {
		return RecordBatch{}, io.EOF
	}

	tr := array.NewTableReader(r.table, r.table.NumRows())
	defer tr.Release()
	if !tr.Next() {
		return RecordBatch{}, io.EOF
	}
	rec := tr.Record()

	rows := make([][]any, rec.NumRows())
	for ri := range rows {
		row := make([]any, rec.NumCols())
		for ci := 0; ci < int(rec.NumCols()); ci++ {
			row[ci] = valueAt(rec.Column(ci), ri)
		}
		rows[ri] = row
	}
	r.rowIdx += rec.NumRows()

	return RecordBatch{Schema: r.schema, Rows: rows}, nil
}

func (r *parquetReader) Close() error {
	r.table.Release()
	return nil
}

func appendValue(b array.Builder, val any) {
	if val == nil {
		b.AppendNull()
		return
	}
	switch bb := b.(type) {
	case *array.BooleanBuilder:
		bb.Append(val.(bool))
	case *array.Int32Builder:
		bb.Append(toInt32(val))
	case *array.Int64Builder:
		bb.Append(toInt64(val))
	case *array.Float32Builder:
		bb.Append(float32(toFloat64(val)))
	case *array.Float64Builder:
		bb.Append(toFloat64(val))
	case *array.StringBuilder:
		bb.Append(fmt.Sprint(val))
	case *array.BinaryBuilder:
		bb.Append(val.([]byte))
	default:
		b.AppendNull()
	}
}

func valueAt(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(i)
	case *array.Int32:
		return c.Value(i)
	case *array.Int64:
		return c.Value(i)
	case *array.Float32:
		return c.Value(i)
	case *array.Float64:
		return c.Value(i)
	case *array.String:
		return c.Value(i)
	case *array.Binary:
		return c.Value(i)
	default:
		return nil
	}
}

func toInt32(v any) int32 {
	switch n := v.(type) {
	case int32:
		return n
	case int:
		return int32(n)
	case int64:
		return int32(n)
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
