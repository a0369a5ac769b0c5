package dataset

import (
	"context"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

var arrowAllocator = memory.NewGoAllocator()

// ToRecord converts t into a single Arrow record with nullable float64 and
// utf8 columns. The caller must Release the record.
func ToRecord(t *Table) arrow.Record {
	fields := make([]arrow.Field, len(t.cols))
	for i, c := range t.cols {
		typ := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if c.Kind == String {
			typ = arrow.BinaryTypes.String
		}
		fields[i] = arrow.Field{Name: c.Name, Type: typ, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(arrowAllocator, schema)
	defer b.Release()

	for i, c := range t.cols {
		switch fb := b.Field(i).(type) {
		case *array.Float64Builder:
			fb.Reserve(len(c.Num))
			for r, v := range c.Num {
				if c.IsNull(r) {
					fb.AppendNull()
				} else {
					fb.Append(v)
				}
			}
		case *array.StringBuilder:
			fb.Reserve(len(c.Str))
			for r, v := range c.Str {
				if c.IsNull(r) {
					fb.AppendNull()
				} else {
					fb.Append(v)
				}
			}
		}
	}
	return b.NewRecord()
}

// appendArrow appends one Arrow chunk to the column named name.
func appendArrow(col *Column, arr arrow.Array) error {
	switch a := arr.(type) {
	case *array.Float64:
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				col.Num = append(col.Num, nan())
			} else {
				col.Num = append(col.Num, a.Value(i))
			}
		}
	case *array.Int64:
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				col.Num = append(col.Num, nan())
			} else {
				col.Num = append(col.Num, float64(a.Value(i)))
			}
		}
	case *array.String:
		for i := 0; i < a.Len(); i++ {
			col.Valid = append(col.Valid, !a.IsNull(i))
			if a.IsNull(i) {
				col.Str = append(col.Str, "")
			} else {
				col.Str = append(col.Str, a.Value(i))
			}
		}
	default:
		return errors.NewValidationError(col.Name, "unsupported arrow type", arr.DataType().String())
	}
	return nil
}

func columnFor(f arrow.Field) (*Column, error) {
	switch f.Type.ID() {
	case arrow.FLOAT64, arrow.INT64:
		return &Column{Name: f.Name, Kind: Numeric, Num: []float64{}}, nil
	case arrow.STRING:
		return &Column{Name: f.Name, Kind: String, Str: []string{}, Valid: []bool{}}, nil
	}
	return nil, errors.NewValidationError(f.Name, "unsupported arrow type", f.Type.String())
}

// FromRecords rebuilds a Table from records sharing schema.
func FromRecords(schema *arrow.Schema, records []arrow.Record) (*Table, error) {
	t := NewTable()
	cols := make([]*Column, schema.NumFields())
	for i, f := range schema.Fields() {
		c, err := columnFor(f)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	for _, rec := range records {
		for i := range cols {
			if err := appendArrow(cols[i], rec.Column(i)); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range cols {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteFeather checkpoints t as an Arrow IPC file (feather v2).
func WriteFeather(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	rec := ToRecord(t)
	defer rec.Release()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(arrowAllocator))
	if err != nil {
		return errors.Wrap(err, "create arrow writer")
	}
	if err := w.Write(rec); err != nil {
		return errors.Wrap(err, "write arrow record")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "close arrow writer")
	}
	log.GetLoggerWithName("dataset").Info("checkpoint written",
		log.PathKey, path, log.FormatKey, "feather", log.SamplesKey, t.NumRows())
	return f.Close()
}

// ReadFeather loads a table written by WriteFeather or by any Arrow IPC file
// writer using float64, int64 and utf8 columns.
func ReadFeather(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(arrowAllocator))
	if err != nil {
		return nil, errors.Wrapf(err, "open arrow file %s", path)
	}
	defer r.Close()

	// records returned by the reader stay valid until Close
	records := make([]arrow.Record, 0, r.NumRecords())
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, errors.Wrapf(err, "read record %d", i)
		}
		records = append(records, rec)
	}
	return FromRecords(r.Schema(), records)
}

// WriteParquet checkpoints t as a Snappy-compressed Parquet file.
func WriteParquet(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	rec := ToRecord(t)
	defer rec.Release()
	tbl := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer tbl.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	chunk := int64(t.NumRows())
	if chunk == 0 {
		chunk = 1
	}
	if err := pqarrow.WriteTable(tbl, f, chunk, props, pqarrow.DefaultWriterProps()); err != nil {
		return errors.Wrap(err, "write parquet")
	}
	log.GetLoggerWithName("dataset").Info("checkpoint written",
		log.PathKey, path, log.FormatKey, "parquet", log.SamplesKey, t.NumRows())
	return nil
}

// ReadParquet loads a Parquet file into a Table.
func ReadParquet(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	tbl, err := pqarrow.ReadTable(context.Background(), f, parquet.NewReaderProperties(arrowAllocator),
		pqarrow.ArrowReadProperties{}, arrowAllocator)
	if err != nil {
		return nil, errors.Wrapf(err, "read parquet %s", path)
	}
	defer tbl.Release()

	t := NewTable()
	schema := tbl.Schema()
	for i := 0; i < int(tbl.NumCols()); i++ {
		c, err := columnFor(schema.Field(i))
		if err != nil {
			return nil, err
		}
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			if err := appendArrow(c, chunk); err != nil {
				return nil, err
			}
		}
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}
