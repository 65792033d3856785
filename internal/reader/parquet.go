// Package reader streams Apache Parquet files as bounded columnar batches.
//
// It uses the segmentio/parquet-go library to decode row groups and returns
// the rows of a file as table.Batch values of at most the requested size, in
// file order.
package reader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/segmentio/parquet-go"

	"github.com/vegasq/parslice/internal/table"
)

// ErrNestedColumn is returned when a file declares a group or repeated
// column. Only flat schemas can be subset.
var ErrNestedColumn = errors.New("nested or repeated columns are not supported")

// ErrInvalidFile is returned when a file cannot be decoded as parquet, such
// as a missing magic number or a corrupt footer.
var ErrInvalidFile = errors.New("not a readable parquet file")

// Reader reads a parquet file batch by batch.
//
// It maintains both an OS file handle and a parquet file handle to enable
// proper resource cleanup.
type Reader struct {
	file    *os.File
	pqFile  *parquet.File
	rows    *parquet.Reader
	columns []table.ColumnSchema

	buf []parquet.Row
	eof bool
}

// NewReader opens the parquet file at path and resolves its column schema.
//
// A missing file yields an error wrapping os.ErrNotExist. A file whose
// schema is not flat yields an error wrapping ErrNestedColumn, and one that
// is not parquet at all an error wrapping ErrInvalidFile.
//
// Example:
//
//	r, err := NewReader("Norder=3/Dir=0/Npix=1.parquet")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		file.Close()
		return nil, fmt.Errorf("failed to open file: %s is a directory", path)
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	columns, err := sourceColumns(pqFile.Schema())
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Reader{
		file:    file,
		pqFile:  pqFile,
		columns: columns,
	}, nil
}

// Schema returns the parquet file schema.
func (r *Reader) Schema() *parquet.Schema {
	return r.pqFile.Schema()
}

// Columns returns the top-level columns of the file in declaration order.
func (r *Reader) Columns() []table.ColumnSchema {
	return r.columns
}

// Metadata returns the file-level key-value metadata in file order.
func (r *Reader) Metadata() []table.KeyValue {
	kvs := r.pqFile.Metadata().KeyValueMetadata
	meta := make([]table.KeyValue, 0, len(kvs))
	for _, kv := range kvs {
		meta = append(meta, table.KeyValue{Key: kv.Key, Value: kv.Value})
	}
	return meta
}

// NumRows returns the total number of rows declared by the file footer.
func (r *Reader) NumRows() int64 {
	return r.pqFile.NumRows()
}

// ReadBatch reads up to n rows and returns them as a batch whose columns
// follow the file's declaration order. It returns io.EOF once every row has
// been returned; a final short batch is returned with a nil error.
func (r *Reader) ReadBatch(n int) (table.Batch, error) {
	if n <= 0 {
		return table.Batch{}, fmt.Errorf("invalid batch size %d", n)
	}
	if r.eof {
		return table.Batch{}, io.EOF
	}
	if r.rows == nil {
		r.rows = parquet.NewReader(r.pqFile)
	}
	if cap(r.buf) < n {
		r.buf = make([]parquet.Row, n)
	}
	buf := r.buf[:n]

	count, err := r.rows.ReadRows(buf)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return table.Batch{}, fmt.Errorf("failed to read rows: %w", err)
		}
		r.eof = true
		if count == 0 {
			return table.Batch{}, io.EOF
		}
	}

	return r.toBatch(buf[:count])
}

// toBatch transposes rows into columns. Values are cloned because the
// parquet reader reuses its buffers between calls.
func (r *Reader) toBatch(rows []parquet.Row) (table.Batch, error) {
	columns := make([]table.Column, len(r.columns))
	for i, cs := range r.columns {
		columns[i] = table.Column{
			Name:   cs.Name,
			Type:   cs.Type,
			Values: make([]parquet.Value, 0, len(rows)),
		}
	}

	for _, row := range rows {
		for _, v := range row {
			idx := v.Column()
			if idx < 0 || idx >= len(columns) {
				return table.Batch{}, fmt.Errorf("row value references unknown column %d", idx)
			}
			columns[idx].Values = append(columns[idx].Values, v.Clone())
		}
	}

	return table.NewBatch(columns)
}

// Close closes the parquet reader and releases associated resources.
//
// It is safe to call Close multiple times.
func (r *Reader) Close() error {
	if r.rows != nil {
		r.rows.Close()
		r.rows = nil
	}
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
