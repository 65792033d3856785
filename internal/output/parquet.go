// Package output encodes subset results.
//
// The ParquetEncoder serializes reconciled batches into a complete in-memory
// Parquet file whose columns follow the canonical schema order. The schema
// formatters render column descriptions for the command line.
package output

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/parquet-go"
	"github.com/segmentio/parquet-go/compress"
	"github.com/segmentio/parquet-go/compress/brotli"
	"github.com/segmentio/parquet-go/compress/gzip"
	"github.com/segmentio/parquet-go/compress/lz4"
	"github.com/segmentio/parquet-go/compress/snappy"
	"github.com/segmentio/parquet-go/compress/uncompressed"
	"github.com/segmentio/parquet-go/compress/zstd"

	"github.com/vegasq/parslice/internal/table"
)

// ErrEncoderClosed is returned when writing to an encoder after Close or
// Discard.
var ErrEncoderClosed = errors.New("encoder is closed")

// Codec returns the compression codec registered under name. The empty
// name selects snappy.
func Codec(name string) (compress.Codec, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return &snappy.Codec{}, nil
	case "zstd":
		return &zstd.Codec{}, nil
	case "gzip":
		return &gzip.Codec{}, nil
	case "lz4":
		return &lz4.Codec{}, nil
	case "brotli":
		return &brotli.Codec{}, nil
	case "none", "uncompressed":
		return &uncompressed.Codec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression codec %q", name)
	}
}

// orderedGroup is a parquet.Group whose fields keep a caller chosen order
// instead of being sorted by name.
type orderedGroup struct {
	parquet.Group
	fields []parquet.Field
}

func (g *orderedGroup) Fields() []parquet.Field { return g.fields }

// NodeOf returns the optional leaf node a canonical column is written as.
func NodeOf(cs table.ColumnSchema) parquet.Node {
	if cs.Node != nil && cs.Node.Leaf() {
		return parquet.Optional(parquet.Leaf(cs.Node.Type()))
	}
	var node parquet.Node
	switch cs.Type {
	case table.TypeBoolean:
		node = parquet.Leaf(parquet.BooleanType)
	case table.TypeInt8:
		node = parquet.Int(8)
	case table.TypeInt16:
		node = parquet.Int(16)
	case table.TypeInt32:
		node = parquet.Leaf(parquet.Int32Type)
	case table.TypeInt64:
		node = parquet.Leaf(parquet.Int64Type)
	case table.TypeFloat32:
		node = parquet.Leaf(parquet.FloatType)
	case table.TypeFloat64:
		node = parquet.Leaf(parquet.DoubleType)
	default:
		node = parquet.Leaf(parquet.ByteArrayType)
	}
	return parquet.Optional(node)
}

// NewSchema builds the output parquet schema for a canonical schema. Columns
// keep their canonical order and are all declared optional so that projected
// and synthesized columns can carry nulls.
func NewSchema(s *table.Schema) *parquet.Schema {
	group := make(parquet.Group, len(s.Columns))
	for _, c := range s.Columns {
		group[c.Name] = NodeOf(c)
	}

	byName := make(map[string]parquet.Field, len(s.Columns))
	for _, f := range group.Fields() {
		byName[f.Name()] = f
	}
	fields := make([]parquet.Field, len(s.Columns))
	for i, c := range s.Columns {
		fields[i] = byName[c.Name]
	}

	return parquet.NewSchema("schema", &orderedGroup{Group: group, fields: fields})
}

// ParquetEncoder accumulates batches into an in-memory parquet file.
//
// An encoder is not safe for concurrent use. Bytes are only handed out by a
// successful Close; an encoder that failed or was discarded yields nothing.
type ParquetEncoder struct {
	schema  *table.Schema
	buf     *bytes.Buffer
	writer  *parquet.Writer
	rows    int64
	closed  bool
	scratch []parquet.Row
}

// NewParquetEncoder prepares an encoder for the canonical schema s. The
// schema's key-value metadata is copied into the output footer in schema
// order. parquet-go keeps one value per key, so for a repeated key the last
// value wins.
func NewParquetEncoder(s *table.Schema, codec compress.Codec) *ParquetEncoder {
	buf := new(bytes.Buffer)

	options := []parquet.WriterOption{NewSchema(s)}
	if codec != nil {
		options = append(options, parquet.Compression(codec))
	}
	writer := parquet.NewWriter(buf, options...)
	for _, kv := range s.Metadata {
		writer.SetKeyValueMetadata(kv.Key, kv.Value)
	}

	return &ParquetEncoder{
		schema: s,
		buf:    buf,
		writer: writer,
	}
}

// WriteBatch appends the rows of b. The batch must already be reconciled
// against the encoder's schema.
func (e *ParquetEncoder) WriteBatch(b table.Batch) error {
	if e.closed {
		return ErrEncoderClosed
	}
	if b.NumRows == 0 {
		return nil
	}
	if len(b.Columns) != len(e.schema.Columns) {
		return fmt.Errorf("batch has %d columns, schema has %d", len(b.Columns), len(e.schema.Columns))
	}
	for j, c := range b.Columns {
		if c.Name != e.schema.Columns[j].Name {
			return fmt.Errorf("batch column %d is %q, schema expects %q", j, c.Name, e.schema.Columns[j].Name)
		}
	}

	if cap(e.scratch) < b.NumRows {
		e.scratch = make([]parquet.Row, b.NumRows)
	}
	rows := e.scratch[:b.NumRows]
	for i := range rows {
		row := rows[i][:0]
		for j, c := range b.Columns {
			v := c.Values[i]
			if v.IsNull() {
				row = append(row, parquet.Value{}.Level(0, 0, j))
			} else {
				row = append(row, v.Level(0, 1, j))
			}
		}
		rows[i] = row
	}

	if _, err := e.writer.WriteRows(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	e.rows += int64(b.NumRows)
	return nil
}

// Rows returns the number of rows written so far.
func (e *ParquetEncoder) Rows() int64 {
	return e.rows
}

// Close finalizes the footer and returns the complete file.
func (e *ParquetEncoder) Close() ([]byte, error) {
	if e.closed {
		return nil, ErrEncoderClosed
	}
	e.closed = true
	if err := e.writer.Close(); err != nil {
		e.buf = nil
		return nil, fmt.Errorf("failed to finalize parquet output: %w", err)
	}
	data := e.buf.Bytes()
	e.buf = nil
	return data, nil
}

// Discard drops everything written so far.
func (e *ParquetEncoder) Discard() {
	e.closed = true
	e.buf = nil
	e.scratch = nil
}
