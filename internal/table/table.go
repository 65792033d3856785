// Package table defines the in-memory columnar model shared by the subsetting
// pipeline: column schemas, the canonical schema of a request, batches of typed
// columns and row masks.
//
// Cells are stored as parquet.Value so that every column keeps the exact
// physical representation it was read with. Numeric and boolean columns are
// additionally tagged with a Type so that predicates can be dispatched on the
// column's native type.
package table

import (
	"fmt"

	"github.com/segmentio/parquet-go"
)

// Type is the native type of a column as seen by the predicate evaluator.
type Type int

const (
	// TypeOther covers every column that predicates cannot compare against
	// (strings, byte arrays, dates, timestamps, unsigned integers, ...).
	TypeOther Type = iota
	TypeBoolean
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
)

// String returns the user facing name of the type.
func (t Type) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInt8:
		return "INT8"
	case TypeInt16:
		return "INT16"
	case TypeInt32:
		return "INT32"
	case TypeInt64:
		return "INT64"
	case TypeFloat32:
		return "FLOAT32"
	case TypeFloat64:
		return "FLOAT64"
	default:
		return "OTHER"
	}
}

// Comparable reports whether predicates may reference a column of this type.
func (t Type) Comparable() bool {
	return t != TypeOther
}

// ColumnSchema describes a single top-level column.
type ColumnSchema struct {
	Name string
	Type Type
	// Node is the parquet leaf node the column was declared with. The output
	// encoder re-declares the column from it.
	Node parquet.Node
}

// KeyValue is one entry of the file-level key-value metadata.
type KeyValue struct {
	Key   string
	Value string
}

// Schema is the canonical schema of a request: the ordered columns every
// output batch carries, plus the source file metadata to copy through.
//
// A Schema is derived once per request and must not be modified afterwards.
type Schema struct {
	Columns  []ColumnSchema
	Metadata []KeyValue

	// Index is the name of the system index column when it is part of the
	// canonical schema, empty otherwise.
	Index string
}

// Names returns the column names in canonical order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the column with the given name and its position.
func (s *Schema) Lookup(name string) (ColumnSchema, int, bool) {
	for i, c := range s.Columns {
		if c.Name == name {
			return c, i, true
		}
	}
	return ColumnSchema{}, -1, false
}

// Column is a named, typed, fixed-length column of a batch.
type Column struct {
	Name   string
	Type   Type
	Values []parquet.Value
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	return len(c.Values)
}

// NullColumn builds an all-null column of n rows for the given schema entry.
func NullColumn(cs ColumnSchema, n int) Column {
	// The zero parquet.Value is a null value.
	return Column{
		Name:   cs.Name,
		Type:   cs.Type,
		Values: make([]parquet.Value, n),
	}
}

// Batch is a bounded chunk of rows held column by column. All columns share
// NumRows.
type Batch struct {
	Columns []Column
	NumRows int
}

// NewBatch assembles a batch and checks that all columns have the same length.
func NewBatch(columns []Column) (Batch, error) {
	if len(columns) == 0 {
		return Batch{}, nil
	}
	n := columns[0].Len()
	for _, c := range columns[1:] {
		if c.Len() != n {
			return Batch{}, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), n)
		}
	}
	return Batch{Columns: columns, NumRows: n}, nil
}

// Column returns the column with the given name.
func (b *Batch) Column(name string) (*Column, bool) {
	for i := range b.Columns {
		if b.Columns[i].Name == name {
			return &b.Columns[i], true
		}
	}
	return nil, false
}

// Mask holds one retain/drop decision per row of a batch.
type Mask []bool

// NewMask returns an all-true mask of n rows.
func NewMask(n int) Mask {
	m := make(Mask, n)
	for i := range m {
		m[i] = true
	}
	return m
}

// Count returns the number of retained rows.
func (m Mask) Count() int {
	n := 0
	for _, keep := range m {
		if keep {
			n++
		}
	}
	return n
}

// Universe returns the names of the source columns a request may select from
// by default: every column except the system index column.
func Universe(source []ColumnSchema, index string) []string {
	names := make([]string, 0, len(source))
	for _, c := range source {
		if c.Name != index {
			names = append(names, c.Name)
		}
	}
	return names
}

// Canonical derives the canonical schema from the source columns. The system
// index column is dropped unless includeIndex is set. Metadata is copied.
func Canonical(source []ColumnSchema, metadata []KeyValue, index string, includeIndex bool) *Schema {
	s := &Schema{
		Columns:  make([]ColumnSchema, 0, len(source)),
		Metadata: append([]KeyValue(nil), metadata...),
	}
	for _, c := range source {
		if c.Name == index && index != "" {
			if !includeIndex {
				continue
			}
			s.Index = index
		}
		s.Columns = append(s.Columns, c)
	}
	return s
}
