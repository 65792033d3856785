package table

import "github.com/segmentio/parquet-go"

// Reconcile reshapes a batch to the canonical schema. Columns present in the
// batch are reused by name, missing ones are synthesized as all-null columns of
// the declared type. The result always has exactly the schema's columns, in
// schema order.
func Reconcile(b Batch, s *Schema) Batch {
	columns := make([]Column, len(s.Columns))
	for i, cs := range s.Columns {
		if c, ok := b.Column(cs.Name); ok {
			columns[i] = Column{Name: cs.Name, Type: cs.Type, Values: c.Values}
			continue
		}
		columns[i] = NullColumn(cs, b.NumRows)
	}
	return Batch{Columns: columns, NumRows: b.NumRows}
}

// Compact keeps the rows whose mask entry is true, preserving their relative
// order. The mask length must equal the batch row count.
func Compact(b Batch, mask Mask) Batch {
	kept := mask.Count()
	if kept == b.NumRows {
		return b
	}

	columns := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		values := make([]parquet.Value, 0, kept)
		for row, keep := range mask {
			if keep {
				values = append(values, c.Values[row])
			}
		}
		columns[i] = Column{Name: c.Name, Type: c.Type, Values: values}
	}
	return Batch{Columns: columns, NumRows: kept}
}

// Project nulls out every canonical column that is not selected. The batch
// keeps its full shape. The schema's index column, when present, is always
// retained verbatim.
func Project(b Batch, s *Schema, selected map[string]bool) Batch {
	columns := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		if selected[c.Name] || (s.Index != "" && c.Name == s.Index) {
			columns[i] = c
			continue
		}
		columns[i] = Column{Name: c.Name, Type: c.Type, Values: make([]parquet.Value, b.NumRows)}
	}
	return Batch{Columns: columns, NumRows: b.NumRows}
}
