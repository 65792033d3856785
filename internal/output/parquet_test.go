package output

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/parquet-go"

	"github.com/vegasq/parslice/internal/reader"
	"github.com/vegasq/parslice/internal/table"
)

func canonical() *table.Schema {
	return &table.Schema{
		Columns: []table.ColumnSchema{
			{Name: "RA", Type: table.TypeFloat64},
			{Name: "DEC", Type: table.TypeFloat64},
			{Name: "MAG", Type: table.TypeFloat32},
			{Name: "flag", Type: table.TypeInt16},
		},
		Metadata: []table.KeyValue{{Key: "hipscat", Value: "order=3"}},
	}
}

func sampleBatch() table.Batch {
	return table.Batch{NumRows: 3, Columns: []table.Column{
		{Name: "RA", Type: table.TypeFloat64, Values: []parquet.Value{
			parquet.ValueOf(10.0), parquet.ValueOf(20.0), parquet.ValueOf(30.0),
		}},
		{Name: "DEC", Type: table.TypeFloat64, Values: []parquet.Value{
			parquet.ValueOf(-1.0), {}, parquet.ValueOf(-3.0),
		}},
		{Name: "MAG", Type: table.TypeFloat32, Values: make([]parquet.Value, 3)},
		{Name: "flag", Type: table.TypeInt16, Values: []parquet.Value{
			parquet.ValueOf(int32(1)), parquet.ValueOf(int32(2)), parquet.ValueOf(int32(3)),
		}},
	}}
}

func decode(t *testing.T, data []byte) *reader.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.parquet")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := reader.NewReader(path)
	if err != nil {
		t.Fatalf("output is not a readable parquet file: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func readAll(t *testing.T, r *reader.Reader) table.Batch {
	t.Helper()
	var all table.Batch
	for {
		b, err := r.ReadBatch(1024)
		if errors.Is(err, io.EOF) {
			return all
		}
		if err != nil {
			t.Fatalf("ReadBatch() error = %v", err)
		}
		if all.Columns == nil {
			all = b
			continue
		}
		for i := range all.Columns {
			all.Columns[i].Values = append(all.Columns[i].Values, b.Columns[i].Values...)
		}
		all.NumRows += b.NumRows
	}
}

func TestParquetEncoder_RoundTrip(t *testing.T) {
	enc := NewParquetEncoder(canonical(), nil)
	if err := enc.WriteBatch(sampleBatch()); err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	data, err := enc.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	r := decode(t, data)

	cols := r.Columns()
	wantNames := []string{"RA", "DEC", "MAG", "flag"}
	if len(cols) != len(wantNames) {
		t.Fatalf("output has %d columns, want %d", len(cols), len(wantNames))
	}
	for i, name := range wantNames {
		if cols[i].Name != name {
			t.Errorf("column %d = %q, want %q", i, cols[i].Name, name)
		}
	}
	if cols[3].Type != table.TypeInt16 {
		t.Errorf("flag type = %v, want INT16", cols[3].Type)
	}

	got := readAll(t, r)
	if got.NumRows != 3 {
		t.Fatalf("output has %d rows, want 3", got.NumRows)
	}
	ra, _ := got.Column("RA")
	if ra.Values[2].Double() != 30 {
		t.Errorf("RA[2] = %v, want 30", ra.Values[2])
	}
	dec, _ := got.Column("DEC")
	if !dec.Values[1].IsNull() || dec.Values[2].Double() != -3 {
		t.Errorf("DEC = %v, want [-1 null -3]", dec.Values)
	}
	mag, _ := got.Column("MAG")
	for i, v := range mag.Values {
		if !v.IsNull() {
			t.Errorf("MAG[%d] = %v, want null", i, v)
		}
	}

	found := false
	for _, kv := range r.Metadata() {
		if kv.Key == "hipscat" && kv.Value == "order=3" {
			found = true
		}
	}
	if !found {
		t.Errorf("metadata = %v, want hipscat=order=3", r.Metadata())
	}
}

func TestParquetEncoder_MetadataOrder(t *testing.T) {
	s := canonical()
	s.Metadata = []table.KeyValue{
		{Key: "zeta", Value: "1"},
		{Key: "alpha", Value: "2"},
		{Key: "mid", Value: `{"order": 3}`},
	}
	enc := NewParquetEncoder(s, nil)
	data, err := enc.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := decode(t, data).Metadata()
	if len(got) != len(s.Metadata) {
		t.Fatalf("metadata = %v, want %v", got, s.Metadata)
	}
	for i, kv := range s.Metadata {
		if got[i] != kv {
			t.Errorf("metadata[%d] = %v, want %v", i, got[i], kv)
		}
	}
}

func TestParquetEncoder_NoRows(t *testing.T) {
	enc := NewParquetEncoder(canonical(), nil)
	if err := enc.WriteBatch(table.Batch{}); err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	data, err := enc.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("an empty result must still be a complete parquet file")
	}

	r := decode(t, data)
	if len(r.Columns()) != 4 {
		t.Errorf("output has %d columns, want 4", len(r.Columns()))
	}
	if r.NumRows() != 0 {
		t.Errorf("output has %d rows, want 0", r.NumRows())
	}
}

func TestParquetEncoder_Codecs(t *testing.T) {
	for _, name := range []string{"snappy", "zstd", "gzip", "lz4", "brotli", "none"} {
		t.Run(name, func(t *testing.T) {
			codec, err := Codec(name)
			if err != nil {
				t.Fatalf("Codec(%q) error = %v", name, err)
			}
			enc := NewParquetEncoder(canonical(), codec)
			if err := enc.WriteBatch(sampleBatch()); err != nil {
				t.Fatalf("WriteBatch() error = %v", err)
			}
			data, err := enc.Close()
			if err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			if got := readAll(t, decode(t, data)); got.NumRows != 3 {
				t.Errorf("output has %d rows, want 3", got.NumRows)
			}
		})
	}

	if _, err := Codec("rar"); err == nil {
		t.Error("Codec(rar) should fail")
	}
}

func TestParquetEncoder_ShapeMismatch(t *testing.T) {
	enc := NewParquetEncoder(canonical(), nil)
	b := sampleBatch()
	b.Columns = b.Columns[:2]
	if err := enc.WriteBatch(b); err == nil {
		t.Error("WriteBatch() should reject a batch that does not match the schema")
	}

	b = sampleBatch()
	b.Columns[0], b.Columns[1] = b.Columns[1], b.Columns[0]
	if err := enc.WriteBatch(b); err == nil {
		t.Error("WriteBatch() should reject columns out of canonical order")
	}
}

func TestParquetEncoder_Discard(t *testing.T) {
	enc := NewParquetEncoder(canonical(), nil)
	if err := enc.WriteBatch(sampleBatch()); err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	enc.Discard()

	if err := enc.WriteBatch(sampleBatch()); !errors.Is(err, ErrEncoderClosed) {
		t.Errorf("WriteBatch() after Discard error = %v, want ErrEncoderClosed", err)
	}
	if data, err := enc.Close(); !errors.Is(err, ErrEncoderClosed) || data != nil {
		t.Errorf("Close() after Discard = (%d bytes, %v), want ErrEncoderClosed", len(data), err)
	}
}

func TestNewSchema_KeepsOrder(t *testing.T) {
	s := &table.Schema{Columns: []table.ColumnSchema{
		{Name: "zeta", Type: table.TypeInt64},
		{Name: "alpha", Type: table.TypeBoolean},
		{Name: "mid", Type: table.TypeOther},
	}}

	fields := NewSchema(s).Fields()
	want := []string{"zeta", "alpha", "mid"}
	if len(fields) != len(want) {
		t.Fatalf("schema has %d fields, want %d", len(fields), len(want))
	}
	for i, f := range fields {
		if f.Name() != want[i] {
			t.Errorf("field %d = %q, want %q", i, f.Name(), want[i])
		}
		if !f.Optional() {
			t.Errorf("field %q should be optional", f.Name())
		}
	}
}
