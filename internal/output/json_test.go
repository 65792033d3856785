package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/vegasq/parslice/internal/reader"
)

func TestJSONFormatter_Format(t *testing.T) {
	tests := []struct {
		name  string
		infos []reader.SchemaInfo
		want  int
	}{
		{"nil renders empty array", nil, 0},
		{"two columns", sampleInfos(), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewJSONFormatter(&buf).Format(tt.infos); err != nil {
				t.Fatalf("Format() error = %v", err)
			}

			var decoded []map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("Format() produced invalid JSON: %v\n%s", err, buf.String())
			}
			if len(decoded) != tt.want {
				t.Errorf("decoded %d entries, want %d", len(decoded), tt.want)
			}
			if tt.want > 0 {
				if decoded[0]["name"] != "RA" {
					t.Errorf("first entry name = %v, want RA", decoded[0]["name"])
				}
				if decoded[0]["filterable"] != true {
					t.Errorf("first entry filterable = %v, want true", decoded[0]["filterable"])
				}
			}
		})
	}
}

func TestTableFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTableFormatter(&buf).Format(sampleInfos()); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"physical_type", "RA", "FLOAT64", "BYTE_ARRAY"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestNewSchemaFormatter(t *testing.T) {
	var buf bytes.Buffer
	for _, name := range []string{"", "table", "json", "csv"} {
		if _, err := NewSchemaFormatter(name, &buf); err != nil {
			t.Errorf("NewSchemaFormatter(%q) error = %v", name, err)
		}
	}
	if _, err := NewSchemaFormatter("xml", &buf); err == nil {
		t.Error("NewSchemaFormatter(xml) should fail")
	}
}
