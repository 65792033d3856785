package output

import (
	"io"

	"github.com/segmentio/encoding/json"

	"github.com/vegasq/parslice/internal/reader"
)

// JSONFormatter outputs a schema as an indented JSON array
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// Format writes the column descriptions as a single JSON document
func (j *JSONFormatter) Format(infos []reader.SchemaInfo) error {
	if infos == nil {
		infos = []reader.SchemaInfo{}
	}
	encoder := json.NewEncoder(j.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(infos)
}
