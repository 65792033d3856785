package output

import (
	"encoding/csv"
	"io"

	"github.com/vegasq/parslice/internal/reader"
)

// CSVFormatter outputs a schema as CSV with a header row
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// Format writes one record per column
func (c *CSVFormatter) Format(infos []reader.SchemaInfo) error {
	csvWriter := csv.NewWriter(c.writer)

	if err := csvWriter.Write(schemaHeader()); err != nil {
		return err
	}
	for _, info := range infos {
		if err := csvWriter.Write(schemaRecord(info)); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
