package output

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/vegasq/parslice/internal/reader"
)

// TableFormatter outputs a schema as an aligned text table
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// Format renders one table row per column
func (f *TableFormatter) Format(infos []reader.SchemaInfo) error {
	tw := tablewriter.NewWriter(f.writer)
	tw.SetHeader(schemaHeader())
	tw.SetAutoFormatHeaders(false)
	for _, info := range infos {
		tw.Append(schemaRecord(info))
	}
	tw.Render()
	return nil
}
