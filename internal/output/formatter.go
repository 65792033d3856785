package output

import (
	"fmt"
	"io"

	"github.com/vegasq/parslice/internal/reader"
)

// SchemaFormatter renders the column description of a parquet file.
type SchemaFormatter interface {
	// Format writes the schema in the formatter's specific format
	Format(infos []reader.SchemaInfo) error
}

// NewSchemaFormatter returns the formatter registered under name: "table",
// "json" or "csv".
func NewSchemaFormatter(name string, w io.Writer) (SchemaFormatter, error) {
	switch name {
	case "", "table":
		return NewTableFormatter(w), nil
	case "json":
		return NewJSONFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown format %q", name)
	}
}

func schemaHeader() []string {
	return []string{"name", "type", "physical_type", "logical_type", "filterable", "optional"}
}

func schemaRecord(info reader.SchemaInfo) []string {
	return []string{
		info.Name,
		info.Type,
		info.PhysicalType,
		info.LogicalType,
		fmt.Sprintf("%t", info.Filterable),
		fmt.Sprintf("%t", info.Optional),
	}
}
