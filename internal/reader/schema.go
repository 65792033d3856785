package reader

import (
	"fmt"

	"github.com/segmentio/parquet-go"
	"github.com/segmentio/parquet-go/format"

	"github.com/vegasq/parslice/internal/table"
)

// SchemaInfo represents metadata about a single column in a Parquet file.
type SchemaInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	PhysicalType string `json:"physical_type"`
	LogicalType  string `json:"logical_type"`
	Filterable   bool   `json:"filterable"`
	Required     bool   `json:"required"`
	Optional     bool   `json:"optional"`
}

// ExtractSchemaInfo describes every top-level column of the file at path.
func ExtractSchemaInfo(path string) ([]SchemaInfo, error) {
	reader, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Schema().Fields()
	infos := make([]SchemaInfo, 0, len(fields))
	for i, field := range fields {
		infos = append(infos, SchemaInfo{
			Name:         field.Name(),
			Type:         getUserFriendlyType(field),
			PhysicalType: getPhysicalType(field),
			LogicalType:  getLogicalType(field),
			Filterable:   reader.columns[i].Type.Comparable(),
			Required:     field.Required(),
			Optional:     field.Optional(),
		})
	}
	return infos, nil
}

// sourceColumns maps the top-level fields of a schema to column schemas.
// Groups and repeated fields are rejected.
func sourceColumns(schema *parquet.Schema) ([]table.ColumnSchema, error) {
	fields := schema.Fields()
	columns := make([]table.ColumnSchema, 0, len(fields))
	for _, field := range fields {
		if !field.Leaf() || field.Repeated() {
			return nil, fmt.Errorf("column %q: %w", field.Name(), ErrNestedColumn)
		}
		columns = append(columns, table.ColumnSchema{
			Name: field.Name(),
			Type: columnType(field),
			Node: field,
		})
	}
	return columns, nil
}

// columnType returns the native type predicates compare a column as.
// Unsigned integers and annotated types other than signed integers are
// not comparable.
func columnType(field parquet.Field) table.Type {
	typ := field.Type()
	lt := typ.LogicalType()

	switch typ.Kind() {
	case parquet.Boolean:
		if lt == nil {
			return table.TypeBoolean
		}
	case parquet.Int32:
		if lt == nil {
			return table.TypeInt32
		}
		if lt.Integer != nil && lt.Integer.IsSigned {
			switch lt.Integer.BitWidth {
			case 8:
				return table.TypeInt8
			case 16:
				return table.TypeInt16
			case 32:
				return table.TypeInt32
			}
		}
	case parquet.Int64:
		if lt == nil || (lt.Integer != nil && lt.Integer.IsSigned && lt.Integer.BitWidth == 64) {
			return table.TypeInt64
		}
	case parquet.Float:
		if lt == nil {
			return table.TypeFloat32
		}
	case parquet.Double:
		if lt == nil {
			return table.TypeFloat64
		}
	}
	return table.TypeOther
}

// getPhysicalType returns the physical type name of a Parquet field.
func getPhysicalType(field parquet.Field) string {
	if !field.Leaf() {
		return "GROUP"
	}

	switch field.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}

// getLogicalType returns the logical type annotation of a Parquet field, or
// an empty string when it has none.
func getLogicalType(field parquet.Field) string {
	if !field.Leaf() {
		return ""
	}
	return logicalName(field.Type().LogicalType())
}

func logicalName(lt *format.LogicalType) string {
	switch {
	case lt == nil:
		return ""
	case lt.UTF8 != nil:
		return "STRING"
	case lt.Enum != nil:
		return "ENUM"
	case lt.UUID != nil:
		return "UUID"
	case lt.Integer != nil:
		if lt.Integer.IsSigned {
			return fmt.Sprintf("INT(%d,true)", lt.Integer.BitWidth)
		}
		return fmt.Sprintf("INT(%d,false)", lt.Integer.BitWidth)
	case lt.Date != nil:
		return "DATE"
	case lt.Time != nil:
		return "TIME"
	case lt.Timestamp != nil:
		return "TIMESTAMP"
	case lt.Decimal != nil:
		return "DECIMAL"
	case lt.Json != nil:
		return "JSON"
	case lt.Bson != nil:
		return "BSON"
	default:
		return "UNKNOWN"
	}
}

// getUserFriendlyType returns a user-friendly type name for a Parquet field.
//
// This converts Parquet's physical and logical types into simpler, more
// recognizable type names for end users.
func getUserFriendlyType(field parquet.Field) string {
	if !field.Leaf() {
		return "GROUP"
	}

	if t := columnType(field); t != table.TypeOther {
		return t.String()
	}

	lt := field.Type().LogicalType()
	switch {
	case lt == nil:
	case lt.UTF8 != nil:
		return "STRING"
	case lt.Integer != nil && !lt.Integer.IsSigned:
		return fmt.Sprintf("UINT%d", lt.Integer.BitWidth)
	default:
		return logicalName(lt)
	}

	switch field.Type().Kind() {
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	case parquet.Int96:
		return "INT96"
	default:
		return "UNKNOWN"
	}
}
