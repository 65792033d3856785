package query

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"

	"github.com/segmentio/parquet-go"

	"github.com/vegasq/parslice/internal/table"
)

var (
	// ErrUnsupportedType is returned when a predicate references a column
	// whose type cannot be compared.
	ErrUnsupportedType = errors.New("unsupported column type")

	// ErrLiteralType is returned when a predicate literal does not parse
	// into the referenced column's native type.
	ErrLiteralType = errors.New("literal does not match column type")
)

// Evaluate computes the row mask of a batch. The mask starts all-true and is
// AND-reduced across predicates in order. A null cell never satisfies a
// predicate, whatever the operator. A predicate on a column the batch does not
// carry drops every row.
func Evaluate(b table.Batch, predicates []Predicate) (table.Mask, error) {
	mask := table.NewMask(b.NumRows)
	for _, p := range predicates {
		col, ok := b.Column(p.Column)
		if !ok {
			for i := range mask {
				mask[i] = false
			}
			continue
		}
		if err := applyPredicate(mask, col, p); err != nil {
			return nil, err
		}
	}
	return mask, nil
}

// Check validates predicates against the source columns before any row is
// read, reporting the ErrUnsupportedType and ErrLiteralType errors Evaluate
// would return. Predicates on columns the source does not have pass.
func Check(columns []table.ColumnSchema, predicates []Predicate) error {
	for _, p := range predicates {
		for _, cs := range columns {
			if cs.Name != p.Column {
				continue
			}
			col := table.Column{Name: cs.Name, Type: cs.Type}
			if err := applyPredicate(nil, &col, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyPredicate dispatches on the column's native type.
func applyPredicate(mask table.Mask, col *table.Column, p Predicate) error {
	switch col.Type {
	case table.TypeBoolean:
		lit, err := strconv.ParseBool(p.Literal)
		if err != nil {
			return literalError(col, p, err)
		}
		compareColumn(mask, col.Values, p.Operator, boolRank(lit), func(v parquet.Value) int8 { return boolRank(v.Boolean()) })
	case table.TypeInt8:
		lit, err := parseInt[int8](p.Literal, 8)
		if err != nil {
			return literalError(col, p, err)
		}
		compareColumn(mask, col.Values, p.Operator, lit, func(v parquet.Value) int8 { return int8(v.Int32()) })
	case table.TypeInt16:
		lit, err := parseInt[int16](p.Literal, 16)
		if err != nil {
			return literalError(col, p, err)
		}
		compareColumn(mask, col.Values, p.Operator, lit, func(v parquet.Value) int16 { return int16(v.Int32()) })
	case table.TypeInt32:
		lit, err := parseInt[int32](p.Literal, 32)
		if err != nil {
			return literalError(col, p, err)
		}
		compareColumn(mask, col.Values, p.Operator, lit, parquet.Value.Int32)
	case table.TypeInt64:
		lit, err := parseInt[int64](p.Literal, 64)
		if err != nil {
			return literalError(col, p, err)
		}
		compareColumn(mask, col.Values, p.Operator, lit, parquet.Value.Int64)
	case table.TypeFloat32:
		lit, err := parseFloat[float32](p.Literal, 32)
		if err != nil {
			return literalError(col, p, err)
		}
		compareColumn(mask, col.Values, p.Operator, lit, parquet.Value.Float)
	case table.TypeFloat64:
		lit, err := parseFloat[float64](p.Literal, 64)
		if err != nil {
			return literalError(col, p, err)
		}
		compareColumn(mask, col.Values, p.Operator, lit, parquet.Value.Double)
	default:
		return fmt.Errorf("%w: filter %q references column %q of type %s", ErrUnsupportedType, p, col.Name, col.Type)
	}
	return nil
}

// compareColumn ANDs the comparison of every non-null cell against the
// literal into the mask. Rows already dropped are not evaluated.
func compareColumn[T cmp.Ordered](mask table.Mask, values []parquet.Value, op Operator, literal T, native func(parquet.Value) T) {
	for i, v := range values {
		if !mask[i] {
			continue
		}
		if v.IsNull() {
			mask[i] = false
			continue
		}
		mask[i] = compare(native(v), op, literal)
	}
}

// compare compares two values of the same native type using the given operator
func compare[T cmp.Ordered](left T, op Operator, right T) bool {
	switch op {
	case OpLT:
		return left < right
	case OpLE:
		return left <= right
	case OpGT:
		return left > right
	case OpGE:
		return left >= right
	case OpEQ:
		return left == right
	case OpNE:
		return left != right
	default:
		return false
	}
}

func parseInt[T int8 | int16 | int32 | int64](s string, bits int) (T, error) {
	n, err := strconv.ParseInt(s, 10, bits)
	return T(n), err
}

func parseFloat[T float32 | float64](s string, bits int) (T, error) {
	f, err := strconv.ParseFloat(s, bits)
	return T(f), err
}

// boolRank orders booleans as false < true.
func boolRank(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

func literalError(col *table.Column, p Predicate, err error) error {
	return fmt.Errorf("%w: %q is not a valid %s for column %q: %v", ErrLiteralType, p.Literal, col.Type, col.Name, err)
}
