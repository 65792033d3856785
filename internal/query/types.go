// Package query turns raw request parameters into a validated Request and
// evaluates its predicates against batches of typed columns.
//
// Filters are a flat conjunction of single comparisons, one per
// comma-separated entry:
//
//	RA>=30.0,DEC<=-10.0,flag=1
//
// Each entry is a column name (letters and underscores), an operator
// (<, <=, >, >=, =, ==, !=) and a number. The literal is kept as text and
// parsed into the referenced column's native type when the predicate is
// evaluated.
//
// Example usage:
//
//	req, err := Parse(params, []string{"RA", "DEC", "MAG"})
//	if err != nil {
//	    return err
//	}
//	mask, err := Evaluate(batch, req.Predicates)
package query

import "fmt"

// TokenType represents the type of a token
type TokenType int

const (
	// Literals
	TokenIdent TokenType = iota
	TokenNumber

	// Operators
	TokenEqual        // = or ==
	TokenNotEqual     // !=
	TokenLess         // <
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenGreaterEqual // >=

	// Special
	TokenEOF
	TokenError
)

// String returns a readable name for error messages.
func (t TokenType) String() string {
	switch t {
	case TokenIdent:
		return "column name"
	case TokenNumber:
		return "number"
	case TokenEqual, TokenNotEqual, TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual:
		return "operator"
	case TokenEOF:
		return "end of filter"
	default:
		return "invalid character"
	}
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
}

// Operator is a comparison operator of a predicate.
type Operator int

const (
	OpLT Operator = iota
	OpLE
	OpGT
	OpGE
	OpEQ
	OpNE
)

// String returns the operator in filter syntax.
func (o Operator) String() string {
	switch o {
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	case OpEQ:
		return "="
	case OpNE:
		return "!="
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// operatorOf maps an operator token to its Operator.
func operatorOf(t TokenType) (Operator, bool) {
	switch t {
	case TokenLess:
		return OpLT, true
	case TokenLessEqual:
		return OpLE, true
	case TokenGreater:
		return OpGT, true
	case TokenGreaterEqual:
		return OpGE, true
	case TokenEqual:
		return OpEQ, true
	case TokenNotEqual:
		return OpNE, true
	default:
		return 0, false
	}
}

// Predicate is a single column/operator/literal comparison.
type Predicate struct {
	Column   string
	Operator Operator
	Literal  string
}

// String returns the predicate in filter syntax.
func (p Predicate) String() string {
	return p.Column + p.Operator.String() + p.Literal
}

// Request is the validated form of the request parameters. It is built once
// per request by Parse and is not modified afterwards.
type Request struct {
	// Selected holds the explicit `columns` list, nil when not given.
	Selected []string
	// Excluded holds the `exclude_cols` list, nil when not given.
	Excluded []string
	// Predicates are evaluated as a conjunction, in order.
	Predicates []Predicate

	// Columns is the effective selection resolved against the column
	// universe Parse was given.
	Columns []string
}

// Requests reports whether name was explicitly selected. An exclusion list
// discards the explicit selection.
func (r *Request) Requests(name string) bool {
	if r.Excluded != nil {
		return false
	}
	for _, c := range r.Selected {
		if c == name {
			return true
		}
	}
	return false
}

// Selection returns the effective selection as a set.
func (r *Request) Selection() map[string]bool {
	set := make(map[string]bool, len(r.Columns))
	for _, c := range r.Columns {
		set[c] = true
	}
	return set
}
