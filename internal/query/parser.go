package query

import (
	"fmt"
	"strings"
)

// Recognized request parameter keys.
const (
	ParamColumns       = "columns"
	ParamColumnsLegacy = "cols"
	ParamExclude       = "exclude_cols"
	ParamFilters       = "filters"
	ParamFiltersLegacy = "query"
)

// Parser parses the tokens of a single filter entry into a Predicate
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a new parser
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		pos:    0,
	}
}

// current returns the current token
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Value: ""}
	}
	return p.tokens[p.pos]
}

// advance moves to the next token
func (p *Parser) advance() {
	p.pos++
}

// expect checks if current token matches expected type and advances
func (p *Parser) expect(tokType TokenType) (Token, error) {
	tok := p.current()
	if tok.Type != tokType {
		return tok, fmt.Errorf("expected %v, got %v %q", tokType, tok.Type, tok.Value)
	}
	p.advance()
	return tok, nil
}

// parsePredicate parses: <name><op><number>
func (p *Parser) parsePredicate() (Predicate, error) {
	column, err := p.expect(TokenIdent)
	if err != nil {
		return Predicate{}, err
	}
	if err := ValidateColumnName(column.Value); err != nil {
		return Predicate{}, err
	}

	opTok := p.current()
	op, ok := operatorOf(opTok.Type)
	if !ok {
		return Predicate{}, fmt.Errorf("expected operator, got %v %q", opTok.Type, opTok.Value)
	}
	p.advance()

	literal, err := p.expect(TokenNumber)
	if err != nil {
		return Predicate{}, err
	}

	if _, err := p.expect(TokenEOF); err != nil {
		return Predicate{}, err
	}

	return Predicate{
		Column:   column.Value,
		Operator: op,
		Literal:  literal.Value,
	}, nil
}

// ParsePredicate parses a single filter entry such as "RA>=30.0".
func ParsePredicate(entry string) (Predicate, error) {
	pred, err := NewParser(Tokenize(entry)).parsePredicate()
	if err != nil {
		return Predicate{}, fmt.Errorf("%w: invalid filter %q: %v", ErrParse, entry, err)
	}
	return pred, nil
}

// ParseFilters parses a comma-separated filter list. Filters are
// all-or-nothing: one malformed entry fails the whole list. An empty value
// yields no predicates.
func ParseFilters(value string) ([]Predicate, error) {
	if value == "" {
		return nil, nil
	}
	if err := ValidateParam(ParamFilters, value); err != nil {
		return nil, err
	}

	entries := strings.Split(value, ",")
	if err := ValidatePredicateCount(len(entries)); err != nil {
		return nil, err
	}

	predicates := make([]Predicate, 0, len(entries))
	for _, entry := range entries {
		pred, err := ParsePredicate(entry)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, pred)
	}
	return predicates, nil
}

// ParseColumns parses a comma-separated column list, dropping duplicates
// while keeping the first occurrence order.
func ParseColumns(key, value string) ([]string, error) {
	if err := ValidateParam(key, value); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	columns := make([]string, 0)
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if err := ValidateColumnName(name); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		columns = append(columns, name)
	}
	return columns, nil
}

// lookup returns the value of the first present key.
func lookup(params map[string]string, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := params[key]; ok {
			return v, true
		}
	}
	return "", false
}

// Parse builds a Request from raw request parameters.
//
// universe is the ordered set of columns the request may select from; it is
// needed to resolve exclude_cols. When both columns and exclude_cols are
// given, exclude_cols wins and the effective selection is the universe minus
// the excluded columns. Unknown parameter keys are ignored.
func Parse(params map[string]string, universe []string) (*Request, error) {
	req := &Request{}

	if value, ok := lookup(params, ParamColumns, ParamColumnsLegacy); ok {
		cols, err := ParseColumns(ParamColumns, value)
		if err != nil {
			return nil, err
		}
		req.Selected = cols
	}

	if value, ok := params[ParamExclude]; ok {
		cols, err := ParseColumns(ParamExclude, value)
		if err != nil {
			return nil, err
		}
		req.Excluded = cols
	}

	if value, ok := lookup(params, ParamFilters, ParamFiltersLegacy); ok {
		predicates, err := ParseFilters(value)
		if err != nil {
			return nil, err
		}
		req.Predicates = predicates
	}

	req.Columns = resolveSelection(req, universe)
	return req, nil
}

// resolveSelection computes the effective, ordered column selection.
func resolveSelection(req *Request, universe []string) []string {
	switch {
	case req.Excluded != nil:
		excluded := make(map[string]bool, len(req.Excluded))
		for _, c := range req.Excluded {
			excluded[c] = true
		}
		columns := make([]string, 0, len(universe))
		for _, c := range universe {
			if !excluded[c] {
				columns = append(columns, c)
			}
		}
		return columns
	case req.Selected != nil:
		return append([]string(nil), req.Selected...)
	default:
		return append([]string(nil), universe...)
	}
}
