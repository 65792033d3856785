package query

import (
	"strings"
)

// Lexer tokenizes a single filter entry
type Lexer struct {
	input string
	pos   int
	ch    rune
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character
func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = rune(l.input[l.pos])
	}
	l.pos++
}

// peekChar looks at the next character without advancing
func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return rune(l.input[l.pos])
}

// isLetter reports whether ch may appear in a column name. Only ASCII
// letters and underscores are accepted.
func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

// readNumber reads an optionally signed decimal number. It returns false when
// the text does not contain at least one digit.
func (l *Lexer) readNumber() (string, bool) {
	var result strings.Builder
	digits := 0

	if l.ch == '-' || l.ch == '+' {
		result.WriteRune(l.ch)
		l.readChar()
	}
	for isDigit(l.ch) {
		result.WriteRune(l.ch)
		digits++
		l.readChar()
	}
	if l.ch == '.' {
		result.WriteRune(l.ch)
		l.readChar()
		for isDigit(l.ch) {
			result.WriteRune(l.ch)
			digits++
			l.readChar()
		}
	}

	return result.String(), digits > 0
}

// readIdentifier reads a column name: letters and underscores only
func (l *Lexer) readIdentifier() string {
	var result strings.Builder
	for isLetter(l.ch) {
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String()
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	var tok Token

	switch l.ch {
	case 0:
		tok = Token{Type: TokenEOF, Value: ""}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenEqual, Value: "=="}
		} else {
			tok = Token{Type: TokenEqual, Value: "="}
		}
		l.readChar()
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenNotEqual, Value: "!="}
			l.readChar()
		} else {
			tok = Token{Type: TokenError, Value: "!"}
			l.readChar()
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenLessEqual, Value: "<="}
			l.readChar()
		} else {
			tok = Token{Type: TokenLess, Value: "<"}
			l.readChar()
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenGreaterEqual, Value: ">="}
			l.readChar()
		} else {
			tok = Token{Type: TokenGreater, Value: ">"}
			l.readChar()
		}
	default:
		if isDigit(l.ch) || l.ch == '-' || l.ch == '+' || l.ch == '.' {
			value, ok := l.readNumber()
			if ok {
				tok = Token{Type: TokenNumber, Value: value}
			} else {
				tok = Token{Type: TokenError, Value: value}
			}
		} else if isLetter(l.ch) {
			tok = Token{Type: TokenIdent, Value: l.readIdentifier()}
		} else {
			tok = Token{Type: TokenError, Value: string(l.ch)}
			l.readChar()
		}
	}

	return tok
}

// Tokenize returns all tokens from the input
func Tokenize(input string) []Token {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok := lexer.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}

	return tokens
}
