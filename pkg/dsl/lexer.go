package dsl

import (
	"strings"
	"unicode"
)

// Lexer tokenizes pipe-language source code.
type Lexer struct {
	input  string
	pos    int
	line   int
	col    int
	depth  int // open parentheses and brackets
	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		line:  1,
		col:   1,
	}
}

var twoCharOps = map[string]TokenType{
	"|>": TokenPipe,
	"||": TokenOr,
	"&&": TokenAnd,
	"==": TokenEQ,
	"!=": TokenNE,
	"<=": TokenLE,
	">=": TokenGE,
}

var oneCharOps = map[byte]TokenType{
	'=': TokenAssign,
	'!': TokenNot,
	'<': TokenLT,
	'>': TokenGT,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'%': TokenPercent,
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	',': TokenComma,
	':': TokenColon,
	'.': TokenDot,
}

// Tokenize tokenizes the entire input and returns the tokens. Newlines
// inside parentheses or brackets are not emitted, and a backslash at the
// end of a line joins it with the next.
func (l *Lexer) Tokenize() []Token {
	for l.pos < len(l.input) {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}

		ch := l.peek()

		switch {
		case ch == '\n':
			if l.depth == 0 {
				l.emit(TokenNewline, "\n", l.col)
			}
			l.newline()

		case ch == '\\' && (l.peekNext() == '\n' || l.peekNext() == '\r'):
			l.advance()
			if l.peek() == '\r' {
				l.advance()
			}
			l.newline()

		case ch == '#':
			l.scanComment()

		case ch == '"' || ch == '\'':
			l.scanString(ch)

		case ch == '`':
			l.scanQuotedIdent()

		case ch == '-' && unicode.IsDigit(rune(l.peekNext())) && !l.afterOperand():
			l.scanNumber()

		case unicode.IsDigit(rune(ch)):
			l.scanNumber()

		case unicode.IsLetter(rune(ch)) || ch == '_':
			l.scanIdentifier()

		default:
			l.scanOperator()
		}
	}

	l.emit(TokenEOF, "", l.col)
	return l.tokens
}

func (l *Lexer) emit(typ TokenType, value string, col int) {
	l.tokens = append(l.tokens, Token{Type: typ, Value: value, Line: l.line, Col: col})
}

// afterOperand reports whether the previous token ends an operand, in
// which case a following '-' is subtraction.
func (l *Lexer) afterOperand() bool {
	if len(l.tokens) == 0 {
		return false
	}
	switch l.tokens[len(l.tokens)-1].Type {
	case TokenIdent, TokenInt, TokenFloat, TokenString, TokenRParen, TokenRBracket,
		TokenTrue, TokenFalse, TokenNull:
		return true
	}
	return false
}

func (l *Lexer) scanOperator() {
	startCol := l.col
	if l.pos+1 < len(l.input) {
		if typ, ok := twoCharOps[l.input[l.pos:l.pos+2]]; ok {
			l.emit(typ, l.input[l.pos:l.pos+2], startCol)
			l.advance()
			l.advance()
			return
		}
	}

	ch := l.peek()
	typ, ok := oneCharOps[ch]
	if !ok {
		l.emit(TokenIllegal, string(ch), startCol)
		l.advance()
		return
	}
	switch typ {
	case TokenLParen, TokenLBracket:
		l.depth++
	case TokenRParen, TokenRBracket:
		if l.depth > 0 {
			l.depth--
		}
	}
	l.emit(typ, string(ch), startCol)
	l.advance()
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		l.pos++
		l.col++
	}
}

func (l *Lexer) newline() {
	l.pos++
	l.line++
	l.col = 1
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch != ' ' && ch != '\t' && ch != '\r' {
			return
		}
		l.advance()
	}
}

func (l *Lexer) scanComment() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.advance()
	}
}

var escapes = map[byte]byte{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'\\': '\\',
	'"':  '"',
	'\'': '\'',
}

func (l *Lexer) scanString(quote byte) {
	startLine, startCol := l.line, l.col
	l.advance() // opening quote

	var sb strings.Builder
	for l.pos < len(l.input) && l.input[l.pos] != quote {
		ch := l.input[l.pos]
		switch {
		case ch == '\\' && l.pos+1 < len(l.input):
			if esc, ok := escapes[l.input[l.pos+1]]; ok {
				sb.WriteByte(esc)
				l.advance()
				l.advance()
				continue
			}
			sb.WriteByte(ch)
			l.advance()
		case ch == '\n':
			sb.WriteByte(ch)
			l.newline()
		default:
			sb.WriteByte(ch)
			l.advance()
		}
	}

	if l.pos >= len(l.input) {
		l.tokens = append(l.tokens, Token{Type: TokenIllegal, Value: "unterminated string", Line: startLine, Col: startCol})
		return
	}
	l.advance() // closing quote
	l.tokens = append(l.tokens, Token{Type: TokenString, Value: sb.String(), Line: startLine, Col: startCol})
}

// scanQuotedIdent reads a `backquoted` column name, which may contain
// spaces or punctuation.
func (l *Lexer) scanQuotedIdent() {
	startCol := l.col
	l.advance()
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '`' && l.input[l.pos] != '\n' {
		l.advance()
	}
	if l.peek() != '`' {
		l.emit(TokenIllegal, "unterminated identifier", startCol)
		return
	}
	value := l.input[start:l.pos]
	l.advance()
	l.emit(TokenIdent, value, startCol)
}

func (l *Lexer) scanNumber() {
	startCol := l.col
	start := l.pos
	isFloat := false

	if l.peek() == '-' {
		l.advance()
	}
	l.scanDigits()

	// A dot followed by a digit is a decimal point, not member access.
	if l.peek() == '.' && unicode.IsDigit(rune(l.peekNext())) {
		isFloat = true
		l.advance()
		l.scanDigits()
	}

	if c := l.peek(); c == 'e' || c == 'E' {
		next := l.peekNext()
		signed := (next == '+' || next == '-') && l.pos+2 < len(l.input) && unicode.IsDigit(rune(l.input[l.pos+2]))
		if unicode.IsDigit(rune(next)) || signed {
			isFloat = true
			l.advance()
			if signed {
				l.advance()
			}
			l.scanDigits()
		}
	}

	typ := TokenInt
	if isFloat {
		typ = TokenFloat
	}
	l.emit(typ, l.input[start:l.pos], startCol)
}

func (l *Lexer) scanDigits() {
	for l.pos < len(l.input) && (unicode.IsDigit(rune(l.input[l.pos])) || l.input[l.pos] == '_') {
		l.advance()
	}
}

func (l *Lexer) scanIdentifier() {
	startCol := l.col
	start := l.pos

	l.advance()
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if !unicode.IsLetter(rune(ch)) && !unicode.IsDigit(rune(ch)) && ch != '_' {
			break
		}
		l.advance()
	}

	value := l.input[start:l.pos]
	l.emit(LookupIdent(strings.ToLower(value)), value, startCol)
}
