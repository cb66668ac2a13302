package dsl

import "fmt"

// TokenType represents the type of a DSL token.
type TokenType uint8

const (
	TokenEOF TokenType = iota
	TokenNewline
	TokenIllegal // unknown character or unterminated string
	TokenIdent   // column, variable and function names
	TokenInt     // integer literals
	TokenFloat   // float literals
	TokenString  // "quoted strings"

	// Operators
	TokenAssign  // =
	TokenPipe    // |>
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEQ      // ==
	TokenNE      // !=
	TokenLT      // <
	TokenLE      // <=
	TokenGT      // >
	TokenGE      // >=
	TokenAnd     // and, &&
	TokenOr      // or, ||
	TokenNot     // not, !
	TokenDot     // .

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenComma    // ,
	TokenColon    // :

	// Keywords
	TokenReturn // return
	TokenTrue   // true
	TokenFalse  // false
	TokenNull   // null
)

var tokenNames = [...]string{
	TokenEOF:      "EOF",
	TokenNewline:  "NEWLINE",
	TokenIllegal:  "ILLEGAL",
	TokenIdent:    "IDENT",
	TokenInt:      "INT",
	TokenFloat:    "FLOAT",
	TokenString:   "STRING",
	TokenAssign:   "=",
	TokenPipe:     "|>",
	TokenPlus:     "+",
	TokenMinus:    "-",
	TokenStar:     "*",
	TokenSlash:    "/",
	TokenPercent:  "%",
	TokenEQ:       "==",
	TokenNE:       "!=",
	TokenLT:       "<",
	TokenLE:       "<=",
	TokenGT:       ">",
	TokenGE:       ">=",
	TokenAnd:      "AND",
	TokenOr:       "OR",
	TokenNot:      "NOT",
	TokenDot:      ".",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenComma:    ",",
	TokenColon:    ":",
	TokenReturn:   "RETURN",
	TokenTrue:     "TRUE",
	TokenFalse:    "FALSE",
	TokenNull:     "NULL",
}

// String returns the string representation of a token type.
func (t TokenType) String() string {
	if int(t) < len(tokenNames) && tokenNames[t] != "" {
		return tokenNames[t]
	}
	return "UNKNOWN"
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Line  int
	Col   int
}

// String returns a human-readable representation of the token for debugging.
func (t Token) String() string {
	if t.Value != "" {
		return fmt.Sprintf("%s(%s)@%d:%d", t.Type, t.Value, t.Line, t.Col)
	}
	return fmt.Sprintf("%s@%d:%d", t.Type, t.Line, t.Col)
}

// keywords maps keyword strings to token types. Stage and function names
// are plain identifiers resolved by the interpreter.
var keywords = map[string]TokenType{
	"return": TokenReturn,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"null":   TokenNull,
	"nil":    TokenNull,
	"and":    TokenAnd,
	"or":     TokenOr,
	"not":    TokenNot,
}

// LookupIdent returns the token type for an identifier.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}
