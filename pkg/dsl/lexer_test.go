package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(src string) []TokenType {
	var out []TokenType
	for _, tok := range NewLexer(src).Tokenize() {
		out = append(out, tok.Type)
	}
	return out
}

func TestLexer_BasicTokens(t *testing.T) {
	assert.Equal(t, []TokenType{
		TokenIdent, TokenAssign, TokenIdent, TokenLParen, TokenString, TokenRParen, TokenEOF,
	}, tokenTypes(`data = load("sales.csv")`))
}

func TestLexer_Operators(t *testing.T) {
	tests := []struct {
		input    string
		expected TokenType
	}{
		{"|>", TokenPipe},
		{"==", TokenEQ},
		{"!=", TokenNE},
		{"<", TokenLT},
		{"<=", TokenLE},
		{">", TokenGT},
		{">=", TokenGE},
		{"&&", TokenAnd},
		{"||", TokenOr},
		{"!", TokenNot},
		{"%", TokenPercent},
		{"and", TokenAnd},
		{"OR", TokenOr},
		{"not", TokenNot},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := NewLexer(tt.input).Tokenize()
			require.NotEmpty(t, tokens)
			assert.Equal(t, tt.expected, tokens[0].Type)
		})
	}
}

func TestLexer_Numbers(t *testing.T) {
	tokens := NewLexer(`42 3.14 1e3 1_000`).Tokenize()
	require.Len(t, tokens, 5)
	assert.Equal(t, TokenInt, tokens[0].Type)
	assert.Equal(t, TokenFloat, tokens[1].Type)
	assert.Equal(t, TokenFloat, tokens[2].Type)
	assert.Equal(t, TokenInt, tokens[3].Type)
	assert.Equal(t, "1_000", tokens[3].Value)

	tokens = NewLexer(`-7`).Tokenize()
	assert.Equal(t, TokenInt, tokens[0].Type)
	assert.Equal(t, "-7", tokens[0].Value)
}

func TestLexer_MinusAfterOperand(t *testing.T) {
	assert.Equal(t, []TokenType{TokenIdent, TokenMinus, TokenInt, TokenEOF}, tokenTypes(`x-1`))
	assert.Equal(t, []TokenType{TokenRParen, TokenMinus, TokenInt, TokenEOF}, tokenTypes(`)-1`))
	assert.Equal(t, []TokenType{TokenLParen, TokenInt, TokenEOF}, tokenTypes(`(-1`))
}

func TestLexer_StringEscapes(t *testing.T) {
	tokens := NewLexer(`"a\tb\n\"c\"" 'it\'s'`).Tokenize()
	require.Len(t, tokens, 3)
	assert.Equal(t, "a\tb\n\"c\"", tokens[0].Value)
	assert.Equal(t, "it's", tokens[1].Value)
}

func TestLexer_UnterminatedString(t *testing.T) {
	tokens := NewLexer(`"open`).Tokenize()
	assert.Equal(t, TokenIllegal, tokens[0].Type)
}

func TestLexer_Comments(t *testing.T) {
	assert.Equal(t, []TokenType{TokenIdent, TokenNewline, TokenIdent, TokenEOF}, tokenTypes("a # note\nb"))
}

func TestLexer_NewlinesInsideParens(t *testing.T) {
	assert.Equal(t, []TokenType{
		TokenIdent, TokenLParen, TokenIdent, TokenComma, TokenIdent, TokenRParen, TokenEOF,
	}, tokenTypes("f(\n  a,\n  b\n)"))
}

func TestLexer_LineContinuation(t *testing.T) {
	assert.Equal(t, []TokenType{TokenIdent, TokenPipe, TokenIdent, TokenEOF}, tokenTypes("a \\\n|> b"))
}

func TestLexer_QuotedIdentifier(t *testing.T) {
	tokens := NewLexer("`Order Date`").Tokenize()
	require.Len(t, tokens, 2)
	assert.Equal(t, TokenIdent, tokens[0].Type)
	assert.Equal(t, "Order Date", tokens[0].Value)
}

func TestLexer_KeywordCaseKeepsValue(t *testing.T) {
	tokens := NewLexer(`TotalDue TRUE`).Tokenize()
	assert.Equal(t, TokenIdent, tokens[0].Type)
	assert.Equal(t, "TotalDue", tokens[0].Value)
	assert.Equal(t, TokenTrue, tokens[1].Type)
}

func TestLexer_LinePositions(t *testing.T) {
	tokens := NewLexer("a\n  b").Tokenize()
	require.Len(t, tokens, 4)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 2, tokens[2].Line)
	assert.Equal(t, 3, tokens[2].Col)
}

func TestLexer_IllegalCharacter(t *testing.T) {
	assert.Contains(t, tokenTypes(`a @ b`), TokenIllegal)
}
