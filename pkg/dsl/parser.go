package dsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akhildatla/tabular/pkg/ops"
)

// Parser parses pipe-language tokens into an AST.
type Parser struct {
	tokens []Token
	pos    int
	errors []error
}

// NewParser creates a new parser for the given tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse tokenizes and parses source code.
func Parse(src string) (*Program, error) {
	return NewParser(NewLexer(src).Tokenize()).Parse()
}

// Parse parses the tokens into a Program AST. It reports the first
// syntax error found.
func (p *Parser) Parse() (*Program, error) {
	program := &Program{}

	for !p.isAtEnd() && len(p.errors) == 0 {
		p.skipNewlines()
		if p.isAtEnd() {
			break
		}

		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		if !p.check(TokenNewline) && !p.isAtEnd() {
			p.error(fmt.Sprintf("unexpected %s after statement", p.describe(p.peek())))
		}
	}

	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return program, nil
}

func (p *Parser) parseStatement() Stmt {
	line := p.peek().Line

	if p.check(TokenReturn) {
		p.advance()
		return &ReturnStmt{Value: p.parseExpression(), Pos: line}
	}

	if p.check(TokenIdent) && p.peekNext().Type == TokenAssign {
		name := p.advance().Value
		p.advance() // '='
		return &AssignStmt{Name: name, Value: p.parseExpression(), Pos: line}
	}

	if expr := p.parseExpression(); expr != nil {
		return &ExprStmt{Expr: expr, Pos: line}
	}
	return nil
}

func (p *Parser) parseExpression() Expr {
	return p.parsePipe()
}

func (p *Parser) parsePipe() Expr {
	left := p.parseOr()

	for p.pipeAhead() {
		p.advance() // '|>'
		p.skipNewlines()
		right := p.parseStage()
		left = &PipeExpr{Left: left, Right: right}
	}

	return left
}

// pipeAhead reports whether the next token, possibly on a later line, is
// '|>'. Newlines before it are consumed.
func (p *Parser) pipeAhead() bool {
	i := p.pos
	for i < len(p.tokens) && p.tokens[i].Type == TokenNewline {
		i++
	}
	if i < len(p.tokens) && p.tokens[i].Type == TokenPipe {
		p.pos = i
		return true
	}
	return false
}

func (p *Parser) parseStage() Expr {
	if !p.check(TokenIdent) {
		p.error(fmt.Sprintf("expected stage name after |>, got %s", p.describe(p.peek())))
		return nil
	}

	switch name := strings.ToLower(p.peek().Value); name {
	case "filter", "where":
		return p.parseFilter()
	case "select":
		return p.parseSelect()
	case "mutate":
		return p.parseMutate()
	case "group_by", "groupby":
		return p.parseGroupBy()
	case "summarize", "summarise":
		return p.parseSummarize()
	case "join", "inner_join", "left_join", "right_join", "outer_join", "full_join", "cross_join":
		return p.parseJoin(name)
	default:
		p.advance()
		call := &CallExpr{Func: name}
		if p.check(TokenLParen) {
			call.Args, call.Named = p.parseCallArgs()
		}
		return call
	}
}

func (p *Parser) parseFilter() Expr {
	p.advance() // 'filter'
	p.expect(TokenLParen)
	condition := p.parseExpression()
	p.expect(TokenRParen)
	return &FilterExpr{Condition: condition}
}

func (p *Parser) parseSelect() Expr {
	p.advance() // 'select'
	return &SelectExpr{Columns: p.parseColumnList()}
}

func (p *Parser) parseGroupBy() Expr {
	p.advance() // 'group_by'
	return &GroupByExpr{Keys: p.parseColumnList()}
}

// parseColumnList parses "(a, `b c`, "d")".
func (p *Parser) parseColumnList() []string {
	p.expect(TokenLParen)

	var columns []string
	for !p.check(TokenRParen) && !p.isAtEnd() && len(p.errors) == 0 {
		columns = append(columns, p.parseColumnName())
		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}

	p.expect(TokenRParen)
	return columns
}

func (p *Parser) parseColumnName() string {
	if p.check(TokenIdent) || p.check(TokenString) {
		return p.advance().Value
	}
	p.error(fmt.Sprintf("expected column name, got %s", p.describe(p.peek())))
	return ""
}

func (p *Parser) parseMutate() Expr {
	p.advance() // 'mutate'
	p.expect(TokenLParen)

	var assignments []Assignment
	for !p.check(TokenRParen) && !p.isAtEnd() && len(p.errors) == 0 {
		name := p.parseColumnName()
		p.expect(TokenAssign)
		assignments = append(assignments, Assignment{Name: name, Value: p.parseExpression()})

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}

	p.expect(TokenRParen)
	return &MutateExpr{Assignments: assignments}
}

func (p *Parser) parseSummarize() Expr {
	p.advance() // 'summarize'
	p.expect(TokenLParen)

	var aggregations []AggregateAssign
	for !p.check(TokenRParen) && !p.isAtEnd() && len(p.errors) == 0 {
		name := p.parseColumnName()
		p.expect(TokenAssign)

		fn := p.expect(TokenIdent).Value
		args, _ := p.parseCallArgs()
		aggregations = append(aggregations, AggregateAssign{
			Name: name,
			Func: strings.ToLower(fn),
			Args: args,
		})

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}

	p.expect(TokenRParen)
	return &SummarizeExpr{Aggregations: aggregations}
}

func (p *Parser) parseJoin(name string) Expr {
	p.advance() // join name
	args, named := p.parseCallArgs()

	how := strings.TrimSuffix(name, "_join")
	switch how {
	case "join":
		how = "inner"
	case "full":
		how = "outer"
	}
	join := &JoinExpr{How: how}

	if len(args) != 1 {
		p.error(fmt.Sprintf("%s takes exactly one frame argument, got %d", name, len(args)))
		return nil
	}
	join.Right = args[0]

	for _, arg := range named {
		switch arg.Name {
		case "on", "by":
			join.On = p.literalNames(arg.Name, arg.Value)
		case "suffixes":
			join.Suffixes = p.literalNames(arg.Name, arg.Value)
			if len(join.Suffixes) != 2 {
				p.error("suffixes needs exactly two strings")
			}
		case "how":
			if name != "join" {
				p.error(fmt.Sprintf("%s already names its kind; how is only valid on join", name))
				continue
			}
			names := p.literalNames(arg.Name, arg.Value)
			if len(names) != 1 {
				p.error("how expects one join kind")
				continue
			}
			kind, err := ops.ParseJoinKind(strings.ToLower(names[0]))
			if err != nil {
				p.error(err.Error())
				continue
			}
			join.How = string(kind)
		case "nulls_equal":
			b, ok := arg.Value.(*BoolLit)
			if !ok {
				p.error("nulls_equal must be true or false")
				continue
			}
			join.NullsEqual = b.Value
		default:
			p.error(fmt.Sprintf("%s has no argument %q", name, arg.Name))
		}
	}
	return join
}

// literalNames reads a column name or a list of column names.
func (p *Parser) literalNames(arg string, e Expr) []string {
	switch v := e.(type) {
	case *Ident:
		return []string{v.Name}
	case *StringLit:
		return []string{v.Value}
	case *ListLit:
		names := make([]string, 0, len(v.Elems))
		for _, el := range v.Elems {
			names = append(names, p.literalNames(arg, el)...)
		}
		return names
	}
	p.error(fmt.Sprintf("%s expects column names", arg))
	return nil
}

// parseCallArgs parses "(positional..., name: value...)". Named
// arguments may also be written "name = value".
func (p *Parser) parseCallArgs() ([]Expr, []NamedArg) {
	p.expect(TokenLParen)

	var args []Expr
	var named []NamedArg
	for !p.check(TokenRParen) && !p.isAtEnd() && len(p.errors) == 0 {
		if p.check(TokenIdent) && (p.peekNext().Type == TokenColon || p.peekNext().Type == TokenAssign) {
			name := p.advance().Value
			p.advance() // ':' or '='
			named = append(named, NamedArg{Name: name, Value: p.parseExpression()})
		} else {
			if len(named) > 0 {
				p.error("positional argument after named argument")
				break
			}
			args = append(args, p.parseExpression())
		}

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}

	p.expect(TokenRParen)
	return args, named
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()

	for p.check(TokenOr) {
		p.advance()
		right := p.parseAnd()
		left = &BinaryExpr{Left: left, Op: TokenOr, Right: right}
	}

	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseEquality()

	for p.check(TokenAnd) {
		p.advance()
		right := p.parseEquality()
		left = &BinaryExpr{Left: left, Op: TokenAnd, Right: right}
	}

	return left
}

func (p *Parser) parseEquality() Expr {
	left := p.parseComparison()

	for p.check(TokenEQ) || p.check(TokenNE) {
		op := p.advance().Type
		right := p.parseComparison()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()

	for p.check(TokenLT) || p.check(TokenLE) || p.check(TokenGT) || p.check(TokenGE) {
		op := p.advance().Type
		right := p.parseAdditive()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()

	for p.check(TokenPlus) || p.check(TokenMinus) {
		op := p.advance().Type
		right := p.parseMultiplicative()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()

	for p.check(TokenStar) || p.check(TokenSlash) || p.check(TokenPercent) {
		op := p.advance().Type
		right := p.parseUnary()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseUnary() Expr {
	if p.check(TokenNot) || p.check(TokenMinus) {
		op := p.advance().Type
		right := p.parseUnary()
		return &UnaryExpr{Op: op, Right: right}
	}

	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()

	for len(p.errors) == 0 {
		switch {
		case p.check(TokenDot):
			p.advance()
			member := p.expect(TokenIdent).Value
			expr = &MemberExpr{Object: expr, Member: member}
		case p.check(TokenLBracket):
			p.advance()
			index := p.parseExpression()
			p.expect(TokenRBracket)
			expr = &IndexExpr{Object: expr, Index: index}
		case p.check(TokenLParen):
			ident, ok := expr.(*Ident)
			if !ok {
				return expr
			}
			call := &CallExpr{Func: strings.ToLower(ident.Name)}
			call.Args, call.Named = p.parseCallArgs()
			expr = call
		default:
			return expr
		}
	}

	return expr
}

func (p *Parser) parsePrimary() Expr {
	switch tok := p.peek(); tok.Type {
	case TokenInt:
		p.advance()
		val, err := strconv.ParseInt(strings.ReplaceAll(tok.Value, "_", ""), 10, 64)
		if err != nil {
			p.errorAt(tok, fmt.Sprintf("invalid integer %s", tok.Value))
			return nil
		}
		return &IntLit{Value: val}

	case TokenFloat:
		p.advance()
		val, err := strconv.ParseFloat(strings.ReplaceAll(tok.Value, "_", ""), 64)
		if err != nil {
			p.errorAt(tok, fmt.Sprintf("invalid number %s", tok.Value))
			return nil
		}
		return &FloatLit{Value: val}

	case TokenString:
		p.advance()
		return &StringLit{Value: tok.Value}

	case TokenTrue, TokenFalse:
		p.advance()
		return &BoolLit{Value: tok.Type == TokenTrue}

	case TokenNull:
		p.advance()
		return &NullLit{}

	case TokenIdent:
		p.advance()
		return &Ident{Name: tok.Value}

	case TokenLParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(TokenRParen)
		return expr

	case TokenLBracket:
		p.advance()
		list := &ListLit{}
		for !p.check(TokenRBracket) && !p.isAtEnd() && len(p.errors) == 0 {
			list.Elems = append(list.Elems, p.parseExpression())
			if !p.check(TokenComma) {
				break
			}
			p.advance()
		}
		p.expect(TokenRBracket)
		return list

	case TokenIllegal:
		p.error(tok.Value)
		return nil

	default:
		p.error(fmt.Sprintf("unexpected %s", p.describe(tok)))
		return nil
	}
}

// Helper methods

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekNext() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.pos++
	}
	return tok
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) expect(t TokenType) Token {
	if p.check(t) {
		return p.advance()
	}
	p.error(fmt.Sprintf("expected %v, got %s", t, p.describe(p.peek())))
	return Token{}
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) skipNewlines() {
	for p.check(TokenNewline) {
		p.advance()
	}
}

func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenNewline:
		return "end of line"
	case TokenIdent, TokenInt, TokenFloat:
		return fmt.Sprintf("%s %s", tok.Type, tok.Value)
	case TokenString:
		return fmt.Sprintf("string %q", tok.Value)
	}
	return fmt.Sprintf("%q", tok.Type.String())
}

func (p *Parser) error(msg string) {
	p.errorAt(p.peek(), msg)
	p.advance() // skip problematic token
}

func (p *Parser) errorAt(tok Token, msg string) {
	p.errors = append(p.errors, &SyntaxError{Line: tok.Line, Col: tok.Col, Msg: msg})
}
