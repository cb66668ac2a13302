package dsl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse(src)
	require.NoError(t, err)
	return prog
}

func TestParser_Assignment(t *testing.T) {
	prog := mustParse(t, `data = load("sales.csv")`)
	require.Len(t, prog.Statements, 1)

	assign, ok := prog.Statements[0].(*AssignStmt)
	require.True(t, ok, "expected AssignStmt, got %T", prog.Statements[0])
	assert.Equal(t, "data", assign.Name)

	call, ok := assign.Value.(*CallExpr)
	require.True(t, ok)
	assert.Equal(t, "load", call.Func)
	require.Len(t, call.Args, 1)
	assert.Equal(t, &StringLit{Value: "sales.csv"}, call.Args[0])
}

func TestParser_PipelineStages(t *testing.T) {
	prog := mustParse(t, `sales
    |> filter(price > 10)
    |> select(price, "category")
    |> arrange(desc(price))`)
	require.Len(t, prog.Statements, 1)

	stmt := prog.Statements[0].(*ExprStmt)
	outer, ok := stmt.Expr.(*PipeExpr)
	require.True(t, ok)

	arrange, ok := outer.Right.(*CallExpr)
	require.True(t, ok)
	assert.Equal(t, "arrange", arrange.Func)

	mid := outer.Left.(*PipeExpr)
	sel, ok := mid.Right.(*SelectExpr)
	require.True(t, ok)
	assert.Equal(t, []string{"price", "category"}, sel.Columns)

	inner := mid.Left.(*PipeExpr)
	filter, ok := inner.Right.(*FilterExpr)
	require.True(t, ok)
	cond := filter.Condition.(*BinaryExpr)
	assert.Equal(t, TokenGT, cond.Op)
	assert.Equal(t, &Ident{Name: "sales"}, inner.Left)
}

func TestParser_Precedence(t *testing.T) {
	prog := mustParse(t, `1 + 2 * 3 == 7 and not false`)
	expr := prog.Statements[0].(*ExprStmt).Expr

	and, ok := expr.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, TokenAnd, and.Op)

	eq := and.Left.(*BinaryExpr)
	assert.Equal(t, TokenEQ, eq.Op)
	sum := eq.Left.(*BinaryExpr)
	assert.Equal(t, TokenPlus, sum.Op)
	product := sum.Right.(*BinaryExpr)
	assert.Equal(t, TokenStar, product.Op)

	not := and.Right.(*UnaryExpr)
	assert.Equal(t, TokenNot, not.Op)
}

func TestParser_MutateAndSummarize(t *testing.T) {
	prog := mustParse(t, `sales |> mutate(revenue = price * quantity, big = revenue > 100)
		|> group_by(category)
		|> summarize(total = SUM(revenue), n = count())`)

	sum := prog.Statements[0].(*ExprStmt).Expr.(*PipeExpr)
	summarize, ok := sum.Right.(*SummarizeExpr)
	require.True(t, ok)
	require.Len(t, summarize.Aggregations, 2)
	assert.Equal(t, "total", summarize.Aggregations[0].Name)
	assert.Equal(t, "sum", summarize.Aggregations[0].Func)
	assert.Empty(t, summarize.Aggregations[1].Args)

	group := sum.Left.(*PipeExpr)
	assert.Equal(t, &GroupByExpr{Keys: []string{"category"}}, group.Right)

	mutate := group.Left.(*PipeExpr).Right.(*MutateExpr)
	require.Len(t, mutate.Assignments, 2)
	assert.Equal(t, "revenue", mutate.Assignments[0].Name)
	assert.Equal(t, "big", mutate.Assignments[1].Name)
}

func TestParser_Join(t *testing.T) {
	tests := []struct {
		src  string
		want *JoinExpr
	}{
		{
			src:  `a |> join(b, on: id)`,
			want: &JoinExpr{How: "inner", Right: &Ident{Name: "b"}, On: []string{"id"}},
		},
		{
			src:  `a |> left_join(b, by: ["id", k], suffixes: ["_l", "_r"])`,
			want: &JoinExpr{How: "left", Right: &Ident{Name: "b"}, On: []string{"id", "k"}, Suffixes: []string{"_l", "_r"}},
		},
		{
			src:  `a |> full_join(b, nulls_equal: true)`,
			want: &JoinExpr{How: "outer", Right: &Ident{Name: "b"}, NullsEqual: true},
		},
		{
			src:  `a |> cross_join(b)`,
			want: &JoinExpr{How: "cross", Right: &Ident{Name: "b"}},
		},
		{
			src:  `a |> join(b, on: id, how: "left")`,
			want: &JoinExpr{How: "left", Right: &Ident{Name: "b"}, On: []string{"id"}},
		},
		{
			src:  `a |> join(b, on: id, how: "FULL")`,
			want: &JoinExpr{How: "outer", Right: &Ident{Name: "b"}, On: []string{"id"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog := mustParse(t, tt.src)
			pipe := prog.Statements[0].(*ExprStmt).Expr.(*PipeExpr)
			assert.Equal(t, tt.want, pipe.Right)
		})
	}
}

func TestParser_NamedArgumentsKeepCase(t *testing.T) {
	prog := mustParse(t, `t |> rename(NewName: old, Other = x)`)
	call := prog.Statements[0].(*ExprStmt).Expr.(*PipeExpr).Right.(*CallExpr)
	require.Len(t, call.Named, 2)
	assert.Equal(t, "NewName", call.Named[0].Name)
	assert.Equal(t, "Other", call.Named[1].Name)
	assert.NotNil(t, call.Arg("NewName"))
	assert.Nil(t, call.Arg("missing"))
}

func TestParser_StageWithoutParens(t *testing.T) {
	prog := mustParse(t, `t |> describe`)
	call := prog.Statements[0].(*ExprStmt).Expr.(*PipeExpr).Right.(*CallExpr)
	assert.Equal(t, "describe", call.Func)
	assert.Empty(t, call.Args)
}

func TestParser_MemberIndexAndList(t *testing.T) {
	prog := mustParse(t, "x = t.price\ny = t[\"category\"]\nz = [1, 2.5, \"a\", null]")
	require.Len(t, prog.Statements, 3)

	member := prog.Statements[0].(*AssignStmt).Value.(*MemberExpr)
	assert.Equal(t, "price", member.Member)

	index := prog.Statements[1].(*AssignStmt).Value.(*IndexExpr)
	assert.Equal(t, &StringLit{Value: "category"}, index.Index)

	list := prog.Statements[2].(*AssignStmt).Value.(*ListLit)
	assert.Equal(t, []Expr{&IntLit{Value: 1}, &FloatLit{Value: 2.5}, &StringLit{Value: "a"}, &NullLit{}}, list.Elems)
}

func TestParser_ReturnAndLines(t *testing.T) {
	prog := mustParse(t, "# header\nx = 1\n\nreturn x + 1\n")
	require.Len(t, prog.Statements, 2)
	assert.Equal(t, 2, prog.Statements[0].Line())
	ret, ok := prog.Statements[1].(*ReturnStmt)
	require.True(t, ok)
	assert.Equal(t, 4, ret.Line())
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing paren", `f(1, 2`},
		{"stage without name", `t |> 5`},
		{"positional after named", `f(a: 1, 2)`},
		{"join without frame", `t |> join(on: id)`},
		{"bad suffixes", `t |> join(u, suffixes: ["_a"])`},
		{"unknown join kind", `t |> join(u, on: id, how: "sideways")`},
		{"how on named join", `t |> left_join(u, on: id, how: "right")`},
		{"junk after statement", `x = 1 2`},
		{"unterminated string", `x = "abc`},
		{"illegal character", `x = 1 @ 2`},
		{"summarize without call", `t |> summarize(n = 5)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax), "got %v", err)

			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Positive(t, se.Line)
		})
	}
}

func TestParser_ErrorPosition(t *testing.T) {
	_, err := Parse("x = 1\ny = (2 +\n")
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.GreaterOrEqual(t, se.Line, 2)
}
