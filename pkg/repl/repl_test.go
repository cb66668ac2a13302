package repl

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/tabular/internal/testutil"
	"github.com/akhildatla/tabular/pkg/dsl"
	"github.com/akhildatla/tabular/pkg/table"
)

func newREPL(t *testing.T) *REPL {
	t.Helper()
	r := New(Options{})
	r.SetFrames(map[string]*table.Table{"sales": testutil.MakeSales(t)})
	return r
}

func run(t *testing.T, r *REPL, input string) string {
	t.Helper()
	var out bytes.Buffer
	r.Start(context.Background(), strings.NewReader(input), &out)
	return out.String()
}

func TestREPL_Banner(t *testing.T) {
	out := run(t, New(Options{}), "")
	assert.Contains(t, out, "tabular REPL")
	assert.Contains(t, out, prompt)
}

func TestREPL_Help(t *testing.T) {
	for _, cmd := range []string{":help", ":h", ":?"} {
		out := run(t, New(Options{}), cmd+"\n")
		assert.Contains(t, out, "REPL Commands", cmd)
		assert.Contains(t, out, ":load <name> <path>", cmd)
	}
}

func TestREPL_Quit(t *testing.T) {
	r := newREPL(t)
	out := run(t, r, ":quit\nsales |> count()\n")

	assert.Contains(t, out, "Goodbye!")
	assert.NotContains(t, out, "=> 5")
	assert.Empty(t, r.history)
}

func TestREPL_ScalarResult(t *testing.T) {
	out := run(t, newREPL(t), "sales |> count()\n\"hi\"\n")
	assert.Contains(t, out, "=> 5")
	assert.Contains(t, out, `=> "hi"`)
}

func TestREPL_TablePrinted(t *testing.T) {
	out := run(t, newREPL(t), "sales |> group_by(category) |> summarize(total = sum(quantity))\n")

	assert.Contains(t, out, "category")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "23")
	assert.Contains(t, out, "[3 rows x 2 columns]")
}

func TestREPL_MaxRows(t *testing.T) {
	r := New(Options{MaxRows: 2})
	r.SetFrames(map[string]*table.Table{"sales": testutil.MakeSales(t)})

	out := run(t, r, "sales\n")
	assert.Contains(t, out, "... 3 more rows")
}

func TestREPL_VariablesPersist(t *testing.T) {
	r := newREPL(t)
	out := run(t, r, "x = 10\ny = x * 2\ny + 1\n:vars\n")

	assert.Contains(t, out, "=> 21")
	assert.Contains(t, out, "x = 10")
	assert.Contains(t, out, "y = 20")
}

func TestREPL_VarsSummarizesTables(t *testing.T) {
	out := run(t, newREPL(t), "big = sales |> filter(price > 10)\n:vars\n")
	assert.Contains(t, out, "big = <table 4 rows x 3 columns>")
}

func TestREPL_Clear(t *testing.T) {
	r := newREPL(t)
	out := run(t, r, "x = 1\n:clear\n:vars\nx\n")

	assert.Contains(t, out, "Variables cleared")
	assert.Contains(t, out, "No variables defined")
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, dsl.ErrUndefined.Error())
}

func TestREPL_Multiline(t *testing.T) {
	r := newREPL(t)
	out := run(t, r, "sales \\\n  |> filter(category == \"A\") \\\n  |> count()\n")

	assert.Contains(t, out, promptCont)
	assert.Contains(t, out, "=> 2")
	require.Len(t, r.history, 1)
	assert.Contains(t, r.history[0], "|> count()")
}

func TestREPL_History(t *testing.T) {
	r := newREPL(t)
	out := run(t, r, "1 + 1\n\n2 + 2\n:history\n")

	assert.Equal(t, []string{"1 + 1", "2 + 2"}, r.history)
	assert.Contains(t, out, "  1: 1 + 1")
	assert.Contains(t, out, "  2: 2 + 2")
}

func TestREPL_Frames(t *testing.T) {
	out := run(t, New(Options{}), ":frames\n")
	assert.Contains(t, out, "No frames loaded")

	out = run(t, newREPL(t), ":frames\n")
	assert.Contains(t, out, "sales: 5 rows, 3 columns (price:float, quantity:int, category:string)")
}

func TestREPL_Load(t *testing.T) {
	path := testutil.TempCSV(t, "id,name\n1,a\n2,b\n")
	r := New(Options{})

	out := run(t, r, fmt.Sprintf(":load people %s\npeople |> count()\n", path))
	assert.Contains(t, out, "Loaded frame 'people'")
	assert.Contains(t, out, "(2 rows, 2 columns)")
	assert.Contains(t, out, "=> 2")
}

func TestREPL_LoadErrors(t *testing.T) {
	out := run(t, New(Options{}), ":load onlyname\n:load x /no/such/file.csv\n")
	assert.Contains(t, out, "Usage: :load <name> <path>")
	assert.Contains(t, out, "Error loading /no/such/file.csv")
}

func TestREPL_UnknownCommand(t *testing.T) {
	out := run(t, New(Options{}), ":bogus\n")
	assert.Contains(t, out, "Unknown command :bogus")
}

func TestREPL_Errors(t *testing.T) {
	out := run(t, newREPL(t), "sales |> select(nope)\nsales |> select((\n")
	assert.Equal(t, 2, strings.Count(out, "Error:"))
}

func TestREPL_SandboxOption(t *testing.T) {
	path := testutil.TempCSV(t, "a\n1\n")
	r := New(Options{Interpreter: dsl.Options{Sandbox: true}})

	out := run(t, r, fmt.Sprintf("load(%q)\n", path))
	assert.Contains(t, out, dsl.ErrSandboxViolation.Error())
}

func TestREPL_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	New(Options{}).Start(ctx, strings.NewReader("1 + 1\n"), &out)
	assert.NotContains(t, out.String(), "=> 2")
}

func TestDescribe(t *testing.T) {
	col := table.Ints("n", 1, 2)
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{int64(3), "3"},
		{2.5, "2.5"},
		{"s", `"s"`},
		{true, "true"},
		{[]any{int64(1), "a", nil}, `[1, "a", null]`},
		{col, "<column n int, 2 values>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describe(tt.in))
	}
}
