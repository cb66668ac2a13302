package optimizer

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/tabular/internal/testutil"
	"github.com/akhildatla/tabular/pkg/dsl"
	"github.com/akhildatla/tabular/pkg/table"
)

func parse(t *testing.T, src string) *dsl.Program {
	t.Helper()
	prog, err := dsl.Parse(src)
	require.NoError(t, err)
	return prog
}

func assertOptimized(t *testing.T, o *Optimizer, src, want string) {
	t.Helper()
	got := o.Optimize(parse(t, src))
	if diff := cmp.Diff(parse(t, want), got); diff != "" {
		t.Errorf("Optimize(%q) mismatch (-want +got):\n%s", src, diff)
	}
}

func TestConstantFolding(t *testing.T) {
	o := New(WithConstantFolding())
	tests := []struct {
		src, want string
	}{
		{`sales |> filter(price > 10 * 2)`, `sales |> filter(price > 20)`},
		{`x = 1 + 2 * 3`, `x = 7`},
		{`x = 7 / 2`, `x = 3.5`},
		{`x = 1 / 0`, `x = null`},
		{`x = -(2 - 5)`, `x = 3`},
		{`x = "a" + "b"`, `x = "ab"`},
		{`x = not (1 < 2)`, `x = false`},
		{`x = price * (2 + 3)`, `x = price * 5`},
		{`x = "a" * 2`, `x = "a" * 2`},
		{`x = sum([1, 2])`, `x = sum([1, 2])`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assertOptimized(t, o, tt.src, tt.want)
		})
	}
}

func TestPredicatePushdown(t *testing.T) {
	o := New(WithPredicatePushdown())
	tests := []struct {
		name, src, want string
	}{
		{
			name: "fuse adjacent filters",
			src:  `sales |> filter(price > 1) |> filter(quantity < 10)`,
			want: `sales |> filter(price > 1 and quantity < 10)`,
		},
		{
			name: "before select",
			src:  `sales |> select(price, category) |> filter(price > 10)`,
			want: `sales |> filter(price > 10) |> select(price, category)`,
		},
		{
			name: "before arrange",
			src:  `sales |> arrange(desc(price)) |> filter(isin(category, ["A", "B"]))`,
			want: `sales |> filter(isin(category, ["A", "B"])) |> arrange(desc(price))`,
		},
		{
			name: "fixed point",
			src:  `sales |> select(price, quantity) |> filter(price > 1) |> filter(quantity < 10)`,
			want: `sales |> filter(price > 1 and quantity < 10) |> select(price, quantity)`,
		},
		{
			name: "column outside the projection",
			src:  `sales |> select(price) |> filter(category == "A")`,
			want: `sales |> select(price) |> filter(category == "A")`,
		},
		{
			name: "window function",
			src:  `sales |> arrange(price) |> filter(cumsum(quantity) > 10)`,
			want: `sales |> arrange(price) |> filter(cumsum(quantity) > 10)`,
		},
		{
			name: "aggregate",
			src:  `sales |> filter(price > 1) |> filter(price > mean(price))`,
			want: `sales |> filter(price > 1) |> filter(price > mean(price))`,
		},
		{
			name: "literal variable",
			src:  "limit = 10\nsales |> arrange(price) |> filter(price > limit)",
			want: "limit = 10\nsales |> filter(price > limit) |> arrange(price)",
		},
		{
			name: "column variable",
			src:  "x = sales.price\nsales |> arrange(price) |> filter(x > 1)",
			want: "x = sales.price\nsales |> arrange(price) |> filter(x > 1)",
		},
		{
			name: "not past mutate",
			src:  `sales |> mutate(r = price * 2) |> filter(r > 10)`,
			want: `sales |> mutate(r = price * 2) |> filter(r > 10)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertOptimized(t, o, tt.src, tt.want)
		})
	}
}

func TestProjectionPruning(t *testing.T) {
	o := New(WithProjectionPruning())
	assertOptimized(t, o, `sales |> head(10) |> head(3)`, `sales |> head(3)`)
	assertOptimized(t, o, `sales |> limit(2) |> head()`, `sales |> head(2)`)
	assertOptimized(t, o, `sales |> tail(1) |> tail(4)`, `sales |> tail(1)`)
	assertOptimized(t, o, `sales |> head(3) |> tail(2)`, `sales |> head(3) |> tail(2)`)
	assertOptimized(t, o, `sales |> head(n) |> head(2)`, `sales |> head(n) |> head(2)`)
}

func TestDeadCodeElimination(t *testing.T) {
	o := New(WithDeadCodeElimination())

	got := o.Optimize(parse(t, "a = 1\nb = 2\na = 3\nreturn a + 1"))
	require.Len(t, got.Statements, 2)
	assign, ok := got.Statements[0].(*dsl.AssignStmt)
	require.True(t, ok)
	assert.Equal(t, "a", assign.Name)
	assert.Equal(t, &dsl.IntLit{Value: 3}, assign.Value)
	assert.Equal(t, 3, assign.Line())

	got = o.Optimize(parse(t, "d = load(\"x.csv\")\n1"))
	assert.Len(t, got.Statements, 2)

	got = o.Optimize(parse(t, "col = \"price\"\nsales |> arrange(col)"))
	assert.Len(t, got.Statements, 2)
}

func TestOptimizeLeavesInputUntouched(t *testing.T) {
	src := "x = 2 * 3\nsales |> select(price) |> filter(price > x) |> filter(price < 100) |> head(5) |> head(2)"
	prog := parse(t, src)
	New(WithAllOptimizations()).Optimize(prog)

	if diff := cmp.Diff(parse(t, src), prog); diff != "" {
		t.Errorf("input program modified (-want +got):\n%s", diff)
	}
}

func TestMaxPasses(t *testing.T) {
	src := `sales |> select(price, quantity) |> filter(price > 1) |> filter(quantity < 10)`

	one := New(WithPredicatePushdown(), WithMaxPasses(1)).Optimize(parse(t, src))
	full := New(WithPredicatePushdown()).Optimize(parse(t, src))
	assert.NotEqual(t, one, full)
}

func TestNoOptimizationsIsIdentity(t *testing.T) {
	prog := parse(t, `x = 1 + 1`)
	assert.Same(t, prog, New().Optimize(prog))
}

func run(t *testing.T, prog *dsl.Program) any {
	t.Helper()
	in := dsl.New(dsl.Options{})
	in.RegisterFrame("sales", testutil.MakeSales(t))
	in.RegisterFrame("closes", testutil.MakeCloses(t))
	res, err := in.Run(context.Background(), prog)
	require.NoError(t, err)
	return snapshot(t, res.Value)
}

// snapshot converts a table into comparable column values.
func snapshot(t *testing.T, v any) any {
	tbl, ok := v.(*table.Table)
	if !ok {
		return v
	}
	out := map[string][]any{}
	for _, name := range tbl.Names() {
		out[name] = testutil.Values(t, tbl, name)
	}
	out["\x00order"] = []any{tbl.Names()}
	return out
}

func TestOptimizedProgramsAgree(t *testing.T) {
	programs := []string{
		"threshold = 5 * 2\nsales |> select(price, category) |> filter(price > threshold) |> filter(category != \"C\")",
		"unused = 1\nsales |> arrange(desc(quantity)) |> filter(price < 10 + 10) |> head(4) |> head(2)",
		"sales |> filter(price > 1) |> filter(price > mean(price)) |> select(price)",
		"sales |> group_by(category) |> arrange(price) |> filter(quantity > 4) |> summarize(n = count(), q = sum(quantity))",
		"closes |> filter(Ticker == \"AAPL\") |> arrange(Date) |> filter(Close > 100 - 1) |> mutate(c = cumsum(Close))",
	}

	o := New(WithAllOptimizations())
	for _, src := range programs {
		t.Run(src, func(t *testing.T) {
			prog := parse(t, src)
			want := run(t, prog)
			got := run(t, o.Optimize(prog))
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("optimized result differs (-want +got):\n%s", diff)
			}
		})
	}
}
