package dsl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/tabular/internal/testutil"
	"github.com/akhildatla/tabular/pkg/ops"
	"github.com/akhildatla/tabular/pkg/table"
)

func newInterpreter(t *testing.T, opts Options) *Interpreter {
	t.Helper()
	in := New(opts)
	in.RegisterFrame("sales", testutil.MakeSales(t))
	in.RegisterFrame("orders", testutil.MakeOrders(t))
	in.RegisterFrame("closes", testutil.MakeCloses(t))
	in.RegisterFrame("customers", testutil.MustTable(t,
		table.Ints("CustomerID", 29825, 29672, 29734, 29565, 11000),
		table.Strings("AccountNumber", "AW00029825", "AW00029672", "AW00029734", "AW00029565", "AW00011000"),
		table.Ints("TerritoryID", 5, 5, 6, 4, 9),
	))
	return in
}

func exec(t *testing.T, in *Interpreter, src string) *Result {
	t.Helper()
	res, err := in.Exec(context.Background(), src)
	require.NoError(t, err)
	return res
}

func execTable(t *testing.T, in *Interpreter, src string) *table.Table {
	t.Helper()
	tbl, ok := exec(t, in, src).Table()
	require.True(t, ok, "result is not a table")
	return tbl
}

func TestInterpreter_FilterSelect(t *testing.T) {
	in := newInterpreter(t, Options{})
	res := exec(t, in, `sales |> filter(price > 10) |> select(price, category)`)

	tbl, ok := res.Table()
	require.True(t, ok)
	assert.Equal(t, 4, tbl.NRows())
	assert.Equal(t, []string{"price", "category"}, tbl.Names())
	assert.Equal(t, 2, res.Stats.Stages)
	assert.Equal(t, 4, res.Stats.Rows)
	assert.Positive(t, res.Stats.Steps)
}

func TestInterpreter_Mutate(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `sales |> mutate(revenue = price * quantity, big = revenue > 100)`)

	assert.Equal(t, []any{52.5, 300.0, 15.0, 600.0, 120.0}, testutil.Values(t, tbl, "revenue"))
	assert.Equal(t, []any{false, true, false, true, true}, testutil.Values(t, tbl, "big"))
}

func TestInterpreter_MutateScalarBroadcast(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `sales |> mutate(one = 1, label = "x")`)

	assert.Equal(t, []any{int64(1), int64(1), int64(1), int64(1), int64(1)}, testutil.Values(t, tbl, "one"))
	assert.Equal(t, []any{"x", "x", "x", "x", "x"}, testutil.Values(t, tbl, "label"))
}

func TestInterpreter_GroupSummarize(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `sales
    |> group_by(category)
    |> summarize(total = sum(quantity), n = count(), avg_price = mean(price))`)

	assert.Equal(t, []string{"category", "total", "n", "avg_price"}, tbl.Names())
	assert.Equal(t, []any{"A", "B", "C"}, testutil.Values(t, tbl, "category"))
	assert.Equal(t, []any{int64(8), int64(23), int64(20)}, testutil.Values(t, tbl, "total"))
	assert.Equal(t, []any{int64(2), int64(2), int64(1)}, testutil.Values(t, tbl, "n"))
	assert.Equal(t, []any{7.75, 17.5, 30.0}, testutil.Values(t, tbl, "avg_price"))
}

func TestInterpreter_SummarizeExpression(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `sales |> summarize(revenue = sum(price * quantity))`)

	require.Equal(t, 1, tbl.NRows())
	assert.Equal(t, []string{"revenue"}, tbl.Names())
	testutil.AssertFloat64Near(t, 1087.5, testutil.Values(t, tbl, "revenue")[0].(float64), 1e-9)
}

func TestInterpreter_GroupedMutateBroadcasts(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `sales |> group_by(category) |> mutate(total = sum(price)) |> ungroup()`)

	assert.Equal(t, []any{15.5, 35.0, 15.5, 30.0, 35.0}, testutil.Values(t, tbl, "total"))
}

func TestInterpreter_GroupedCount(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `sales |> group_by(category) |> count()`)

	assert.Equal(t, []any{int64(2), int64(2), int64(1)}, testutil.Values(t, tbl, "n"))
	assert.Equal(t, int64(5), exec(t, in, `sales |> count()`).Value)
}

func TestInterpreter_ArrangeHead(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `sales |> arrange(desc(price)) |> head(2)`)
	assert.Equal(t, []any{30.0, 20.0}, testutil.Values(t, tbl, "price"))

	tbl = execTable(t, in, `sales |> arrange(category, desc(quantity))`)
	assert.Equal(t, []any{int64(5), int64(3), int64(15), int64(8), int64(20)}, testutil.Values(t, tbl, "quantity"))
}

func TestInterpreter_CallFormOfStage(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `head(sales, 2)`)
	assert.Equal(t, 2, tbl.NRows())
}

func TestInterpreter_ScalarPipe(t *testing.T) {
	in := newInterpreter(t, Options{})
	assert.Equal(t, "ABC", exec(t, in, `"abc" |> upper()`).Value)
	assert.Equal(t, int64(5), exec(t, in, `sales |> nrow`).Value)
}

func TestInterpreter_Join(t *testing.T) {
	in := newInterpreter(t, Options{})

	tbl := execTable(t, in, `orders |> join(customers, on: CustomerID)`)
	assert.Equal(t, 4, tbl.NRows())
	assert.True(t, tbl.HasColumn("TerritoryID_x"))
	assert.True(t, tbl.HasColumn("TerritoryID_y"))

	tbl = execTable(t, in, `orders |> left_join(customers, on: CustomerID, suffixes: ["", "_cust"])`)
	assert.Equal(t, 6, tbl.NRows())
	acct, err := tbl.Column("AccountNumber")
	require.NoError(t, err)
	assert.Equal(t, 2, acct.NullCount())
	assert.True(t, tbl.HasColumn("TerritoryID_cust"))
}

func TestInterpreter_JoinOnSharedColumns(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `orders |> join(customers)`)

	assert.Equal(t, 4, tbl.NRows())
	assert.False(t, tbl.HasColumn("TerritoryID_x"))
}

func TestInterpreter_JoinWithoutCommonColumns(t *testing.T) {
	in := newInterpreter(t, Options{})
	_, err := in.Exec(context.Background(), `sales |> join(customers)`)
	assert.ErrorIs(t, err, ops.ErrInvalidJoin)
}

func TestInterpreter_Pivot(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `closes |> pivot(index: Date, columns: Ticker, values: Close)`)

	assert.Equal(t, []string{"Date", "AAPL", "MSFT"}, tbl.Names())
	assert.Equal(t, 3, tbl.NRows())
	assert.Equal(t, []any{300.0, 297.0, nil}, testutil.Values(t, tbl, "MSFT"))
}

func TestInterpreter_Melt(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `sales |> melt(id: category, values: [price, quantity])`)

	assert.Equal(t, 10, tbl.NRows())
	assert.Equal(t, 3, tbl.NCols())
}

func TestInterpreter_Rolling(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `closes
    |> filter(Ticker == "AAPL")
    |> mutate(ma = rolling(Close, 2, mean))`)

	ma := testutil.Values(t, tbl, "ma")
	require.Len(t, ma, 3)
	assert.Nil(t, ma[0])
	testutil.AssertFloat64Near(t, 102.5, ma[1].(float64), 1e-9)
	testutil.AssertFloat64Near(t, 103.95, ma[2].(float64), 1e-9)
}

func TestInterpreter_RollingPerGroup(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `closes |> group_by(Ticker) |> mutate(prev = rolling(Close, 2, first)) |> ungroup()`)

	prev := testutil.Values(t, tbl, "prev")
	assert.Equal(t, []any{nil, nil, 100.0, 300.0, 105.0}, prev)
}

func TestInterpreter_CumSum(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `sales |> mutate(running = cumsum(quantity))`)
	assert.Equal(t, []any{int64(5), int64(20), int64(23), int64(43), int64(51)}, testutil.Values(t, tbl, "running"))
}

func TestInterpreter_TimeComparison(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `orders |> filter(OrderDate >= "2011-06-01")`)
	assert.Equal(t, 3, tbl.NRows())
}

func TestInterpreter_ElementFunctions(t *testing.T) {
	in := newInterpreter(t, Options{})

	tbl := execTable(t, in, `sales |> filter(isin(category, ["A", "C"]))`)
	assert.Equal(t, 3, tbl.NRows())

	tbl = execTable(t, in, `sales |> filter(between(price, 10, 20) and category != "C")`)
	assert.Equal(t, []any{10.5, 20.0, 15.0}, testutil.Values(t, tbl, "price"))

	tbl = execTable(t, in, `sales |> mutate(code = lower(category) + "-" + "x")`)
	assert.Equal(t, "a-x", testutil.Values(t, tbl, "code")[0])
}

func TestInterpreter_ValueCountsAndRename(t *testing.T) {
	in := newInterpreter(t, Options{})

	tbl := execTable(t, in, `sales |> value_counts(category)`)
	assert.Equal(t, 3, tbl.NRows())

	tbl = execTable(t, in, `sales |> rename(cost: price)`)
	assert.True(t, tbl.HasColumn("cost"))
	assert.False(t, tbl.HasColumn("price"))
}

func TestInterpreter_Resample(t *testing.T) {
	in := newInterpreter(t, Options{})
	tbl := execTable(t, in, `closes |> resample(time: Date, freq: "D", values: Close, by: Ticker, agg: last)`)
	assert.Positive(t, tbl.NRows())
	assert.True(t, tbl.HasColumn("Close"))
}

func TestInterpreter_VariablesAndReturn(t *testing.T) {
	in := newInterpreter(t, Options{})
	res := exec(t, in, "x = 10\ny = x * 2\nreturn y + 1\ny + 100")

	assert.Equal(t, int64(21), res.Value)
	vars := in.Vars()
	assert.Equal(t, int64(10), vars["x"])
	assert.Equal(t, int64(20), vars["y"])

	// Variables survive into the next run.
	assert.Equal(t, int64(30), exec(t, in, `x + y`).Value)

	in.Reset()
	_, err := in.Exec(context.Background(), `x`)
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestInterpreter_AssignmentHasNoValue(t *testing.T) {
	in := newInterpreter(t, Options{})
	res := exec(t, in, `x = 1`)
	assert.Nil(t, res.Value)
}

func TestInterpreter_NullSemantics(t *testing.T) {
	in := newInterpreter(t, Options{})
	tests := []struct {
		src  string
		want any
	}{
		{`1 / 0`, nil},
		{`5 % 0`, nil},
		{`null + 1`, nil},
		{`null == null`, false},
		{`null != 1`, false},
		{`not null`, nil},
		{`null or true`, true},
		{`null and true`, false},
		{`7 / 2`, 3.5},
		{`7 % 2`, int64(1)},
		{`-3 + 1`, int64(-2)},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, exec(t, in, tt.src).Value)
		})
	}
}

func TestInterpreter_MemberAndIndex(t *testing.T) {
	in := newInterpreter(t, Options{})

	assert.Equal(t, 20.0, exec(t, in, `sales.price[1]`).Value)
	assert.Equal(t, "B", exec(t, in, `sales["category"][4]`).Value)
	assert.Equal(t, int64(3), exec(t, in, `[1, 2, 3][2]`).Value)
	assert.Equal(t, 80.5, exec(t, in, `sum(sales.price)`).Value)
}

func TestInterpreter_TypeMismatch(t *testing.T) {
	in := newInterpreter(t, Options{})
	_, err := in.Exec(context.Background(), `sales |> mutate(bad = category * 2)`)
	assert.ErrorIs(t, err, table.ErrTypeMismatch)
}

func TestInterpreter_UndefinedReportsLine(t *testing.T) {
	in := newInterpreter(t, Options{})
	_, err := in.Exec(context.Background(), "x = 1\ny = z + 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUndefined)

	var le *LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 2, le.Line)
}

func TestInterpreter_ColumnNotFound(t *testing.T) {
	in := newInterpreter(t, Options{})
	_, err := in.Exec(context.Background(), `sales |> select(nope)`)
	assert.ErrorIs(t, err, ops.ErrColumnNotFound)
	assert.Contains(t, err.Error(), "select")
}

func TestInterpreter_StageArgumentErrors(t *testing.T) {
	in := newInterpreter(t, Options{})
	tests := []struct {
		src  string
		want error
	}{
		{`sales |> pivot(columns: category)`, ErrArgument},
		{`sales |> head(-1)`, ErrArgument},
		{`sales |> sample(bogus: 1)`, ErrArgument},
		{`sales |> summarize(x = sum())`, ErrArgument},
		{`sales |> summarize(x = nope(price))`, ops.ErrUnknownReducer},
		{`sales |> drop_na(how: "some")`, ErrArgument},
		{`filter(price > 1)`, ErrUndefined},
		{`desc(price)`, ErrArgument},
		{`sales |> nosuchfunc()`, ErrUndefined},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := in.Exec(context.Background(), tt.src)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInterpreter_StepLimit(t *testing.T) {
	in := newInterpreter(t, Options{MaxSteps: 3})
	_, err := in.Exec(context.Background(), `1 + 2 + 3 + 4`)
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestInterpreter_Cancelled(t *testing.T) {
	in := newInterpreter(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := in.Exec(ctx, `sales |> head(1)`)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInterpreter_Load(t *testing.T) {
	path := testutil.TempCSV(t, testutil.OrdersCSV())
	in := newInterpreter(t, Options{})

	res := exec(t, in, fmt.Sprintf(`load(%q, sep: "|", time: OrderDate) |> filter(TerritoryID == 5) |> nrow`, path))
	assert.Equal(t, int64(2), res.Value)
}

func TestInterpreter_Sandbox(t *testing.T) {
	allowed := testutil.TempCSV(t, testutil.OrdersCSV())
	denied := testutil.TempCSV(t, testutil.OrdersCSV())

	in := newInterpreter(t, Options{Sandbox: true, AllowedPaths: []string{allowed}})

	_, err := in.Exec(context.Background(), fmt.Sprintf(`load(%q, sep: "|") |> nrow`, allowed))
	require.NoError(t, err)

	_, err = in.Exec(context.Background(), fmt.Sprintf(`load(%q, sep: "|")`, denied))
	assert.ErrorIs(t, err, ErrSandboxViolation)

	// Registered frames stay reachable.
	_, err = in.Exec(context.Background(), `sales |> head(1)`)
	assert.NoError(t, err)
}

func TestInterpreter_SandboxFollowsSymlinks(t *testing.T) {
	allowed, outside := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "s.csv"), []byte(testutil.OrdersCSV()), 0o644))
	if err := os.Symlink(outside, filepath.Join(allowed, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	in := newInterpreter(t, Options{Sandbox: true, AllowedPaths: []string{allowed}})
	_, err := in.Exec(context.Background(), fmt.Sprintf(`load(%q, sep: "|")`, filepath.Join(allowed, "link", "s.csv")))
	assert.ErrorIs(t, err, ErrSandboxViolation)

	in = newInterpreter(t, Options{Sandbox: true, AllowedPaths: []string{filepath.Join(allowed, "link")}})
	_, err = in.Exec(context.Background(), fmt.Sprintf(`load(%q, sep: "|") |> nrow`, filepath.Join(outside, "s.csv")))
	assert.NoError(t, err)
}

func TestInterpreter_FrameNames(t *testing.T) {
	in := newInterpreter(t, Options{})
	assert.Equal(t, []string{"closes", "customers", "orders", "sales"}, in.FrameNames())

	tbl := execTable(t, in, `frame("sales") |> tail(1)`)
	assert.Equal(t, []any{15.0}, testutil.Values(t, tbl, "price"))

	_, err := in.Exec(context.Background(), `frame("missing")`)
	assert.ErrorIs(t, err, ErrUndefined)
}
