package embed

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/tabular/internal/testutil"
	"github.com/akhildatla/tabular/pkg/optimizer"
	"github.com/akhildatla/tabular/pkg/table"
)

func TestExecute_SumPrices(t *testing.T) {
	res, err := Execute(`sum(sales.price)`, WithFrame("sales", testutil.MakeSales(t)))
	require.NoError(t, err)
	testutil.AssertFloat64Near(t, 80.5, res.Value.(float64), 1e-9)
}

func TestExecute_FilterAggregate(t *testing.T) {
	res, err := Execute(`
sales
  |> filter(quantity > 10)
  |> summarize(avg_price = mean(price))
`, WithFrame("sales", testutil.MakeSales(t)))
	require.NoError(t, err)

	tbl, ok := res.Table()
	require.True(t, ok)
	require.Equal(t, 1, tbl.NRows())
	testutil.AssertFloat64Near(t, 25.0, testutil.Values(t, tbl, "avg_price")[0].(float64), 1e-9)
	assert.Equal(t, 2, res.Stats.Stages)
	assert.Equal(t, 1, res.Stats.Rows)
}

func TestExecute_WithFrames(t *testing.T) {
	res, err := Execute(`nrow(a) + nrow(b)`, WithFrames(map[string]*table.Table{
		"a": testutil.MakeSales(t),
		"b": testutil.MakeCloses(t),
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Value)
}

func TestExecute_WithDataFrame(t *testing.T) {
	df := dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("price", nil, 10.5, 20.0, 5.0, 30.0),
		dataframe.NewSeriesInt64("quantity", nil, 5, 15, 3, 20),
	)
	res, err := Execute(`sales |> filter(quantity > 10) |> nrow`, WithDataFrame("sales", df))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Value)
}

func TestExecute_SyntaxError(t *testing.T) {
	_, err := Execute(`sales |> filter(`)
	require.Error(t, err)
}

func TestExecute_StepLimit(t *testing.T) {
	_, err := Execute(`1 + 2 + 3 + 4 + 5`, WithMaxSteps(4))
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestExecute_Timeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := Execute(`1 + 1`, WithContext(ctx), WithTimeout(time.Minute))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(`1 + 1`, WithContext(ctx))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestExecute_Sandbox(t *testing.T) {
	path := testutil.TempCSV(t, "a,b\n1,2\n3,4\n")
	code := `load("` + filepath.ToSlash(path) + `") |> nrow`

	res, err := Execute(code)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Value)

	_, err = Execute(code, WithSandbox())
	assert.ErrorIs(t, err, ErrSandboxViolation)

	res, err = Execute(code, WithSandbox(), WithAllowedPaths(filepath.Dir(path)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Value)
}

func TestExecute_Optimize(t *testing.T) {
	code := `unused = 1
sales |> select(price, category) |> filter(price > 5 * 2) |> filter(category != "C")`
	sales := testutil.MakeSales(t)

	plain, err := Execute(code, WithFrame("sales", sales))
	require.NoError(t, err)
	optimized, err := Execute(code, WithFrame("sales", sales), WithOptimize())
	require.NoError(t, err)
	folded, err := Execute(code, WithFrame("sales", sales), WithOptimize(optimizer.WithConstantFolding()))
	require.NoError(t, err)

	want, _ := plain.Table()
	for _, res := range []*Result{optimized, folded} {
		got, ok := res.Table()
		require.True(t, ok)
		assert.Equal(t, want.Names(), got.Names())
		assert.Equal(t, testutil.Values(t, want, "price"), testutil.Values(t, got, "price"))
	}
	assert.Less(t, optimized.Stats.Stages, plain.Stats.Stages)
}

func TestExecute_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	_, err := Execute(`sales |> head(2)`, WithFrame("sales", testutil.MakeSales(t)), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"stage":"head"`)
	assert.Contains(t, buf.String(), "program finished")
}

func TestExecuteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.tab")
	require.NoError(t, os.WriteFile(path, []byte("x = 20\nreturn x * 2\n"), 0o644))

	res, err := ExecuteFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.Value)

	_, err = ExecuteFile(filepath.Join(t.TempDir(), "missing.tab"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
