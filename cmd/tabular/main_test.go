package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/tabular/internal/config"
	"github.com/akhildatla/tabular/internal/testutil"
	"github.com/akhildatla/tabular/pkg/codegen"
	"github.com/akhildatla/tabular/pkg/dsl"
)

const salesCSV = `price,quantity,category
10.5,5,A
20,15,B
5,3,A
30,20,C
15,8,B
`

type result struct {
	stdout, stderr string
	err            error
}

func execute(t *testing.T, ctx context.Context, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func tabular(t *testing.T, args ...string) result {
	t.Helper()
	return execute(t, context.Background(), "", args...)
}

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	return testutil.TempFile(t, src, ".tab")
}

func TestCLI_Version(t *testing.T) {
	res := tabular(t, "version")
	require.NoError(t, res.err)
	assert.Equal(t, "tabular version dev\n", res.stdout)
}

func TestCLI_Help(t *testing.T) {
	res := tabular(t, "--help")
	require.NoError(t, res.err)
	for _, sub := range []string{"run", "repl", "fetch", "ask", "serve", "version"} {
		assert.Contains(t, res.stdout, sub)
	}
}

func TestCLI_Run(t *testing.T) {
	t.Chdir(t.TempDir())
	sales := testutil.TempCSV(t, salesCSV)
	prog := writeProgram(t, "sales |> group_by(category) |> summarize(total = sum(quantity))")

	res := tabular(t, "run", prog, "--frame", "sales="+sales)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "category")
	assert.Contains(t, res.stdout, "total")
	assert.Contains(t, res.stdout, "[3 rows x 2 columns]")
}

func TestCLI_RunScalar(t *testing.T) {
	t.Chdir(t.TempDir())
	sales := testutil.TempCSV(t, salesCSV)

	res := tabular(t, "run", writeProgram(t, "sales |> count()"), "-f", "sales="+sales)
	require.NoError(t, res.err)
	assert.Equal(t, "5\n", res.stdout)

	res = tabular(t, "run", writeProgram(t, "x = 1"), "-f", "sales="+sales)
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)
}

func TestCLI_RunCSVOut(t *testing.T) {
	t.Chdir(t.TempDir())
	sales := testutil.TempCSV(t, salesCSV)
	out := filepath.Join(t.TempDir(), "out.csv")

	res := tabular(t, "run", writeProgram(t, "sales |> filter(price > 15) |> select(category, price)"),
		"--frame", "sales="+sales, "--out", out)
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "category,price\nB,20\nC,30\n", string(data))
}

func TestCLI_RunPipeSeparated(t *testing.T) {
	t.Chdir(t.TempDir())
	orders := testutil.TempCSV(t, testutil.OrdersCSV())

	res := tabular(t, "run", writeProgram(t, "orders |> filter(TerritoryID == 6) |> nrow"),
		"--frame", "orders="+orders, "--sep", "|")
	require.NoError(t, res.err)
	assert.Equal(t, "2\n", res.stdout)
}

func TestCLI_RunChart(t *testing.T) {
	t.Chdir(t.TempDir())
	sales := testutil.TempCSV(t, salesCSV)

	res := tabular(t, "run", writeProgram(t, "sales"), "-f", "sales="+sales,
		"--format", "chart", "--y", "price", "--height", "4")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "price")
}

func TestCLI_RunErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	sales := testutil.TempCSV(t, salesCSV)
	prog := writeProgram(t, "sales")

	res := tabular(t, "run", prog, "--frame", "sales")
	assert.ErrorIs(t, res.err, ErrBadFrameFlag)

	res = tabular(t, "run", prog, "--frame", "sales="+sales, "--format", "xml")
	assert.ErrorIs(t, res.err, ErrUnknownFormat)

	res = tabular(t, "run", prog, "--frame", "sales="+sales, "--format", "parquet")
	assert.ErrorContains(t, res.err, "--out")

	res = tabular(t, "run", filepath.Join(t.TempDir(), "missing.tab"))
	assert.Error(t, res.err)

	res = tabular(t, "run", writeProgram(t, "nope |> head(1)"))
	assert.ErrorIs(t, res.err, dsl.ErrUndefined)

	res = tabular(t, "run")
	assert.Error(t, res.err)

	res = tabular(t, "run", prog, "--sep", "||")
	assert.ErrorContains(t, res.err, "one character")
}

func TestCLI_RunSandbox(t *testing.T) {
	t.Chdir(t.TempDir())
	sales := testutil.TempCSV(t, salesCSV)
	prog := writeProgram(t, `load("`+sales+`") |> nrow`)

	res := tabular(t, "run", prog)
	require.NoError(t, res.err)
	assert.Equal(t, "5\n", res.stdout)

	res = tabular(t, "run", prog, "--sandbox")
	assert.ErrorIs(t, res.err, dsl.ErrSandboxViolation)
}

func TestCLI_Config(t *testing.T) {
	t.Chdir(t.TempDir())
	sales := testutil.TempCSV(t, salesCSV)
	cfg := testutil.TempFile(t, "exec:\n  max_rows: 2\nlog:\n  level: debug\n", ".yaml")

	res := tabular(t, "--config", cfg, "run", writeProgram(t, "sales"), "-f", "sales="+sales)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "... 3 more rows")
	assert.Contains(t, res.stderr, "run_")
	assert.Contains(t, res.stderr, "program finished")

	bad := testutil.TempFile(t, "log:\n  level: loud\n", ".yaml")
	res = tabular(t, "--config", bad, "run", writeProgram(t, "1"))
	assert.ErrorIs(t, res.err, config.ErrInvalid)

	res = tabular(t, "--log-level", "error", "run", writeProgram(t, "1"))
	require.NoError(t, res.err)
	assert.Empty(t, res.stderr)
}

func TestCLI_Fetch(t *testing.T) {
	t.Chdir(t.TempDir())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		_, _ = w.Write([]byte(testutil.BarsJSON(parts[4])))
	}))
	defer srv.Close()
	t.Setenv("TABULAR_MARKET_BASE_URL", srv.URL)
	t.Setenv("TABULAR_MARKET_API_KEY", "key")

	res := tabular(t, "fetch", "--tickers", "MSFT,AAPL", "--from", "2022-01-01", "--to", "2022-01-31", "--format", "csv")
	require.NoError(t, res.err, res.stderr)

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Date,Open,High,Low,Close,Volume,Ticker", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",AAPL"))
	assert.True(t, strings.HasSuffix(lines[2], ",MSFT"))

	res = tabular(t, "fetch", "-t", "MSFT,AAPL", "--from", "2022-01-01", "--to", "2022-01-31", "--returns", "--format", "csv")
	require.NoError(t, res.err, res.stderr)
	lines = strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,AAPL,MSFT", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2022-01-03"))
	assert.True(t, strings.HasSuffix(lines[1], ",,"))
}

func TestCLI_FetchErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TABULAR_MARKET_API_KEY", "key")

	res := tabular(t, "fetch", "--tickers", "AAPL", "--from", "01/02/2022", "--to", "2022-01-31")
	assert.ErrorContains(t, res.err, "--from")

	res = tabular(t, "fetch", "--tickers", "AAPL", "--from", "2022-02-01", "--to", "2022-01-31")
	assert.ErrorContains(t, res.err, "before")

	res = tabular(t, "fetch", "--from", "2022-01-01", "--to", "2022-01-31")
	assert.ErrorContains(t, res.err, "tickers")
}

type fakeGenerator struct{ reply string }

func (f fakeGenerator) Generate(context.Context, string) (string, error) { return f.reply, nil }

func TestCLI_Ask(t *testing.T) {
	t.Chdir(t.TempDir())
	orig := newGenerator
	t.Cleanup(func() { newGenerator = orig })
	newGenerator = func(context.Context, *config.Config) (codegen.Generator, error) {
		return fakeGenerator{reply: "```\ndf |> filter(price > 15) |> select(category)\n```"}, nil
	}
	sales := testutil.TempCSV(t, salesCSV)

	res := tabular(t, "ask", "categories", "of", "expensive", "items", "--frame", "sales="+sales, "--format", "csv", "--show-program")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "category\nB\nC\n", res.stdout)
	assert.Contains(t, res.stderr, "df |> filter(price > 15) |> select(category)")

	newGenerator = func(context.Context, *config.Config) (codegen.Generator, error) {
		return fakeGenerator{reply: `load("` + sales + `")`}, nil
	}
	res = tabular(t, "ask", "load something", "--frame", "sales="+sales)
	assert.ErrorIs(t, res.err, dsl.ErrSandboxViolation)
	assert.Contains(t, res.stderr, "program:")

	res = tabular(t, "ask", "x")
	assert.ErrorContains(t, res.err, "frame")
}

func TestCLI_Repl(t *testing.T) {
	t.Chdir(t.TempDir())
	sales := testutil.TempCSV(t, salesCSV)

	res := execute(t, context.Background(), "sales |> count()\n:quit\n", "repl", "--frame", "sales="+sales)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "=> 5")
	assert.Contains(t, res.stdout, "Goodbye!")
}

func TestCLI_ServeStopsOnCancel(t *testing.T) {
	t.Chdir(t.TempDir())
	sales := testutil.TempCSV(t, salesCSV)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := execute(t, ctx, "", "serve", "--addr", "127.0.0.1:0", "--frame", "sales="+sales)
	assert.NoError(t, res.err)
}
