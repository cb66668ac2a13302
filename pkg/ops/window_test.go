package ops_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/tabular/internal/testutil"
	"github.com/akhildatla/tabular/pkg/ops"
	"github.com/akhildatla/tabular/pkg/table"
)

func TestRolling(t *testing.T) {
	tbl := testutil.MustTable(t,
		table.Strings("tk", "A", "A", "B", "A", "B", "A"),
		table.Ints("day", 1, 2, 1, 3, 2, 4),
		table.Floats("px", 1.0, 2.0, 10.0, 3.0, 20.0, 5.0),
	)
	out, err := ops.Rolling(tbl, ops.RollingOptions{Column: "px", Window: 2, Reducer: ops.Mean, OrderBy: "day", PartitionBy: []string{"tk"}})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, 1.5, nil, 2.5, 15.0, 4.0}, out.Values())

	whole, err := ops.Rolling(tbl, ops.RollingOptions{Column: "px", Window: 3, Reducer: ops.Sum})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, 13.0, 15.0, 33.0, 28.0}, whole.Values())
}

func TestRolling_MinPeriods(t *testing.T) {
	tbl := testutil.MustTable(t, table.Floats("px", 1.0, nil, 3.0, 5.0))

	strict, err := ops.Rolling(tbl, ops.RollingOptions{Column: "px", Window: 2, Reducer: ops.Mean})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, nil, 4.0}, strict.Values())

	loose, err := ops.Rolling(tbl, ops.RollingOptions{Column: "px", Window: 2, Reducer: ops.Mean, MinPeriods: 1})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, 1.0, 3.0, 4.0}, loose.Values())
}

func TestRolling_Errors(t *testing.T) {
	tbl := testutil.MustTable(t, table.Ints("day", 2, 1), table.Floats("px", 1.0, 2.0))

	_, err := ops.Rolling(tbl, ops.RollingOptions{Column: "px", Window: 2, Reducer: ops.Mean, OrderBy: "day"})
	require.ErrorIs(t, err, ops.ErrUnsortedInput)

	_, err = ops.Rolling(tbl, ops.RollingOptions{Column: "px", Window: 0, Reducer: ops.Mean})
	require.ErrorIs(t, err, ops.ErrInvalidWindow)

	_, err = ops.Rolling(tbl, ops.RollingOptions{Column: "nope", Window: 1, Reducer: ops.Mean})
	require.ErrorIs(t, err, ops.ErrColumnNotFound)
}

func TestPctChange(t *testing.T) {
	c := table.Floats("close", 100.0, 105.0, 0.0, 5.0, nil, 10.0)
	out, err := ops.PctChange(c)
	require.NoError(t, err)
	vals := out.Values()
	assert.Nil(t, vals[0])
	testutil.AssertFloat64Near(t, 0.05, vals[1].(float64), 1e-12)
	assert.Equal(t, -1.0, vals[2])
	assert.Nil(t, vals[3], "previous value of zero yields null")
	assert.Nil(t, vals[4])
	assert.Nil(t, vals[5])

	closes := testutil.MakeCloses(t)
	by, err := ops.PctChangeBy(closes, "Close", []string{"Ticker"})
	require.NoError(t, err)
	got := by.Values()
	assert.Nil(t, got[0])
	assert.Nil(t, got[1])
	testutil.AssertFloat64Near(t, -0.01, got[3].(float64), 1e-12)
}

func TestCumSum(t *testing.T) {
	out, err := ops.CumSum(table.Ints("n", 1, nil, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), nil, int64(3), int64(6)}, out.Values())

	_, err = ops.CumSum(table.Strings("s", "a"))
	require.ErrorIs(t, err, ops.ErrTypeMismatch)
}

func TestResample_MonthEndWithGap(t *testing.T) {
	tbl := testutil.MustTable(t,
		table.Times("Date", testutil.Day(2022, 1, 3), testutil.Day(2022, 1, 31), testutil.Day(2022, 3, 1)),
		table.Floats("Close", 10.0, 20.0, 40.0),
	)
	out, err := ops.Resample(tbl, ops.ResampleOptions{TimeColumn: "Date", Freq: ops.MonthEnd, Reducer: ops.Mean})
	require.NoError(t, err)
	assert.Equal(t, []any{testutil.Day(2022, 1, 31), testutil.Day(2022, 2, 28), testutil.Day(2022, 3, 31)}, testutil.Values(t, out, "Date"))
	assert.Equal(t, []any{15.0, nil, 40.0}, testutil.Values(t, out, "Close"))

	counts, err := ops.Resample(tbl, ops.ResampleOptions{TimeColumn: "Date", Freq: ops.MonthEnd, Reducer: ops.Count})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(0), int64(1)}, testutil.Values(t, counts, "Close"))
}

func TestResample_ByAndErrors(t *testing.T) {
	closes := testutil.MakeCloses(t)
	weekly, err := ops.Resample(closes, ops.ResampleOptions{TimeColumn: "Date", Freq: ops.Weekly, Reducer: ops.Max, By: []string{"Ticker"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"AAPL", "MSFT"}, testutil.Values(t, weekly, "Ticker"))
	assert.Equal(t, []any{testutil.Day(2022, 1, 9), testutil.Day(2022, 1, 9)}, testutil.Values(t, weekly, "Date"))
	assert.Equal(t, []any{105.0, 300.0}, testutil.Values(t, weekly, "Close"))

	unsorted, err := closes.Sort(table.Desc("Date"))
	require.NoError(t, err)
	_, err = ops.Resample(unsorted, ops.ResampleOptions{TimeColumn: "Date", Freq: ops.Daily, Reducer: ops.Mean})
	require.ErrorIs(t, err, ops.ErrUnsortedInput)

	_, err = ops.Resample(closes, ops.ResampleOptions{TimeColumn: "Date", Freq: "fortnight", Reducer: ops.Mean})
	require.ErrorIs(t, err, ops.ErrInvalidFrequency)
}

func TestFrequency_BucketEnd(t *testing.T) {
	d := testutil.Day(2024, 2, 14)
	assert.Equal(t, testutil.Day(2024, 2, 14), ops.Daily.BucketEnd(d))
	assert.Equal(t, testutil.Day(2024, 2, 18), ops.Weekly.BucketEnd(d))
	assert.Equal(t, testutil.Day(2024, 2, 29), ops.MonthEnd.BucketEnd(d))
	assert.Equal(t, testutil.Day(2024, 3, 31), ops.QuarterEnd.BucketEnd(d))
	assert.Equal(t, testutil.Day(2024, 12, 31), ops.YearEnd.BucketEnd(d))
	assert.Equal(t, testutil.Day(2024, 3, 31), ops.MonthEnd.Next(testutil.Day(2024, 2, 29)))

	f, err := ops.ParseFrequency("ME")
	require.NoError(t, err)
	assert.Equal(t, ops.MonthEnd, f)
}

func TestCorrelationMatrix(t *testing.T) {
	tbl := testutil.MustTable(t,
		table.Floats("a", 1.0, 2.0, 3.0, 4.0),
		table.Floats("b", 2.0, 4.0, 6.0, nil),
		table.Floats("c", 4.0, 3.0, 2.0, 1.0),
		table.Floats("flat", 5.0, 5.0, 5.0, 5.0),
	)
	out, err := ops.CorrelationMatrix(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"column", "a", "b", "c", "flat"}, out.Names())
	a := mustColumn(t, out, "a")
	assert.Equal(t, 1.0, a.Value(0))
	testutil.AssertFloat64Near(t, 1.0, a.Value(1).(float64), 1e-12)
	testutil.AssertFloat64Near(t, -1.0, a.Value(2).(float64), 1e-12)
	assert.Nil(t, a.Value(3))
	assert.Nil(t, mustColumn(t, out, "flat").Value(3))

	// Symmetric.
	b := mustColumn(t, out, "b")
	testutil.AssertFloat64Near(t, a.Value(1).(float64), b.Value(0).(float64), 1e-12)
}
