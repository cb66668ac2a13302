// Package testutil provides fixtures and helpers for tabular tests.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akhildatla/tabular/pkg/table"
)

// TempCSV creates a temporary CSV file and returns its path.
// The file is automatically cleaned up when the test finishes.
func TempCSV(t *testing.T, content string) string {
	t.Helper()
	return TempFile(t, content, ".csv")
}

// TempFile creates a temporary file with the given content and extension.
func TempFile(t *testing.T, content, ext string) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test"+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// OrdersCSV returns a pipe-delimited sales order extract.
func OrdersCSV() string {
	return `SalesOrderID|OrderDate|CustomerID|TerritoryID|TotalDue
43659|2011-05-31|29825|5|23153.2339
43660|2011-05-31|29672|5|1457.3288
43661|2011-05-31|29734|6|36865.8012
43662|2011-06-01|29994|6|32474.9324
43663|2011-06-01|29565|4|472.3108
43664|2011-06-02|29898|1|27510.4109`
}

// CustomersCSV returns a pipe-delimited customer extract. Customers
// 29994 and 29898 from OrdersCSV are absent and 11000 has no orders.
func CustomersCSV() string {
	return `CustomerID|AccountNumber|TerritoryID
29825|AW00029825|5
29672|AW00029672|5
29734|AW00029734|6
29565|AW00029565|4
11000|AW00011000|9`
}

// MakeOrders builds the table OrdersCSV describes.
func MakeOrders(t *testing.T) *table.Table {
	t.Helper()
	return MustTable(t,
		table.Ints("SalesOrderID", 43659, 43660, 43661, 43662, 43663, 43664),
		table.Times("OrderDate", Day(2011, 5, 31), Day(2011, 5, 31), Day(2011, 5, 31), Day(2011, 6, 1), Day(2011, 6, 1), Day(2011, 6, 2)),
		table.Ints("CustomerID", 29825, 29672, 29734, 29994, 29565, 29898),
		table.Ints("TerritoryID", 5, 5, 6, 6, 4, 1),
		table.Floats("TotalDue", 23153.2339, 1457.3288, 36865.8012, 32474.9324, 472.3108, 27510.4109),
	)
}

// MakeSales creates a small sales table with a category key.
func MakeSales(t *testing.T) *table.Table {
	t.Helper()
	return MustTable(t,
		table.Floats("price", 10.5, 20.0, 5.0, 30.0, 15.0),
		table.Ints("quantity", 5, 15, 3, 20, 8),
		table.Strings("category", "A", "B", "A", "C", "B"),
	)
}

// MakeCloses builds long-form daily closes for two tickers over three
// dates with MSFT missing on the last date.
func MakeCloses(t *testing.T) *table.Table {
	t.Helper()
	return MustTable(t,
		table.Times("Date", Day(2022, 1, 3), Day(2022, 1, 3), Day(2022, 1, 4), Day(2022, 1, 4), Day(2022, 1, 5)),
		table.Strings("Ticker", "AAPL", "MSFT", "AAPL", "MSFT", "AAPL"),
		table.Floats("Close", 100.0, 300.0, 105.0, 297.0, 102.9),
	)
}

// BarsJSON returns an aggregates API response with two daily bars.
func BarsJSON(ticker string) string {
	return `{"ticker":"` + ticker + `","queryCount":2,"resultsCount":2,"adjusted":true,"status":"OK","request_id":"abc","count":2,
"results":[
{"v":104487900,"vw":180.2,"o":177.83,"c":182.01,"h":182.88,"l":177.71,"t":1641186000000,"n":772345},
{"v":99310438,"vw":180.0,"o":182.63,"c":179.7,"h":182.94,"l":179.12,"t":1641272400000,"n":831213}]}`
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MustTable builds a table or fails the test.
func MustTable(t *testing.T, cols ...*table.Column) *table.Table {
	t.Helper()
	tbl, err := table.New(cols...)
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}
	return tbl
}

// Values returns the values of the named column or fails the test.
func Values(t *testing.T, tbl *table.Table, name string) []any {
	t.Helper()
	c, err := tbl.Column(name)
	if err != nil {
		t.Fatalf("column %s: %v", name, err)
	}
	return c.Values()
}

// AssertFloat64Near checks if two float64 values are approximately equal.
func AssertFloat64Near(t *testing.T, expected, actual, tolerance float64) {
	t.Helper()
	if math.Abs(actual-expected) > tolerance {
		t.Errorf("expected %.6f, got %.6f (tolerance: %.6f)", expected, actual, tolerance)
	}
}
