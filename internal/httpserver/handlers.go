package httpserver

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/akhildatla/tabular/pkg/dsl"
	"github.com/akhildatla/tabular/pkg/embed"
	"github.com/akhildatla/tabular/pkg/table"
)

type (
	ColumnInfo struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}

	FrameInfo struct {
		Name    string       `json:"name"`
		Rows    int          `json:"rows"`
		Columns []ColumnInfo `json:"columns"`
	}

	QueryReqBody struct {
		Program string `json:"program" validate:"required"`
		// Limit caps returned rows. Zero means the server maximum.
		Limit int `json:"limit" validate:"gte=0"`
	}

	QueryStats struct {
		Steps      int64 `json:"steps"`
		Stages     int   `json:"stages"`
		DurationMS int64 `json:"duration_ms"`
	}

	QueryResponse struct {
		Columns   []ColumnInfo `json:"columns,omitempty"`
		Rows      [][]any      `json:"rows,omitempty"`
		TotalRows int          `json:"total_rows"`
		Truncated bool         `json:"truncated"`
		Value     any          `json:"value,omitempty"`
		Stats     QueryStats   `json:"stats"`
	}
)

func columnInfos(s table.Schema) []ColumnInfo {
	out := make([]ColumnInfo, len(s))
	for i, f := range s {
		out[i] = ColumnInfo{Name: f.Name, Kind: f.Kind.String()}
	}
	return out
}

func (s *HTTPServer) FramesHandler(c *CustomContext) error {
	names := make([]string, 0, len(s.frames))
	for name := range s.frames {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]FrameInfo, len(names))
	for i, name := range names {
		t := s.frames[name]
		out[i] = FrameInfo{Name: name, Rows: t.NRows(), Columns: columnInfos(t.Schema())}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) QueryHandler(c *CustomContext) error {
	var reqBody QueryReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return err
	}

	res, err := embed.Execute(reqBody.Program,
		embed.WithContext(c.Request().Context()),
		embed.WithFrames(s.frames),
		embed.WithSandbox(),
		embed.WithAllowedPaths(s.cfg.AllowedPaths...),
		embed.WithMaxSteps(s.cfg.MaxSteps),
		embed.WithTimeout(s.cfg.QueryTimeout),
	)
	if err != nil {
		return s.queryError(c, err)
	}

	limit := s.cfg.MaxRows
	if reqBody.Limit > 0 && reqBody.Limit < limit {
		limit = reqBody.Limit
	}

	resp := QueryResponse{Stats: QueryStats{
		Steps:      res.Stats.Steps,
		Stages:     res.Stats.Stages,
		DurationMS: res.Stats.Duration.Milliseconds(),
	}}
	switch v := res.Value.(type) {
	case *table.Table:
		resp.Columns = columnInfos(v.Schema())
		resp.TotalRows = v.NRows()
		resp.Truncated = v.NRows() > limit
		resp.Rows = tableRows(v.Head(limit))
	case *table.Column:
		vals := v.Values()
		resp.TotalRows = len(vals)
		if len(vals) > limit {
			vals, resp.Truncated = vals[:limit], true
		}
		resp.Value = jsonList(vals)
	case []any:
		resp.Value = jsonList(v)
	default:
		resp.Value = jsonValue(v)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) queryError(c *CustomContext, err error) error {
	switch {
	case errors.Is(err, embed.ErrSandboxViolation):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, embed.ErrTimeout):
		return echo.NewHTTPError(http.StatusRequestTimeout, err.Error())
	case errors.Is(err, context.Canceled):
		return c.InternalError(err, "query cancelled")
	case errors.Is(err, embed.ErrStepLimit):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	var se *dsl.SyntaxError
	if errors.As(err, &se) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
}

func tableRows(t *table.Table) [][]any {
	cols := t.Columns()
	rows := make([][]any, t.NRows())
	for i := range rows {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = jsonValue(c.Value(i))
		}
		rows[i] = row
	}
	return rows
}

func jsonList(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = jsonValue(v)
	}
	return out
}

// jsonValue maps values JSON cannot carry: non-finite floats become null
// and times are RFC 3339 strings.
func jsonValue(v any) any {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case *table.Table, *table.Column:
		return nil
	}
	return v
}
