package codegen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/akhildatla/tabular/pkg/table"
)

// FrameName is the name the input table is registered under.
const FrameName = "df"

// SampleRows is how many rows of the input are shown in the prompt.
const SampleRows = 5

// SystemInstruction frames the model as a code generator.
const SystemInstruction = "You are a data assistant. Only output programs in the tabular pipeline language. Never explain."

const languageGuide = `Language reference:
- Statements are separated by newlines. "name = expr" assigns a variable.
- "frame |> stage(args) |> stage(args)" pipes a frame through stages.
- Stages: filter(cond), select(cols...), drop(cols...), rename(new: old),
  mutate(name = expr, ...), group_by(cols...), summarize(name = reducer(expr), ...),
  arrange(col, desc(col)), head(n), tail(n), count(),
  join(other, on: col, how: "inner"|"left"|"right"|"outer"), left_join(other, on: col),
  pivot(index: col, columns: col, values: col), melt(id: col, values: [cols]),
  resample(time: col, freq: "D"|"W"|"M"|"Q"|"Y", values: col, agg: mean),
  drop_na(), fill_na(value), value_counts(col), nlargest(n, col), nsmallest(n, col).
- Reducers: count, sum, mean, min, max, std, median, nunique, first, last.
- Row functions: rolling(col, n, reducer), cumsum(col), pct_change(col),
  isin(col, [values]), between(col, lo, hi), lower, upper, abs, round, year, month.
- Operators: + - * / %  == != < <= > >=  and or not. Strings use double quotes.
- The last line must be an expression whose value is the resulting frame.`

// BuildPrompt describes the language, the input frame's schema and its
// first rows, followed by the instruction.
func BuildPrompt(instruction string, t *table.Table) string {
	var sb strings.Builder
	sb.WriteString("Write a program that performs the following transformation:\n")
	sb.WriteString(strings.TrimSpace(instruction))
	sb.WriteString("\n\n")
	sb.WriteString(languageGuide)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "The input frame is named %s. Schema:\n", FrameName)
	for _, f := range t.Schema() {
		fmt.Fprintf(&sb, "  %s: %s\n", f.Name, f.Kind)
	}

	head := t.Head(SampleRows)
	fmt.Fprintf(&sb, "\nFirst %d rows:\n", head.NRows())
	sb.WriteString(strings.Join(head.Names(), " | "))
	sb.WriteByte('\n')
	cols := head.Columns()
	for i := 0; i < head.NRows(); i++ {
		cells := make([]string, len(cols))
		for j, c := range cols {
			if v := c.Value(i); v == nil {
				cells[j] = "null"
			} else {
				cells[j] = table.FormatValue(v)
			}
		}
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteByte('\n')
	}

	sb.WriteString("\nProvide only the program, no explanation.")
	return sb.String()
}

var fenceRe = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_+-]*[ \t]*\n)?(.*?)```")

// StripFences returns the contents of the first markdown code fence in
// s, or s trimmed when there is none.
func StripFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
