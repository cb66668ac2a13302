package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/akhildatla/tabular/pkg/dsl"
	"github.com/akhildatla/tabular/pkg/loader"
	"github.com/akhildatla/tabular/pkg/sink"
	"github.com/akhildatla/tabular/pkg/table"
)

const (
	prompt     = "tabular> "
	promptCont = "...> "
)

// DefaultMaxRows is how many rows of a table result are printed.
const DefaultMaxRows = 20

// Options configures a REPL.
type Options struct {
	Interpreter dsl.Options
	// MaxRows caps printed table rows. Zero means DefaultMaxRows.
	MaxRows int
}

// REPL provides an interactive Read-Eval-Print Loop. Variables persist
// across inputs until :clear.
type REPL struct {
	in        *dsl.Interpreter
	maxRows   int
	history   []string
	multiline strings.Builder
	pending   bool
	done      bool
}

// New creates a new REPL instance.
func New(opts Options) *REPL {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	return &REPL{
		in:      dsl.New(opts.Interpreter),
		maxRows: opts.MaxRows,
	}
}

// SetFrames registers frames available in the REPL.
func (r *REPL) SetFrames(frames map[string]*table.Table) {
	for name, t := range frames {
		r.in.RegisterFrame(name, t)
	}
}

// Start runs the loop until :quit, end of input or ctx is done.
func (r *REPL) Start(ctx context.Context, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprintln(out, "tabular REPL - type :help for commands, :quit to exit")

	for !r.done && ctx.Err() == nil {
		if r.pending {
			fmt.Fprint(out, promptCont)
		} else {
			fmt.Fprint(out, prompt)
		}
		if !scanner.Scan() {
			break
		}
		r.handleLine(ctx, scanner.Text(), out)
	}
}

func (r *REPL) handleLine(ctx context.Context, line string, out io.Writer) {
	if strings.HasSuffix(line, "\\") {
		r.pending = true
		r.multiline.WriteString(strings.TrimSuffix(line, "\\"))
		r.multiline.WriteString("\n")
		return
	}
	if r.pending {
		r.multiline.WriteString(line)
		line = r.multiline.String()
		r.multiline.Reset()
		r.pending = false
	} else if r.handleCommand(line, out) {
		return
	}
	r.eval(ctx, line, out)
}

func (r *REPL) handleCommand(line string, out io.Writer) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	if !strings.HasPrefix(parts[0], ":") {
		return false
	}

	switch parts[0] {
	case ":quit", ":exit", ":q":
		fmt.Fprintln(out, "Goodbye!")
		r.done = true

	case ":help", ":h", ":?":
		r.printHelp(out)

	case ":frames":
		r.listFrames(out)

	case ":vars":
		r.listVariables(out)

	case ":load":
		if len(parts) != 3 {
			fmt.Fprintln(out, "Usage: :load <name> <path>")
			break
		}
		r.loadFrame(parts[1], parts[2], out)

	case ":clear":
		r.in.Reset()
		fmt.Fprintln(out, "Variables cleared")

	case ":history":
		for i, cmd := range r.history {
			fmt.Fprintf(out, "%3d: %s\n", i+1, cmd)
		}

	default:
		fmt.Fprintf(out, "Unknown command %s. Type :help for commands\n", parts[0])
	}
	return true
}

func (r *REPL) eval(ctx context.Context, input string, out io.Writer) {
	if strings.TrimSpace(input) == "" {
		return
	}
	r.history = append(r.history, input)

	res, err := r.in.Exec(ctx, input)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	r.print(res.Value, out)
}

func (r *REPL) print(v any, out io.Writer) {
	switch val := v.(type) {
	case nil:
	case *table.Table:
		if err := sink.Print(out, val, r.maxRows); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	case *table.Column:
		t, err := table.New(val)
		if err == nil {
			err = sink.Print(out, t, r.maxRows)
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	default:
		fmt.Fprintf(out, "=> %s\n", describe(v))
	}
}

func (r *REPL) loadFrame(name, path string, out io.Writer) {
	t, err := loader.Load(path, loader.CSVOptions{})
	if err != nil {
		fmt.Fprintf(out, "Error loading %s: %v\n", path, err)
		return
	}
	r.in.RegisterFrame(name, t)
	fmt.Fprintf(out, "Loaded frame '%s' from %s (%d rows, %d columns)\n",
		name, path, t.NRows(), t.NCols())
}

func (r *REPL) listFrames(out io.Writer) {
	names := r.in.FrameNames()
	if len(names) == 0 {
		fmt.Fprintln(out, "No frames loaded")
		return
	}

	fmt.Fprintln(out, "Loaded frames:")
	for _, name := range names {
		t, _ := r.in.Frame(name)
		fmt.Fprintf(out, "  %s: %d rows, %d columns (%s)\n",
			name, t.NRows(), t.NCols(), t.Schema())
	}
}

func (r *REPL) listVariables(out io.Writer) {
	vars := r.in.Vars()
	if len(vars) == 0 {
		fmt.Fprintln(out, "No variables defined")
		return
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "Variables:")
	for _, name := range names {
		fmt.Fprintf(out, "  %s = %s\n", name, describe(vars[name]))
	}
}

// describe renders a value on one line. Tables and columns are
// summarized by shape.
func describe(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case *table.Table:
		return fmt.Sprintf("<table %d rows x %d columns>", val.NRows(), val.NCols())
	case *table.Column:
		return fmt.Sprintf("<column %s %s, %d values>", val.Name(), val.Kind(), val.Len())
	case string:
		return fmt.Sprintf("%q", val)
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = describe(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return table.FormatValue(v)
}

func (r *REPL) printHelp(out io.Writer) {
	help := `
REPL Commands:
  :help, :h, :?        Show this help message
  :quit, :exit, :q     Exit the REPL
  :frames              List loaded frames
  :vars                List defined variables
  :load <name> <path>  Load a CSV, JSON or Parquet file as a frame
  :clear               Clear all variables
  :history             Show input history

Examples:
  data = load("sales.csv")
  data |> filter(quantity > 10) |> select(price, quantity)
  data |> group_by(category) |> summarize(total = sum(price))

Tips:
  - End a line with \ to continue the input on the next line
`
	fmt.Fprint(out, help)
}
