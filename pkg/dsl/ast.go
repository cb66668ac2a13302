package dsl

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
}

// Expr is the interface implemented by all expression nodes.
type Expr interface {
	Node
	expr()
}

// Stmt is the interface implemented by all statement nodes.
type Stmt interface {
	Node
	stmt()
	// Line is the source line the statement starts on.
	Line() int
}

// Program represents a complete pipe-language program.
type Program struct {
	Statements []Stmt
}

func (*Program) node() {}

// ===== Statements =====

// AssignStmt represents a variable assignment.
// Example: orders = load("orders.csv")
type AssignStmt struct {
	Name  string
	Value Expr
	Pos   int
}

func (*AssignStmt) node()       {}
func (*AssignStmt) stmt()       {}
func (s *AssignStmt) Line() int { return s.Pos }

// ReturnStmt represents a return statement.
// Example: return sum(orders.TotalDue)
type ReturnStmt struct {
	Value Expr
	Pos   int
}

func (*ReturnStmt) node()       {}
func (*ReturnStmt) stmt()       {}
func (s *ReturnStmt) Line() int { return s.Pos }

// ExprStmt represents an expression used as a statement.
type ExprStmt struct {
	Expr Expr
	Pos  int
}

func (*ExprStmt) node()       {}
func (*ExprStmt) stmt()       {}
func (s *ExprStmt) Line() int { return s.Pos }

// ===== Expressions =====

// Ident names a column, variable or registered frame.
type Ident struct {
	Name string
}

func (*Ident) node() {}
func (*Ident) expr() {}

// IntLit represents an integer literal.
type IntLit struct {
	Value int64
}

func (*IntLit) node() {}
func (*IntLit) expr() {}

// FloatLit represents a float literal.
type FloatLit struct {
	Value float64
}

func (*FloatLit) node() {}
func (*FloatLit) expr() {}

// StringLit represents a string literal.
type StringLit struct {
	Value string
}

func (*StringLit) node() {}
func (*StringLit) expr() {}

// BoolLit represents a boolean literal.
type BoolLit struct {
	Value bool
}

func (*BoolLit) node() {}
func (*BoolLit) expr() {}

// NullLit represents the null literal.
type NullLit struct{}

func (*NullLit) node() {}
func (*NullLit) expr() {}

// ListLit represents a bracketed list.
// Example: ["AAPL", "MSFT"]
type ListLit struct {
	Elems []Expr
}

func (*ListLit) node() {}
func (*ListLit) expr() {}

// BinaryExpr represents a binary operation.
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) node() {}
func (*BinaryExpr) expr() {}

// UnaryExpr represents a unary operation (not, -).
type UnaryExpr struct {
	Op    TokenType
	Right Expr
}

func (*UnaryExpr) node() {}
func (*UnaryExpr) expr() {}

// NamedArg is a `name: value` call argument.
type NamedArg struct {
	Name  string
	Value Expr
}

// CallExpr represents a function call or a generic pipe stage.
// Example: pivot(index: "Date", columns: "Ticker", values: "Close")
type CallExpr struct {
	Func  string
	Args  []Expr
	Named []NamedArg
}

func (*CallExpr) node() {}
func (*CallExpr) expr() {}

// Arg returns the named argument, or nil.
func (c *CallExpr) Arg(name string) Expr {
	for _, a := range c.Named {
		if a.Name == name {
			return a.Value
		}
	}
	return nil
}

// PipeExpr represents left |> right.
type PipeExpr struct {
	Left  Expr
	Right Expr
}

func (*PipeExpr) node() {}
func (*PipeExpr) expr() {}

// MemberExpr selects a column of a frame.
// Example: orders.TotalDue
type MemberExpr struct {
	Object Expr
	Member string
}

func (*MemberExpr) node() {}
func (*MemberExpr) expr() {}

// IndexExpr selects a column by a computed name.
// Example: orders["Total Due"]
type IndexExpr struct {
	Object Expr
	Index  Expr
}

func (*IndexExpr) node() {}
func (*IndexExpr) expr() {}

// ===== Frame stages =====

// FilterExpr keeps the rows where Condition is true.
type FilterExpr struct {
	Condition Expr
}

func (*FilterExpr) node() {}
func (*FilterExpr) expr() {}

// SelectExpr keeps the named columns in the given order.
type SelectExpr struct {
	Columns []string
}

func (*SelectExpr) node() {}
func (*SelectExpr) expr() {}

// Assignment binds an output column to an expression.
type Assignment struct {
	Name  string
	Value Expr
}

// MutateExpr adds or replaces columns. Assignments see the columns
// produced by earlier assignments of the same stage.
type MutateExpr struct {
	Assignments []Assignment
}

func (*MutateExpr) node() {}
func (*MutateExpr) expr() {}

// GroupByExpr marks the frame as grouped by Keys for the next stage.
type GroupByExpr struct {
	Keys []string
}

func (*GroupByExpr) node() {}
func (*GroupByExpr) expr() {}

// AggregateAssign is one output of summarize.
// Example: total = sum(TotalDue)
type AggregateAssign struct {
	Name string
	Func string
	Args []Expr
}

// SummarizeExpr reduces each group to one row.
type SummarizeExpr struct {
	Aggregations []AggregateAssign
}

func (*SummarizeExpr) node() {}
func (*SummarizeExpr) expr() {}

// JoinExpr joins the piped frame with Right. An empty On joins on
// every column name the two frames share.
type JoinExpr struct {
	How        string
	Right      Expr
	On         []string
	Suffixes   []string
	NullsEqual bool
}

func (*JoinExpr) node() {}
func (*JoinExpr) expr() {}
