package dsl

// Constant evaluates an expression built only from literals and
// operators. ok is false when e references anything else or the
// evaluation fails, so runtime errors stay at run time.
func Constant(e Expr) (v any, ok bool) {
	if !isConstant(e) {
		return nil, false
	}
	v, err := New(Options{}).eval(e, nil)
	if err != nil {
		return nil, false
	}
	return v, true
}

func isConstant(e Expr) bool {
	switch n := e.(type) {
	case *IntLit, *FloatLit, *StringLit, *BoolLit, *NullLit:
		return true
	case *BinaryExpr:
		return isConstant(n.Left) && isConstant(n.Right)
	case *UnaryExpr:
		return isConstant(n.Right)
	}
	return false
}

// Literal returns the literal node for a scalar value.
func Literal(v any) (Expr, bool) {
	switch val := v.(type) {
	case nil:
		return &NullLit{}, true
	case int64:
		return &IntLit{Value: val}, true
	case float64:
		return &FloatLit{Value: val}, true
	case string:
		return &StringLit{Value: val}, true
	case bool:
		return &BoolLit{Value: val}, true
	}
	return nil, false
}
