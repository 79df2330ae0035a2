package statement

type ExprKind int

const (
	ExprAnd = ExprKind(iota)
	ExprOr
	ExprNot
	// ExprCompare holds Op and two Args.
	ExprCompare
	// ExprIn holds the left operand in Args[0] and the list in Args[1:].
	ExprIn
	// ExprBetween holds Args[0] BETWEEN Args[1] AND Args[2].
	ExprBetween
	ExprColumn
	ExprLiteral
	ExprParam
	ExprFunc
	// ExprBinary is an arithmetic operation.
	ExprBinary
	// ExprOther is anything the core does not look into.
	ExprOther
)

// Expr is a flat predicate/value tree node. Only the fields matching Kind are set.
type Expr struct {
	Kind ExprKind
	Op   string
	Not  bool

	Table  string
	Column string

	Value any
	// Param is the 0-based ordinal of a '?' marker.
	Param int

	Name     string
	Distinct bool
	Star     bool

	Args []*Expr

	// Text is the canonical lower-cased rendering of the node.
	Text string
}

// Resolve returns the value of a literal or bound parameter.
func (e *Expr) Resolve(params []any) (any, bool) {
	if e == nil {
		return nil, false
	}
	switch e.Kind {
	case ExprLiteral:
		return e.Value, true
	case ExprParam:
		if e.Param < 0 || e.Param >= len(params) {
			return nil, false
		}
		return params[e.Param], true
	default:
		return nil, false
	}
}

// Conjuncts flattens top level AND nodes.
func (e *Expr) Conjuncts() []*Expr {
	if e == nil {
		return nil
	}
	if e.Kind != ExprAnd {
		return []*Expr{e}
	}
	var res []*Expr
	for _, a := range e.Args {
		res = append(res, a.Conjuncts()...)
	}
	return res
}

// Walk calls fn for e and every descendant until fn returns false.
func (e *Expr) Walk(fn func(*Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, a := range e.Args {
		a.Walk(fn)
	}
}
