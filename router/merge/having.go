package merge

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
	"github.com/pg-sharding/shardcore/pkg/statement"
)

var havingOps = map[string]string{
	"=":  "==",
	"!=": "!=",
	"<>": "!=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
	"+":  "+",
	"-":  "-",
	"*":  "*",
	"/":  "/",
	"%":  "%",
}

// havingFilter evaluates HAVING over combined group rows.
type havingFilter struct {
	expr *govaluate.EvaluableExpression
	// vars bind expression variables to a result column or, when col is -1, a constant.
	vars map[string]havingVar
}

type havingVar struct {
	col   int
	value any
}

type havingBuilder struct {
	sel    *statement.SelectInfo
	cols   *columns
	params []any
	vars   map[string]havingVar
}

func newHavingFilter(sel *statement.SelectInfo, cols *columns, params []any) (*havingFilter, error) {
	b := &havingBuilder{sel: sel, cols: cols, params: params, vars: map[string]havingVar{}}
	text, err := b.translate(sel.Having)
	if err != nil {
		return nil, err
	}
	expr, err := govaluate.NewEvaluableExpression(text)
	if err != nil {
		return nil, sherror.Newf(sherror.SHARD_MERGE_ERROR, "cannot evaluate HAVING %s: %v", sel.Having.Text, err)
	}
	return &havingFilter{expr: expr, vars: b.vars}, nil
}

func (b *havingBuilder) bind(v havingVar) string {
	name := fmt.Sprintf("h%d", len(b.vars))
	b.vars[name] = v
	return name
}

func (b *havingBuilder) translate(e *statement.Expr) (string, error) {
	switch e.Kind {
	case statement.ExprAnd, statement.ExprOr:
		op := " && "
		if e.Kind == statement.ExprOr {
			op = " || "
		}
		l, err := b.translate(e.Args[0])
		if err != nil {
			return "", err
		}
		r, err := b.translate(e.Args[1])
		if err != nil {
			return "", err
		}
		return "(" + l + op + r + ")", nil
	case statement.ExprNot:
		x, err := b.translate(e.Args[0])
		if err != nil {
			return "", err
		}
		return "!(" + x + ")", nil
	case statement.ExprCompare, statement.ExprBinary:
		op, ok := havingOps[strings.ToLower(e.Op)]
		if !ok {
			break
		}
		l, err := b.translate(e.Args[0])
		if err != nil {
			return "", err
		}
		r, err := b.translate(e.Args[1])
		if err != nil {
			return "", err
		}
		return "(" + l + " " + op + " " + r + ")", nil
	case statement.ExprIn:
		parts := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			p, err := b.translate(a)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		// a one element list is not an array to the expression engine
		res := "(" + parts[0] + " == " + parts[1] + ")"
		if len(parts) > 2 {
			res = "(" + parts[0] + " in (" + strings.Join(parts[1:], ", ") + "))"
		}
		if e.Not {
			res = "!" + res
		}
		return res, nil
	case statement.ExprBetween:
		x, err := b.translate(e.Args[0])
		if err != nil {
			return "", err
		}
		lo, err := b.translate(e.Args[1])
		if err != nil {
			return "", err
		}
		hi, err := b.translate(e.Args[2])
		if err != nil {
			return "", err
		}
		res := "(" + x + " >= " + lo + " && " + x + " <= " + hi + ")"
		if e.Not {
			res = "!" + res
		}
		return res, nil
	case statement.ExprFunc:
		if !statement.IsAggregateCall(e) {
			break
		}
		p := b.sel.FindAggregate(e)
		if p < 0 {
			return "", sherror.Newf(sherror.SHARD_REWRITE_ERROR, "aggregate %s in HAVING is not selected", e.Text)
		}
		col, err := b.cols.projectionIndex(b.sel, p)
		if err != nil {
			return "", err
		}
		return b.bind(havingVar{col: col}), nil
	case statement.ExprColumn:
		col, err := b.cols.item(b.sel, statement.OrderItem{Text: e.Text, Table: e.Table, Column: e.Column}, "")
		if err != nil {
			return "", err
		}
		return b.bind(havingVar{col: col}), nil
	case statement.ExprLiteral:
		return b.bind(havingVar{col: -1, value: e.Value}), nil
	case statement.ExprParam:
		v, ok := e.Resolve(b.params)
		if !ok {
			return "", sherror.Newf(sherror.SHARD_MERGE_ERROR, "HAVING parameter %d is not bound", e.Param+1)
		}
		return b.bind(havingVar{col: -1, value: v}), nil
	}
	return "", sherror.Newf(sherror.SHARD_UNSUPPORTED, "HAVING expression %s cannot be evaluated across data nodes", e.Text)
}

// evalValue converts a value for the expression engine, which compares
// numbers as float64.
func evalValue(v any) any {
	switch x := sqlvalue.Normalize(v).(type) {
	case nil, bool:
		return x
	case string:
		return x
	case []byte:
		if f, err := sqlvalue.ToFloat64(x); err == nil {
			return f
		}
		return string(x)
	default:
		if f, err := sqlvalue.ToFloat64(x); err == nil {
			return f
		}
		return fmt.Sprint(x)
	}
}

// match reports whether row passes. A NULL operand makes the row fail, as
// comparisons with NULL are never true.
func (h *havingFilter) match(row []any) (bool, error) {
	params := make(map[string]any, len(h.vars))
	for name, v := range h.vars {
		val := v.value
		if v.col >= 0 {
			val = row[v.col]
		}
		val = evalValue(val)
		if val == nil {
			return false, nil
		}
		params[name] = val
	}
	res, err := h.expr.Evaluate(params)
	if err != nil {
		return false, sherror.Newf(sherror.SHARD_MERGE_ERROR, "cannot evaluate HAVING: %v", err)
	}
	ok, isBool := res.(bool)
	if !isBool {
		return false, sherror.Newf(sherror.SHARD_MERGE_ERROR, "HAVING evaluated to %v instead of a boolean", res)
	}
	return ok, nil
}
