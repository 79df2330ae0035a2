package condition

import (
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/algorithm"
	"github.com/pg-sharding/shardcore/pkg/models/shrule"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
	"github.com/pg-sharding/shardcore/pkg/statement"
)

// Extract returns the sharding conditions of stmt: one per row for INSERT,
// at most one for other statements. An empty result means nothing narrows
// the route.
func Extract(stmt *statement.Statement, rule *shrule.ShardingRule, params []any, gk *GeneratedKeyContext) ([]Condition, error) {
	switch stmt.Kind {
	case statement.KindInsert:
		return extractInsert(stmt, rule, params, gk), nil
	case statement.KindSelect, statement.KindUpdate, statement.KindDelete:
		return extractWhere(stmt, rule, params)
	default:
		return nil, nil
	}
}

func extractInsert(stmt *statement.Statement, rule *shrule.ShardingRule, params []any, gk *GeneratedKeyContext) []Condition {
	ins := stmt.Insert
	if ins == nil || ins.FromSelect || len(stmt.Tables) == 0 {
		return nil
	}
	table := stmt.TableNames()[0]
	tr, ok := rule.TableRule(table)

	res := make([]Condition, 0, len(ins.Rows))
	for i, row := range ins.Rows {
		cond := Condition{RowIndex: i}
		if ok {
			for idx, col := range ins.Columns {
				if !tr.IsShardingColumn(col) {
					continue
				}
				v, resolved := row.Values[idx].Expr.Resolve(params)
				if !resolved || v == nil {
					continue
				}
				cond.Values = append(cond.Values, ConditionValue{Table: tr.LogicTable, Column: strings.ToLower(col), Values: []any{sqlvalue.Normalize(v)}})
			}
			if gk != nil && gk.Appended && i < len(gk.Values) && tr.IsShardingColumn(gk.Column) {
				cond.Values = append(cond.Values, ConditionValue{Table: tr.LogicTable, Column: strings.ToLower(gk.Column), Values: []any{sqlvalue.Normalize(gk.Values[i])}})
			}
		}
		res = append(res, cond)
	}
	return res
}

type extractor struct {
	stmt   *statement.Statement
	rule   *shrule.ShardingRule
	params []any
	tables []string

	cond Condition
}

func extractWhere(stmt *statement.Statement, rule *shrule.ShardingRule, params []any) ([]Condition, error) {
	if stmt.Where == nil {
		return nil, nil
	}
	e := &extractor{
		stmt:   stmt,
		rule:   rule,
		params: params,
		tables: stmt.TableNames(),
		cond:   Condition{RowIndex: -1},
	}
	for _, pred := range stmt.Where.Conjuncts() {
		if err := e.predicate(pred); err != nil {
			return nil, err
		}
	}
	if len(e.cond.Values) == 0 {
		return nil, nil
	}
	return []Condition{e.cond}, nil
}

// predicate records one top level conjunct. Anything other than =, IN and
// BETWEEN on a sharding column against resolvable values is skipped.
func (e *extractor) predicate(pred *statement.Expr) error {
	switch pred.Kind {
	case statement.ExprCompare:
		if pred.Op != "=" {
			return nil
		}
		col, val := pred.Args[0], pred.Args[1]
		if col.Kind != statement.ExprColumn {
			col, val = val, col
		}
		if col.Kind != statement.ExprColumn {
			return nil
		}
		v, ok := e.resolve(val)
		if !ok {
			return nil
		}
		return e.record(col, ConditionValue{Values: []any{v}})
	case statement.ExprIn:
		if pred.Not || pred.Args[0].Kind != statement.ExprColumn {
			return nil
		}
		vals := make([]any, 0, len(pred.Args)-1)
		for _, a := range pred.Args[1:] {
			v, ok := e.resolve(a)
			if !ok {
				return nil
			}
			vals = appendDistinct(vals, v)
		}
		return e.record(pred.Args[0], ConditionValue{Values: vals})
	case statement.ExprBetween:
		if pred.Not || pred.Args[0].Kind != statement.ExprColumn {
			return nil
		}
		lo, ok := e.resolve(pred.Args[1])
		if !ok {
			return nil
		}
		hi, ok := e.resolve(pred.Args[2])
		if !ok {
			return nil
		}
		return e.record(pred.Args[0], ConditionValue{Range: &algorithm.Range{Lower: lo, Upper: hi}})
	}
	return nil
}

func (e *extractor) resolve(x *statement.Expr) (any, bool) {
	v, ok := x.Resolve(e.params)
	if !ok || v == nil {
		return nil, false
	}
	return sqlvalue.Normalize(v), true
}

// owners attributes a column reference to the tables it may belong to.
func (e *extractor) owners(col *statement.Expr) []string {
	if col.Table != "" {
		t, ok := e.stmt.ResolveQualifier(col.Table)
		if !ok {
			return nil
		}
		return []string{t}
	}
	if len(e.tables) == 1 {
		return e.tables
	}
	var res []string
	for _, t := range e.tables {
		if tr, ok := e.rule.TableRule(t); ok && tr.IsShardingColumn(col.Column) {
			res = append(res, t)
		}
	}
	return res
}

func (e *extractor) record(col *statement.Expr, cv ConditionValue) error {
	for _, t := range e.owners(col) {
		tr, ok := e.rule.TableRule(t)
		if !ok || !tr.IsShardingColumn(col.Column) {
			continue
		}
		next := cv
		next.Table = tr.LogicTable
		next.Column = strings.ToLower(col.Column)

		prev, found := e.cond.Find(next.Table, next.Column)
		if !found {
			e.cond.Values = append(e.cond.Values, next)
			continue
		}
		merged, err := intersect(*prev, next)
		if err != nil {
			return err
		}
		*prev = merged
	}
	return nil
}

func appendDistinct(vals []any, v any) []any {
	for _, x := range vals {
		if c, err := sqlvalue.Compare(x, v); err == nil && c == 0 {
			return vals
		}
	}
	return append(vals, v)
}
