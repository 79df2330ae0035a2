package parser

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/statement"
	"github.com/xwb1989/sqlparser"
)

type binder struct {
	layout *layout
	stmt   *statement.Statement
}

func bind(sql string, tree sqlparser.Statement, l *layout) (*statement.Statement, error) {
	b := &binder{
		layout: l,
		stmt:   &statement.Statement{SQL: sql, ParamPositions: l.params},
	}

	var err error
	switch node := tree.(type) {
	case *sqlparser.Select:
		err = b.bindSelect(node)
	case *sqlparser.Union, *sqlparser.ParenSelect:
		return nil, sherror.New(sherror.SHARD_UNSUPPORTED, "UNION and parenthesised top level SELECT are not supported")
	case *sqlparser.Insert:
		err = b.bindInsert(node)
	case *sqlparser.Update:
		err = b.bindUpdate(node)
	case *sqlparser.Delete:
		b.stmt.Kind = statement.KindDelete
		b.collectTables(node)
		if node.Where != nil {
			b.stmt.Where = b.expr(node.Where.Expr)
		}
	case *sqlparser.DDL:
		b.stmt.Kind = statement.KindDDL
		for _, tn := range []sqlparser.TableName{node.Table, node.NewName} {
			if !tn.IsEmpty() {
				b.addTable(tn, "")
			}
		}
	default:
		b.stmt.Kind = statement.KindOther
	}
	if err != nil {
		return nil, err
	}

	names := map[string]struct{}{}
	for _, t := range b.stmt.Tables {
		names[strings.ToLower(t.Name)] = struct{}{}
	}
	if len(names) > 0 {
		b.stmt.TableTokens = l.tableTokens(b.stmt.Kind, names)
	}
	return b.stmt, nil
}

func (b *binder) addTable(tn sqlparser.TableName, alias string) {
	name := tn.Name.String()
	if name == "" || strings.EqualFold(name, "dual") {
		return
	}
	b.stmt.Tables = append(b.stmt.Tables, statement.TableRef{
		Name:   name,
		Alias:  alias,
		Schema: tn.Qualifier.String(),
	})
}

// collectTables records every table of node, subqueries included, in text order.
func (b *binder) collectTables(node sqlparser.SQLNode) {
	_ = sqlparser.Walk(func(n sqlparser.SQLNode) (bool, error) {
		if ate, ok := n.(*sqlparser.AliasedTableExpr); ok {
			if tn, ok := ate.Expr.(sqlparser.TableName); ok {
				b.addTable(tn, ate.As.String())
			}
		}
		return true, nil
	}, node)
}

func (b *binder) bindSelect(sel *sqlparser.Select) error {
	b.stmt.Kind = statement.KindSelect
	b.collectTables(sel)
	if sel.Where != nil {
		b.stmt.Where = b.expr(sel.Where.Expr)
	}

	sl, err := b.layout.selectLayout()
	if err != nil {
		return err
	}

	info := &statement.SelectInfo{
		Distinct:        sel.Distinct != "",
		ProjectionsStop: sl.projectionsStop,
		GroupByStop:     sl.groupByStop,
		HavingSpan:      sl.having,
		Limit:           sl.limit,
		Stop:            sl.stop,
	}
	for _, se := range sel.SelectExprs {
		info.Projections = append(info.Projections, projection(se))
	}
	for _, g := range sel.GroupBy {
		info.GroupBy = append(info.GroupBy, orderItem(g, false))
	}
	for _, o := range sel.OrderBy {
		info.OrderBy = append(info.OrderBy, orderItem(o.Expr, o.Direction == sqlparser.DescScr))
	}
	if sel.Having != nil {
		info.Having = b.expr(sel.Having.Expr)
	}
	if (sel.Limit == nil) != (info.Limit == nil) {
		return sherror.New(sherror.SHARD_PARSE_ERROR, "could not locate LIMIT clause")
	}
	b.stmt.Select = info
	return nil
}

func projection(se sqlparser.SelectExpr) statement.Projection {
	p := statement.Projection{Text: lowerText(se)}
	switch node := se.(type) {
	case *sqlparser.StarExpr:
		p.Star = true
		p.StarTable = node.TableName.Name.String()
	case *sqlparser.AliasedExpr:
		p.Text = lowerText(node.Expr)
		p.Alias = node.As.String()
		switch e := node.Expr.(type) {
		case *sqlparser.ColName:
			p.Table = e.Qualifier.Name.String()
			p.Column = e.Name.String()
		case *sqlparser.FuncExpr:
			if agg := statement.AggregationByName(e.Name.String()); agg != statement.AggNone && e.Qualifier.IsEmpty() {
				p.Aggregation = agg
				p.Distinct = e.Distinct
				p.AggArg = aggArg(e.Exprs)
			}
		}
	}
	return p
}

func aggArg(exprs sqlparser.SelectExprs) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if _, ok := e.(*sqlparser.StarExpr); ok {
			return "*"
		}
		parts = append(parts, sqlparser.String(e))
	}
	return strings.Join(parts, ", ")
}

func orderItem(e sqlparser.Expr, desc bool) statement.OrderItem {
	item := statement.OrderItem{Text: lowerText(e), SQL: sqlparser.String(e), Desc: desc}
	switch node := e.(type) {
	case *sqlparser.ColName:
		item.Table = node.Qualifier.Name.String()
		item.Column = node.Name.String()
	case *sqlparser.SQLVal:
		if node.Type == sqlparser.IntVal {
			if pos, err := strconv.Atoi(string(node.Val)); err == nil {
				item.Position = pos
			}
		}
	}
	return item
}

func lowerText(node sqlparser.SQLNode) string {
	return strings.ToLower(sqlparser.String(node))
}

func (b *binder) bindInsert(ins *sqlparser.Insert) error {
	b.stmt.Kind = statement.KindInsert
	b.addTable(ins.Table, "")

	il, err := b.layout.insertLayout()
	if err != nil {
		return err
	}
	info := &statement.InsertInfo{
		ColumnList:  il.columnList,
		ColumnSpans: il.columnSpans,
		FromSelect:  il.fromSelect,
	}
	for _, c := range ins.Columns {
		info.Columns = append(info.Columns, c.String())
	}
	if len(info.Columns) != len(info.ColumnSpans) {
		return sherror.New(sherror.SHARD_PARSE_ERROR, "could not locate INSERT column list")
	}

	switch rows := ins.Rows.(type) {
	case sqlparser.Values:
		if len(rows) != len(il.rows) {
			return sherror.Newf(sherror.SHARD_PARSE_ERROR, "located %d insert rows, parsed %d", len(il.rows), len(rows))
		}
		for i, tuple := range rows {
			row := il.rows[i]
			if len(tuple) != len(row.Values) {
				return sherror.Newf(sherror.SHARD_PARSE_ERROR, "insert row %d: located %d values, parsed %d", i, len(row.Values), len(tuple))
			}
			if len(info.Columns) > 0 && len(tuple) != len(info.Columns) {
				return sherror.Newf(sherror.SHARD_PARSE_ERROR, "insert row %d has %d values for %d columns", i, len(tuple), len(info.Columns))
			}
			for j, v := range tuple {
				row.Values[j].Expr = b.expr(v)
			}
			info.Rows = append(info.Rows, row)
		}
	default:
		info.FromSelect = true
		b.collectTables(ins.Rows)
	}

	b.stmt.Insert = info
	return nil
}

func (b *binder) bindUpdate(upd *sqlparser.Update) error {
	b.stmt.Kind = statement.KindUpdate
	b.collectTables(upd.TableExprs)
	for _, ue := range upd.Exprs {
		b.stmt.Assignments = append(b.stmt.Assignments, statement.Assignment{
			Table:  ue.Name.Qualifier.Name.String(),
			Column: ue.Name.Name.String(),
			Value:  b.expr(ue.Expr),
		})
	}
	if upd.Where != nil {
		b.stmt.Where = b.expr(upd.Where.Expr)
	}
	return nil
}

// expr converts an AST expression into the flat statement form.
func (b *binder) expr(e sqlparser.Expr) *statement.Expr {
	res := &statement.Expr{Kind: statement.ExprOther, Param: -1, Text: lowerText(e)}

	switch node := e.(type) {
	case *sqlparser.AndExpr:
		res.Kind = statement.ExprAnd
		res.Args = []*statement.Expr{b.expr(node.Left), b.expr(node.Right)}
	case *sqlparser.OrExpr:
		res.Kind = statement.ExprOr
		res.Args = []*statement.Expr{b.expr(node.Left), b.expr(node.Right)}
	case *sqlparser.NotExpr:
		res.Kind = statement.ExprNot
		res.Args = []*statement.Expr{b.expr(node.Expr)}
	case *sqlparser.ParenExpr:
		return b.expr(node.Expr)
	case *sqlparser.ComparisonExpr:
		switch node.Operator {
		case sqlparser.InStr, sqlparser.NotInStr:
			tuple, ok := node.Right.(sqlparser.ValTuple)
			if !ok {
				return res
			}
			res.Kind = statement.ExprIn
			res.Not = node.Operator == sqlparser.NotInStr
			res.Args = append(res.Args, b.expr(node.Left))
			for _, v := range tuple {
				res.Args = append(res.Args, b.expr(v))
			}
		default:
			res.Kind = statement.ExprCompare
			res.Op = node.Operator
			res.Args = []*statement.Expr{b.expr(node.Left), b.expr(node.Right)}
		}
	case *sqlparser.RangeCond:
		res.Kind = statement.ExprBetween
		res.Not = node.Operator == sqlparser.NotBetweenStr
		res.Args = []*statement.Expr{b.expr(node.Left), b.expr(node.From), b.expr(node.To)}
	case *sqlparser.ColName:
		res.Kind = statement.ExprColumn
		res.Table = node.Qualifier.Name.String()
		res.Column = node.Name.String()
	case *sqlparser.SQLVal:
		b.literal(node, res)
	case *sqlparser.NullVal:
		res.Kind = statement.ExprLiteral
	case sqlparser.BoolVal:
		res.Kind = statement.ExprLiteral
		res.Value = bool(node)
	case *sqlparser.FuncExpr:
		res.Kind = statement.ExprFunc
		res.Name = node.Name.Lowered()
		res.Distinct = node.Distinct
		for _, se := range node.Exprs {
			switch arg := se.(type) {
			case *sqlparser.StarExpr:
				res.Star = true
			case *sqlparser.AliasedExpr:
				res.Args = append(res.Args, b.expr(arg.Expr))
			}
		}
	case *sqlparser.BinaryExpr:
		res.Kind = statement.ExprBinary
		res.Op = node.Operator
		res.Args = []*statement.Expr{b.expr(node.Left), b.expr(node.Right)}
	case *sqlparser.UnaryExpr:
		if node.Operator == sqlparser.UMinusStr {
			if inner := b.expr(node.Expr); inner.Kind == statement.ExprLiteral {
				switch n := inner.Value.(type) {
				case int64:
					res.Kind = statement.ExprLiteral
					res.Value = -n
				case float64:
					res.Kind = statement.ExprLiteral
					res.Value = -n
				}
			}
		}
	}
	return res
}

func (b *binder) literal(v *sqlparser.SQLVal, res *statement.Expr) {
	raw := string(v.Val)
	switch v.Type {
	case sqlparser.StrVal:
		res.Kind = statement.ExprLiteral
		res.Value = raw
	case sqlparser.IntVal:
		res.Kind = statement.ExprLiteral
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			res.Value = n
		} else if u, err := strconv.ParseUint(raw, 10, 64); err == nil {
			res.Value = u
		} else {
			res.Value = raw
		}
	case sqlparser.FloatVal:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			res.Kind = statement.ExprLiteral
			res.Value = f
		}
	case sqlparser.HexNum:
		if u, err := strconv.ParseUint(raw[2:], 16, 64); err == nil {
			res.Kind = statement.ExprLiteral
			res.Value = int64(u)
		}
	case sqlparser.HexVal:
		if bs, err := hex.DecodeString(raw); err == nil {
			res.Kind = statement.ExprLiteral
			res.Value = bs
		}
	case sqlparser.ValArg:
		if n, err := strconv.Atoi(strings.TrimPrefix(raw, ":v")); err == nil {
			res.Kind = statement.ExprParam
			res.Param = n - 1
		}
	}
}
