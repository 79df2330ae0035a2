package rewrite

import (
	"fmt"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
	"github.com/pg-sharding/shardcore/pkg/statement"
)

// tableTokens covers every logical table occurrence and strips schema qualifiers.
func (r *rewriter) tableTokens() []Token {
	var res []Token
	for _, tt := range r.stmt.TableTokens {
		if tt.Schema.Valid() {
			res = append(res, Token{Kind: TokenRemove, Start: tt.Schema.Start, Stop: tt.Schema.Stop})
		}
		res = append(res, Token{
			Kind:    TokenTable,
			Start:   tt.Start,
			Stop:    tt.Stop,
			Table:   strings.ToLower(tt.Table),
			Quote:   tt.Quote,
			Sharded: r.rule.IsShardingTable(tt.Table),
			Param:   -1,
		})
	}
	return res
}

// queryTokens prepares a select for merging results of several units.
func (r *rewriter) queryTokens() ([]Token, error) {
	sel := r.stmt.Select
	if sel.HasDistinctAggregation() {
		return nil, sherror.New(sherror.SHARD_UNSUPPORTED, "aggregation with DISTINCT across several data nodes is not supported")
	}

	var res []Token
	if derived := derivedProjections(sel); derived != "" {
		res = append(res, Token{Kind: TokenProjections, Start: sel.ProjectionsStop, Stop: sel.ProjectionsStop, Text: derived, Param: -1})
	}

	if sel.Having != nil {
		if err := checkHavingAggregates(sel); err != nil {
			return nil, err
		}
		res = append(res, Token{Kind: TokenRemove, Start: sel.HavingSpan.Start, Stop: sel.HavingSpan.Stop})
	}

	if len(sel.GroupBy) > 0 && len(sel.OrderBy) == 0 {
		pos := sel.GroupByStop
		if sel.HavingSpan.Valid() {
			pos = sel.HavingSpan.Stop
		}
		items := make([]string, 0, len(sel.GroupBy))
		for _, g := range sel.GroupBy {
			item := g.SQL
			if g.Desc {
				item += " desc"
			}
			items = append(items, item)
		}
		res = append(res, Token{Kind: TokenOrderBy, Start: pos, Stop: pos, Text: " ORDER BY " + strings.Join(items, ", "), Param: -1})
	}

	if sel.Limit != nil {
		limit, err := r.paginationTokens(sel)
		if err != nil {
			return nil, err
		}
		res = append(res, limit...)
	}
	return res, nil
}

func derivedProjections(sel *statement.SelectInfo) string {
	var sb strings.Builder
	for i, p := range sel.Projections {
		if p.Aggregation != statement.AggAvg {
			continue
		}
		fmt.Fprintf(&sb, ", COUNT(%s) AS %s%d, SUM(%s) AS %s%d",
			p.AggArg, statement.AvgDerivedCountPrefix, i, p.AggArg, statement.AvgDerivedSumPrefix, i)
	}
	if sel.HasStar() {
		return sb.String()
	}
	for i, o := range sel.OrderBy {
		if o.Position == 0 && sel.FindProjection(o) < 0 {
			fmt.Fprintf(&sb, ", %s AS %s%d", o.SQL, statement.OrderByDerivedPrefix, i)
		}
	}
	for i, g := range sel.GroupBy {
		if g.Position == 0 && sel.FindProjection(g) < 0 {
			fmt.Fprintf(&sb, ", %s AS %s%d", g.SQL, statement.GroupByDerivedPrefix, i)
		}
	}
	return sb.String()
}

// checkHavingAggregates requires every aggregate of HAVING to be projected,
// since HAVING is evaluated over merged rows.
func checkHavingAggregates(sel *statement.SelectInfo) error {
	var missing string
	sel.Having.Walk(func(e *statement.Expr) bool {
		if missing != "" {
			return false
		}
		if statement.IsAggregateCall(e) {
			if sel.FindAggregate(e) < 0 {
				missing = e.Text
			}
			return false
		}
		return true
	})
	if missing != "" {
		return sherror.Newf(sherror.SHARD_REWRITE_ERROR,
			"aggregate %s in HAVING must also be selected to be evaluated across data nodes", missing)
	}
	return nil
}

// paginationTokens asks every unit for offset+count rows from the start.
// A memory group-by paginates merged groups only, so LIMIT is dropped.
func (r *rewriter) paginationTokens(sel *statement.SelectInfo) ([]Token, error) {
	lim := sel.Limit
	if sel.MemoryGroupBy() {
		return []Token{{Kind: TokenRemove, Start: lim.Start, Stop: lim.Stop}}, nil
	}

	var res []Token
	offset := int64(0)
	if lim.Offset != nil {
		v, err := r.limitValue(lim.Offset)
		if err != nil {
			return nil, err
		}
		offset = v
		res = append(res, Token{Kind: TokenOffset, Start: lim.Offset.Start, Stop: lim.Offset.Stop, Value: 0, Param: lim.Offset.Param})
	}
	if lim.RowCount != nil {
		v, err := r.limitValue(lim.RowCount)
		if err != nil {
			return nil, err
		}
		res = append(res, Token{Kind: TokenRowCount, Start: lim.RowCount.Start, Stop: lim.RowCount.Stop, Value: offset + v, Param: lim.RowCount.Param})
	}
	return res, nil
}

func (r *rewriter) limitValue(lv *statement.LimitValue) (int64, error) {
	if lv.Param < 0 {
		return lv.Value, nil
	}
	v, err := sqlvalue.ToInt64(r.params[lv.Param])
	if err != nil || v < 0 {
		return 0, sherror.Newf(sherror.SHARD_REWRITE_ERROR, "LIMIT parameter %d must be a non-negative integer, got %v", lv.Param+1, r.params[lv.Param])
	}
	return v, nil
}

// insertTokens rebuild the column list and the rows of an INSERT ... VALUES.
func (r *rewriter) insertTokens() ([]Token, error) {
	ins := r.stmt.Insert
	table := r.stmt.TableNames()[0]
	tr, ok := r.rule.TableRule(table)
	if !ok || len(ins.Rows) == 0 {
		return nil, nil
	}

	var virtual []int
	for i, c := range ins.Columns {
		if tr.IsVirtualColumn(c) {
			virtual = append(virtual, i)
		}
	}
	if len(virtual) > 0 && len(virtual) == len(ins.Columns) {
		return nil, sherror.Newf(sherror.SHARD_REWRITE_ERROR, "INSERT into %q lists only virtual columns", tr.LogicTable)
	}

	var res []Token
	for _, run := range runs(virtual) {
		a, b := run[0], run[1]
		var span statement.Span
		if a > 0 {
			span = statement.Span{Start: ins.ColumnSpans[a-1].Stop, Stop: ins.ColumnSpans[b].Stop}
		} else {
			span = statement.Span{Start: ins.ColumnSpans[a].Start, Stop: ins.ColumnSpans[b+1].Start}
		}
		res = append(res, Token{Kind: TokenInsertColumnRemove, Start: span.Start, Stop: span.Stop})
	}

	if gk := r.rc.GeneratedKey; gk != nil && gk.Appended && len(ins.ColumnSpans) > 0 {
		pos := ins.ColumnSpans[len(ins.ColumnSpans)-1].Stop
		res = append(res, Token{Kind: TokenGeneratedKeyColumn, Start: pos, Stop: pos, Text: ", " + gk.Column, Param: -1})
	}

	values := ins.ValuesSpan()
	res = append(res, Token{Kind: TokenInsertValues, Start: values.Start, Stop: values.Stop, Table: tr.LogicTable, Skip: virtual, Param: -1})
	return res, nil
}

// runs groups sorted indexes into [first, last] runs of consecutive values.
func runs(idx []int) [][2]int {
	var res [][2]int
	for _, i := range idx {
		if n := len(res); n > 0 && res[n-1][1] == i-1 {
			res[n-1][1] = i
			continue
		}
		res = append(res, [2]int{i, i})
	}
	return res
}
