package merge

import (
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
	"github.com/pg-sharding/shardcore/pkg/statement"
	"github.com/pg-sharding/shardcore/router/condition"
)

type MergeKind int

const (
	KindUpdate = MergeKind(iota)
	KindPassThrough
	KindGroupByStream
	KindGroupByMemory
	KindOrderByStream
	KindIterator
)

func (k MergeKind) String() string {
	switch k {
	case KindUpdate:
		return "update"
	case KindPassThrough:
		return "pass-through"
	case KindGroupByStream:
		return "group-by stream"
	case KindGroupByMemory:
		return "group-by memory"
	case KindOrderByStream:
		return "order-by stream"
	default:
		return "iterator"
	}
}

// SelectKind picks the merge strategy for stmt executed on units targets.
func SelectKind(stmt *statement.Statement, units int) MergeKind {
	if !stmt.Kind.IsQuery() {
		return KindUpdate
	}
	if units == 1 {
		return KindPassThrough
	}
	sel := stmt.Select
	switch {
	case sel == nil:
		return KindIterator
	case sel.StreamGroupBy():
		return KindGroupByStream
	case sel.MemoryGroupBy():
		return KindGroupByMemory
	case len(sel.OrderBy) > 0:
		return KindOrderByStream
	default:
		return KindIterator
	}
}

// Merge combines the results of every unit, given in unit order, into one
// cursor. The sources are closed when Merge fails.
func Merge(stmt *statement.Statement, params []any, sources []QueryResult) (MergedResult, error) {
	if len(sources) == 0 {
		return nil, sherror.New(sherror.SHARD_MERGE_ERROR, "no results to merge")
	}
	res, err := build(stmt, params, sources)
	if err != nil {
		for _, s := range sources {
			_ = s.Close()
		}
		return nil, err
	}
	return res, nil
}

func build(stmt *statement.Statement, params []any, sources []QueryResult) (MergedResult, error) {
	kind := SelectKind(stmt, len(sources))
	shardlog.Zero.Debug().
		Str("kind", kind.String()).
		Int("sources", len(sources)).
		Msg("merging results")

	if kind == KindUpdate {
		return nil, sherror.Newf(sherror.SHARD_MERGE_ERROR, "%s statement returns no rows to merge", stmt.Kind)
	}
	if kind == KindPassThrough || kind == KindIterator {
		res := MergedResult(NewIteratorMergedResult(sources))
		if kind == KindIterator {
			return paginate(stmt, params, res)
		}
		return res, nil
	}

	sel := stmt.Select
	cols := newColumns(sources[0].Columns())
	var res MergedResult

	switch kind {
	case KindOrderByStream:
		keys, err := cols.sortKeys(sel, sel.OrderBy, statement.OrderByDerivedPrefix)
		if err != nil {
			return nil, err
		}
		res = newOrderByStreamMergedResult(sources, cols, keys)
	case KindGroupByStream:
		keys, err := cols.sortKeys(sel, sel.GroupBy, statement.GroupByDerivedPrefix)
		if err != nil {
			return nil, err
		}
		for i, o := range sel.OrderBy {
			if i < len(keys) {
				keys[i].desc = o.Desc
			}
		}
		aggs, err := newAggregators(sel, cols)
		if err != nil {
			return nil, err
		}
		res = newGroupByStreamMergedResult(sources, cols, keys, aggs)
	case KindGroupByMemory:
		m, err := newGroupByMemory(sel, params, sources, cols)
		if err != nil {
			return nil, err
		}
		res = m
	}
	return paginate(stmt, params, res)
}

func newGroupByMemory(sel *statement.SelectInfo, params []any, sources []QueryResult, cols *columns) (*GroupByMemoryMergedResult, error) {
	m := &GroupByMemoryMergedResult{
		cursor:   cursor{sources: sources},
		cols:     cols,
		distinct: sel.Distinct,
	}

	groupKeys, err := cols.sortKeys(sel, sel.GroupBy, statement.GroupByDerivedPrefix)
	if err != nil {
		return nil, err
	}
	for _, k := range groupKeys {
		m.groupBy = append(m.groupBy, k.idx)
	}
	if len(sel.GroupBy) == 0 && sel.Distinct && !sel.HasAggregation() {
		m.groupBy = cols.visible
		m.distinct = false
	}

	if m.aggs, err = newAggregators(sel, cols); err != nil {
		return nil, err
	}
	if sel.Having != nil {
		if m.having, err = newHavingFilter(sel, cols, params); err != nil {
			return nil, err
		}
	}

	m.orderBy = groupKeys
	if len(sel.OrderBy) > 0 {
		if m.orderBy, err = cols.sortKeys(sel, sel.OrderBy, statement.OrderByDerivedPrefix); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// paginate applies LIMIT over the merged rows of several units.
func paginate(stmt *statement.Statement, params []any, res MergedResult) (MergedResult, error) {
	if stmt.Select == nil || stmt.Select.Limit == nil {
		return res, nil
	}
	lim := stmt.Select.Limit
	offset, rowCount := int64(0), int64(-1)
	var err error
	if lim.Offset != nil {
		if offset, err = limitValue(lim.Offset, params); err != nil {
			return nil, err
		}
	}
	if lim.RowCount != nil {
		if rowCount, err = limitValue(lim.RowCount, params); err != nil {
			return nil, err
		}
	}
	return NewPaginationMergedResult(res, offset, rowCount), nil
}

func limitValue(lv *statement.LimitValue, params []any) (int64, error) {
	if lv.Param < 0 {
		return lv.Value, nil
	}
	if lv.Param >= len(params) {
		return 0, sherror.Newf(sherror.SHARD_MERGE_ERROR, "LIMIT parameter %d is not bound", lv.Param+1)
	}
	v, err := sqlvalue.ToInt64(params[lv.Param])
	if err != nil || v < 0 {
		return 0, sherror.Newf(sherror.SHARD_MERGE_ERROR, "LIMIT parameter %d must be a non-negative integer, got %v", lv.Param+1, params[lv.Param])
	}
	return v, nil
}

// MergeUpdate sums the affected rows of every unit. Keys synthesized for
// an INSERT are reported in row order.
func MergeUpdate(affected []int64, gk *condition.GeneratedKeyContext) *UpdateResult {
	res := &UpdateResult{}
	for _, n := range affected {
		res.AffectedRows += n
	}
	if gk != nil {
		res.GeneratedKeyColumn = gk.Column
		res.GeneratedKeys = gk.Values
	}
	return res
}
