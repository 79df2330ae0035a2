package merge

import (
	"strconv"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
	"github.com/pg-sharding/shardcore/pkg/statement"
)

// aggregator combines the partial aggregates of one projection.
type aggregator struct {
	typ   statement.AggregationType
	label string
	col   int

	// AVG is rebuilt from the derived COUNT and SUM columns.
	countCol int
	sumCol   int

	value any
	count any
	sum   any
}

func newAggregators(sel *statement.SelectInfo, cols *columns) ([]aggregator, error) {
	var res []aggregator
	for i, p := range sel.Projections {
		if p.Aggregation == statement.AggNone {
			continue
		}
		col, err := cols.projectionIndex(sel, i)
		if err != nil {
			return nil, err
		}
		a := aggregator{typ: p.Aggregation, label: p.Text, col: col, countCol: -1, sumCol: -1}
		if p.Aggregation == statement.AggAvg {
			a.countCol = cols.index(statement.AvgDerivedCountPrefix + strconv.Itoa(i))
			a.sumCol = cols.index(statement.AvgDerivedSumPrefix + strconv.Itoa(i))
			if a.countCol < 0 || a.sumCol < 0 {
				return nil, sherror.Newf(sherror.SHARD_MERGE_ERROR, "derived COUNT and SUM columns of %s are missing", p.Text)
			}
		}
		res = append(res, a)
	}
	return res, nil
}

func (a *aggregator) add(row []any) error {
	var err error
	switch a.typ {
	case statement.AggCount, statement.AggSum:
		a.value, err = a.combine(a.value, row[a.col])
	case statement.AggMax:
		if v := row[a.col]; v != nil && (a.value == nil || compareValues(v, a.value) > 0) {
			a.value = v
		}
	case statement.AggMin:
		if v := row[a.col]; v != nil && (a.value == nil || compareValues(v, a.value) < 0) {
			a.value = v
		}
	case statement.AggAvg:
		if a.count, err = a.combine(a.count, row[a.countCol]); err != nil {
			return err
		}
		a.sum, err = a.combine(a.sum, row[a.sumCol])
	}
	return err
}

func (a *aggregator) combine(acc, v any) (any, error) {
	res, err := sqlvalue.Add(acc, v)
	if err != nil {
		return nil, sherror.Newf(sherror.SHARD_MERGE_ERROR, "cannot combine partial %s values %v and %v: %v", a.label, acc, v, err)
	}
	return res, nil
}

func (a *aggregator) result() (any, error) {
	switch a.typ {
	case statement.AggCount:
		if a.value == nil {
			return int64(0), nil
		}
		return a.value, nil
	case statement.AggAvg:
		if a.count == nil || a.sum == nil {
			return nil, nil
		}
		c, err := sqlvalue.ToFloat64(a.count)
		if err != nil || c == 0 {
			return nil, nil
		}
		s, err := sqlvalue.ToFloat64(a.sum)
		if err != nil {
			return nil, sherror.Newf(sherror.SHARD_MERGE_ERROR, "cannot average %s: %v", a.label, err)
		}
		return s / c, nil
	default:
		return a.value, nil
	}
}

// group folds the rows of one group into its first row, with every
// aggregate replaced by the combined value.
type group struct {
	first []any
	aggs  []aggregator
}

func newGroup(tmpl []aggregator, row []any) *group {
	g := &group{first: row, aggs: make([]aggregator, len(tmpl))}
	copy(g.aggs, tmpl)
	return g
}

func (g *group) add(row []any) error {
	for i := range g.aggs {
		if err := g.aggs[i].add(row); err != nil {
			return err
		}
	}
	return nil
}

func (g *group) row() ([]any, error) {
	res := make([]any, len(g.first))
	copy(res, g.first)
	for i := range g.aggs {
		v, err := g.aggs[i].result()
		if err != nil {
			return nil, err
		}
		res[g.aggs[i].col] = v
	}
	return res, nil
}
