package merge

import (
	"context"
	"sort"
)

// GroupByStreamMergedResult groups sources that are sorted by the GROUP BY
// columns. Groups are emitted as soon as the next group starts.
type GroupByStreamMergedResult struct {
	cursor
	cols    *columns
	rows    *orderedRows
	groupBy []int
	aggs    []aggregator

	started bool
	pending []any
}

func newGroupByStreamMergedResult(sources []QueryResult, cols *columns, keys []sortKey, aggs []aggregator) *GroupByStreamMergedResult {
	groupBy := make([]int, 0, len(keys))
	for _, k := range keys {
		groupBy = append(groupBy, k.idx)
	}
	return &GroupByStreamMergedResult{
		cursor:  cursor{sources: sources},
		cols:    cols,
		rows:    newOrderedRows(sources, keys),
		groupBy: groupBy,
		aggs:    aggs,
	}
}

func (r *GroupByStreamMergedResult) Columns() []string {
	return r.cols.visibleLabels()
}

func (r *GroupByStreamMergedResult) Next(ctx context.Context) (bool, error) {
	if err := r.enter(ctx); err != nil {
		return false, err
	}
	if !r.started {
		r.started = true
		row, ok, err := r.rows.next(ctx)
		if err != nil {
			return false, r.fail(err)
		}
		if ok {
			r.pending = row
		}
	}
	if r.pending == nil {
		r.exhausted()
		return false, nil
	}

	g := newGroup(r.aggs, r.pending)
	key := groupKey(r.pending, r.groupBy)
	if err := g.add(r.pending); err != nil {
		return false, r.fail(err)
	}
	r.pending = nil
	for {
		row, ok, err := r.rows.next(ctx)
		if err != nil {
			return false, r.fail(err)
		}
		if !ok {
			break
		}
		if groupKey(row, r.groupBy) != key {
			r.pending = row
			break
		}
		if err := g.add(row); err != nil {
			return false, r.fail(err)
		}
	}

	res, err := g.row()
	if err != nil {
		return false, r.fail(err)
	}
	r.set(r.cols.project(res))
	return true, nil
}

// GroupByMemoryMergedResult drains every source, groups the rows, applies
// HAVING and sorts the groups before the first row is returned.
type GroupByMemoryMergedResult struct {
	cursor
	cols     *columns
	groupBy  []int
	aggs     []aggregator
	having   *havingFilter
	orderBy  []sortKey
	distinct bool

	loaded bool
	out    [][]any
	pos    int
}

func (r *GroupByMemoryMergedResult) Columns() []string {
	return r.cols.visibleLabels()
}

func (r *GroupByMemoryMergedResult) Next(ctx context.Context) (bool, error) {
	if err := r.enter(ctx); err != nil {
		return false, err
	}
	if !r.loaded {
		r.loaded = true
		if err := r.load(ctx); err != nil {
			return false, r.fail(err)
		}
		_ = r.closeSources()
	}
	if r.pos >= len(r.out) {
		r.exhausted()
		return false, nil
	}
	r.set(r.cols.project(r.out[r.pos]))
	r.pos++
	return true, nil
}

func (r *GroupByMemoryMergedResult) load(ctx context.Context) error {
	groups := map[string]*group{}
	var order []*group
	for _, s := range r.sources {
		for {
			if err := ctx.Err(); err != nil {
				return canceled(err)
			}
			row, ok, err := fetch(ctx, s)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			key := groupKey(row, r.groupBy)
			g, found := groups[key]
			if !found {
				g = newGroup(r.aggs, row)
				groups[key] = g
				order = append(order, g)
			}
			if err := g.add(row); err != nil {
				return err
			}
		}
	}

	// A scalar aggregate over no rows still yields one row.
	if len(order) == 0 && len(r.groupBy) == 0 && len(r.aggs) > 0 {
		order = append(order, newGroup(r.aggs, make([]any, len(r.cols.labels))))
	}

	seen := map[string]struct{}{}
	for _, g := range order {
		row, err := g.row()
		if err != nil {
			return err
		}
		if r.having != nil {
			ok, err := r.having.match(row)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		if r.distinct {
			k := groupKey(row, r.cols.visible)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		r.out = append(r.out, row)
	}

	if len(r.orderBy) > 0 {
		sort.SliceStable(r.out, func(i, j int) bool {
			return compareRows(r.out[i], r.out[j], r.orderBy) < 0
		})
	}
	return nil
}
