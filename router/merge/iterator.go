package merge

import "context"

// IteratorMergedResult concatenates the sources in unit order.
type IteratorMergedResult struct {
	cursor
	cols *columns
	cur  int
}

func NewIteratorMergedResult(sources []QueryResult) *IteratorMergedResult {
	return &IteratorMergedResult{
		cursor: cursor{sources: sources},
		cols:   newColumns(sources[0].Columns()),
	}
}

func (r *IteratorMergedResult) Columns() []string {
	return r.cols.visibleLabels()
}

func (r *IteratorMergedResult) Next(ctx context.Context) (bool, error) {
	if err := r.enter(ctx); err != nil {
		return false, err
	}
	for r.cur < len(r.sources) {
		row, ok, err := fetch(ctx, r.sources[r.cur])
		if err != nil {
			return false, r.fail(err)
		}
		if ok {
			r.set(r.cols.project(row))
			return true, nil
		}
		r.cur++
	}
	r.exhausted()
	return false, nil
}
