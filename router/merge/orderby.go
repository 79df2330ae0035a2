package merge

import (
	"container/heap"
	"context"
)

type orderSource struct {
	src QueryResult
	row []any
	idx int
}

type orderHeap struct {
	items []*orderSource
	keys  []sortKey
}

func (h *orderHeap) Len() int { return len(h.items) }

func (h *orderHeap) Less(i, j int) bool {
	if c := compareRows(h.items[i].row, h.items[j].row, h.keys); c != 0 {
		return c < 0
	}
	return h.items[i].idx < h.items[j].idx
}

func (h *orderHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *orderHeap) Push(x any) { h.items = append(h.items, x.(*orderSource)) }

func (h *orderHeap) Pop() any {
	n := len(h.items)
	it := h.items[n-1]
	h.items = h.items[:n-1]
	return it
}

// orderedRows is a k-way merge of sources that are each sorted by keys.
// The first call waits for the first row of every source.
type orderedRows struct {
	sources []QueryResult
	heap    *orderHeap
	started bool
	last    *orderSource
}

func newOrderedRows(sources []QueryResult, keys []sortKey) *orderedRows {
	return &orderedRows{sources: sources, heap: &orderHeap{keys: keys}}
}

func (o *orderedRows) next(ctx context.Context) ([]any, bool, error) {
	if !o.started {
		o.started = true
		for i, s := range o.sources {
			row, ok, err := fetch(ctx, s)
			if err != nil {
				return nil, false, err
			}
			if ok {
				heap.Push(o.heap, &orderSource{src: s, row: row, idx: i})
			}
		}
	} else if o.last != nil {
		row, ok, err := fetch(ctx, o.last.src)
		if err != nil {
			return nil, false, err
		}
		if ok {
			o.last.row = row
			heap.Push(o.heap, o.last)
		}
		o.last = nil
	}

	if o.heap.Len() == 0 {
		return nil, false, nil
	}
	o.last = heap.Pop(o.heap).(*orderSource)
	return o.last.row, true, nil
}

// OrderByStreamMergedResult merges sources sorted by the same ORDER BY.
type OrderByStreamMergedResult struct {
	cursor
	cols *columns
	rows *orderedRows
}

func newOrderByStreamMergedResult(sources []QueryResult, cols *columns, keys []sortKey) *OrderByStreamMergedResult {
	return &OrderByStreamMergedResult{
		cursor: cursor{sources: sources},
		cols:   cols,
		rows:   newOrderedRows(sources, keys),
	}
}

func (r *OrderByStreamMergedResult) Columns() []string {
	return r.cols.visibleLabels()
}

func (r *OrderByStreamMergedResult) Next(ctx context.Context) (bool, error) {
	if err := r.enter(ctx); err != nil {
		return false, err
	}
	row, ok, err := r.rows.next(ctx)
	if err != nil {
		return false, r.fail(err)
	}
	if !ok {
		r.exhausted()
		return false, nil
	}
	r.set(r.cols.project(row))
	return true, nil
}
