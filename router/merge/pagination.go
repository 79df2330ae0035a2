package merge

import "context"

// PaginationMergedResult applies OFFSET and LIMIT to the merged sequence.
type PaginationMergedResult struct {
	MergedResult
	offset int64
	// rowCount is -1 when unlimited.
	rowCount int64

	skipped bool
	emitted int64
	done    bool
}

func NewPaginationMergedResult(inner MergedResult, offset, rowCount int64) *PaginationMergedResult {
	return &PaginationMergedResult{MergedResult: inner, offset: offset, rowCount: rowCount}
}

func (r *PaginationMergedResult) Next(ctx context.Context) (bool, error) {
	if !r.skipped {
		r.skipped = true
		for i := int64(0); i < r.offset; i++ {
			ok, err := r.MergedResult.Next(ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				r.done = true
				return false, nil
			}
		}
	}
	if r.done || r.rowCount >= 0 && r.emitted >= r.rowCount {
		r.done = true
		return false, nil
	}
	ok, err := r.MergedResult.Next(ctx)
	if err != nil || !ok {
		r.done = err == nil
		return false, err
	}
	r.emitted++
	return true, nil
}

func (r *PaginationMergedResult) Row() ([]any, error) {
	if r.done {
		return nil, ErrCursorMisuse
	}
	return r.MergedResult.Row()
}
