package merge

import (
	"context"
	"errors"
	"slices"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"go.uber.org/atomic"
)

//go:generate mockgen -source=router/merge/result.go -destination=pkg/mock/merge/result_mock.go -package=mock_merge

// QueryResult is the row source of one unit. Values returns a slice the
// caller may keep.
type QueryResult interface {
	Columns() []string
	Next(ctx context.Context) (bool, error)
	Values() ([]any, error)
	Close() error
}

// MergedResult is a forward-only cursor over logical rows. It is not safe
// for concurrent use.
type MergedResult interface {
	Columns() []string
	Next(ctx context.Context) (bool, error)
	Row() ([]any, error)
	Close() error
}

// UpdateResult is the outcome of a statement that returns no rows.
type UpdateResult struct {
	AffectedRows       int64  `json:"affected_rows"`
	GeneratedKeyColumn string `json:"generated_key_column,omitempty"`
	GeneratedKeys      []any  `json:"generated_keys,omitempty"`
}

var (
	ErrCursorMisuse = sherror.New(sherror.SHARD_MERGE_ERROR, "no current row, Row must follow a Next that returned true")
	ErrClosed       = sherror.New(sherror.SHARD_MERGE_ERROR, "merged result is closed")
)

func canceled(err error) error {
	return &sherror.ShardError{Err: err, ErrorCode: sherror.SHARD_CANCELED}
}

// cursor is the state every merged result shares: the sources, the current
// row and a sticky failure.
type cursor struct {
	sources       []QueryResult
	sourcesClosed bool
	closed        atomic.Bool

	err   error
	row   []any
	valid bool
}

// enter guards Next.
func (c *cursor) enter(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.err != nil {
		return c.err
	}
	if err := ctx.Err(); err != nil {
		return c.fail(canceled(err))
	}
	return nil
}

// fail records err, releases every source and keeps the cursor failed.
func (c *cursor) fail(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if sherror.Code(err) != sherror.SHARD_CANCELED {
			err = canceled(err)
		}
	}
	c.err = err
	c.row, c.valid = nil, false
	_ = c.closeSources()
	return err
}

func (c *cursor) set(row []any) {
	c.row, c.valid = row, true
}

func (c *cursor) exhausted() {
	c.row, c.valid = nil, false
}

func (c *cursor) Row() ([]any, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !c.valid {
		return nil, ErrCursorMisuse
	}
	return c.row, nil
}

func (c *cursor) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.closeSources()
}

func (c *cursor) closeSources() error {
	if c.sourcesClosed {
		return nil
	}
	c.sourcesClosed = true
	var first error
	for _, s := range c.sources {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// fetch reads the next row of s.
func fetch(ctx context.Context, s QueryResult) ([]any, bool, error) {
	ok, err := s.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	vals, err := s.Values()
	if err != nil {
		return nil, false, err
	}
	return vals, true, nil
}

// MemoryQueryResult serves rows held in memory.
type MemoryQueryResult struct {
	columns []string
	rows    [][]any
	pos     int
	closed  atomic.Bool
}

func NewMemoryQueryResult(columns []string, rows [][]any) *MemoryQueryResult {
	return &MemoryQueryResult{columns: columns, rows: rows}
}

func (r *MemoryQueryResult) Columns() []string {
	return r.columns
}

func (r *MemoryQueryResult) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, canceled(err)
	}
	if r.closed.Load() || r.pos >= len(r.rows) {
		r.pos = len(r.rows) + 1
		return false, nil
	}
	r.pos++
	return true, nil
}

func (r *MemoryQueryResult) Values() ([]any, error) {
	if r.pos < 1 || r.pos > len(r.rows) {
		return nil, ErrCursorMisuse
	}
	return slices.Clone(r.rows[r.pos-1]), nil
}

func (r *MemoryQueryResult) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *MemoryQueryResult) IsClosed() bool {
	return r.closed.Load()
}
