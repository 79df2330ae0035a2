package executor

import (
	"context"
	"sync"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/router/merge"
	"github.com/pg-sharding/shardcore/router/rewrite"
)

// MemoryRows is the canned answer of a MemoryBackend query.
type MemoryRows struct {
	Columns []string
	Rows    [][]any
}

// MemoryBackend answers units from callbacks and records every unit it ran.
type MemoryBackend struct {
	QueryFunc func(unit rewrite.RewriteUnit) (*MemoryRows, error)
	ExecFunc  func(unit rewrite.RewriteUnit) (int64, error)

	mu       sync.Mutex
	executed []rewrite.RewriteUnit
	results  []*merge.MemoryQueryResult
}

var _ Backend = &MemoryBackend{}

func (b *MemoryBackend) record(unit rewrite.RewriteUnit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.executed = append(b.executed, unit)
}

func (b *MemoryBackend) Query(ctx context.Context, unit rewrite.RewriteUnit) (merge.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, execError(err, "query on %s", unit.Unit.DataSource.ActualName)
	}
	b.record(unit)
	if b.QueryFunc == nil {
		return nil, sherror.New(sherror.SHARD_EXECUTION_ERROR, "memory backend has no query handler")
	}
	rows, err := b.QueryFunc(unit)
	if err != nil {
		return nil, err
	}
	res := merge.NewMemoryQueryResult(rows.Columns, rows.Rows)

	b.mu.Lock()
	b.results = append(b.results, res)
	b.mu.Unlock()
	return res, nil
}

func (b *MemoryBackend) Exec(ctx context.Context, unit rewrite.RewriteUnit) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, execError(err, "exec on %s", unit.Unit.DataSource.ActualName)
	}
	b.record(unit)
	if b.ExecFunc == nil {
		return 0, nil
	}
	return b.ExecFunc(unit)
}

func (b *MemoryBackend) Close() error {
	return nil
}

// Executed returns the units run so far, in completion order.
func (b *MemoryBackend) Executed() []rewrite.RewriteUnit {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := make([]rewrite.RewriteUnit, len(b.executed))
	copy(res, b.executed)
	return res
}

// AllClosed reports whether every result handed out was closed.
func (b *MemoryBackend) AllClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.results {
		if !r.IsClosed() {
			return false
		}
	}
	return true
}
