package executor

import (
	"context"

	"github.com/pg-sharding/shardcore/router/merge"
	"github.com/pg-sharding/shardcore/router/rewrite"
)

//go:generate mockgen -source=router/executor/backend.go -destination=pkg/mock/executor/backend_mock.go -package=mock_executor

// Backend runs rewritten units against their physical data source.
type Backend interface {
	Query(ctx context.Context, unit rewrite.RewriteUnit) (merge.QueryResult, error)
	Exec(ctx context.Context, unit rewrite.RewriteUnit) (int64, error)
	Close() error
}
