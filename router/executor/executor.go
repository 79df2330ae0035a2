package executor

import (
	"context"

	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pg-sharding/shardcore/router/merge"
	"github.com/pg-sharding/shardcore/router/rewrite"
	"golang.org/x/sync/errgroup"
)

// Executor fans rewritten units out to a Backend, at most limit at a time.
type Executor struct {
	backend Backend
	limit   int
	sqlShow bool
}

func New(backend Backend, props config.Props) *Executor {
	limit := props.MaxConnectionsPerQuery
	if limit <= 0 {
		limit = config.DefaultMaxConnectionsPerQuery
	}
	return &Executor{backend: backend, limit: limit, sqlShow: props.SQLShow}
}

func (e *Executor) Backend() Backend {
	return e.backend
}

func (e *Executor) show(unit rewrite.RewriteUnit) {
	if !e.sqlShow {
		return
	}
	shardlog.Zero.Info().
		Str("data source", unit.Unit.DataSource.ActualName).
		Str("sql", unit.SQL).
		Interface("params", unit.Params).
		Msg("actual sql")
}

// ExecuteQuery opens a result for every unit, in unit order. On failure
// the results already opened are closed. Units not yet started when a
// sibling fails are skipped.
func (e *Executor) ExecuteQuery(ctx context.Context, units []rewrite.RewriteUnit) ([]merge.QueryResult, error) {
	results := make([]merge.QueryResult, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, unit := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return execError(err, "unit %d on %s", i, unit.Unit.DataSource.ActualName)
			}
			e.show(unit)
			// rows outlive the group, so they are bound to the caller's ctx
			res, err := e.backend.Query(ctx, unit)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			if r != nil {
				_ = r.Close()
			}
		}
		shardlog.Zero.Debug().Err(err).Int("units", len(units)).Msg("query fan-out failed")
		return nil, err
	}
	return results, nil
}

// ExecuteUpdate runs every unit and returns the affected rows in unit order.
func (e *Executor) ExecuteUpdate(ctx context.Context, units []rewrite.RewriteUnit) ([]int64, error) {
	affected := make([]int64, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, unit := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return execError(err, "unit %d on %s", i, unit.Unit.DataSource.ActualName)
			}
			e.show(unit)
			n, err := e.backend.Exec(gctx, unit)
			if err != nil {
				return err
			}
			affected[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return affected, nil
}
