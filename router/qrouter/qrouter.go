package qrouter

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/models/keygen"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/models/shrule"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pg-sharding/shardcore/pkg/statement"
	"github.com/pg-sharding/shardcore/router/condition"
	"github.com/pg-sharding/shardcore/router/executor"
	"github.com/pg-sharding/shardcore/router/merge"
	"github.com/pg-sharding/shardcore/router/parser"
	"github.com/pg-sharding/shardcore/router/rewrite"
	"github.com/pg-sharding/shardcore/router/route"
	"github.com/pg-sharding/shardcore/router/routehint"
	"github.com/pg-sharding/shardcore/router/statistics"
	"go.uber.org/atomic"
)

var (
	ErrNoExecutor = sherror.New(sherror.SHARD_CONFIG_ERROR, "query router has no executor")
	ErrNotQuery   = sherror.New(sherror.SHARD_UNSUPPORTED, "statement returns no rows, use Exec")
	ErrQuery      = sherror.New(sherror.SHARD_UNSUPPORTED, "statement returns rows, use Query")
)

type QueryRouter interface {
	// Plan routes and rewrites sql without executing it.
	Plan(ctx context.Context, sql string, params []any, hint *routehint.HintContext) (*Plan, error)
	Query(ctx context.Context, sql string, params []any, hint *routehint.HintContext) (merge.MergedResult, error)
	Exec(ctx context.Context, sql string, params []any, hint *routehint.HintContext) (*merge.UpdateResult, error)

	// Reload swaps the sharding rule. Statements in flight keep the rule
	// they started with.
	Reload(cfg *config.Config) error
	Rule() *shrule.ShardingRule
}

// snapshot is the rule a statement is planned against, with its engines.
type snapshot struct {
	rule    *shrule.ShardingRule
	route   *route.Engine
	rewrite *rewrite.Engine
}

func newSnapshot(rule *shrule.ShardingRule) *snapshot {
	return &snapshot{
		rule:    rule,
		route:   route.NewEngine(rule),
		rewrite: rewrite.NewEngine(rule),
	}
}

type ShardingQueryRouter struct {
	current atomic.Value

	keygens *keygen.Registry
	parser  parser.Parser
	exec    *executor.Executor
}

var _ QueryRouter = &ShardingQueryRouter{}

// NewQueryRouter builds the rule of cfg. exec may be nil for a router that
// only plans statements.
func NewQueryRouter(cfg *config.Config, exec *executor.Executor) (*ShardingQueryRouter, error) {
	rule, err := shrule.Build(cfg)
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.Props.CacheTTL()
	if err != nil {
		return nil, err
	}
	qr := &ShardingQueryRouter{
		keygens: keygen.NewRegistry(rule.KeyGenerators),
		parser:  parser.NewSharedParser(cfg.Props.ParseCacheSize, ttl),
		exec:    exec,
	}
	qr.current.Store(newSnapshot(rule))
	return qr, nil
}

func (qr *ShardingQueryRouter) load() *snapshot {
	return qr.current.Load().(*snapshot)
}

func (qr *ShardingQueryRouter) Rule() *shrule.ShardingRule {
	return qr.load().rule
}

func (qr *ShardingQueryRouter) Reload(cfg *config.Config) error {
	rule, err := shrule.Build(cfg)
	if err != nil {
		return err
	}
	qr.keygens.Reset(rule.KeyGenerators)
	qr.current.Store(newSnapshot(rule))
	shardlog.Zero.Info().
		Int("tables", len(rule.TableRules())).
		Strs("data sources", rule.DataSources).
		Msg("sharding rule reloaded")
	return nil
}

// stage opens a tracing span and a latency measurement for one pipeline step.
func stage(ctx context.Context, times *statistics.StatementTimes, name statistics.Stage) (opentracing.Span, context.Context, func(error)) {
	span, ctx := opentracing.StartSpanFromContext(ctx, string(name))
	done := times.Stage(name)
	return span, ctx, func(err error) {
		done()
		if err != nil {
			span.SetTag("error", true)
			span.LogKV("event", "error", "message", err.Error())
		}
		span.Finish()
	}
}

func (qr *ShardingQueryRouter) Plan(ctx context.Context, sql string, params []any, hint *routehint.HintContext) (*Plan, error) {
	plan, err := qr.plan(ctx, sql, params, hint, statistics.NewStatementTimes())
	if err != nil {
		statistics.RecordError(sherror.Code(err))
		return nil, err
	}
	return plan, nil
}

func (qr *ShardingQueryRouter) plan(ctx context.Context, sql string, params []any, hint *routehint.HintContext, times *statistics.StatementTimes) (*Plan, error) {
	snap := qr.load()

	_, _, finish := stage(ctx, times, statistics.StageParse)
	stmt, comment, err := qr.parser.Parse(sql)
	if err == nil {
		hint, err = mergeHints(hint, comment)
	}
	finish(err)
	if err != nil {
		return nil, err
	}

	span, _, finish := stage(ctx, times, statistics.StageRoute)
	rc, err := qr.route(snap, stmt, params, hint)
	if err == nil {
		span.SetTag("units", len(rc.Units))
	}
	finish(err)
	if err != nil {
		return nil, err
	}

	_, _, finish = stage(ctx, times, statistics.StageRewrite)
	units, err := snap.rewrite.Rewrite(stmt, params, rc)
	finish(err)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Statement: stmt,
		SQL:       sql,
		Route:     rc,
		Units:     units,
		MergeKind: merge.SelectKind(stmt, len(units)),
	}
	statistics.RecordRoute(stmt.Kind.String(), plan.Shape(), len(units))

	shardlog.Zero.Debug().
		Str("sql", sql).
		Str("merge", plan.MergeKind.String()).
		Interface("units", rc.Units).
		Msg("statement routed")
	return plan, nil
}

func (qr *ShardingQueryRouter) route(snap *snapshot, stmt *statement.Statement, params []any, hint *routehint.HintContext) (*route.RouteContext, error) {
	if _, forced := hint.ForcedDataSource(); forced {
		return snap.route.Route(stmt, params, nil, nil, hint)
	}
	gk, err := condition.GenerateKeys(stmt, snap.rule, params, qr.keygens)
	if err != nil {
		return nil, err
	}
	conds, err := condition.Extract(stmt, snap.rule, params, gk)
	if err != nil {
		return nil, err
	}
	return snap.route.Route(stmt, params, conds, gk, hint)
}

func (qr *ShardingQueryRouter) Query(ctx context.Context, sql string, params []any, hint *routehint.HintContext) (merge.MergedResult, error) {
	res, err := qr.query(ctx, sql, params, hint)
	if err != nil {
		statistics.RecordError(sherror.Code(err))
		return nil, err
	}
	return res, nil
}

func (qr *ShardingQueryRouter) query(ctx context.Context, sql string, params []any, hint *routehint.HintContext) (merge.MergedResult, error) {
	if qr.exec == nil {
		return nil, ErrNoExecutor
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "query")
	defer span.Finish()

	times := statistics.NewStatementTimes()
	plan, err := qr.plan(ctx, sql, params, hint, times)
	if err != nil {
		return nil, err
	}
	if !plan.Statement.Kind.IsQuery() {
		return nil, ErrNotQuery
	}

	_, ectx, finish := stage(ctx, times, statistics.StageExecute)
	sources, err := qr.exec.ExecuteQuery(ectx, plan.Units)
	finish(err)
	if err != nil {
		return nil, err
	}

	_, _, finish = stage(ctx, times, statistics.StageMerge)
	res, err := merge.Merge(plan.Statement, params, sources)
	finish(err)
	return res, err
}

func (qr *ShardingQueryRouter) Exec(ctx context.Context, sql string, params []any, hint *routehint.HintContext) (*merge.UpdateResult, error) {
	res, err := qr.execute(ctx, sql, params, hint)
	if err != nil {
		statistics.RecordError(sherror.Code(err))
		return nil, err
	}
	return res, nil
}

func (qr *ShardingQueryRouter) execute(ctx context.Context, sql string, params []any, hint *routehint.HintContext) (*merge.UpdateResult, error) {
	if qr.exec == nil {
		return nil, ErrNoExecutor
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "exec")
	defer span.Finish()

	times := statistics.NewStatementTimes()
	plan, err := qr.plan(ctx, sql, params, hint, times)
	if err != nil {
		return nil, err
	}
	if plan.Statement.Kind.IsQuery() {
		return nil, ErrQuery
	}

	start := time.Now()
	_, ectx, finish := stage(ctx, times, statistics.StageExecute)
	affected, err := qr.exec.ExecuteUpdate(ectx, plan.Units)
	finish(err)
	if err != nil {
		return nil, err
	}

	res := merge.MergeUpdate(affected, plan.Route.GeneratedKey)
	shardlog.Zero.Debug().
		Int64("affected rows", res.AffectedRows).
		Dur("elapsed", time.Since(start)).
		Msg("statement executed")
	return res, nil
}
