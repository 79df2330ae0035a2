package rewrite

import (
	"slices"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/models/shrule"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pg-sharding/shardcore/pkg/statement"
	"github.com/pg-sharding/shardcore/router/route"
)

// RewriteUnit is the physical statement of one route unit.
type RewriteUnit struct {
	Unit   route.RouteUnit `json:"unit"`
	SQL    string          `json:"sql"`
	Params []any           `json:"params,omitempty"`
}

type Engine struct {
	rule *shrule.ShardingRule
}

func NewEngine(rule *shrule.ShardingRule) *Engine {
	return &Engine{rule: rule}
}

type rewriter struct {
	rule   *shrule.ShardingRule
	stmt   *statement.Statement
	params []any
	rc     *route.RouteContext
}

// Rewrite produces one physical statement per unit of rc, in unit order.
func (e *Engine) Rewrite(stmt *statement.Statement, params []any, rc *route.RouteContext) ([]RewriteUnit, error) {
	if len(params) < stmt.ParamCount() {
		return nil, sherror.Newf(sherror.SHARD_REWRITE_ERROR,
			"statement has %d parameter markers but %d values were bound", stmt.ParamCount(), len(params))
	}

	if rc.Forced {
		res := make([]RewriteUnit, 0, len(rc.Units))
		for _, u := range rc.Units {
			res = append(res, RewriteUnit{Unit: u, SQL: stmt.SQL, Params: slices.Clone(params)})
		}
		return res, nil
	}

	r := &rewriter{rule: e.rule, stmt: stmt, params: params, rc: rc}
	tokens, err := r.tokens()
	if err != nil {
		return nil, err
	}
	if err := sortTokens(tokens); err != nil {
		return nil, err
	}

	res := make([]RewriteUnit, 0, len(rc.Units))
	for _, u := range rc.Units {
		sql, uparams, err := r.splice(tokens, u)
		if err != nil {
			return nil, err
		}
		shardlog.Zero.Debug().
			Str("unit", u.String()).
			Str("sql", sql).
			Interface("params", uparams).
			Msg("rewrote statement")
		res = append(res, RewriteUnit{Unit: u, SQL: sql, Params: uparams})
	}
	return res, nil
}

func (r *rewriter) tokens() ([]Token, error) {
	tokens := r.tableTokens()

	switch {
	case r.stmt.Kind == statement.KindSelect && r.stmt.Select != nil && len(r.rc.Units) > 1:
		qt, err := r.queryTokens()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, qt...)
	case r.stmt.Kind == statement.KindInsert && r.stmt.Insert != nil && !r.stmt.Insert.FromSelect:
		it, err := r.insertTokens()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, it...)
	}
	return tokens, nil
}
