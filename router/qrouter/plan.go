package qrouter

import (
	"fmt"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/statement"
	"github.com/pg-sharding/shardcore/router/merge"
	"github.com/pg-sharding/shardcore/router/rewrite"
	"github.com/pg-sharding/shardcore/router/route"
	"github.com/pg-sharding/shardcore/router/statistics"
)

// Plan is the outcome of routing and rewriting one statement.
type Plan struct {
	Statement *statement.Statement  `json:"-"`
	SQL       string                `json:"sql"`
	Route     *route.RouteContext   `json:"route"`
	Units     []rewrite.RewriteUnit `json:"units"`
	MergeKind merge.MergeKind       `json:"merge_kind"`
}

// Shape classifies the route for metrics and previews.
func (p *Plan) Shape() string {
	switch {
	case p.Route.Forced:
		return statistics.ShapeForced
	case p.Route.Broadcast && len(p.Units) > 1:
		return statistics.ShapeBroadcast
	case len(p.Units) == 1:
		return statistics.ShapeSingle
	default:
		return statistics.ShapeMulti
	}
}

// Rows renders one line per unit: data source, actual tables, SQL and
// parameters.
func (p *Plan) Rows() [][]string {
	res := make([][]string, 0, len(p.Units))
	for _, u := range p.Units {
		params := make([]string, 0, len(u.Params))
		for _, v := range u.Params {
			params = append(params, fmt.Sprintf("%v", v))
		}
		res = append(res, []string{
			u.Unit.DataSource.ActualName,
			strings.Join(u.Unit.ActualTables(), ","),
			u.SQL,
			strings.Join(params, ", "),
		})
	}
	return res
}
