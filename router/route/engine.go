package route

import (
	"slices"

	"github.com/pg-sharding/shardcore/pkg/models/datanode"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/models/shrule"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
	"github.com/pg-sharding/shardcore/pkg/statement"
	"github.com/pg-sharding/shardcore/router/condition"
	"github.com/pg-sharding/shardcore/router/routehint"
)

var (
	ErrAllDisabled  = sherror.New(sherror.SHARD_ROUTING_ERROR, "every routed datasource is disabled by hint")
	ErrNoRouteUnits = sherror.New(sherror.SHARD_ROUTING_ERROR, "no route units")
	ErrInsertSelect = sherror.New(sherror.SHARD_UNSUPPORTED, "INSERT ... SELECT is not supported")
)

// Engine routes statements against one rule snapshot.
type Engine struct {
	rule *shrule.ShardingRule
}

func NewEngine(rule *shrule.ShardingRule) *Engine {
	return &Engine{rule: rule}
}

// tables of a statement, split by how they route.
type classified struct {
	sharded   []*shrule.TableRule
	single    []singleTable
	broadcast []string
}

type singleTable struct {
	logic string
	node  datanode.DataNode
}

func (e *Engine) classify(stmt *statement.Statement) (*classified, error) {
	c := &classified{}
	for _, t := range stmt.TableNames() {
		if e.rule.IsBroadcastTable(t) {
			c.broadcast = append(c.broadcast, t)
			continue
		}
		tr, ok := e.rule.TableRule(t)
		switch {
		case ok && tr.IsSingle():
			c.single = append(c.single, singleTable{logic: tr.LogicTable, node: tr.DataNodes[0]})
		case ok:
			c.sharded = append(c.sharded, tr)
		case e.rule.DefaultDataSource != "":
			c.single = append(c.single, singleTable{logic: t, node: datanode.DataNode{DataSource: e.rule.DefaultDataSource, Table: t}})
		default:
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "missing sharding rule for table %q and no default data source", t)
		}
	}
	return c, nil
}

// Route computes the physical targets of stmt. conds come from the condition
// extractor, gk from the key generation pre-step.
func (e *Engine) Route(stmt *statement.Statement, params []any, conds []condition.Condition,
	gk *condition.GeneratedKeyContext, hint *routehint.HintContext) (*RouteContext, error) {
	rc, err := e.route(stmt, params, conds, hint)
	if err != nil {
		return nil, err
	}
	rc.GeneratedKey = gk

	rc.Units = dedup(rc.Units)
	if len(rc.Units) == 0 {
		return nil, ErrNoRouteUnits
	}
	if hint != nil && len(hint.DisabledDataSources) > 0 {
		rc.Units = slices.DeleteFunc(rc.Units, func(u RouteUnit) bool {
			return hint.IsDisabled(u.DataSource.ActualName)
		})
		if len(rc.Units) == 0 {
			return nil, ErrAllDisabled
		}
	}

	shardlog.Zero.Debug().
		Str("kind", stmt.Kind.String()).
		Int("units", len(rc.Units)).
		Bool("broadcast", rc.Broadcast).
		Interface("route_units", rc.Units).
		Msg("routed statement")
	return rc, nil
}

func (e *Engine) route(stmt *statement.Statement, params []any, conds []condition.Condition, hint *routehint.HintContext) (*RouteContext, error) {
	if ds, ok := hint.ForcedDataSource(); ok {
		if !slices.Contains(e.rule.DataSources, ds) {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "hinted data source %q is not configured", ds)
		}
		return &RouteContext{
			Units:  []RouteUnit{{DataSource: RouteMapper{LogicName: ds, ActualName: ds}}},
			Forced: true,
		}, nil
	}

	if stmt.Kind == statement.KindInsert && stmt.Insert != nil && stmt.Insert.FromSelect {
		return nil, ErrInsertSelect
	}

	c, err := e.classify(stmt)
	if err != nil {
		return nil, err
	}

	switch {
	case len(c.sharded) > 0:
		if stmt.Kind == statement.KindInsert {
			return e.routeInsert(c, conds, hint)
		}
		rc, err := e.routeSharded(c, conds, hint)
		if err != nil {
			return nil, err
		}
		if stmt.Kind == statement.KindUpdate {
			if err := checkShardingAssignments(stmt, params, c.sharded, conds); err != nil {
				return nil, err
			}
		}
		return rc, nil
	case len(c.single) > 0:
		return e.routeSingle(c)
	default:
		return e.routeBroadcast(stmt, c, hint)
	}
}

// routeBroadcast serves statements touching only broadcast tables, or none.
// Queries read from one datasource, everything else runs everywhere.
func (e *Engine) routeBroadcast(stmt *statement.Statement, c *classified, hint *routehint.HintContext) (*RouteContext, error) {
	var mappers []RouteMapper
	for _, t := range c.broadcast {
		mappers = append(mappers, RouteMapper{LogicName: t, ActualName: t})
	}
	unit := func(ds string) RouteUnit {
		return RouteUnit{DataSource: RouteMapper{LogicName: ds, ActualName: ds}, Tables: mappers}
	}

	rc := &RouteContext{}
	if stmt.Kind.IsQuery() {
		for _, ds := range e.rule.DataSources {
			if !hint.IsDisabled(ds) {
				rc.Units = append(rc.Units, unit(ds))
				break
			}
		}
		return rc, nil
	}

	rc.Broadcast = true
	for _, ds := range e.rule.DataSources {
		rc.Units = append(rc.Units, unit(ds))
	}
	return rc, nil
}

// routeSingle serves statements whose tables all live on one datasource.
func (e *Engine) routeSingle(c *classified) (*RouteContext, error) {
	ds, err := singleDataSource(c.single)
	if err != nil {
		return nil, err
	}
	u := RouteUnit{DataSource: RouteMapper{LogicName: ds, ActualName: ds}}
	u.Tables = append(u.Tables, singleMappers(c)...)
	return &RouteContext{Units: []RouteUnit{u}}, nil
}

func singleDataSource(tables []singleTable) (string, error) {
	first := tables[0].node
	for _, st := range tables[1:] {
		if st.node.DataSource != first.DataSource {
			return "", sherror.Newf(sherror.SHARD_CONFIG_ERROR,
				"tables %s and %s are on different data sources and cannot be joined", first, st.node)
		}
	}
	return first.DataSource, nil
}

func singleMappers(c *classified) []RouteMapper {
	var res []RouteMapper
	for _, st := range c.single {
		res = append(res, RouteMapper{LogicName: st.logic, ActualName: st.node.Table})
	}
	for _, t := range c.broadcast {
		res = append(res, RouteMapper{LogicName: t, ActualName: t})
	}
	return res
}

// bindingGroup is a routed primary table plus the tables bound to it.
type bindingGroup struct {
	primary *shrule.TableRule
	nodes   []datanode.DataNode
	bound   []*shrule.TableRule
}

// unitTables returns, per data node of the primary on ds, the mappers of the
// primary and of every bound table at the same index.
func (g *bindingGroup) unitTables(ds string) ([][]RouteMapper, error) {
	var res [][]RouteMapper
	for _, dn := range g.nodes {
		if dn.DataSource != ds {
			continue
		}
		mappers := []RouteMapper{{LogicName: g.primary.LogicTable, ActualName: dn.Table}}
		idx := g.primary.FindActualTableIndex(ds, dn.Table)
		for _, b := range g.bound {
			actual, ok := b.ActualTableByIndex(ds, idx)
			if !ok {
				return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR,
					"binding table %q has no actual table matching %s", b.LogicTable, dn)
			}
			mappers = append(mappers, RouteMapper{LogicName: b.LogicTable, ActualName: actual})
		}
		res = append(res, mappers)
	}
	return res, nil
}

// routeSharded routes every binding group then combines them per datasource.
func (e *Engine) routeSharded(c *classified, conds []condition.Condition, hint *routehint.HintContext) (*RouteContext, error) {
	var groups []*bindingGroup
	narrowed := false
next:
	for _, tr := range c.sharded {
		for _, g := range groups {
			if e.rule.AreBound([]string{g.primary.LogicTable, tr.LogicTable}) {
				g.bound = append(g.bound, tr)
				continue next
			}
		}
		nodes, n, err := routeTable(tr, conds, hint)
		if err != nil {
			return nil, err
		}
		narrowed = narrowed || n
		groups = append(groups, &bindingGroup{primary: tr, nodes: nodes})
	}

	singleDS := ""
	if len(c.single) > 0 {
		ds, err := singleDataSource(c.single)
		if err != nil {
			return nil, err
		}
		singleDS = ds
	}
	extra := singleMappers(c)

	rc := &RouteContext{Broadcast: !narrowed}
	for _, ds := range e.rule.DataSources {
		if singleDS != "" && ds != singleDS {
			continue
		}
		combos := [][]RouteMapper{nil}
		for _, g := range groups {
			sets, err := g.unitTables(ds)
			if err != nil {
				return nil, err
			}
			combos = cartesian(combos, sets)
		}
		for _, tables := range combos {
			rc.Units = append(rc.Units, RouteUnit{
				DataSource: RouteMapper{LogicName: ds, ActualName: ds},
				Tables:     append(tables, extra...),
			})
		}
	}
	if len(rc.Units) == 0 {
		return nil, sherror.New(sherror.SHARD_CONFIG_ERROR, "cross-datasource join is not supported: routed tables share no data source")
	}
	return rc, nil
}

func cartesian(acc [][]RouteMapper, sets [][]RouteMapper) [][]RouteMapper {
	var res [][]RouteMapper
	for _, prefix := range acc {
		for _, set := range sets {
			combo := make([]RouteMapper, 0, len(prefix)+len(set))
			combo = append(combo, prefix...)
			combo = append(combo, set...)
			res = append(res, combo)
		}
	}
	return res
}

// routeInsert routes every row to exactly one data node.
func (e *Engine) routeInsert(c *classified, conds []condition.Condition, hint *routehint.HintContext) (*RouteContext, error) {
	tr := c.sharded[0]
	rc := &RouteContext{}
	hit := map[datanode.DataNode]struct{}{}
	narrowed := false

	for i := range conds {
		nodes, n, err := routeCondition(tr, &conds[i], hint)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, sherror.Newf(sherror.SHARD_ROUTING_ERROR,
				"row %d of INSERT into %q routes to %d data nodes, expected exactly one", conds[i].RowIndex, tr.LogicTable, len(nodes))
		}
		narrowed = narrowed || n
		hit[nodes[0]] = struct{}{}
		rc.ConditionRoutes = append(rc.ConditionRoutes, ConditionRoute{Condition: conds[i], DataNodes: nodes})
	}
	rc.Broadcast = !narrowed

	for _, dn := range inNodeOrder(tr, hit) {
		rc.Units = append(rc.Units, RouteUnit{
			DataSource: RouteMapper{LogicName: dn.DataSource, ActualName: dn.DataSource},
			Tables:     []RouteMapper{{LogicName: tr.LogicTable, ActualName: dn.Table}},
		})
	}
	return rc, nil
}

// checkShardingAssignments rejects UPDATEs that would move a row to another shard.
func checkShardingAssignments(stmt *statement.Statement, params []any, sharded []*shrule.TableRule, conds []condition.Condition) error {
	for _, a := range stmt.Assignments {
		for _, tr := range sharded {
			if a.Table != "" {
				if t, ok := stmt.ResolveQualifier(a.Table); !ok || t != tr.LogicTable {
					continue
				}
			}
			if !tr.IsShardingColumn(a.Column) {
				continue
			}
			if !sameAsCondition(a, tr, params, conds) {
				return sherror.Newf(sherror.SHARD_UNSUPPORTED,
					"updating sharding column %s.%s is not supported", tr.LogicTable, a.Column)
			}
		}
	}
	return nil
}

func sameAsCondition(a statement.Assignment, tr *shrule.TableRule, params []any, conds []condition.Condition) bool {
	v, ok := a.Value.Resolve(params)
	if !ok || len(conds) == 0 {
		return false
	}
	cv, ok := conds[0].Find(tr.LogicTable, a.Column)
	if !ok || cv.IsRange() || len(cv.Values) != 1 {
		return false
	}
	c, err := sqlvalue.Compare(v, cv.Values[0])
	return err == nil && c == 0
}

func dedup(units []RouteUnit) []RouteUnit {
	seen := map[string]struct{}{}
	res := units[:0]
	for _, u := range units {
		k := u.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		res = append(res, u)
	}
	return res
}
