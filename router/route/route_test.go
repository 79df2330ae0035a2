package route_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/models/datanode"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/models/shrule"
	"github.com/pg-sharding/shardcore/router/condition"
	"github.com/pg-sharding/shardcore/router/parser"
	"github.com/pg-sharding/shardcore/router/route"
	"github.com/pg-sharding/shardcore/router/routehint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(t *testing.T) *shrule.ShardingRule {
	mod := func(col, alg string) *config.Strategy {
		return &config.Strategy{Type: config.StrategyStandard, ShardingColumn: col, Algorithm: alg}
	}
	rule, err := shrule.Build(&config.Config{
		DataSources: map[string]config.DataSource{
			"ds_0": {Driver: "mysql"},
			"ds_1": {Driver: "mysql"},
		},
		DefaultDataSource: "ds_0",
		Sharding: config.ShardingRule{
			Tables: map[string]config.TableRule{
				"t_order": {
					ActualDataNodes:  "ds_${0..1}.t_order_${0..1}",
					DatabaseStrategy: mod("user_id", "ds_mod"),
					TableStrategy:    mod("order_id", "t_mod"),
				},
				"t_order_item": {
					ActualDataNodes:  "ds_${0..1}.t_order_item_${0..1}",
					DatabaseStrategy: mod("user_id", "ds_mod"),
					TableStrategy:    mod("order_id", "t_mod"),
				},
				"t_user": {
					ActualDataNodes:  "ds_${0..1}.t_user",
					DatabaseStrategy: mod("user_id", "ds_mod"),
				},
				"t_config": {
					ActualDataNodes: "ds_1.t_config",
				},
				"t_hint": {
					ActualDataNodes: "ds_0.t_hint_${0..1}",
					TableStrategy:   &config.Strategy{Type: "hint", Algorithm: "hint_inline"},
				},
			},
			BindingTables:   []string{"t_order,t_order_item"},
			BroadcastTables: []string{"t_dict"},
			ShardingAlgorithms: map[string]config.Algorithm{
				"ds_mod":      {Type: "MOD", Props: map[string]string{"sharding-count": "2"}},
				"t_mod":       {Type: "MOD", Props: map[string]string{"sharding-count": "2"}},
				"hint_inline": {Type: "HINT_INLINE", Props: map[string]string{"algorithm-expression": "t_hint_${value}"}},
			},
		},
	})
	require.NoError(t, err)
	return rule
}

func routeSQL(t *testing.T, rule *shrule.ShardingRule, sql string, params []any, hint *routehint.HintContext) (*route.RouteContext, error) {
	stmt, _, err := parser.NewQParser().Parse(sql)
	require.NoError(t, err)
	conds, err := condition.Extract(stmt, rule, params, nil)
	require.NoError(t, err)
	return route.NewEngine(rule).Route(stmt, params, conds, nil, hint)
}

func unit(ds string, tables ...string) route.RouteUnit {
	u := route.RouteUnit{DataSource: route.RouteMapper{LogicName: ds, ActualName: ds}}
	for i := 0; i+1 < len(tables); i += 2 {
		u.Tables = append(u.Tables, route.RouteMapper{LogicName: tables[i], ActualName: tables[i+1]})
	}
	return u
}

func TestRouteUnits(t *testing.T) {
	rule := testRule(t)

	type tcase struct {
		name      string
		sql       string
		params    []any
		hint      *routehint.HintContext
		exp       []route.RouteUnit
		broadcast bool
	}

	for _, tt := range []tcase{
		{
			name: "precise on both dimensions",
			sql:  "SELECT * FROM t_order WHERE user_id = 10 AND order_id = 15",
			exp:  []route.RouteUnit{unit("ds_0", "t_order", "t_order_1")},
		},
		{
			name:   "params",
			sql:    "SELECT * FROM t_order WHERE user_id = ? AND order_id IN (?, ?)",
			params: []any{11, 4, 7},
			exp: []route.RouteUnit{
				unit("ds_1", "t_order", "t_order_0"),
				unit("ds_1", "t_order", "t_order_1"),
			},
		},
		{
			name: "full route",
			sql:  "SELECT * FROM t_order",
			exp: []route.RouteUnit{
				unit("ds_0", "t_order", "t_order_0"),
				unit("ds_0", "t_order", "t_order_1"),
				unit("ds_1", "t_order", "t_order_0"),
				unit("ds_1", "t_order", "t_order_1"),
			},
			broadcast: true,
		},
		{
			name: "range",
			sql:  "SELECT * FROM t_order WHERE user_id = 10 AND order_id BETWEEN 3 AND 3",
			exp:  []route.RouteUnit{unit("ds_0", "t_order", "t_order_1")},
		},
		{
			name: "binding tables follow the primary",
			sql:  "SELECT * FROM t_order o JOIN t_order_item i ON o.order_id = i.order_id WHERE o.user_id = 11 AND o.order_id IN (1, 2)",
			exp: []route.RouteUnit{
				unit("ds_1", "t_order", "t_order_0", "t_order_item", "t_order_item_0"),
				unit("ds_1", "t_order", "t_order_1", "t_order_item", "t_order_item_1"),
			},
		},
		{
			name: "cartesian product of unbound tables",
			sql:  "SELECT * FROM t_order o JOIN t_user u ON o.user_id = u.user_id WHERE o.user_id = 10 AND o.order_id = 2 AND u.user_id = 10",
			exp:  []route.RouteUnit{unit("ds_0", "t_order", "t_order_0", "t_user", "t_user")},
		},
		{
			name: "unbound tables without conditions",
			sql:  "SELECT * FROM t_order o JOIN t_user u ON o.user_id = u.user_id WHERE o.order_id = 2",
			exp: []route.RouteUnit{
				unit("ds_0", "t_order", "t_order_0", "t_user", "t_user"),
				unit("ds_1", "t_order", "t_order_0", "t_user", "t_user"),
			},
			broadcast: false,
		},
		{
			name: "sharded join single table",
			sql:  "SELECT * FROM t_order o JOIN t_config c ON o.status = c.status WHERE o.user_id = 11 AND o.order_id = 1",
			exp:  []route.RouteUnit{unit("ds_1", "t_order", "t_order_1", "t_config", "t_config")},
		},
		{
			name: "sharded join broadcast table",
			sql:  "SELECT * FROM t_order o JOIN t_dict d ON o.status = d.code WHERE o.user_id = 10 AND o.order_id = 1",
			exp:  []route.RouteUnit{unit("ds_0", "t_order", "t_order_1", "t_dict", "t_dict")},
		},
		{
			name: "broadcast query is unicast",
			sql:  "SELECT * FROM t_dict",
			exp:  []route.RouteUnit{unit("ds_0", "t_dict", "t_dict")},
		},
		{
			name: "broadcast query skips disabled data source",
			sql:  "SELECT * FROM t_dict",
			hint: &routehint.HintContext{DisabledDataSources: []string{"ds_0"}},
			exp:  []route.RouteUnit{unit("ds_1", "t_dict", "t_dict")},
		},
		{
			name: "broadcast update hits every data source",
			sql:  "UPDATE t_dict SET name = 'x' WHERE code = 1",
			exp: []route.RouteUnit{
				unit("ds_0", "t_dict", "t_dict"),
				unit("ds_1", "t_dict", "t_dict"),
			},
			broadcast: true,
		},
		{
			name: "single table",
			sql:  "SELECT * FROM t_config WHERE id = 1",
			exp:  []route.RouteUnit{unit("ds_1", "t_config", "t_config")},
		},
		{
			name: "table without rule goes to the default data source",
			sql:  "SELECT * FROM t_log",
			exp:  []route.RouteUnit{unit("ds_0", "t_log", "t_log")},
		},
		{
			name: "tableless query",
			sql:  "SELECT 1",
			exp:  []route.RouteUnit{unit("ds_0")},
		},
		{
			name: "hinted table value",
			sql:  "SELECT * FROM t_hint",
			hint: &routehint.HintContext{TableValues: map[string][]any{"t_hint": {int64(1)}}},
			exp:  []route.RouteUnit{unit("ds_0", "t_hint", "t_hint_1")},
		},
		{
			name: "hint strategy without hint",
			sql:  "SELECT * FROM t_hint",
			exp: []route.RouteUnit{
				unit("ds_0", "t_hint", "t_hint_0"),
				unit("ds_0", "t_hint", "t_hint_1"),
			},
			broadcast: true,
		},
		{
			name: "hint values override conditions",
			sql:  "SELECT * FROM t_order WHERE user_id = 10 AND order_id = 1",
			hint: &routehint.HintContext{DatabaseValues: map[string][]any{"t_order": {int64(11)}}},
			exp:  []route.RouteUnit{unit("ds_1", "t_order", "t_order_1")},
		},
		{
			name: "forced data source",
			sql:  "SELECT * FROM t_order WHERE user_id = 10",
			hint: &routehint.HintContext{DataSource: "ds_1"},
			exp:  []route.RouteUnit{unit("ds_1")},
		},
		{
			name: "disabled data source is filtered",
			sql:  "SELECT * FROM t_order WHERE order_id = 1",
			hint: &routehint.HintContext{DisabledDataSources: []string{"ds_0"}},
			exp:  []route.RouteUnit{unit("ds_1", "t_order", "t_order_1")},
		},
		{
			name: "duplicate units collapse",
			sql:  "SELECT * FROM t_order WHERE user_id IN (10, 12) AND order_id IN (1, 3)",
			exp:  []route.RouteUnit{unit("ds_0", "t_order", "t_order_1")},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := routeSQL(t, rule, tt.sql, tt.params, tt.hint)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.exp, rc.Units); diff != "" {
				t.Errorf("units mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.broadcast, rc.Broadcast)
		})
	}
}

func TestRouteErrors(t *testing.T) {
	assert := assert.New(t)
	rule := testRule(t)

	type tcase struct {
		sql  string
		hint *routehint.HintContext
		code string
	}

	for _, tt := range []tcase{
		{
			sql:  "SELECT * FROM t_order o JOIN t_config c ON o.status = c.status WHERE o.user_id = 10",
			code: sherror.SHARD_CONFIG_ERROR,
		},
		{
			sql:  "SELECT * FROM t_config c JOIN t_log l ON c.id = l.id",
			code: sherror.SHARD_CONFIG_ERROR,
		},
		{
			sql:  "SELECT * FROM t_order",
			hint: &routehint.HintContext{DisabledDataSources: []string{"ds_0", "ds_1"}},
			code: sherror.SHARD_ROUTING_ERROR,
		},
		{
			sql:  "SELECT * FROM t_order",
			hint: &routehint.HintContext{DataSource: "ds_7"},
			code: sherror.SHARD_CONFIG_ERROR,
		},
		{
			sql:  "SELECT * FROM t_order WHERE user_id = 10",
			hint: &routehint.HintContext{DataSource: "ds_0", DisabledDataSources: []string{"ds_0"}},
			code: sherror.SHARD_ROUTING_ERROR,
		},
		{
			sql:  "INSERT INTO t_order (user_id, order_id) SELECT user_id, order_id FROM t_order_item",
			code: sherror.SHARD_UNSUPPORTED,
		},
		{
			sql:  "INSERT INTO t_order (order_id, status) VALUES (1, 'a')",
			code: sherror.SHARD_ROUTING_ERROR,
		},
		{
			sql:  "UPDATE t_order SET user_id = 12 WHERE user_id = 10 AND order_id = 1",
			code: sherror.SHARD_UNSUPPORTED,
		},
		{
			sql:  "UPDATE t_order SET order_id = 5 WHERE user_id = 10",
			code: sherror.SHARD_UNSUPPORTED,
		},
	} {
		_, err := routeSQL(t, rule, tt.sql, nil, tt.hint)
		assert.Error(err, tt.sql)
		assert.Equal(tt.code, sherror.Code(err), tt.sql)
	}
}

func TestRouteDisabledDataSources(t *testing.T) {
	assert := assert.New(t)
	rule := testRule(t)

	type tcase struct {
		sql  string
		hint *routehint.HintContext
		err  error
		code string
	}

	for _, tt := range []tcase{
		{
			sql:  "SELECT * FROM t_order",
			hint: &routehint.HintContext{DisabledDataSources: []string{"ds_0", "ds_1"}},
			err:  route.ErrAllDisabled,
		},
		{
			sql:  "SELECT * FROM t_order WHERE user_id = 11",
			hint: &routehint.HintContext{DisabledDataSources: []string{"ds_1"}},
			err:  route.ErrAllDisabled,
		},
		{
			sql:  "SELECT * FROM t_order WHERE order_id BETWEEN 9 AND 1",
			code: sherror.SHARD_ROUTING_ERROR,
		},
		{
			sql:  "SELECT * FROM t_order WHERE order_id BETWEEN 9 AND 1",
			hint: &routehint.HintContext{DisabledDataSources: []string{"ds_0"}},
			code: sherror.SHARD_ROUTING_ERROR,
		},
	} {
		_, err := routeSQL(t, rule, tt.sql, nil, tt.hint)
		assert.Error(err, tt.sql)
		if tt.err != nil {
			assert.ErrorIs(err, tt.err, tt.sql)
			continue
		}
		assert.Equal(tt.code, sherror.Code(err), tt.sql)
		assert.NotErrorIs(err, route.ErrAllDisabled, tt.sql)
	}
}

func TestRouteInsertRows(t *testing.T) {
	assert := assert.New(t)
	rule := testRule(t)

	rc, err := routeSQL(t, rule,
		"INSERT INTO t_order (user_id, order_id, status) VALUES (10, 1, 'a'), (11, 2, 'b'), (12, 3, 'c')", nil, nil)
	require.NoError(t, err)

	if diff := cmp.Diff([]route.RouteUnit{
		unit("ds_0", "t_order", "t_order_1"),
		unit("ds_1", "t_order", "t_order_0"),
	}, rc.Units); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
	assert.False(rc.Broadcast)
	assert.True(rc.HasRowTargets())
	assert.Len(rc.ConditionRoutes, 3)

	for row, exp := range []datanode.DataNode{
		{DataSource: "ds_0", Table: "t_order_1"},
		{DataSource: "ds_1", Table: "t_order_0"},
		{DataSource: "ds_0", Table: "t_order_1"},
	} {
		dn, ok := rc.RowTarget(row)
		assert.True(ok)
		assert.Equal(exp, dn)
	}
	_, ok := rc.RowTarget(3)
	assert.False(ok)
}

func TestRouteUpdateKeepsShardingValue(t *testing.T) {
	assert := assert.New(t)
	rule := testRule(t)

	rc, err := routeSQL(t, rule, "UPDATE t_order SET user_id = ?, status = 'x' WHERE user_id = ? AND order_id = 2", []any{10, 10}, nil)
	require.NoError(t, err)
	assert.Equal([]string{"ds_0"}, rc.DataSourceNames())
	assert.True(rc.IsSingleUnit())
	assert.False(rc.Forced)
}

func TestRouteForced(t *testing.T) {
	assert := assert.New(t)
	rule := testRule(t)

	rc, err := routeSQL(t, rule, "SELECT * FROM t_order", nil, &routehint.HintContext{DataSource: "ds_1"})
	require.NoError(t, err)
	assert.True(rc.Forced)
	assert.Empty(rc.Units[0].Tables)
	assert.Equal("ds_1", rc.Units[0].String())
}
