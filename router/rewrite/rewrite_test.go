package rewrite_test

import (
	"testing"

	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/models/keygen"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/models/shrule"
	"github.com/pg-sharding/shardcore/router/condition"
	"github.com/pg-sharding/shardcore/router/parser"
	"github.com/pg-sharding/shardcore/router/rewrite"
	"github.com/pg-sharding/shardcore/router/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mod4Rule shards t_order by order_id mod 4 on a single data source.
func mod4Rule(t *testing.T) *shrule.ShardingRule {
	rule, err := shrule.Build(&config.Config{
		Sharding: config.ShardingRule{
			Tables: map[string]config.TableRule{
				"t_order": {
					ActualDataNodes: "ds_0.t_order_${0..3}",
					TableStrategy:   &config.Strategy{Type: config.StrategyStandard, ShardingColumn: "order_id", Algorithm: "mod4"},
				},
			},
			ShardingAlgorithms: map[string]config.Algorithm{
				"mod4": {Type: "MOD", Props: map[string]string{"sharding-count": "4"}},
			},
		},
	})
	require.NoError(t, err)
	return rule
}

func insertRule(t *testing.T) *shrule.ShardingRule {
	mod := func(col string) *config.Strategy {
		return &config.Strategy{Type: config.StrategyStandard, ShardingColumn: col, Algorithm: "mod2"}
	}
	rule, err := shrule.Build(&config.Config{
		Sharding: config.ShardingRule{
			Tables: map[string]config.TableRule{
				"t_order": {
					ActualDataNodes:  "ds_${0..1}.t_order_${0..1}",
					DatabaseStrategy: mod("user_id"),
					TableStrategy:    mod("order_id"),
					KeyGenerate:      &config.KeyGenerate{Column: "order_id", Generator: "inc"},
				},
				"t_order_item": {
					ActualDataNodes:  "ds_${0..1}.t_order_item_${0..1}",
					DatabaseStrategy: mod("user_id"),
					TableStrategy:    mod("order_id"),
					VirtualColumns:   []string{"region"},
				},
			},
			ShardingAlgorithms: map[string]config.Algorithm{
				"mod2": {Type: "MOD", Props: map[string]string{"sharding-count": "2"}},
			},
			KeyGenerators: map[string]config.Algorithm{
				"inc": {Type: "INCREMENT"},
			},
		},
	})
	require.NoError(t, err)
	return rule
}

func rewriteSQL(t *testing.T, rule *shrule.ShardingRule, sql string, params []any) ([]rewrite.RewriteUnit, error) {
	stmt, _, err := parser.NewQParser().Parse(sql)
	require.NoError(t, err)
	gk, err := condition.GenerateKeys(stmt, rule, params, keygen.NewRegistry(rule.KeyGenerators))
	require.NoError(t, err)
	conds, err := condition.Extract(stmt, rule, params, gk)
	require.NoError(t, err)
	rc, err := route.NewEngine(rule).Route(stmt, params, conds, gk, nil)
	require.NoError(t, err)
	return rewrite.NewEngine(rule).Rewrite(stmt, params, rc)
}

func sqls(units []rewrite.RewriteUnit) []string {
	res := make([]string, 0, len(units))
	for _, u := range units {
		res = append(res, u.SQL)
	}
	return res
}

func TestRewriteSelect(t *testing.T) {
	assert := assert.New(t)
	rule := mod4Rule(t)

	type tcase struct {
		sql    string
		params []any
		exp    []string
		expPar [][]any
	}

	for _, tt := range []tcase{
		{
			sql: "SELECT * FROM t_order WHERE order_id = 15",
			exp: []string{"SELECT * FROM t_order_3 WHERE order_id = 15"},
		},
		{
			sql: "SELECT * FROM db.`t_order` o WHERE o.order_id = 2",
			exp: []string{"SELECT * FROM `t_order_2` o WHERE o.order_id = 2"},
		},
		{
			sql: "SELECT t_order.user_id FROM t_order WHERE t_order.order_id = 1",
			exp: []string{"SELECT t_order_1.user_id FROM t_order_1 WHERE t_order_1.order_id = 1"},
		},
		{
			sql: "SELECT user_id, AVG(price) FROM t_order WHERE order_id = 1 GROUP BY user_id LIMIT 1, 2",
			exp: []string{"SELECT user_id, AVG(price) FROM t_order_1 WHERE order_id = 1 GROUP BY user_id LIMIT 1, 2"},
		},
		{
			sql: "SELECT * FROM t_order WHERE order_id IN (1, 2) ORDER BY order_id LIMIT 10, 5",
			exp: []string{
				"SELECT * FROM t_order_1 WHERE order_id IN (1, 2) ORDER BY order_id LIMIT 0, 15",
				"SELECT * FROM t_order_2 WHERE order_id IN (1, 2) ORDER BY order_id LIMIT 0, 15",
			},
		},
		{
			sql:    "SELECT * FROM t_order WHERE order_id IN (?, ?) AND status = ? ORDER BY order_id LIMIT ? OFFSET ?",
			params: []any{0, 3, "paid", 5, 10},
			exp: []string{
				"SELECT * FROM t_order_0 WHERE order_id IN (?, ?) AND status = ? ORDER BY order_id LIMIT ? OFFSET ?",
				"SELECT * FROM t_order_3 WHERE order_id IN (?, ?) AND status = ? ORDER BY order_id LIMIT ? OFFSET ?",
			},
			expPar: [][]any{
				{0, 3, "paid", int64(15), int64(0)},
				{0, 3, "paid", int64(15), int64(0)},
			},
		},
		{
			sql: "SELECT user_id, AVG(price) FROM t_order WHERE order_id IN (0, 1) GROUP BY user_id",
			exp: []string{
				"SELECT user_id, AVG(price), COUNT(price) AS AVG_DERIVED_COUNT_1, SUM(price) AS AVG_DERIVED_SUM_1 FROM t_order_0 WHERE order_id IN (0, 1) GROUP BY user_id ORDER BY user_id",
				"SELECT user_id, AVG(price), COUNT(price) AS AVG_DERIVED_COUNT_1, SUM(price) AS AVG_DERIVED_SUM_1 FROM t_order_1 WHERE order_id IN (0, 1) GROUP BY user_id ORDER BY user_id",
			},
		},
		{
			sql: "SELECT user_id FROM t_order WHERE order_id IN (0, 1) ORDER BY t_order.created_at DESC",
			exp: []string{
				"SELECT user_id, t_order_0.created_at AS ORDER_BY_DERIVED_0 FROM t_order_0 WHERE order_id IN (0, 1) ORDER BY t_order_0.created_at DESC",
				"SELECT user_id, t_order_1.created_at AS ORDER_BY_DERIVED_0 FROM t_order_1 WHERE order_id IN (0, 1) ORDER BY t_order_1.created_at DESC",
			},
		},
		{
			sql: "SELECT COUNT(*) AS cnt FROM t_order WHERE order_id IN (0, 1) GROUP BY user_id",
			exp: []string{
				"SELECT COUNT(*) AS cnt, user_id AS GROUP_BY_DERIVED_0 FROM t_order_0 WHERE order_id IN (0, 1) GROUP BY user_id ORDER BY user_id",
				"SELECT COUNT(*) AS cnt, user_id AS GROUP_BY_DERIVED_0 FROM t_order_1 WHERE order_id IN (0, 1) GROUP BY user_id ORDER BY user_id",
			},
		},
		{
			sql: "SELECT user_id, COUNT(*) AS cnt FROM t_order WHERE order_id IN (0, 1) GROUP BY user_id HAVING COUNT(*) > 1 LIMIT 2",
			exp: []string{
				"SELECT user_id, COUNT(*) AS cnt FROM t_order_0 WHERE order_id IN (0, 1) GROUP BY user_id  ORDER BY user_id ",
				"SELECT user_id, COUNT(*) AS cnt FROM t_order_1 WHERE order_id IN (0, 1) GROUP BY user_id  ORDER BY user_id ",
			},
		},
	} {
		units, err := rewriteSQL(t, rule, tt.sql, tt.params)
		assert.NoError(err, tt.sql)
		assert.Equal(tt.exp, sqls(units), tt.sql)
		if tt.expPar != nil {
			for i, u := range units {
				assert.Equal(tt.expPar[i], u.Params, tt.sql)
			}
		}
	}
}

func TestRewriteDerivedKeepsLiteralCase(t *testing.T) {
	assert := assert.New(t)
	rule := mod4Rule(t)

	type tcase struct {
		sql      string
		contains []string
	}

	for _, tt := range []tcase{
		{
			sql:      "SELECT user_id FROM t_order WHERE order_id IN (0, 1) ORDER BY FIELD(status, 'PAID')",
			contains: []string{"FIELD(status, 'PAID') AS ORDER_BY_DERIVED_0"},
		},
		{
			sql: "SELECT COUNT(*) AS cnt FROM t_order WHERE order_id IN (0, 1) GROUP BY CONCAT(status, 'X')",
			contains: []string{
				"CONCAT(status, 'X') AS GROUP_BY_DERIVED_0",
				"ORDER BY CONCAT(status, 'X')",
			},
		},
	} {
		units, err := rewriteSQL(t, rule, tt.sql, nil)
		require.NoError(t, err, tt.sql)
		require.Len(t, units, 2, tt.sql)
		for _, u := range units {
			for _, c := range tt.contains {
				assert.Contains(u.SQL, c, tt.sql)
			}
			assert.NotContains(u.SQL, "'paid'", tt.sql)
			assert.NotContains(u.SQL, "'x'", tt.sql)
		}
	}
}

func TestRewriteSelectErrors(t *testing.T) {
	assert := assert.New(t)
	rule := mod4Rule(t)

	type tcase struct {
		sql  string
		code string
	}

	for _, tt := range []tcase{
		{
			sql:  "SELECT COUNT(DISTINCT user_id) FROM t_order",
			code: sherror.SHARD_UNSUPPORTED,
		},
		{
			sql:  "SELECT user_id FROM t_order GROUP BY user_id HAVING SUM(price) > 10",
			code: sherror.SHARD_REWRITE_ERROR,
		},
	} {
		_, err := rewriteSQL(t, rule, tt.sql, nil)
		assert.Error(err, tt.sql)
		assert.Equal(tt.code, sherror.Code(err), tt.sql)
	}
}

func TestRewriteFullRoute(t *testing.T) {
	assert := assert.New(t)
	rule := mod4Rule(t)

	units, err := rewriteSQL(t, rule, "SELECT * FROM t_order ORDER BY order_id LIMIT 5 OFFSET 10", nil)
	require.NoError(t, err)
	assert.Equal([]string{
		"SELECT * FROM t_order_0 ORDER BY order_id LIMIT 15 OFFSET 0",
		"SELECT * FROM t_order_1 ORDER BY order_id LIMIT 15 OFFSET 0",
		"SELECT * FROM t_order_2 ORDER BY order_id LIMIT 15 OFFSET 0",
		"SELECT * FROM t_order_3 ORDER BY order_id LIMIT 15 OFFSET 0",
	}, sqls(units))
}

func TestRewriteInsertGeneratedKey(t *testing.T) {
	assert := assert.New(t)
	rule := insertRule(t)

	params := []any{10, "a", 11, "b", 12, "c"}
	units, err := rewriteSQL(t, rule, "INSERT INTO t_order (user_id, status) VALUES (?, ?), (?, ?), (?, ?)", params)
	require.NoError(t, err)

	require.Len(t, units, 2)
	assert.Equal("ds_0", units[0].Unit.DataSource.ActualName)
	assert.Equal("INSERT INTO t_order_1 (user_id, status, order_id) VALUES (?, ?, ?), (?, ?, ?)", units[0].SQL)
	assert.Equal([]any{10, "a", int64(1), 12, "c", int64(3)}, units[0].Params)

	assert.Equal("ds_1", units[1].Unit.DataSource.ActualName)
	assert.Equal("INSERT INTO t_order_0 (user_id, status, order_id) VALUES (?, ?, ?)", units[1].SQL)
	assert.Equal([]any{11, "b", int64(2)}, units[1].Params)

	// every row lands in exactly one unit
	total := 0
	for _, u := range units {
		total += len(u.Params) / 3
	}
	assert.Equal(3, total)
}

func TestRewriteInsertLiteralKey(t *testing.T) {
	assert := assert.New(t)
	rule := insertRule(t)

	units, err := rewriteSQL(t, rule, "INSERT INTO t_order (user_id, status) VALUES (10, 'a') ON DUPLICATE KEY UPDATE status = 'b'", nil)
	require.NoError(t, err)
	assert.Equal([]string{
		"INSERT INTO t_order_1 (user_id, status, order_id) VALUES (10, 'a', 1) ON DUPLICATE KEY UPDATE status = 'b'",
	}, sqls(units))
}

func TestRewriteInsertVirtualColumns(t *testing.T) {
	assert := assert.New(t)
	rule := insertRule(t)

	type tcase struct {
		sql       string
		params    []any
		exp       string
		expParams []any
	}

	for _, tt := range []tcase{
		{
			sql:       "INSERT INTO t_order_item (user_id, region, order_id, item) VALUES (10, ?, 1, ?)",
			params:    []any{"eu", "pen"},
			exp:       "INSERT INTO t_order_item_1 (user_id, order_id, item) VALUES (10, 1, ?)",
			expParams: []any{"pen"},
		},
		{
			sql: "INSERT INTO t_order_item (region, user_id, order_id) VALUES ('eu', 11, 2)",
			exp: "INSERT INTO t_order_item_0 (user_id, order_id) VALUES (11, 2)",
		},
	} {
		units, err := rewriteSQL(t, rule, tt.sql, tt.params)
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(tt.exp, units[0].SQL)
		assert.Equal(tt.expParams, units[0].Params)
	}

	stmt, _, err := parser.NewQParser().Parse("INSERT INTO t_order_item (region) VALUES ('eu')")
	require.NoError(t, err)
	rc := &route.RouteContext{Units: []route.RouteUnit{{
		DataSource: route.RouteMapper{LogicName: "ds_0", ActualName: "ds_0"},
		Tables:     []route.RouteMapper{{LogicName: "t_order_item", ActualName: "t_order_item_0"}},
	}}}
	_, err = rewrite.NewEngine(rule).Rewrite(stmt, nil, rc)
	assert.Equal(sherror.SHARD_REWRITE_ERROR, sherror.Code(err))
}

func TestRewriteForcedAndUnresolved(t *testing.T) {
	assert := assert.New(t)
	rule := mod4Rule(t)

	stmt, _, err := parser.NewQParser().Parse("SELECT * FROM t_order WHERE order_id = ?")
	require.NoError(t, err)

	forced := &route.RouteContext{
		Units:  []route.RouteUnit{{DataSource: route.RouteMapper{LogicName: "ds_0", ActualName: "ds_0"}}},
		Forced: true,
	}
	units, err := rewrite.NewEngine(rule).Rewrite(stmt, []any{7}, forced)
	require.NoError(t, err)
	assert.Equal(stmt.SQL, units[0].SQL)
	assert.Equal([]any{7}, units[0].Params)

	unmapped := &route.RouteContext{
		Units: []route.RouteUnit{{DataSource: route.RouteMapper{LogicName: "ds_0", ActualName: "ds_0"}}},
	}
	_, err = rewrite.NewEngine(rule).Rewrite(stmt, []any{7}, unmapped)
	assert.Error(err)
	assert.Equal(sherror.SHARD_REWRITE_ERROR, sherror.Code(err))

	_, err = rewrite.NewEngine(rule).Rewrite(stmt, nil, forced)
	assert.Equal(sherror.SHARD_REWRITE_ERROR, sherror.Code(err))
}
