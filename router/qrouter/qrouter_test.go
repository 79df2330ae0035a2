package qrouter_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/router/executor"
	"github.com/pg-sharding/shardcore/router/merge"
	"github.com/pg-sharding/shardcore/router/qrouter"
	"github.com/pg-sharding/shardcore/router/rewrite"
	"github.com/pg-sharding/shardcore/router/routehint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modConfig(count string, nodes string) *config.Config {
	return &config.Config{
		DataSources: map[string]config.DataSource{
			"ds_0": {Driver: "mysql", DSN: "root@tcp(127.0.0.1:3306)/ds_0"},
		},
		Sharding: config.ShardingRule{
			Tables: map[string]config.TableRule{
				"t_order": {
					ActualDataNodes: nodes,
					TableStrategy:   &config.Strategy{Type: config.StrategyStandard, ShardingColumn: "order_id", Algorithm: "mod"},
					KeyGenerate:     &config.KeyGenerate{Column: "order_id", Generator: "inc"},
				},
			},
			ShardingAlgorithms: map[string]config.Algorithm{
				"mod": {Type: "MOD", Props: map[string]string{"sharding-count": count}},
			},
			KeyGenerators: map[string]config.Algorithm{
				"inc": {Type: "INCREMENT"},
			},
		},
		Props: config.Props{MaxConnectionsPerQuery: 2, ParseCacheSize: 16},
	}
}

// orderBackend serves 20 orders, order_id k living in t_order_{k mod 4}.
func orderBackend() *executor.MemoryBackend {
	return &executor.MemoryBackend{
		QueryFunc: func(u rewrite.RewriteUnit) (*executor.MemoryRows, error) {
			table := u.Unit.ActualTables()[0]
			var rows [][]any
			for id := int64(0); id < 20; id++ {
				if fmt.Sprintf("t_order_%d", id%4) == table {
					rows = append(rows, []any{id, id % 3})
				}
			}
			if strings.HasPrefix(u.SQL, "SELECT COUNT(*)") {
				return &executor.MemoryRows{Columns: []string{"COUNT(*)"}, Rows: [][]any{{int64(len(rows))}}}, nil
			}
			if strings.Contains(u.SQL, "LIMIT 15 OFFSET 0") && len(rows) > 15 {
				rows = rows[:15]
			}
			return &executor.MemoryRows{Columns: []string{"order_id", "user_id"}, Rows: rows}, nil
		},
		ExecFunc: func(u rewrite.RewriteUnit) (int64, error) {
			return int64(strings.Count(u.SQL, "),") + 1), nil
		},
	}
}

func newRouter(t *testing.T, backend executor.Backend) *qrouter.ShardingQueryRouter {
	cfg := modConfig("4", "ds_0.t_order_${0..3}")
	var exec *executor.Executor
	if backend != nil {
		exec = executor.New(backend, cfg.Props)
	}
	qr, err := qrouter.NewQueryRouter(cfg, exec)
	require.NoError(t, err)
	return qr
}

func drain(t *testing.T, res merge.MergedResult) [][]any {
	defer res.Close()
	var rows [][]any
	for {
		ok, err := res.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return rows
		}
		row, err := res.Row()
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestInsertRoutesToOneTable(t *testing.T) {
	assert := assert.New(t)
	backend := orderBackend()
	qr := newRouter(t, backend)

	plan, err := qr.Plan(context.Background(), "INSERT INTO t_order (order_id, user_id) VALUES (15, 1)", nil, nil)
	require.NoError(t, err)
	require.Len(t, plan.Units, 1)
	assert.Equal([]string{"t_order_3"}, plan.Units[0].Unit.ActualTables())
	assert.Equal("INSERT INTO t_order_3 (order_id, user_id) VALUES (15, 1)", plan.Units[0].SQL)
	assert.Equal(merge.KindUpdate, plan.MergeKind)

	res, err := qr.Exec(context.Background(), "INSERT INTO t_order (order_id, user_id) VALUES (15, 1)", nil, nil)
	require.NoError(t, err)
	assert.Equal(&merge.UpdateResult{AffectedRows: 1}, res)
}

func TestPointSelectIsSingleUnit(t *testing.T) {
	assert := assert.New(t)
	qr := newRouter(t, nil)

	plan, err := qr.Plan(context.Background(), "SELECT * FROM t_order WHERE order_id = 15", nil, nil)
	require.NoError(t, err)
	require.Len(t, plan.Units, 1)
	assert.False(plan.Route.Broadcast)
	assert.Equal("SELECT * FROM t_order_3 WHERE order_id = 15", plan.Units[0].SQL)
	assert.Equal(merge.KindPassThrough, plan.MergeKind)
	assert.Equal([][]string{{"ds_0", "t_order_3", "SELECT * FROM t_order_3 WHERE order_id = 15", ""}}, plan.Rows())
}

func TestBroadcastOrderBy(t *testing.T) {
	assert := assert.New(t)
	backend := orderBackend()
	qr := newRouter(t, backend)

	res, err := qr.Query(context.Background(), "SELECT * FROM t_order ORDER BY order_id", nil, nil)
	require.NoError(t, err)
	assert.Equal([]string{"order_id", "user_id"}, res.Columns())

	rows := drain(t, res)
	require.Len(t, rows, 20)
	for i, row := range rows {
		assert.Equal(int64(i), row[0])
	}
	assert.Len(backend.Executed(), 4)
	assert.True(backend.AllClosed())
}

func TestBroadcastCount(t *testing.T) {
	assert := assert.New(t)
	backend := orderBackend()
	qr := newRouter(t, backend)

	plan, err := qr.Plan(context.Background(), "SELECT COUNT(*) FROM t_order", nil, nil)
	require.NoError(t, err)
	assert.Len(plan.Units, 4)
	assert.True(plan.Route.Broadcast)
	assert.Equal(merge.KindGroupByMemory, plan.MergeKind)

	res, err := qr.Query(context.Background(), "SELECT COUNT(*) FROM t_order", nil, nil)
	require.NoError(t, err)
	assert.Equal([][]any{{int64(20)}}, drain(t, res))
}

func TestBroadcastPagination(t *testing.T) {
	assert := assert.New(t)
	backend := orderBackend()
	qr := newRouter(t, backend)

	sql := "SELECT * FROM t_order ORDER BY order_id LIMIT 5 OFFSET 10"
	plan, err := qr.Plan(context.Background(), sql, nil, nil)
	require.NoError(t, err)
	require.Len(t, plan.Units, 4)
	for _, u := range plan.Units {
		assert.True(strings.HasSuffix(u.SQL, "ORDER BY order_id LIMIT 15 OFFSET 0"), u.SQL)
	}

	res, err := qr.Query(context.Background(), sql, nil, nil)
	require.NoError(t, err)
	assert.Equal([][]any{
		{int64(10), int64(1)},
		{int64(11), int64(2)},
		{int64(12), int64(0)},
		{int64(13), int64(1)},
		{int64(14), int64(2)},
	}, drain(t, res))
}

func TestGeneratedKeys(t *testing.T) {
	assert := assert.New(t)
	backend := orderBackend()
	qr := newRouter(t, backend)

	res, err := qr.Exec(context.Background(), "INSERT INTO t_order (user_id) VALUES (?), (?)", []any{7, 8}, nil)
	require.NoError(t, err)
	assert.Equal(int64(2), res.AffectedRows)
	assert.Equal("order_id", res.GeneratedKeyColumn)
	assert.Equal([]any{int64(1), int64(2)}, res.GeneratedKeys)

	var sqls []string
	for _, u := range backend.Executed() {
		sqls = append(sqls, u.SQL)
	}
	assert.ElementsMatch([]string{
		"INSERT INTO t_order_1 (user_id, order_id) VALUES (?, ?)",
		"INSERT INTO t_order_2 (user_id, order_id) VALUES (?, ?)",
	}, sqls)
}

func TestHints(t *testing.T) {
	assert := assert.New(t)
	qr := newRouter(t, nil)

	type tcase struct {
		sql    string
		hint   *routehint.HintContext
		forced bool
		units  int
		err    string
	}

	for _, tt := range []tcase{
		{
			sql:    "/* datasource: ds_0 */ SELECT * FROM t_order",
			forced: true,
			units:  1,
		},
		{
			sql:    "SELECT * FROM t_order",
			hint:   &routehint.HintContext{DataSource: "ds_0"},
			forced: true,
			units:  1,
		},
		{
			sql:   "/* datasource: ds_0 */ SELECT * FROM t_order",
			hint:  &routehint.HintContext{DataSource: "ds_9"},
			units: 0,
			err:   sherror.SHARD_CONFIG_ERROR,
		},
		{
			sql:   "/* disable_datasource: ds_0 */ SELECT * FROM t_order",
			units: 0,
			err:   sherror.SHARD_ROUTING_ERROR,
		},
		{
			sql:   "/* datasource ds_0 */ SELECT * FROM t_order",
			units: 0,
			err:   sherror.SHARD_PARSE_ERROR,
		},
		{
			sql:   "SELECT * FROM t_order WHERE",
			units: 0,
			err:   sherror.SHARD_PARSE_ERROR,
		},
	} {
		plan, err := qr.Plan(context.Background(), tt.sql, nil, tt.hint)
		if tt.err != "" {
			assert.Equal(tt.err, sherror.Code(err), "query: %s", tt.sql)
			continue
		}
		require.NoError(t, err)
		assert.Equal(tt.forced, plan.Route.Forced, "query: %s", tt.sql)
		assert.Len(plan.Units, tt.units, "query: %s", tt.sql)
		if tt.forced {
			assert.Equal(tt.sql, plan.Units[0].SQL)
		}
	}
}

func TestReload(t *testing.T) {
	assert := assert.New(t)
	qr := newRouter(t, nil)

	plan, err := qr.Plan(context.Background(), "SELECT * FROM t_order WHERE order_id = 15", nil, nil)
	require.NoError(t, err)
	assert.Equal([]string{"t_order_3"}, plan.Units[0].Unit.ActualTables())

	require.NoError(t, qr.Reload(modConfig("2", "ds_0.t_order_${0..1}")))
	plan, err = qr.Plan(context.Background(), "SELECT * FROM t_order WHERE order_id = 15", nil, nil)
	require.NoError(t, err)
	assert.Equal([]string{"t_order_1"}, plan.Units[0].Unit.ActualTables())

	bad := modConfig("2", "ds_0.t_order_${0..1}")
	bad.Sharding.ShardingAlgorithms["mod"] = config.Algorithm{Type: "NO_SUCH"}
	assert.Equal(sherror.SHARD_CONFIG_ERROR, sherror.Code(qr.Reload(bad)))
	// the previous rule stays
	assert.Len(qr.Rule().TableRules(), 1)
}

func TestWrongEntryPoint(t *testing.T) {
	assert := assert.New(t)

	_, err := newRouter(t, nil).Query(context.Background(), "SELECT * FROM t_order", nil, nil)
	assert.ErrorIs(err, qrouter.ErrNoExecutor)

	qr := newRouter(t, orderBackend())
	_, err = qr.Query(context.Background(), "DELETE FROM t_order WHERE order_id = 1", nil, nil)
	assert.ErrorIs(err, qrouter.ErrNotQuery)
	_, err = qr.Exec(context.Background(), "SELECT * FROM t_order", nil, nil)
	assert.ErrorIs(err, qrouter.ErrQuery)
}
