package executor_test

import (
	"context"
	"testing"

	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	mockexec "github.com/pg-sharding/shardcore/pkg/mock/executor"
	"github.com/pg-sharding/shardcore/router/executor"
	"github.com/pg-sharding/shardcore/router/rewrite"
	"github.com/pg-sharding/shardcore/router/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func unit(ds string, sql string) rewrite.RewriteUnit {
	return rewrite.RewriteUnit{
		Unit: route.RouteUnit{DataSource: route.RouteMapper{LogicName: ds, ActualName: ds}},
		SQL:  sql,
	}
}

func units(ds ...string) []rewrite.RewriteUnit {
	res := make([]rewrite.RewriteUnit, 0, len(ds))
	for _, d := range ds {
		res = append(res, unit(d, "SELECT 1"))
	}
	return res
}

func TestExecuteQueryKeepsUnitOrder(t *testing.T) {
	assert := assert.New(t)

	backend := &executor.MemoryBackend{
		QueryFunc: func(u rewrite.RewriteUnit) (*executor.MemoryRows, error) {
			return &executor.MemoryRows{
				Columns: []string{"ds"},
				Rows:    [][]any{{u.Unit.DataSource.ActualName}},
			}, nil
		},
	}
	ex := executor.New(backend, config.Props{MaxConnectionsPerQuery: 2})

	results, err := ex.ExecuteQuery(context.Background(), units("ds_0", "ds_1", "ds_2", "ds_3"))
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, r := range results {
		ok, err := r.Next(context.Background())
		assert.NoError(err)
		assert.True(ok)
		vals, err := r.Values()
		assert.NoError(err)
		assert.Equal([]any{units("ds_0", "ds_1", "ds_2", "ds_3")[i].Unit.DataSource.ActualName}, vals)
	}
	assert.Len(backend.Executed(), 4)
}

func TestExecuteQueryFailureClosesOpened(t *testing.T) {
	assert := assert.New(t)

	failure := sherror.New(sherror.SHARD_EXECUTION_ERROR, "ds_1 is down")
	backend := &executor.MemoryBackend{
		QueryFunc: func(u rewrite.RewriteUnit) (*executor.MemoryRows, error) {
			if u.Unit.DataSource.ActualName == "ds_1" {
				return nil, failure
			}
			return &executor.MemoryRows{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}}, nil
		},
	}
	ex := executor.New(backend, config.Props{MaxConnectionsPerQuery: 1})

	results, err := ex.ExecuteQuery(context.Background(), units("ds_0", "ds_1", "ds_2"))
	assert.Nil(results)
	assert.ErrorIs(err, failure)
	assert.True(backend.AllClosed())
	// ds_2 never ran
	assert.Len(backend.Executed(), 2)
}

func TestExecuteQueryCanceled(t *testing.T) {
	assert := assert.New(t)

	backend := &executor.MemoryBackend{}
	ex := executor.New(backend, config.Props{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.ExecuteQuery(ctx, units("ds_0", "ds_1"))
	assert.Equal(sherror.SHARD_CANCELED, sherror.Code(err))
	assert.Empty(backend.Executed())
}

func TestExecuteUpdate(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)

	backend := mockexec.NewMockBackend(ctrl)
	us := []rewrite.RewriteUnit{
		unit("ds_0", "DELETE FROM t_order_0"),
		unit("ds_0", "DELETE FROM t_order_1"),
		unit("ds_1", "DELETE FROM t_order_0"),
	}
	backend.EXPECT().Exec(gomock.Any(), us[0]).Return(int64(3), nil)
	backend.EXPECT().Exec(gomock.Any(), us[1]).Return(int64(0), nil)
	backend.EXPECT().Exec(gomock.Any(), us[2]).Return(int64(5), nil)

	ex := executor.New(backend, config.Props{MaxConnectionsPerQuery: 3, SQLShow: true})
	affected, err := ex.ExecuteUpdate(context.Background(), us)
	assert.NoError(err)
	assert.Equal([]int64{3, 0, 5}, affected)
}

func TestExecuteUpdateFailure(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)

	backend := mockexec.NewMockBackend(ctrl)
	failure := sherror.New(sherror.SHARD_EXECUTION_ERROR, "duplicate key")
	backend.EXPECT().Exec(gomock.Any(), gomock.Any()).Return(int64(0), failure)

	ex := executor.New(backend, config.Props{MaxConnectionsPerQuery: 1})
	affected, err := ex.ExecuteUpdate(context.Background(), units("ds_0", "ds_1"))
	assert.Nil(affected)
	assert.ErrorIs(err, failure)
}

func TestSQLBackend(t *testing.T) {
	assert := assert.New(t)

	type tcase struct {
		sources map[string]config.DataSource
		err     bool
	}

	for _, tt := range []tcase{
		{
			sources: map[string]config.DataSource{
				"ds_0": {Driver: "mysql", DSN: "root:secret@tcp(127.0.0.1:3306)/ds_0"},
				"ds_1": {Driver: "postgres", DSN: "postgres://root@127.0.0.1:5432/ds_1", MaxOpenConns: 4},
			},
		},
		{
			sources: map[string]config.DataSource{
				"ds_0": {Driver: "oracle", DSN: "whatever"},
			},
			err: true,
		},
	} {
		b, err := executor.NewSQLBackend(tt.sources)
		if tt.err {
			assert.Equal(sherror.SHARD_CONFIG_ERROR, sherror.Code(err))
			continue
		}
		require.NoError(t, err)

		_, err = b.Query(context.Background(), unit("ds_9", "SELECT 1"))
		assert.Equal(sherror.SHARD_CONFIG_ERROR, sherror.Code(err))
		_, err = b.Exec(context.Background(), unit("ds_9", "DELETE FROM t"))
		assert.Equal(sherror.SHARD_CONFIG_ERROR, sherror.Code(err))

		assert.NoError(b.Close())
	}
}
