package shrule_test

import (
	"testing"

	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/models/datanode"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/models/shrule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderConfig() *config.Config {
	return &config.Config{
		DataSources: map[string]config.DataSource{
			"ds_0": {Driver: "mysql"},
			"ds_1": {Driver: "mysql"},
		},
		DefaultDataSource: "ds_0",
		Sharding: config.ShardingRule{
			Tables: map[string]config.TableRule{
				"t_order": {
					ActualDataNodes:  "ds_${0..1}.t_order_${0..1}",
					DatabaseStrategy: &config.Strategy{Type: "standard", ShardingColumn: "user_id", Algorithm: "ds_mod"},
					TableStrategy:    &config.Strategy{Type: "standard", ShardingColumn: "order_id", Algorithm: "t_mod"},
					KeyGenerate:      &config.KeyGenerate{Column: "order_id", Generator: "snowflake"},
				},
				"T_Order_Item": {
					ActualDataNodes:  "ds_${0..1}.t_order_item_${0..1}",
					DatabaseStrategy: &config.Strategy{Type: "standard", ShardingColumn: "user_id", Algorithm: "ds_mod"},
					TableStrategy:    &config.Strategy{Type: "standard", ShardingColumn: "order_id", Algorithm: "t_mod"},
					VirtualColumns:   []string{"region"},
				},
				"t_config": {
					ActualDataNodes: "ds_1.t_config",
				},
				"t_hint": {
					ActualDataNodes: "ds_0.t_hint_${0..1}",
					TableStrategy:   &config.Strategy{Type: "hint", Algorithm: "hint_inline"},
				},
			},
			BindingTables:   []string{"t_order, t_order_item"},
			BroadcastTables: []string{"t_dict"},
			ShardingAlgorithms: map[string]config.Algorithm{
				"ds_mod":      {Type: "MOD", Props: map[string]string{"sharding-count": "2"}},
				"t_mod":       {Type: "MOD", Props: map[string]string{"sharding-count": "2"}},
				"hint_inline": {Type: "HINT_INLINE", Props: map[string]string{"algorithm-expression": "t_hint_${value}"}},
			},
			KeyGenerators: map[string]config.Algorithm{
				"snowflake": {Type: "SNOWFLAKE"},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	assert := assert.New(t)

	rule, err := shrule.Build(orderConfig())
	require.NoError(t, err)

	assert.Equal([]string{"ds_0", "ds_1"}, rule.DataSources)
	assert.Equal("ds_0", rule.DefaultDataSource)

	tr, ok := rule.TableRule("T_ORDER")
	require.True(t, ok)
	assert.Equal("t_order", tr.LogicTable)
	assert.Equal([]string{"ds_0", "ds_1"}, tr.ActualDataSourceNames())
	assert.Equal([]string{"t_order_0", "t_order_1"}, tr.ActualTableNames("ds_1"))
	assert.True(tr.Contains(datanode.DataNode{DataSource: "ds_1", Table: "t_order_1"}))
	assert.False(tr.Contains(datanode.DataNode{DataSource: "ds_2", Table: "t_order_1"}))
	assert.Equal(1, tr.FindActualTableIndex("ds_0", "t_order_1"))
	assert.Equal(shrule.StrategyStandard, tr.DatabaseStrategy.Kind)
	assert.True(tr.IsShardingColumn("ORDER_ID"))
	assert.True(tr.IsShardingColumn("user_id"))
	assert.False(tr.IsShardingColumn("status"))
	assert.True(tr.IsGeneratedKeyColumn("order_id"))
	assert.False(tr.IsSingle())

	item, ok := rule.TableRule("t_order_item")
	require.True(t, ok)
	assert.True(item.IsVirtualColumn("REGION"))
	name, ok := item.ActualTableByIndex("ds_0", 1)
	assert.True(ok)
	assert.Equal("t_order_item_1", name)
	_, ok = item.ActualTableByIndex("ds_0", 2)
	assert.False(ok)

	single, ok := rule.TableRule("t_config")
	require.True(t, ok)
	assert.True(single.IsSingle())
	assert.False(rule.IsShardingTable("t_config"))
	assert.True(rule.IsShardingTable("t_hint"))

	hint, _ := rule.TableRule("t_hint")
	assert.Equal(shrule.StrategyHint, hint.TableStrategy.Kind)
	assert.Equal(shrule.StrategyNone, hint.DatabaseStrategy.Kind)

	assert.True(rule.IsBroadcastTable("T_DICT"))
	assert.False(rule.IsBroadcastTable("t_order"))

	assert.Equal([]string{"t_order", "t_order_item"}, rule.BindingGroup("t_order_item"))
	assert.True(rule.AreBound([]string{"t_order", "T_ORDER_ITEM"}))
	assert.False(rule.AreBound([]string{"t_order", "t_config"}))
	assert.Nil(rule.BindingGroup("t_config"))

	assert.Len(rule.TableRules(), 4)
	assert.Equal("t_config", rule.TableRules()[0].LogicTable)
}

func TestBuildErrors(t *testing.T) {
	assert := assert.New(t)

	type tcase struct {
		name   string
		mutate func(cfg *config.Config)
	}

	for _, tt := range []tcase{
		{
			name: "unknown algorithm",
			mutate: func(cfg *config.Config) {
				tr := cfg.Sharding.Tables["t_order"]
				tr.TableStrategy = &config.Strategy{Type: "standard", ShardingColumn: "order_id", Algorithm: "nope"}
				cfg.Sharding.Tables["t_order"] = tr
			},
		},
		{
			name: "kind mismatch",
			mutate: func(cfg *config.Config) {
				tr := cfg.Sharding.Tables["t_order"]
				tr.TableStrategy = &config.Strategy{Type: "complex", ShardingColumns: "order_id", Algorithm: "t_mod"}
				cfg.Sharding.Tables["t_order"] = tr
			},
		},
		{
			name: "missing sharding column",
			mutate: func(cfg *config.Config) {
				tr := cfg.Sharding.Tables["t_order"]
				tr.TableStrategy = &config.Strategy{Type: "standard", Algorithm: "t_mod"}
				cfg.Sharding.Tables["t_order"] = tr
			},
		},
		{
			name: "undeclared data source",
			mutate: func(cfg *config.Config) {
				tr := cfg.Sharding.Tables["t_order"]
				tr.ActualDataNodes = "ds_${0..2}.t_order_${0..1}"
				cfg.Sharding.Tables["t_order"] = tr
			},
		},
		{
			name: "bad data nodes",
			mutate: func(cfg *config.Config) {
				tr := cfg.Sharding.Tables["t_order"]
				tr.ActualDataNodes = "t_order_${0..1}"
				cfg.Sharding.Tables["t_order"] = tr
			},
		},
		{
			name: "unknown key generator",
			mutate: func(cfg *config.Config) {
				tr := cfg.Sharding.Tables["t_order"]
				tr.KeyGenerate = &config.KeyGenerate{Column: "order_id", Generator: "uuid"}
				cfg.Sharding.Tables["t_order"] = tr
			},
		},
		{
			name: "binding size mismatch",
			mutate: func(cfg *config.Config) {
				tr := cfg.Sharding.Tables["T_Order_Item"]
				tr.ActualDataNodes = "ds_${0..1}.t_order_item_${0..2}"
				cfg.Sharding.Tables["T_Order_Item"] = tr
			},
		},
		{
			name: "binding unknown table",
			mutate: func(cfg *config.Config) {
				cfg.Sharding.BindingTables = []string{"t_order,t_missing"}
			},
		},
		{
			name: "broadcast and sharded",
			mutate: func(cfg *config.Config) {
				cfg.Sharding.BroadcastTables = []string{"t_order"}
			},
		},
		{
			name: "bad algorithm props",
			mutate: func(cfg *config.Config) {
				cfg.Sharding.ShardingAlgorithms["t_mod"] = config.Algorithm{Type: "MOD"}
			},
		},
		{
			name: "undeclared default data source",
			mutate: func(cfg *config.Config) {
				cfg.DefaultDataSource = "ds_9"
			},
		},
	} {
		cfg := orderConfig()
		tt.mutate(cfg)
		_, err := shrule.Build(cfg)
		assert.Error(err, tt.name)
		assert.Equal(sherror.SHARD_CONFIG_ERROR, sherror.Code(err), tt.name)
	}
}

func TestDefaultStrategies(t *testing.T) {
	assert := assert.New(t)

	cfg := orderConfig()
	cfg.Sharding.DefaultTableStrategy = &config.Strategy{Type: "standard", ShardingColumn: "id", Algorithm: "t_mod"}
	cfg.Sharding.Tables["t_plain"] = config.TableRule{ActualDataNodes: "ds_0.t_plain_${0..1}"}

	rule, err := shrule.Build(cfg)
	require.NoError(t, err)

	tr, ok := rule.TableRule("t_plain")
	require.True(t, ok)
	assert.Equal(shrule.StrategyStandard, tr.TableStrategy.Kind)
	assert.Equal([]string{"id"}, tr.TableStrategy.Columns)
	assert.Equal("standard", tr.TableStrategy.Kind.String())
}
