package shrule

import (
	"slices"
	"sort"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/models/algorithm"
	"github.com/pg-sharding/shardcore/pkg/models/datanode"
	"github.com/pg-sharding/shardcore/pkg/models/keygen"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
)

// ShardingRule is the immutable, validated form of the sharding configuration.
type ShardingRule struct {
	DataSources       []string
	DefaultDataSource string
	KeyGenerators     map[string]keygen.Spec

	tables        map[string]*TableRule
	bindingGroups [][]string
	broadcast     map[string]struct{}
}

func normalize(name string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(name), "`\""))
}

// TableRule returns the rule of a logical table, case-insensitively.
func (r *ShardingRule) TableRule(table string) (*TableRule, bool) {
	tr, ok := r.tables[normalize(table)]
	return tr, ok
}

// TableRules returns every table rule ordered by logical name.
func (r *ShardingRule) TableRules() []*TableRule {
	res := make([]*TableRule, 0, len(r.tables))
	for _, tr := range r.tables {
		res = append(res, tr)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].LogicTable < res[j].LogicTable })
	return res
}

func (r *ShardingRule) IsBroadcastTable(table string) bool {
	_, ok := r.broadcast[normalize(table)]
	return ok
}

// IsShardingTable reports tables that have a rule and are not single-node.
func (r *ShardingRule) IsShardingTable(table string) bool {
	tr, ok := r.TableRule(table)
	return ok && !tr.IsSingle()
}

// BindingGroup returns the binding group containing table, or nil.
func (r *ShardingRule) BindingGroup(table string) []string {
	t := normalize(table)
	for _, g := range r.bindingGroups {
		if slices.Contains(g, t) {
			return g
		}
	}
	return nil
}

// AreBound reports whether every table belongs to the same binding group.
func (r *ShardingRule) AreBound(tables []string) bool {
	if len(tables) < 2 {
		return false
	}
	g := r.BindingGroup(tables[0])
	if g == nil {
		return false
	}
	for _, t := range tables[1:] {
		if !slices.Contains(g, normalize(t)) {
			return false
		}
	}
	return true
}

// Build validates cfg and instantiates its algorithms.
func Build(cfg *config.Config) (*ShardingRule, error) {
	sc := cfg.Sharding

	algs := make(map[string]algorithm.Algorithm, len(sc.ShardingAlgorithms))
	for name, a := range sc.ShardingAlgorithms {
		alg, err := algorithm.New(a.Type, a.Props)
		if err != nil {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "sharding algorithm %q: %v", name, err)
		}
		algs[name] = alg
	}

	r := &ShardingRule{
		DefaultDataSource: cfg.DefaultDataSource,
		KeyGenerators:     map[string]keygen.Spec{},
		tables:            map[string]*TableRule{},
		broadcast:         map[string]struct{}{},
	}
	for name, kg := range sc.KeyGenerators {
		r.KeyGenerators[name] = keygen.Spec{Type: kg.Type, Props: kg.Props}
	}

	declared := make(map[string]struct{}, len(cfg.DataSources))
	for name := range cfg.DataSources {
		declared[name] = struct{}{}
	}

	known := map[string]struct{}{}
	for logic, tc := range sc.Tables {
		tr, err := buildTableRule(logic, tc, sc, algs, r.KeyGenerators)
		if err != nil {
			return nil, err
		}
		for _, ds := range tr.ActualDataSourceNames() {
			if len(declared) > 0 {
				if _, ok := declared[ds]; !ok {
					return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR,
						"table %q uses undeclared data source %q", logic, ds)
				}
			}
			known[ds] = struct{}{}
		}
		r.tables[normalize(logic)] = tr
	}

	for ds := range declared {
		known[ds] = struct{}{}
	}
	if r.DefaultDataSource != "" {
		if _, ok := known[r.DefaultDataSource]; !ok && len(declared) > 0 {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "default data source %q is not declared", r.DefaultDataSource)
		}
		known[r.DefaultDataSource] = struct{}{}
	}
	for ds := range known {
		r.DataSources = append(r.DataSources, ds)
	}
	sort.Strings(r.DataSources)

	for _, t := range sc.BroadcastTables {
		t = normalize(t)
		if _, ok := r.tables[t]; ok {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "table %q cannot be both sharded and broadcast", t)
		}
		r.broadcast[t] = struct{}{}
	}

	for _, raw := range sc.BindingTables {
		group, err := r.buildBindingGroup(raw)
		if err != nil {
			return nil, err
		}
		r.bindingGroups = append(r.bindingGroups, group)
	}

	return r, nil
}

func buildTableRule(logic string, tc config.TableRule, sc config.ShardingRule,
	algs map[string]algorithm.Algorithm, gens map[string]keygen.Spec) (*TableRule, error) {
	expr := tc.ActualDataNodes
	if strings.TrimSpace(expr) == "" {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "table %q has no actual_data_nodes", logic)
	}
	nodes, err := datanode.ParseDataNodes(expr)
	if err != nil {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "table %q: %v", logic, err)
	}

	tr := newTableRule(normalize(logic), nodes)

	dbCfg := tc.DatabaseStrategy
	if dbCfg == nil {
		dbCfg = sc.DefaultDatabaseStrategy
	}
	if tr.DatabaseStrategy, err = buildStrategy(dbCfg, algs, logic, "database"); err != nil {
		return nil, err
	}
	tblCfg := tc.TableStrategy
	if tblCfg == nil {
		tblCfg = sc.DefaultTableStrategy
	}
	if tr.TableStrategy, err = buildStrategy(tblCfg, algs, logic, "table"); err != nil {
		return nil, err
	}

	if kg := tc.KeyGenerate; kg != nil {
		if strings.TrimSpace(kg.Column) == "" {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "key_generate of table %q lacks column", logic)
		}
		if _, ok := gens[kg.Generator]; !ok {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR,
				"table %q references unknown key generator %q", logic, kg.Generator)
		}
		tr.KeyGenerate = &KeyGenerate{Column: kg.Column, Generator: kg.Generator}
	}
	tr.VirtualColumns = tc.VirtualColumns

	return tr, nil
}

func (r *ShardingRule) buildBindingGroup(raw string) ([]string, error) {
	var group []string
	for _, t := range strings.Split(raw, ",") {
		if t = normalize(t); t != "" {
			group = append(group, t)
		}
	}
	if len(group) < 2 {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "binding group %q needs at least two tables", raw)
	}

	first, ok := r.tables[group[0]]
	if !ok {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "binding table %q has no table rule", group[0])
	}
	for _, t := range group[1:] {
		tr, ok := r.tables[t]
		if !ok {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "binding table %q has no table rule", t)
		}
		if !slices.Equal(first.ActualDataSourceNames(), tr.ActualDataSourceNames()) {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR,
				"binding tables %q and %q are not on the same data sources", group[0], t)
		}
		for _, ds := range first.ActualDataSourceNames() {
			if len(first.ActualTableNames(ds)) != len(tr.ActualTableNames(ds)) {
				return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR,
					"binding tables %q and %q differ in actual table count on %q", group[0], t, ds)
			}
		}
	}
	for _, t := range group {
		if r.BindingGroup(t) != nil {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "table %q belongs to more than one binding group", t)
		}
	}
	return group, nil
}
