package shrule

import (
	"slices"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/datanode"
)

type KeyGenerate struct {
	Column    string
	Generator string
}

// TableRule describes how one logical table is spread over data nodes.
type TableRule struct {
	LogicTable       string
	DataNodes        []datanode.DataNode
	DatabaseStrategy *Strategy
	TableStrategy    *Strategy
	KeyGenerate      *KeyGenerate
	VirtualColumns   []string

	dataSources []string
	tablesByDS  map[string][]string
}

func newTableRule(logic string, nodes []datanode.DataNode) *TableRule {
	tr := &TableRule{
		LogicTable:       logic,
		DataNodes:        nodes,
		DatabaseStrategy: noneStrategy,
		TableStrategy:    noneStrategy,
		tablesByDS:       map[string][]string{},
	}
	for _, n := range nodes {
		if _, ok := tr.tablesByDS[n.DataSource]; !ok {
			tr.dataSources = append(tr.dataSources, n.DataSource)
		}
		tr.tablesByDS[n.DataSource] = append(tr.tablesByDS[n.DataSource], n.Table)
	}
	return tr
}

// ActualDataSourceNames returns the datasources in data node order.
func (tr *TableRule) ActualDataSourceNames() []string {
	return tr.dataSources
}

// ActualTableNames returns the actual tables of tr on ds in data node order.
func (tr *TableRule) ActualTableNames(ds string) []string {
	return tr.tablesByDS[ds]
}

func (tr *TableRule) Contains(dn datanode.DataNode) bool {
	return slices.Contains(tr.tablesByDS[dn.DataSource], dn.Table)
}

// IsSingle reports a table living on exactly one node without strategies.
func (tr *TableRule) IsSingle() bool {
	return len(tr.DataNodes) == 1 &&
		tr.DatabaseStrategy.Kind == StrategyNone &&
		tr.TableStrategy.Kind == StrategyNone
}

func (tr *TableRule) FindActualTableIndex(ds, table string) int {
	return slices.Index(tr.tablesByDS[ds], table)
}

func (tr *TableRule) ActualTableByIndex(ds string, idx int) (string, bool) {
	tables := tr.tablesByDS[ds]
	if idx < 0 || idx >= len(tables) {
		return "", false
	}
	return tables[idx], true
}

// IsShardingColumn reports whether col drives the database or table strategy.
func (tr *TableRule) IsShardingColumn(col string) bool {
	return tr.DatabaseStrategy.UsesColumn(col) || tr.TableStrategy.UsesColumn(col)
}

func (tr *TableRule) IsVirtualColumn(col string) bool {
	for _, c := range tr.VirtualColumns {
		if strings.EqualFold(c, col) {
			return true
		}
	}
	return false
}

// IsGeneratedKeyColumn reports whether col is filled by the key generator.
func (tr *TableRule) IsGeneratedKeyColumn(col string) bool {
	return tr.KeyGenerate != nil && strings.EqualFold(tr.KeyGenerate.Column, col)
}
