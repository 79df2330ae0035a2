package route

import (
	"slices"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/datanode"
	"github.com/pg-sharding/shardcore/router/condition"
)

// RouteMapper maps a logical name onto its actual name.
type RouteMapper struct {
	LogicName  string `json:"logic_name"`
	ActualName string `json:"actual_name"`
}

// RouteUnit is one physical target of a statement.
type RouteUnit struct {
	DataSource RouteMapper   `json:"data_source"`
	Tables     []RouteMapper `json:"tables"`
}

// ActualTable returns the actual name the unit maps the logical table to.
func (u RouteUnit) ActualTable(logic string) (string, bool) {
	for _, m := range u.Tables {
		if strings.EqualFold(m.LogicName, logic) {
			return m.ActualName, true
		}
	}
	return "", false
}

func (u RouteUnit) ActualTables() []string {
	res := make([]string, 0, len(u.Tables))
	for _, m := range u.Tables {
		res = append(res, m.ActualName)
	}
	return res
}

func (u RouteUnit) key() string {
	tables := u.ActualTables()
	slices.Sort(tables)
	return u.DataSource.ActualName + "|" + strings.Join(tables, ",")
}

func (u RouteUnit) String() string {
	if len(u.Tables) == 0 {
		return u.DataSource.ActualName
	}
	return u.DataSource.ActualName + "." + strings.Join(u.ActualTables(), ",")
}

// ConditionRoute pairs a condition with the data nodes it routed to.
type ConditionRoute struct {
	Condition condition.Condition `json:"condition"`
	DataNodes []datanode.DataNode `json:"data_nodes"`
}

// RouteContext is the immutable outcome of routing one statement.
type RouteContext struct {
	Units           []RouteUnit      `json:"units"`
	ConditionRoutes []ConditionRoute `json:"condition_routes,omitempty"`
	// Broadcast is set when no condition narrowed any table.
	Broadcast bool `json:"broadcast"`
	// Forced is set when a hinted datasource took the statement verbatim.
	Forced       bool                           `json:"forced"`
	GeneratedKey *condition.GeneratedKeyContext `json:"generated_key,omitempty"`
}

func (rc *RouteContext) IsSingleUnit() bool {
	return len(rc.Units) == 1
}

// DataSourceNames returns the distinct datasources of the units in order.
func (rc *RouteContext) DataSourceNames() []string {
	var res []string
	for _, u := range rc.Units {
		if !slices.Contains(res, u.DataSource.ActualName) {
			res = append(res, u.DataSource.ActualName)
		}
	}
	return res
}

// RowTarget returns the data node an INSERT row routed to. It reports false
// when rows were not routed individually.
func (rc *RouteContext) RowTarget(row int) (datanode.DataNode, bool) {
	for _, cr := range rc.ConditionRoutes {
		if cr.Condition.RowIndex == row && len(cr.DataNodes) == 1 {
			return cr.DataNodes[0], true
		}
	}
	return datanode.DataNode{}, false
}

// HasRowTargets reports whether INSERT rows were routed one by one.
func (rc *RouteContext) HasRowTargets() bool {
	for _, cr := range rc.ConditionRoutes {
		if cr.Condition.RowIndex >= 0 {
			return true
		}
	}
	return false
}
