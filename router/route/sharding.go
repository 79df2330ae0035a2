package route

import (
	"fmt"
	"slices"

	"github.com/pg-sharding/shardcore/pkg/models/algorithm"
	"github.com/pg-sharding/shardcore/pkg/models/datanode"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/models/shrule"
	"github.com/pg-sharding/shardcore/router/condition"
	"github.com/pg-sharding/shardcore/router/routehint"
)

type dimension struct {
	name     string
	strategy *shrule.Strategy
	hint     func(table string) ([]any, bool)
}

func databaseDimension(tr *shrule.TableRule, hint *routehint.HintContext) dimension {
	return dimension{name: "database", strategy: tr.DatabaseStrategy, hint: hint.DatabaseHint}
}

func tableDimension(tr *shrule.TableRule, hint *routehint.HintContext) dimension {
	return dimension{name: "table", strategy: tr.TableStrategy, hint: hint.TableHint}
}

// routeTable returns the data nodes of tr hit by any of conds, in data node
// order, and whether some dimension was narrowed.
func routeTable(tr *shrule.TableRule, conds []condition.Condition, hint *routehint.HintContext) ([]datanode.DataNode, bool, error) {
	if len(conds) == 0 {
		return routeCondition(tr, nil, hint)
	}
	hit := map[datanode.DataNode]struct{}{}
	narrowed := false
	for i := range conds {
		nodes, n, err := routeCondition(tr, &conds[i], hint)
		if err != nil {
			return nil, false, err
		}
		narrowed = narrowed || n
		for _, dn := range nodes {
			hit[dn] = struct{}{}
		}
	}
	return inNodeOrder(tr, hit), narrowed, nil
}

func inNodeOrder(tr *shrule.TableRule, hit map[datanode.DataNode]struct{}) []datanode.DataNode {
	res := make([]datanode.DataNode, 0, len(hit))
	for _, dn := range tr.DataNodes {
		if _, ok := hit[dn]; ok {
			res = append(res, dn)
		}
	}
	return res
}

// routeCondition evaluates the database strategy, then the table strategy
// on every datasource it selected.
func routeCondition(tr *shrule.TableRule, cond *condition.Condition, hint *routehint.HintContext) ([]datanode.DataNode, bool, error) {
	dss, dsNarrowed, err := shard(tr, databaseDimension(tr, hint), tr.ActualDataSourceNames(), cond)
	if err != nil {
		return nil, false, err
	}
	var res []datanode.DataNode
	narrowed := dsNarrowed
	for _, ds := range dss {
		tables, tNarrowed, err := shard(tr, tableDimension(tr, hint), tr.ActualTableNames(ds), cond)
		if err != nil {
			return nil, false, err
		}
		narrowed = narrowed || tNarrowed
		for _, t := range tables {
			res = append(res, datanode.DataNode{DataSource: ds, Table: t})
		}
	}
	return res, narrowed, nil
}

// shard runs one strategy over candidates. Hint values take priority over
// extracted conditions; with neither every candidate is returned.
func shard(tr *shrule.TableRule, dim dimension, candidates []string, cond *condition.Condition) ([]string, bool, error) {
	s := dim.strategy
	hinted, isHinted := dim.hint(tr.LogicTable)

	var (
		res  []string
		what string
		err  error
	)
	switch s.Kind {
	case shrule.StrategyNone:
		return candidates, false, nil
	case shrule.StrategyHint:
		if !isHinted {
			return candidates, false, nil
		}
		what = fmt.Sprintf("hint values %v", hinted)
		res, err = s.Hint.DoHintSharding(candidates, algorithm.HintValue{LogicTable: tr.LogicTable, Values: hinted})
	case shrule.StrategyStandard:
		col := s.Columns[0]
		var cv *condition.ConditionValue
		if isHinted {
			cv = &condition.ConditionValue{Table: tr.LogicTable, Column: col, Values: hinted}
		} else {
			var ok bool
			if cv, ok = cond.Find(tr.LogicTable, col); !ok {
				return candidates, false, nil
			}
		}
		what = describe(col, cv)
		res, err = standard(s.Standard, candidates, tr.LogicTable, col, cv)
	case shrule.StrategyComplex:
		v := algorithm.ComplexValue{LogicTable: tr.LogicTable, Values: map[string][]any{}, Ranges: map[string]algorithm.Range{}}
		for _, col := range s.Columns {
			if isHinted {
				v.Values[col] = hinted
				continue
			}
			cv, ok := cond.Find(tr.LogicTable, col)
			if !ok {
				continue
			}
			if cv.IsRange() {
				v.Ranges[col] = *cv.Range
			} else {
				v.Values[col] = cv.Values
			}
		}
		if len(v.Values) == 0 && len(v.Ranges) == 0 {
			return candidates, false, nil
		}
		what = fmt.Sprintf("values %v ranges %v", v.Values, v.Ranges)
		res, err = s.Complex.DoSharding(candidates, v)
	}
	if err != nil {
		return nil, false, err
	}

	res, err = validate(tr, dim, candidates, res, what)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

func standard(alg algorithm.StandardAlgorithm, candidates []string, table, col string, cv *condition.ConditionValue) ([]string, error) {
	if cv.IsRange() {
		return alg.DoRange(candidates, algorithm.RangeValue{LogicTable: table, Column: col, Range: *cv.Range})
	}
	var res []string
	for _, v := range cv.Values {
		target, err := alg.DoPrecise(candidates, algorithm.PreciseValue{LogicTable: table, Column: col, Value: v})
		if err != nil {
			return nil, err
		}
		res = append(res, target)
	}
	return res, nil
}

func describe(col string, cv *condition.ConditionValue) string {
	if cv.IsRange() {
		return fmt.Sprintf("%s between %v and %v", col, cv.Range.Lower, cv.Range.Upper)
	}
	return fmt.Sprintf("%s in %v", col, cv.Values)
}

// validate checks an algorithm result against the candidates and returns it
// de-duplicated in candidate order.
func validate(tr *shrule.TableRule, dim dimension, candidates, res []string, what string) ([]string, error) {
	for _, r := range res {
		if !slices.Contains(candidates, r) {
			return nil, sherror.Newf(sherror.SHARD_ALGORITHM_ERROR,
				"%s algorithm %q of table %q returned %q for %s, which is not among %v",
				dim.name, dim.strategy.AlgorithmName, tr.LogicTable, r, what, candidates)
		}
	}
	var ordered []string
	for _, c := range candidates {
		if slices.Contains(res, c) {
			ordered = append(ordered, c)
		}
	}
	if len(ordered) == 0 {
		return nil, sherror.Newf(sherror.SHARD_ROUTING_ERROR,
			"no %s of table %q matches %s", dim.name, tr.LogicTable, what)
	}
	return ordered, nil
}
