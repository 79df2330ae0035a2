package condition

import (
	"github.com/pg-sharding/shardcore/pkg/models/keygen"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/models/shrule"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pg-sharding/shardcore/pkg/statement"
)

// GenerateKeys runs before extraction. For an INSERT into a table with a key
// generate strategy it either records the supplied key values or draws one
// fresh key per row from reg. It returns nil when no key applies.
func GenerateKeys(stmt *statement.Statement, rule *shrule.ShardingRule, params []any, reg *keygen.Registry) (*GeneratedKeyContext, error) {
	if stmt.Kind != statement.KindInsert || stmt.Insert == nil || stmt.Insert.FromSelect || len(stmt.Tables) == 0 {
		return nil, nil
	}
	table := stmt.TableNames()[0]
	tr, ok := rule.TableRule(table)
	if !ok || tr.KeyGenerate == nil {
		return nil, nil
	}
	ins := stmt.Insert
	if len(ins.Columns) == 0 {
		// without a column list there is nowhere to put the key
		return nil, nil
	}

	gk := &GeneratedKeyContext{Table: tr.LogicTable, Column: tr.KeyGenerate.Column}

	if idx := ins.ColumnIndex(gk.Column); idx >= 0 {
		for _, row := range ins.Rows {
			v, _ := row.Values[idx].Expr.Resolve(params)
			gk.Values = append(gk.Values, v)
		}
		return gk, nil
	}

	if reg == nil {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "no key generator registry for table %q", tr.LogicTable)
	}
	keys, err := reg.Generate(tr.KeyGenerate.Generator, len(ins.Rows))
	if err != nil {
		return nil, err
	}
	gk.Values = keys
	gk.Appended = true

	shardlog.Zero.Debug().
		Str("table", gk.Table).
		Str("column", gk.Column).
		Int("rows", len(keys)).
		Msg("generated keys")
	return gk, nil
}
