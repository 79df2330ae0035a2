package rewrite

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
	"github.com/pg-sharding/shardcore/router/route"
)

// splice renders the statement for one unit. Text between tokens is copied
// verbatim and keeps its parameters; text under a token is replaced along
// with the parameters inside it.
func (r *rewriter) splice(tokens []Token, unit route.RouteUnit) (string, []any, error) {
	sql := r.stmt.SQL
	positions := r.stmt.ParamPositions

	var (
		sb     strings.Builder
		params []any
		cursor int
		next   int
	)
	copyTo := func(pos int) {
		sb.WriteString(sql[cursor:pos])
		for next < len(positions) && positions[next] < pos {
			params = append(params, r.params[next])
			next++
		}
		cursor = pos
	}
	skipTo := func(pos int) {
		for next < len(positions) && positions[next] < pos {
			next++
		}
		cursor = pos
	}

	for _, t := range tokens {
		copyTo(t.Start)
		text, tparams, err := r.render(t, unit)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(text)
		params = append(params, tparams...)
		skipTo(t.Stop)
	}
	copyTo(len(sql))
	return sb.String(), params, nil
}

func (r *rewriter) render(t Token, unit route.RouteUnit) (string, []any, error) {
	switch t.Kind {
	case TokenTable:
		if actual, ok := unit.ActualTable(t.Table); ok {
			return t.Quote + actual + t.Quote, nil, nil
		}
		if t.Sharded {
			return "", nil, sherror.Newf(sherror.SHARD_REWRITE_ERROR,
				"unresolved identifier %q at position %d for unit %s", t.Table, t.Start, unit)
		}
		return r.stmt.SQL[t.Start:t.Stop], nil, nil
	case TokenRemove, TokenInsertColumnRemove:
		return "", nil, nil
	case TokenGeneratedKeyColumn:
		return t.Text, nil, nil
	case TokenProjections, TokenOrderBy:
		return qualify(t.Text, unit), nil, nil
	case TokenRowCount, TokenOffset:
		if t.Param >= 0 {
			return "?", []any{t.Value}, nil
		}
		return strconv.FormatInt(t.Value, 10), nil, nil
	case TokenInsertValues:
		return r.renderRows(t, unit)
	}
	return "", nil, sherror.Newf(sherror.SHARD_REWRITE_ERROR, "no renderer for %s token at position %d", t.Kind, t.Start)
}

// renderRows emits the rows routed to unit without their skipped values,
// followed by the generated key when one was appended.
func (r *rewriter) renderRows(t Token, unit route.RouteUnit) (string, []any, error) {
	ins := r.stmt.Insert
	gk := r.rc.GeneratedKey
	appendKey := gk != nil && gk.Appended

	var (
		rows   []string
		params []any
	)
	for i, row := range ins.Rows {
		if !r.rowBelongs(i, t.Table, unit) {
			continue
		}
		vals := make([]string, 0, len(row.Values)+1)
		for j, v := range row.Values {
			if slices.Contains(t.Skip, j) {
				continue
			}
			vals = append(vals, r.stmt.SQL[v.Start:v.Stop])
			params = append(params, r.paramsWithin(v.Start, v.Stop)...)
		}
		if appendKey {
			if i >= len(gk.Values) {
				return "", nil, sherror.Newf(sherror.SHARD_REWRITE_ERROR, "no generated key for insert row %d", i)
			}
			if r.stmt.ParamCount() > 0 {
				vals = append(vals, "?")
				params = append(params, gk.Values[i])
			} else {
				vals = append(vals, sqlvalue.Format(gk.Values[i]))
			}
		}
		rows = append(rows, "("+strings.Join(vals, ", ")+")")
	}
	if len(rows) == 0 {
		return "", nil, sherror.Newf(sherror.SHARD_REWRITE_ERROR, "no insert row routes to unit %s", unit)
	}
	return strings.Join(rows, ", "), params, nil
}

func (r *rewriter) rowBelongs(row int, table string, unit route.RouteUnit) bool {
	if !r.rc.HasRowTargets() {
		return true
	}
	dn, ok := r.rc.RowTarget(row)
	if !ok || dn.DataSource != unit.DataSource.ActualName {
		return false
	}
	actual, ok := unit.ActualTable(table)
	return ok && actual == dn.Table
}

func (r *rewriter) paramsWithin(start, stop int) []any {
	var res []any
	for i, pos := range r.stmt.ParamPositions {
		if pos >= start && pos < stop {
			res = append(res, r.params[i])
		}
	}
	return res
}

// qualify renames logical table qualifiers of derived expressions to the
// actual tables of unit. Quoted literals are left alone.
func qualify(text string, unit route.RouteUnit) string {
	if len(unit.Tables) == 0 {
		return text
	}
	var sb strings.Builder
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(text) && text[j] != c {
				if text[j] == '\\' {
					j++
				}
				j++
			}
			j = min(j+1, len(text))
			sb.WriteString(text[i:j])
			i = j
		case isIdentByte(c) && (i == 0 || !isIdentByte(text[i-1])):
			j := i
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			word := text[i:j]
			if j < len(text) && text[j] == '.' {
				if actual, ok := unit.ActualTable(word); ok {
					word = actual
				}
			}
			sb.WriteString(word)
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
