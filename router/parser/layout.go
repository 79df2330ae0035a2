package parser

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/statement"
)

// layout answers positional questions the AST cannot: where clauses start
// and stop, where table names and values sit in the text.
type layout struct {
	toks   []token
	params []int
}

func newLayout(toks []token) *layout {
	l := &layout{toks: toks}
	for _, t := range toks {
		if t.kind == tokParam {
			l.params = append(l.params, t.start)
		}
	}
	return l
}

func (l *layout) paramOrdinal(pos int) int {
	idx := sort.SearchInts(l.params, pos)
	if idx < len(l.params) && l.params[idx] == pos {
		return idx
	}
	return -1
}

// last returns the index of the final token, ignoring trailing semicolons.
func (l *layout) last() int {
	i := len(l.toks) - 1
	for i >= 0 && l.toks[i].punct(';') {
		i--
	}
	return i
}

// matching returns the index of the ')' closing the '(' at i.
func (l *layout) matching(i int) int {
	d := l.toks[i].depth
	for j := i + 1; j < len(l.toks); j++ {
		if l.toks[j].punct(')') && l.toks[j].depth == d {
			return j
		}
	}
	return -1
}

type selectLayout struct {
	projectionsStop int
	groupByStop     int
	having          statement.Span
	limit           *statement.Limit
	stop            int
}

var selectClauses = map[string]bool{
	"FROM": true, "WHERE": true, "GROUP": true, "HAVING": true, "ORDER": true,
	"LIMIT": true, "FOR": true, "LOCK": true, "PROCEDURE": true, "INTO": true, "UNION": true,
}

type clause struct {
	kw  string
	idx int
}

func (l *layout) selectClauses() []clause {
	var res []clause
	last := l.last()
	for i := 1; i <= last; i++ {
		t := l.toks[i]
		if t.depth != 0 || t.kind != tokIdent {
			continue
		}
		kw := strings.ToUpper(t.text)
		if !selectClauses[kw] {
			continue
		}
		if (kw == "GROUP" || kw == "ORDER") && (i+1 > last || !l.toks[i+1].is("BY")) {
			continue
		}
		res = append(res, clause{kw: kw, idx: i})
	}
	return res
}

func (l *layout) selectLayout() (*selectLayout, error) {
	last := l.last()
	if last < 0 || !l.toks[0].is("SELECT") {
		return nil, sherror.New(sherror.SHARD_PARSE_ERROR, "statement does not start with SELECT")
	}
	res := &selectLayout{
		projectionsStop: l.toks[last].stop,
		groupByStop:     -1,
		having:          statement.NoSpan,
		stop:            l.toks[last].stop,
	}

	clauses := l.selectClauses()
	end := func(k int) int {
		if k+1 < len(clauses) {
			return clauses[k+1].idx - 1
		}
		return last
	}
	if len(clauses) > 0 {
		res.projectionsStop = l.toks[clauses[0].idx-1].stop
	}
	for k, c := range clauses {
		e := end(k)
		switch c.kw {
		case "GROUP":
			res.groupByStop = l.toks[e].stop
		case "HAVING":
			res.having = statement.Span{Start: l.toks[c.idx].start, Stop: l.toks[e].stop}
		case "LIMIT":
			lim, err := l.limit(c.idx, e)
			if err != nil {
				return nil, err
			}
			res.limit = lim
		}
	}
	return res, nil
}

func (l *layout) limitValue(i int) (*statement.LimitValue, error) {
	t := l.toks[i]
	lv := &statement.LimitValue{Param: -1, Span: statement.Span{Start: t.start, Stop: t.stop}}
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, sherror.Newf(sherror.SHARD_PARSE_ERROR, "invalid LIMIT value %q at position %d", t.text, t.start)
		}
		lv.Value = v
	case tokParam:
		lv.Param = l.paramOrdinal(t.start)
	default:
		return nil, sherror.Newf(sherror.SHARD_UNSUPPORTED, "LIMIT value %q at position %d is not a literal or parameter", t.text, t.start)
	}
	return lv, nil
}

func (l *layout) limit(kw, end int) (*statement.Limit, error) {
	lim := &statement.Limit{Span: statement.Span{Start: l.toks[kw].start, Stop: l.toks[end].stop}}
	var err error
	switch n := end - kw; {
	case n == 1:
		lim.RowCount, err = l.limitValue(kw + 1)
	case n == 3 && l.toks[kw+2].punct(','):
		if lim.Offset, err = l.limitValue(kw + 1); err == nil {
			lim.RowCount, err = l.limitValue(kw + 3)
		}
	case n == 3 && l.toks[kw+2].is("OFFSET"):
		if lim.RowCount, err = l.limitValue(kw + 1); err == nil {
			lim.Offset, err = l.limitValue(kw + 3)
		}
	default:
		return nil, sherror.Newf(sherror.SHARD_PARSE_ERROR, "malformed LIMIT clause at position %d", l.toks[kw].start)
	}
	if err != nil {
		return nil, err
	}
	return lim, nil
}

type insertLayout struct {
	columnList  statement.Span
	columnSpans []statement.Span
	rows        []statement.InsertRow
	fromSelect  bool
}

func (l *layout) insertLayout() (*insertLayout, error) {
	res := &insertLayout{columnList: statement.NoSpan}
	last := l.last()

	i := 0
	for ; i <= last; i++ {
		t := l.toks[i]
		if t.depth != 0 {
			continue
		}
		if t.is("SELECT") {
			res.fromSelect = true
			return res, nil
		}
		if t.is("SET") {
			return nil, sherror.New(sherror.SHARD_UNSUPPORTED, "INSERT ... SET is not supported, use a column list with VALUES")
		}
		if t.is("VALUES") || t.is("VALUE") {
			break
		}
		if t.punct('(') {
			if i+1 <= last && l.toks[i+1].is("SELECT") {
				res.fromSelect = true
				return res, nil
			}
			closing := l.matching(i)
			if closing < 0 {
				return nil, errLex(t.start, "unclosed column list")
			}
			res.columnList = statement.Span{Start: t.start, Stop: l.toks[closing].stop}
			res.columnSpans = l.split(i+1, closing-1, t.depth+1)
			i = closing
		}
	}
	if i > last {
		return nil, sherror.New(sherror.SHARD_PARSE_ERROR, "INSERT without VALUES")
	}

	for i++; i <= last; i++ {
		t := l.toks[i]
		if !t.punct('(') {
			if t.is("SELECT") {
				res.fromSelect = true
				return res, nil
			}
			return nil, errLex(t.start, "expected '(' to open an insert row")
		}
		closing := l.matching(i)
		if closing < 0 {
			return nil, errLex(t.start, "unclosed insert row")
		}
		row := statement.InsertRow{Span: statement.Span{Start: t.start, Stop: l.toks[closing].stop}}
		for _, part := range l.split(i+1, closing-1, t.depth+1) {
			row.Values = append(row.Values, statement.InsertValue{Span: part})
		}
		res.rows = append(res.rows, row)

		i = closing + 1
		if i > last || l.toks[i].is("ON") {
			break
		}
		if !l.toks[i].punct(',') {
			return nil, errLex(l.toks[i].start, "expected ',' between insert rows")
		}
	}
	return res, nil
}

// split cuts tokens [from, to] at commas of the given depth into spans.
func (l *layout) split(from, to, depth int) []statement.Span {
	var res []statement.Span
	start := from
	for j := from; j <= to+1; j++ {
		if j <= to && !(l.toks[j].punct(',') && l.toks[j].depth == depth) {
			continue
		}
		if start <= j-1 {
			res = append(res, statement.Span{Start: l.toks[start].start, Stop: l.toks[j-1].stop})
		}
		start = j + 1
	}
	return res
}

var clauseSetters = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "SET": true, "ON": true, "USING": true, "GROUP": true,
	"HAVING": true, "ORDER": true, "LIMIT": true, "VALUES": true, "VALUE": true, "UPDATE": true,
	"DELETE": true, "INTO": true, "JOIN": true,
}

var tableListClauses = map[string]bool{"FROM": true, "UPDATE": true, "DELETE": true, "JOIN": true}

var modifiers = map[string]bool{
	"LOW_PRIORITY": true, "HIGH_PRIORITY": true, "DELAYED": true, "IGNORE": true, "QUICK": true,
}

// tableTokens finds every occurrence of a name in tables, as a table
// reference or as a column qualifier.
func (l *layout) tableTokens(kind statement.Kind, tables map[string]struct{}) []statement.TableToken {
	var res []statement.TableToken
	clauses := map[int]string{}

	isTable := func(t token) bool {
		if t.kind != tokIdent && t.kind != tokQuotedIdent {
			return false
		}
		_, ok := tables[strings.ToLower(t.name())]
		return ok
	}

	tablePosition := func(i int) bool {
		j := i - 1
		for j >= 0 && l.toks[j].kind == tokIdent && modifiers[strings.ToUpper(l.toks[j].text)] {
			j--
		}
		if j < 0 {
			return false
		}
		p := l.toks[j]
		if p.punct(',') {
			return tableListClauses[clauses[l.toks[i].depth]]
		}
		if p.kind != tokIdent {
			return false
		}
		switch strings.ToUpper(p.text) {
		case "FROM", "JOIN", "STRAIGHT_JOIN", "UPDATE", "INTO", "TABLE", "DELETE", "TRUNCATE":
			return true
		case "INSERT", "REPLACE":
			return kind == statement.KindInsert
		case "EXISTS", "ON", "TO":
			return kind == statement.KindDDL
		}
		return false
	}

	for i, t := range l.toks {
		if t.kind == tokIdent && clauseSetters[strings.ToUpper(t.text)] {
			clauses[t.depth] = strings.ToUpper(t.text)
			continue
		}
		if !isTable(t) {
			continue
		}
		prevDot := i > 0 && l.toks[i-1].punct('.') && l.toks[i-1].start == t.start-1
		nextDot := i+1 < len(l.toks) && l.toks[i+1].punct('.') && l.toks[i+1].start == t.stop

		tt := statement.TableToken{
			Table:  strings.ToLower(t.name()),
			Span:   statement.Span{Start: t.start, Stop: t.stop},
			Schema: statement.NoSpan,
		}
		if t.kind == tokQuotedIdent {
			tt.Quote = "`"
		}

		switch {
		case prevDot:
			if i < 2 || (l.toks[i-2].kind != tokIdent && l.toks[i-2].kind != tokQuotedIdent) {
				continue
			}
			if !nextDot && !tablePosition(i-2) {
				continue
			}
			if i >= 3 && l.toks[i-3].punct('.') {
				continue
			}
			tt.Schema = statement.Span{Start: l.toks[i-2].start, Stop: l.toks[i-1].stop}
		case nextDot:
		case tablePosition(i):
		default:
			continue
		}
		res = append(res, tt)
	}
	return res
}
