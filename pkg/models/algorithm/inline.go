package algorithm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/pg-sharding/shardcore/pkg/models/hashfunction"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
)

const (
	propAlgorithmExpression = "algorithm-expression"
	propAllowRangeQuery     = "allow-range-query-with-inline-sharding"
	propShardingColumns     = "sharding-columns"

	// float64 represents integers exactly up to 2^53
	maxExactInt = 1 << 53
)

var inlineFunctions = map[string]govaluate.ExpressionFunction{
	"mod": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("mod expects 2 arguments, got %d", len(args))
		}
		a, err := exactInt(args[0])
		if err != nil {
			return nil, err
		}
		b, err := exactInt(args[1])
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return nil, fmt.Errorf("mod by zero")
		}
		r := a % b
		if r < 0 {
			r = -r
		}
		return float64(r), nil
	},
	"hash": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("hash expects 1 argument, got %d", len(args))
		}
		v := args[0]
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			v = int64(f)
		}
		h, err := hashfunction.ApplyHashFunction(v, hashfunction.HashFunctionMurmur)
		if err != nil {
			return nil, err
		}
		return float64(h), nil
	},
	"abs": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs expects 1 argument, got %d", len(args))
		}
		f, err := sqlvalue.ToFloat64(args[0])
		if err != nil {
			return nil, err
		}
		return math.Abs(f), nil
	},
}

func exactInt(v any) (int64, error) {
	if f, ok := v.(float64); ok {
		if f != math.Trunc(f) || math.Abs(f) > maxExactInt {
			return 0, fmt.Errorf("value %v is not an exact integer", f)
		}
		return int64(f), nil
	}
	return sqlvalue.ToInt64(v)
}

type templatePart struct {
	literal string
	expr    *govaluate.EvaluableExpression
}

// inlineTemplate is a compiled algorithm expression such as t_order_${order_id % 4}.
type inlineTemplate struct {
	raw   string
	parts []templatePart
}

func compileTemplate(raw string) (*inlineTemplate, error) {
	t := &inlineTemplate{raw: raw}
	rest := raw
	for rest != "" {
		start, skip := placeholder(rest)
		if start < 0 {
			t.parts = append(t.parts, templatePart{literal: rest})
			break
		}
		if start > 0 {
			t.parts = append(t.parts, templatePart{literal: rest[:start]})
		}
		body := rest[start+skip:]
		end := strings.IndexByte(body, '}')
		if end < 0 {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "unterminated placeholder in expression %q", raw)
		}
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(strings.TrimSpace(body[:end]), inlineFunctions)
		if err != nil {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "invalid expression %q: %v", raw, err)
		}
		t.parts = append(t.parts, templatePart{expr: expr})
		rest = body[end+1:]
	}
	return t, nil
}

func placeholder(s string) (int, int) {
	a := strings.Index(s, "${")
	b := strings.Index(s, "$->{")
	switch {
	case a < 0 && b < 0:
		return -1, 0
	case b < 0 || (a >= 0 && a < b):
		return a, 2
	default:
		return b, 4
	}
}

// Vars lists the variables referenced by the template.
func (t *inlineTemplate) Vars() []string {
	var vars []string
	for _, p := range t.parts {
		if p.expr != nil {
			vars = append(vars, p.expr.Vars()...)
		}
	}
	return vars
}

// evalParam prepares a sharding value for the expression engine.
// Integers beyond the exact float range are passed as text so that
// mod() and hash() stay exact while plain arithmetic fails loudly.
func evalParam(v any) any {
	switch x := sqlvalue.Normalize(v).(type) {
	case int64:
		if x > maxExactInt || x < -maxExactInt {
			return strconv.FormatInt(x, 10)
		}
		return x
	case uint64:
		return strconv.FormatUint(x, 10)
	case []byte:
		return string(x)
	default:
		return x
	}
}

func (t *inlineTemplate) eval(params map[string]any) (string, error) {
	var sb strings.Builder
	for _, p := range t.parts {
		if p.expr == nil {
			sb.WriteString(p.literal)
			continue
		}
		res, err := p.expr.Evaluate(params)
		if err != nil {
			return "", err
		}
		sb.WriteString(formatResult(res))
	}
	return sb.String(), nil
}

func formatResult(v any) string {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) <= maxExactInt {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// InlineAlgorithm evaluates algorithm-expression with the sharding column bound to its value.
type InlineAlgorithm struct {
	tmpl       *inlineTemplate
	allowRange bool
}

var _ StandardAlgorithm = &InlineAlgorithm{}

func newInline(p Props) (*InlineAlgorithm, error) {
	raw, err := p.RequiredString(propAlgorithmExpression)
	if err != nil {
		return nil, err
	}
	tmpl, err := compileTemplate(raw)
	if err != nil {
		return nil, err
	}
	allow, err := p.Bool(propAllowRangeQuery, false)
	if err != nil {
		return nil, err
	}
	return &InlineAlgorithm{tmpl: tmpl, allowRange: allow}, nil
}

func (a *InlineAlgorithm) Type() string {
	return TypeInline
}

func (a *InlineAlgorithm) DoPrecise(_ []string, v PreciseValue) (string, error) {
	if v.Value == nil {
		return "", errAlgorithm(a, v.LogicTable, v.Column, v.Value, "NULL sharding value")
	}
	target, err := a.tmpl.eval(map[string]any{v.Column: evalParam(v.Value)})
	if err != nil {
		return "", errAlgorithm(a, v.LogicTable, v.Column, v.Value, err.Error())
	}
	return target, nil
}

func (a *InlineAlgorithm) DoRange(candidates []string, v RangeValue) ([]string, error) {
	if !a.allowRange {
		return nil, errAlgorithm(a, v.LogicTable, v.Column, fmt.Sprintf("[%v, %v]", v.Range.Lower, v.Range.Upper),
			"range queries need "+propAllowRangeQuery+"=true")
	}
	return candidates, nil
}

// ComplexInlineAlgorithm evaluates one expression over several sharding columns.
type ComplexInlineAlgorithm struct {
	tmpl       *inlineTemplate
	columns    []string
	allowRange bool
}

var _ ComplexAlgorithm = &ComplexInlineAlgorithm{}

func newComplexInline(p Props) (*ComplexInlineAlgorithm, error) {
	raw, err := p.RequiredString(propAlgorithmExpression)
	if err != nil {
		return nil, err
	}
	tmpl, err := compileTemplate(raw)
	if err != nil {
		return nil, err
	}
	allow, err := p.Bool(propAllowRangeQuery, false)
	if err != nil {
		return nil, err
	}
	var columns []string
	for _, c := range strings.Split(p.Get(propShardingColumns, ""), ",") {
		if c = strings.TrimSpace(c); c != "" {
			columns = append(columns, c)
		}
	}
	if len(columns) == 0 {
		columns = tmpl.Vars()
	}
	return &ComplexInlineAlgorithm{tmpl: tmpl, columns: columns, allowRange: allow}, nil
}

func (a *ComplexInlineAlgorithm) Type() string {
	return TypeComplexInline
}

func (a *ComplexInlineAlgorithm) DoSharding(candidates []string, v ComplexValue) ([]string, error) {
	if len(v.Ranges) > 0 {
		if !a.allowRange {
			return nil, errAlgorithm(a, v.LogicTable, strings.Join(a.columns, ","), v.Ranges,
				"range queries need "+propAllowRangeQuery+"=true")
		}
		return candidates, nil
	}

	combos := []map[string]any{{}}
	for _, col := range a.columns {
		values := lookupValues(v.Values, col)
		if len(values) == 0 {
			return nil, errAlgorithm(a, v.LogicTable, col, nil, "missing value for sharding column")
		}
		next := make([]map[string]any, 0, len(combos)*len(values))
		for _, c := range combos {
			for _, val := range values {
				m := make(map[string]any, len(c)+1)
				for k, x := range c {
					m[k] = x
				}
				m[col] = evalParam(val)
				next = append(next, m)
			}
		}
		combos = next
	}

	var res []string
	seen := map[string]struct{}{}
	for _, params := range combos {
		target, err := a.tmpl.eval(params)
		if err != nil {
			return nil, errAlgorithm(a, v.LogicTable, strings.Join(a.columns, ","), params, err.Error())
		}
		if _, ok := seen[target]; !ok {
			seen[target] = struct{}{}
			res = append(res, target)
		}
	}
	return res, nil
}

func lookupValues(values map[string][]any, col string) []any {
	if vs, ok := values[col]; ok {
		return vs
	}
	for k, vs := range values {
		if strings.EqualFold(k, col) {
			return vs
		}
	}
	return nil
}

// HintInlineAlgorithm evaluates algorithm-expression with "value" bound to each hint value.
type HintInlineAlgorithm struct {
	tmpl *inlineTemplate
}

var _ HintAlgorithm = &HintInlineAlgorithm{}

func newHintInline(p Props) (*HintInlineAlgorithm, error) {
	tmpl, err := compileTemplate(p.Get(propAlgorithmExpression, "${value}"))
	if err != nil {
		return nil, err
	}
	return &HintInlineAlgorithm{tmpl: tmpl}, nil
}

func (a *HintInlineAlgorithm) Type() string {
	return TypeHintInline
}

func (a *HintInlineAlgorithm) DoHintSharding(_ []string, v HintValue) ([]string, error) {
	var res []string
	seen := map[string]struct{}{}
	for _, val := range v.Values {
		target, err := a.tmpl.eval(map[string]any{"value": evalParam(val)})
		if err != nil {
			return nil, errAlgorithm(a, v.LogicTable, "value", val, err.Error())
		}
		if _, ok := seen[target]; !ok {
			seen[target] = struct{}{}
			res = append(res, target)
		}
	}
	return res, nil
}
