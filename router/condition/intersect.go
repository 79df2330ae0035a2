package condition

import (
	"github.com/pg-sharding/shardcore/pkg/models/algorithm"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
)

func errContradiction(a ConditionValue) error {
	return sherror.Newf(sherror.SHARD_ROUTING_ERROR,
		"conditions on %s.%s are contradictory, no row can match", a.Table, a.Column)
}

func errIncomparable(a ConditionValue, err error) error {
	return sherror.Newf(sherror.SHARD_ROUTING_ERROR, "conditions on %s.%s: %v", a.Table, a.Column, err)
}

// intersect narrows two AND-ed conditions on the same column.
func intersect(a, b ConditionValue) (ConditionValue, error) {
	res := ConditionValue{Table: a.Table, Column: a.Column}

	switch {
	case !a.IsRange() && !b.IsRange():
		for _, x := range a.Values {
			for _, y := range b.Values {
				c, err := sqlvalue.Compare(x, y)
				if err != nil {
					return res, errIncomparable(a, err)
				}
				if c == 0 {
					res.Values = append(res.Values, x)
					break
				}
			}
		}
	case a.IsRange() && b.IsRange():
		lo, err := pick(a.Range.Lower, b.Range.Lower, 1)
		if err != nil {
			return res, errIncomparable(a, err)
		}
		hi, err := pick(a.Range.Upper, b.Range.Upper, -1)
		if err != nil {
			return res, errIncomparable(a, err)
		}
		if lo != nil && hi != nil {
			c, err := sqlvalue.Compare(lo, hi)
			if err != nil {
				return res, errIncomparable(a, err)
			}
			if c > 0 {
				return res, errContradiction(a)
			}
		}
		res.Range = &algorithm.Range{Lower: lo, Upper: hi}
		return res, nil
	default:
		list, rng := a, b
		if list.IsRange() {
			list, rng = b, a
		}
		for _, x := range list.Values {
			in, err := within(x, *rng.Range)
			if err != nil {
				return res, errIncomparable(a, err)
			}
			if in {
				res.Values = append(res.Values, x)
			}
		}
	}

	if len(res.Values) == 0 {
		return res, errContradiction(a)
	}
	return res, nil
}

// pick returns the greater (sign 1) or lesser (sign -1) bound, nil meaning unbounded.
func pick(x, y any, sign int) (any, error) {
	if x == nil {
		return y, nil
	}
	if y == nil {
		return x, nil
	}
	c, err := sqlvalue.Compare(x, y)
	if err != nil {
		return nil, err
	}
	if c*sign >= 0 {
		return x, nil
	}
	return y, nil
}

func within(v any, r algorithm.Range) (bool, error) {
	if r.Lower != nil {
		c, err := sqlvalue.Compare(v, r.Lower)
		if err != nil || c < 0 {
			return false, err
		}
	}
	if r.Upper != nil {
		c, err := sqlvalue.Compare(v, r.Upper)
		if err != nil || c > 0 {
			return false, err
		}
	}
	return true, nil
}
