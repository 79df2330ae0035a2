package algorithm

import (
	"fmt"
	"strings"
	"time"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
)

const (
	propDatetimePattern       = "datetime-pattern"
	propDatetimeLower         = "datetime-lower"
	propDatetimeUpper         = "datetime-upper"
	propShardingSuffixPattern = "sharding-suffix-pattern"
	propIntervalAmount        = "datetime-interval-amount"
	propIntervalUnit          = "datetime-interval-unit"

	maxIntervalSteps = 100000
)

// javaLayoutTokens converts date patterns such as yyyy-MM-dd HH:mm:ss to Go layouts.
// Longer tokens come first so that yyyy wins over yy.
var javaLayoutTokens = []struct{ java, golang string }{
	{"yyyy", "2006"},
	{"SSS", "000"},
	{"yy", "06"},
	{"MM", "01"},
	{"dd", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

func toGoLayout(pattern string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); {
		matched := false
		for _, tok := range javaLayoutTokens {
			if strings.HasPrefix(pattern[i:], tok.java) {
				sb.WriteString(tok.golang)
				i += len(tok.java)
				matched = true
				break
			}
		}
		if !matched {
			sb.WriteByte(pattern[i])
			i++
		}
	}
	return sb.String()
}

// IntervalAlgorithm shards datetime values into fixed calendar intervals
// starting at datetime-lower. Targets are matched by the formatted interval start.
type IntervalAlgorithm struct {
	layout       string
	suffixLayout string
	lower        time.Time
	upper        time.Time
	hasUpper     bool
	amount       int
	unit         string
}

var _ StandardAlgorithm = &IntervalAlgorithm{}

func newInterval(p Props) (*IntervalAlgorithm, error) {
	pattern, err := p.RequiredString(propDatetimePattern)
	if err != nil {
		return nil, err
	}
	suffix, err := p.RequiredString(propShardingSuffixPattern)
	if err != nil {
		return nil, err
	}
	lowerRaw, err := p.RequiredString(propDatetimeLower)
	if err != nil {
		return nil, err
	}
	a := &IntervalAlgorithm{
		layout:       toGoLayout(pattern),
		suffixLayout: toGoLayout(suffix),
		unit:         strings.ToUpper(p.Get(propIntervalUnit, "DAYS")),
	}
	if a.lower, err = time.Parse(a.layout, lowerRaw); err != nil {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "%s %q does not match %s: %v", propDatetimeLower, lowerRaw, pattern, err)
	}
	if upperRaw := p.Get(propDatetimeUpper, ""); upperRaw != "" {
		if a.upper, err = time.Parse(a.layout, upperRaw); err != nil {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "%s %q does not match %s: %v", propDatetimeUpper, upperRaw, pattern, err)
		}
		a.hasUpper = true
	}
	amount, err := p.Int(propIntervalAmount, 1)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "%s must be positive", propIntervalAmount)
	}
	a.amount = int(amount)

	switch a.unit {
	case "SECONDS", "MINUTES", "HOURS", "DAYS", "WEEKS", "MONTHS", "YEARS":
	default:
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "unsupported %s %q", propIntervalUnit, a.unit)
	}
	return a, nil
}

func (a *IntervalAlgorithm) Type() string {
	return TypeInterval
}

func (a *IntervalAlgorithm) upperBound() time.Time {
	if a.hasUpper {
		return a.upper
	}
	return time.Now().In(a.lower.Location())
}

func (a *IntervalAlgorithm) parse(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		return time.Parse(a.layout, x)
	case []byte:
		return time.Parse(a.layout, string(x))
	default:
		return time.Time{}, fmt.Errorf("value of type %T is not a datetime", v)
	}
}

// step returns the start of the k-th interval.
func (a *IntervalAlgorithm) step(k int) time.Time {
	n := k * a.amount
	switch a.unit {
	case "SECONDS":
		return a.lower.Add(time.Duration(n) * time.Second)
	case "MINUTES":
		return a.lower.Add(time.Duration(n) * time.Minute)
	case "HOURS":
		return a.lower.Add(time.Duration(n) * time.Hour)
	case "DAYS":
		return a.lower.AddDate(0, 0, n)
	case "WEEKS":
		return a.lower.AddDate(0, 0, 7*n)
	case "MONTHS":
		return a.lower.AddDate(0, n, 0)
	default:
		return a.lower.AddDate(n, 0, 0)
	}
}

// intervalIndex finds k such that step(k) <= t < step(k+1).
func (a *IntervalAlgorithm) intervalIndex(t time.Time) int {
	var approx int
	switch a.unit {
	case "MONTHS":
		approx = ((t.Year()-a.lower.Year())*12 + int(t.Month()) - int(a.lower.Month())) / a.amount
	case "YEARS":
		approx = (t.Year() - a.lower.Year()) / a.amount
	default:
		width := a.step(1).Sub(a.lower)
		approx = int(t.Sub(a.lower) / width)
	}
	for approx > 0 && a.step(approx).After(t) {
		approx--
	}
	for !a.step(approx + 1).After(t) {
		approx++
	}
	return approx
}

func (a *IntervalAlgorithm) inBounds(t time.Time) bool {
	return !t.Before(a.lower) && !t.After(a.upperBound())
}

func (a *IntervalAlgorithm) DoPrecise(candidates []string, v PreciseValue) (string, error) {
	t, err := a.parse(v.Value)
	if err != nil {
		return "", errAlgorithm(a, v.LogicTable, v.Column, v.Value, err.Error())
	}
	if !a.inBounds(t) {
		return "", errAlgorithm(a, v.LogicTable, v.Column, v.Value, "datetime outside of configured interval bounds")
	}
	suffix := a.step(a.intervalIndex(t)).Format(a.suffixLayout)
	matched := findBySuffix(candidates, suffix)
	if len(matched) == 0 {
		return "", errAlgorithm(a, v.LogicTable, v.Column, v.Value, fmt.Sprintf("no target with suffix %s", suffix))
	}
	return matched[0], nil
}

func (a *IntervalAlgorithm) DoRange(candidates []string, v RangeValue) ([]string, error) {
	from, to := a.lower, a.upperBound()
	if v.Range.Lower != nil {
		t, err := a.parse(v.Range.Lower)
		if err != nil {
			return nil, errAlgorithm(a, v.LogicTable, v.Column, v.Range.Lower, err.Error())
		}
		if t.After(from) {
			from = t
		}
	}
	if v.Range.Upper != nil {
		t, err := a.parse(v.Range.Upper)
		if err != nil {
			return nil, errAlgorithm(a, v.LogicTable, v.Column, v.Range.Upper, err.Error())
		}
		if t.Before(to) {
			to = t
		}
	}
	if from.After(to) {
		return nil, nil
	}

	var res []string
	seen := map[string]struct{}{}
	last := a.intervalIndex(to)
	first := a.intervalIndex(from)
	if last-first > maxIntervalSteps {
		return candidates, nil
	}
	for k := first; k <= last; k++ {
		for _, c := range findBySuffix(candidates, a.step(k).Format(a.suffixLayout)) {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				res = append(res, c)
			}
		}
	}
	return res, nil
}
