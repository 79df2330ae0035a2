// Package sqlvalue holds the value semantics shared by sharding algorithms,
// condition narrowing and result merging: numeric coercion, ordering and
// additive combination of driver values.
package sqlvalue

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalize folds driver integer and float widths into int64 and float64.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return normalizeUint(x)
	case float32:
		return float64(x)
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	default:
		return v
	}
}

func normalizeUint(x uint64) any {
	if x <= math.MaxInt64 {
		return int64(x)
	}
	return x
}

// ToInt64 converts integral values, integral floats and decimal text.
func ToInt64(v any) (int64, error) {
	switch x := Normalize(v).(type) {
	case int64:
		return x, nil
	case uint64:
		return 0, fmt.Errorf("value %d overflows int64", x)
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, fmt.Errorf("value %v is not integral", x)
		}
		return int64(x), nil
	case string:
		return parseIntText(x)
	case []byte:
		return parseIntText(string(x))
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value %v of type %T is not numeric", v, v)
	}
}

func parseIntText(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not an integer", s)
	}
	return n, nil
}

// ToFloat64 converts any numeric value or numeric text.
func ToFloat64(v any) (float64, error) {
	switch x := Normalize(v).(type) {
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		return parseFloatText(x)
	case []byte:
		return parseFloatText(string(x))
	default:
		return 0, fmt.Errorf("value %v of type %T is not numeric", v, v)
	}
}

func parseFloatText(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not a number", s)
	}
	return f, nil
}

// IsNumeric reports whether v is a number or numeric text.
func IsNumeric(v any) bool {
	_, err := ToFloat64(v)
	return err == nil
}

func isNumberType(v any) bool {
	switch v.(type) {
	case int64, uint64, float64:
		return true
	}
	return false
}

func isText(v any) bool {
	switch v.(type) {
	case string, []byte:
		return true
	}
	return false
}

func textOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

// Compare orders two values. NULL sorts below every other value.
// Numbers compare numerically, also against numeric text; text compares bytewise.
func Compare(a, b any) (int, error) {
	a, b = Normalize(a), Normalize(b)
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}

	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			return cmpOrdered(x, y), nil
		}
	}

	if isNumberType(a) || isNumberType(b) {
		x, errA := ToFloat64(a)
		y, errB := ToFloat64(b)
		if errA != nil || errB != nil {
			return 0, fmt.Errorf("cannot compare %v (%T) with %v (%T)", a, a, b, b)
		}
		return cmpOrdered(x, y), nil
	}

	if isText(a) && isText(b) {
		ab, bb := []byte(textOf(a)), []byte(textOf(b))
		if x, err := strconv.ParseFloat(string(ab), 64); err == nil {
			if y, err := strconv.ParseFloat(string(bb), 64); err == nil {
				return cmpOrdered(x, y), nil
			}
		}
		return bytes.Compare(ab, bb), nil
	}

	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmpOrdered(boolInt(x), boolInt(y)), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %v (%T) with %v (%T)", a, a, b, b)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpOrdered[T int64 | float64 | int](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// Add sums two partial aggregates. NULL is the identity.
// Integers stay int64 until they overflow, text is parsed as a number.
func Add(a, b any) (any, error) {
	a, b = Normalize(a), Normalize(b)
	if a == nil {
		return numericOrNil(b)
	}
	if b == nil {
		return numericOrNil(a)
	}

	x, errX := ToInt64(a)
	y, errY := ToInt64(b)
	if errX == nil && errY == nil && !isFloatLike(a) && !isFloatLike(b) {
		s := x + y
		if (s > x) == (y > 0) {
			return s, nil
		}
	}

	fx, err := ToFloat64(a)
	if err != nil {
		return nil, err
	}
	fy, err := ToFloat64(b)
	if err != nil {
		return nil, err
	}
	return fx + fy, nil
}

func isFloatLike(v any) bool {
	switch x := v.(type) {
	case float64:
		return true
	case string:
		return strings.ContainsAny(x, ".eE")
	case []byte:
		return bytes.ContainsAny(x, ".eE")
	}
	return false
}

func numericOrNil(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case int64, float64:
		return x, nil
	}
	if !isFloatLike(v) {
		if n, err := ToInt64(v); err == nil {
			return n, nil
		}
	}
	return ToFloat64(v)
}

// Key renders a value for use in grouping keys, so that equal values from
// different sources collapse to the same key.
func Key(v any) string {
	switch x := Normalize(v).(type) {
	case nil:
		return "\x00"
	case int64:
		return "n" + strconv.FormatInt(x, 10)
	case uint64:
		return "n" + strconv.FormatUint(x, 10)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return "n" + strconv.FormatInt(int64(x), 10)
		}
		return "n" + strconv.FormatFloat(x, 'g', -1, 64)
	case []byte:
		return "s" + string(x)
	case string:
		return "s" + x
	case time.Time:
		return "t" + x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%T:%v", x, x)
	}
}

// Format renders a value as SQL literal text.
func Format(v any) string {
	switch x := Normalize(v).(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case []byte:
		return quote(string(x))
	case string:
		return quote(x)
	case time.Time:
		return quote(x.Format("2006-01-02 15:04:05.999999"))
	default:
		return quote(fmt.Sprint(x))
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
