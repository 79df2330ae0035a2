package datanode

import (
	"fmt"
	"strconv"
	"strings"
)

/*
* Inline expressions describe node lists compactly:
*   ds_${0..1}.t_order_${0..3}
*   ds_0.t_${['a','b']}, ds_1.t_c
* Placeholders are ${...} or $->{...}. A placeholder holds either an
* integer range a..b or a bracketed list. Segments of one expression expand
* to the cartesian product of their placeholders, left to right.
 */

// ExpandInline expands an inline expression into the ordered list of names.
func ExpandInline(expr string) ([]string, error) {
	parts, err := splitTopLevel(expr)
	if err != nil {
		return nil, err
	}
	var res []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		names, err := expandSegment(p)
		if err != nil {
			return nil, err
		}
		res = append(res, names...)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("inline expression %q yields no names", expr)
	}
	return res, nil
}

// splitTopLevel splits on commas outside of placeholders.
func splitTopLevel(expr string) ([]string, error) {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced '}' at position %d in %q", i, expr)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, expr[last:i])
				last = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unterminated placeholder in %q", expr)
	}
	return append(parts, expr[last:]), nil
}

func expandSegment(seg string) ([]string, error) {
	res := []string{""}
	for len(seg) > 0 {
		start, skip := placeholderStart(seg)
		if start < 0 {
			for i := range res {
				res[i] += seg
			}
			break
		}
		prefix := seg[:start]
		body := seg[start+skip:]
		end := strings.IndexByte(body, '}')
		if end < 0 {
			return nil, fmt.Errorf("unterminated placeholder in %q", seg)
		}
		values, err := placeholderValues(strings.TrimSpace(body[:end]))
		if err != nil {
			return nil, err
		}

		next := make([]string, 0, len(res)*len(values))
		for _, r := range res {
			for _, v := range values {
				next = append(next, r+prefix+v)
			}
		}
		res = next
		seg = body[end+1:]
	}
	return res, nil
}

func placeholderStart(s string) (int, int) {
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

func placeholderValues(body string) ([]string, error) {
	if body == "" {
		return nil, fmt.Errorf("empty placeholder")
	}
	if strings.HasPrefix(body, "[") {
		if !strings.HasSuffix(body, "]") {
			return nil, fmt.Errorf("unterminated list %q", body)
		}
		var values []string
		for _, item := range strings.Split(body[1:len(body)-1], ",") {
			item = strings.Trim(strings.TrimSpace(item), `'"`)
			if item == "" {
				return nil, fmt.Errorf("empty list item in %q", body)
			}
			values = append(values, item)
		}
		return values, nil
	}
	if lo, hi, ok := strings.Cut(body, ".."); ok {
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid range start in %q", body)
		}
		to, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid range end in %q", body)
		}
		if to < from {
			return nil, fmt.Errorf("descending range %q", body)
		}
		values := make([]string, 0, to-from+1)
		for i := from; i <= to; i++ {
			values = append(values, strconv.Itoa(i))
		}
		return values, nil
	}
	return []string{strings.Trim(body, `'"`)}, nil
}
