package algorithm

import (
	"strconv"
	"strings"
)

// trailingNumber parses the decimal suffix of a target name: t_order_12 -> 12.
func trailingNumber(name string) (int64, bool) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return 0, false
	}
	n, err := strconv.ParseInt(name[i:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// findByIndex returns the candidate whose trailing number equals idx.
func findByIndex(candidates []string, idx int64) (string, bool) {
	for _, c := range candidates {
		if n, ok := trailingNumber(c); ok && n == idx {
			return c, true
		}
	}
	return "", false
}

// findBySuffix returns the candidates ending with suffix.
func findBySuffix(candidates []string, suffix string) []string {
	var res []string
	for _, c := range candidates {
		if strings.HasSuffix(c, suffix) {
			res = append(res, c)
		}
	}
	return res
}

// collectIndexes returns the candidates whose trailing number lies in [from, to].
func collectIndexes(candidates []string, from, to int64) []string {
	var res []string
	for _, c := range candidates {
		if n, ok := trailingNumber(c); ok && n >= from && n <= to {
			res = append(res, c)
		}
	}
	return res
}
