package merge

import (
	"strings"

	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
)

// compareValues orders NULL lowest. Values of incomparable types fall back
// to their grouping keys so that the order stays total.
func compareValues(a, b any) int {
	c, err := sqlvalue.Compare(a, b)
	if err != nil {
		return strings.Compare(sqlvalue.Key(a), sqlvalue.Key(b))
	}
	return c
}

func compareRows(a, b []any, keys []sortKey) int {
	for _, k := range keys {
		c := compareValues(a[k.idx], b[k.idx])
		if k.desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func groupKey(row []any, idx []int) string {
	var sb strings.Builder
	for _, i := range idx {
		sb.WriteString(sqlvalue.Key(row[i]))
		sb.WriteByte(0x1f)
	}
	return sb.String()
}
