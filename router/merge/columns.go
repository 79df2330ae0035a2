package merge

import (
	"strconv"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/statement"
)

// columns resolves result labels. Derived columns appended by the rewriter
// take part in resolution but are hidden from callers.
type columns struct {
	labels  []string
	visible []int
}

func newColumns(labels []string) *columns {
	c := &columns{labels: labels}
	for i, l := range labels {
		if !statement.IsDerivedLabel(l) {
			c.visible = append(c.visible, i)
		}
	}
	return c
}

// index finds label case-insensitively.
func (c *columns) index(label string) int {
	if label == "" {
		return -1
	}
	for i, l := range c.labels {
		if strings.EqualFold(l, label) {
			return i
		}
	}
	return -1
}

func (c *columns) visibleLabels() []string {
	res := make([]string, 0, len(c.visible))
	for _, i := range c.visible {
		res = append(res, c.labels[i])
	}
	return res
}

func (c *columns) project(row []any) []any {
	if len(c.visible) == len(row) {
		return row
	}
	res := make([]any, 0, len(c.visible))
	for _, i := range c.visible {
		res = append(res, row[i])
	}
	return res
}

// projectionIndex maps a projection to its result column. Without a star the
// projections are the leading columns in order.
func (c *columns) projectionIndex(sel *statement.SelectInfo, i int) (int, error) {
	if !sel.HasStar() && i < len(c.labels) {
		return i, nil
	}
	p := sel.Projections[i]
	if idx := c.index(p.Label()); idx >= 0 {
		return idx, nil
	}
	return -1, sherror.Newf(sherror.SHARD_MERGE_ERROR, "projection %q is not among the result columns %v", p.Text, c.labels)
}

// item resolves an ORDER BY or GROUP BY item: by ordinal, by projection,
// by label, and finally by the label the rewriter derived for it.
func (c *columns) item(sel *statement.SelectInfo, item statement.OrderItem, derived string) (int, error) {
	if item.Position > 0 {
		if item.Position <= len(c.visible) {
			return c.visible[item.Position-1], nil
		}
		return -1, sherror.Newf(sherror.SHARD_MERGE_ERROR, "position %d is out of the %d result columns", item.Position, len(c.visible))
	}
	if !sel.HasStar() {
		if p := sel.FindProjection(item); p >= 0 && p < len(c.labels) {
			return p, nil
		}
	}
	if i := c.index(item.Column); i >= 0 {
		return i, nil
	}
	if i := c.index(item.Text); i >= 0 {
		return i, nil
	}
	if i := c.index(derived); i >= 0 {
		return i, nil
	}
	return -1, sherror.Newf(sherror.SHARD_MERGE_ERROR, "cannot resolve %q among the result columns %v", item.Text, c.labels)
}

type sortKey struct {
	idx  int
	desc bool
}

func (c *columns) sortKeys(sel *statement.SelectInfo, items []statement.OrderItem, derivedPrefix string) ([]sortKey, error) {
	res := make([]sortKey, 0, len(items))
	for i, it := range items {
		idx, err := c.item(sel, it, derivedPrefix+strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		res = append(res, sortKey{idx: idx, desc: it.Desc})
	}
	return res, nil
}
