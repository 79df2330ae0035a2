package condition

import (
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/algorithm"
)

// ConditionValue narrows one sharding column of one table either to a set
// of values or to a range. Exactly one of Values and Range is set.
type ConditionValue struct {
	Table  string
	Column string
	Values []any
	Range  *algorithm.Range
}

func (cv *ConditionValue) IsRange() bool {
	return cv.Range != nil
}

// Condition is the set of narrowed columns of one INSERT row, or of the
// whole statement when RowIndex is -1.
type Condition struct {
	RowIndex int
	Values   []ConditionValue
}

// Find returns the narrowing of table.column, if any.
func (c *Condition) Find(table, column string) (*ConditionValue, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Values {
		cv := &c.Values[i]
		if strings.EqualFold(cv.Table, table) && strings.EqualFold(cv.Column, column) {
			return cv, true
		}
	}
	return nil, false
}

// GeneratedKeyContext records the key column values of an INSERT, one per row.
// Appended is set when the values were synthesized and the column must be
// added to the physical statement.
type GeneratedKeyContext struct {
	Table    string
	Column   string
	Values   []any
	Appended bool
}
