package statement

import "strings"

type InsertValue struct {
	Expr *Expr
	Span
}

type InsertRow struct {
	// Span covers the parenthesised row.
	Span
	Values []InsertValue
}

type InsertInfo struct {
	Columns     []string
	ColumnSpans []Span
	// ColumnList covers "(a, b)", NoSpan when the column list is omitted.
	ColumnList Span

	Rows []InsertRow
	// FromSelect marks INSERT ... SELECT.
	FromSelect bool
}

// ColumnIndex returns the position of col in the column list, or -1.
func (i *InsertInfo) ColumnIndex(col string) int {
	for idx, c := range i.Columns {
		if strings.EqualFold(c, col) {
			return idx
		}
	}
	return -1
}

// ValuesSpan covers every row of the VALUES list.
func (i *InsertInfo) ValuesSpan() Span {
	if len(i.Rows) == 0 {
		return NoSpan
	}
	return Span{Start: i.Rows[0].Start, Stop: i.Rows[len(i.Rows)-1].Stop}
}
