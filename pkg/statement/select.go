package statement

import "strings"

type AggregationType int

const (
	AggNone = AggregationType(iota)
	AggCount
	AggSum
	AggMax
	AggMin
	AggAvg
)

func AggregationByName(name string) AggregationType {
	switch strings.ToLower(name) {
	case "count":
		return AggCount
	case "sum":
		return AggSum
	case "max":
		return AggMax
	case "min":
		return AggMin
	case "avg":
		return AggAvg
	default:
		return AggNone
	}
}

func (a AggregationType) String() string {
	switch a {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggMax:
		return "MAX"
	case AggMin:
		return "MIN"
	case AggAvg:
		return "AVG"
	default:
		return ""
	}
}

// Labels of the columns the rewriter appends for multi-unit queries.
const (
	AvgDerivedCountPrefix = "AVG_DERIVED_COUNT_"
	AvgDerivedSumPrefix   = "AVG_DERIVED_SUM_"
	OrderByDerivedPrefix  = "ORDER_BY_DERIVED_"
	GroupByDerivedPrefix  = "GROUP_BY_DERIVED_"
)

// IsDerivedLabel reports labels appended by the rewriter.
func IsDerivedLabel(label string) bool {
	l := strings.ToUpper(label)
	for _, p := range []string{AvgDerivedCountPrefix, AvgDerivedSumPrefix, OrderByDerivedPrefix, GroupByDerivedPrefix} {
		if strings.HasPrefix(l, p) {
			return true
		}
	}
	return false
}

type Projection struct {
	// Text is the canonical lower-cased expression text.
	Text  string
	Alias string

	Star      bool
	StarTable string

	// Table and Column are set for plain column projections.
	Table  string
	Column string

	Aggregation AggregationType
	Distinct    bool
	// AggArg is the argument text of an aggregation, "*" for COUNT(*).
	AggArg string
}

// Label is the name the projection is resolved by.
func (p Projection) Label() string {
	if p.Alias != "" {
		return p.Alias
	}
	if p.Column != "" {
		return p.Column
	}
	return p.Text
}

type OrderItem struct {
	// Text is the lower-cased expression used for matching, SQL keeps the
	// case of identifiers and literals for generated statements.
	Text   string
	SQL    string
	Table  string
	Column string
	Desc   bool
	// Position is the 1-based projection ordinal of "ORDER BY 2", 0 otherwise.
	Position int
}

type LimitValue struct {
	Value int64
	// Param is the 0-based parameter ordinal, -1 for a literal.
	Param int
	Span
}

type Limit struct {
	Offset   *LimitValue
	RowCount *LimitValue
	// Span covers the whole LIMIT clause, keyword included.
	Span
}

type SelectInfo struct {
	Distinct    bool
	Projections []Projection
	// ProjectionsStop is the offset just past the last projection.
	ProjectionsStop int

	GroupBy     []OrderItem
	GroupByStop int
	OrderBy     []OrderItem

	Having     *Expr
	HavingSpan Span

	Limit *Limit

	// Stop is the offset just past the last clause of the top level select.
	Stop int
}

func (s *SelectInfo) HasStar() bool {
	for _, p := range s.Projections {
		if p.Star {
			return true
		}
	}
	return false
}

func (s *SelectInfo) HasAggregation() bool {
	for _, p := range s.Projections {
		if p.Aggregation != AggNone {
			return true
		}
	}
	return false
}

func (s *SelectInfo) HasDistinctAggregation() bool {
	for _, p := range s.Projections {
		if p.Aggregation != AggNone && p.Distinct {
			return true
		}
	}
	return false
}

// GroupByEqualsOrderBy reports whether GROUP BY and ORDER BY name the same
// columns in the same directions. An absent ORDER BY counts as equal.
func (s *SelectInfo) GroupByEqualsOrderBy() bool {
	if len(s.OrderBy) == 0 {
		return true
	}
	if len(s.OrderBy) != len(s.GroupBy) {
		return false
	}
	for i := range s.GroupBy {
		g, o := s.GroupBy[i], s.OrderBy[i]
		if g.Desc != o.Desc || !s.sameItem(g, o) {
			return false
		}
	}
	return true
}

func (s *SelectInfo) sameItem(a, b OrderItem) bool {
	ia, ib := s.FindProjection(a), s.FindProjection(b)
	if ia >= 0 || ib >= 0 {
		return ia == ib
	}
	return a.Text == b.Text
}

// FindProjection returns the index of the projection item refers to, or -1.
func (s *SelectInfo) FindProjection(item OrderItem) int {
	if item.Position > 0 {
		if item.Position <= len(s.Projections) {
			return item.Position - 1
		}
		return -1
	}
	for i, p := range s.Projections {
		if p.Alias != "" && item.Table == "" && strings.EqualFold(p.Alias, item.Column) {
			return i
		}
	}
	for i, p := range s.Projections {
		if p.Star {
			continue
		}
		if item.Column != "" && p.Column != "" && strings.EqualFold(p.Column, item.Column) &&
			(item.Table == "" || p.Table == "" || strings.EqualFold(item.Table, p.Table)) {
			return i
		}
		if p.Text == item.Text {
			return i
		}
	}
	return -1
}

// FindAggregate returns the index of the aggregation projection an aggregate
// call of a HAVING clause refers to, or -1.
func (s *SelectInfo) FindAggregate(e *Expr) int {
	for i, p := range s.Projections {
		if p.Aggregation != AggNone && p.Text == e.Text {
			return i
		}
	}
	return -1
}

// IsAggregateCall reports function calls of COUNT, SUM, MAX, MIN or AVG.
func IsAggregateCall(e *Expr) bool {
	return e.Kind == ExprFunc && AggregationByName(e.Name) != AggNone
}

// StreamGroupBy reports a GROUP BY whose per-shard output can be merged in order.
func (s *SelectInfo) StreamGroupBy() bool {
	return len(s.GroupBy) > 0 && s.GroupByEqualsOrderBy() && s.Having == nil && !s.Distinct
}

// MemoryGroupBy reports selects that must be grouped after buffering every row.
func (s *SelectInfo) MemoryGroupBy() bool {
	if s.StreamGroupBy() {
		return false
	}
	return len(s.GroupBy) > 0 || s.HasAggregation() || s.Distinct || s.Having != nil
}
