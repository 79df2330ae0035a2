package statement_test

import (
	"testing"

	"github.com/pg-sharding/shardcore/pkg/statement"
	"github.com/stretchr/testify/assert"
)

func TestFindProjection(t *testing.T) {
	assert := assert.New(t)

	sel := &statement.SelectInfo{
		Projections: []statement.Projection{
			{Text: "o.user_id", Table: "o", Column: "user_id"},
			{Text: "count(*)", Aggregation: statement.AggCount, AggArg: "*", Alias: "cnt"},
			{Text: "sum(price)", Aggregation: statement.AggSum, AggArg: "price"},
		},
	}

	type tcase struct {
		item statement.OrderItem
		exp  int
	}

	for _, tt := range []tcase{
		{item: statement.OrderItem{Text: "user_id", Column: "user_id"}, exp: 0},
		{item: statement.OrderItem{Text: "o.user_id", Table: "o", Column: "USER_ID"}, exp: 0},
		{item: statement.OrderItem{Text: "cnt", Column: "cnt"}, exp: 1},
		{item: statement.OrderItem{Text: "sum(price)"}, exp: 2},
		{item: statement.OrderItem{Text: "3", Position: 3}, exp: 2},
		{item: statement.OrderItem{Text: "9", Position: 9}, exp: -1},
		{item: statement.OrderItem{Text: "status", Column: "status"}, exp: -1},
	} {
		assert.Equal(tt.exp, sel.FindProjection(tt.item), tt.item.Text)
	}
}

func TestGroupByEqualsOrderBy(t *testing.T) {
	assert := assert.New(t)

	userID := statement.OrderItem{Text: "user_id", Column: "user_id"}
	sel := &statement.SelectInfo{
		Projections: []statement.Projection{{Text: "user_id", Column: "user_id"}},
		GroupBy:     []statement.OrderItem{userID},
	}
	assert.True(sel.GroupByEqualsOrderBy())

	sel.OrderBy = []statement.OrderItem{userID}
	assert.True(sel.GroupByEqualsOrderBy())

	desc := userID
	desc.Desc = true
	sel.OrderBy = []statement.OrderItem{desc}
	assert.False(sel.GroupByEqualsOrderBy())

	sel.OrderBy = []statement.OrderItem{{Text: "count(*)"}}
	assert.False(sel.GroupByEqualsOrderBy())
}

func TestConjuncts(t *testing.T) {
	assert := assert.New(t)

	a := &statement.Expr{Kind: statement.ExprCompare, Op: "=", Text: "a = 1"}
	b := &statement.Expr{Kind: statement.ExprCompare, Op: "=", Text: "b = 2"}
	c := &statement.Expr{Kind: statement.ExprOr, Text: "c = 1 or c = 2"}
	root := &statement.Expr{Kind: statement.ExprAnd, Args: []*statement.Expr{
		{Kind: statement.ExprAnd, Args: []*statement.Expr{a, b}}, c,
	}}

	assert.Equal([]*statement.Expr{a, b, c}, root.Conjuncts())
	assert.Nil((*statement.Expr)(nil).Conjuncts())

	v, ok := (&statement.Expr{Kind: statement.ExprParam, Param: 1}).Resolve([]any{1, 2})
	assert.True(ok)
	assert.Equal(2, v)
	_, ok = (&statement.Expr{Kind: statement.ExprParam, Param: 2}).Resolve([]any{1, 2})
	assert.False(ok)
}

func TestStatementHelpers(t *testing.T) {
	assert := assert.New(t)

	stmt := &statement.Statement{
		Tables: []statement.TableRef{
			{Name: "T_Order", Alias: "o"},
			{Name: "t_order_item", Alias: "i"},
			{Name: "t_order"},
		},
		ParamPositions: []int{10, 20},
	}
	assert.Equal([]string{"t_order", "t_order_item"}, stmt.TableNames())
	assert.Equal(2, stmt.ParamCount())

	name, ok := stmt.ResolveQualifier("I")
	assert.True(ok)
	assert.Equal("t_order_item", name)
	name, ok = stmt.ResolveQualifier("t_order")
	assert.True(ok)
	assert.Equal("t_order", name)
	_, ok = stmt.ResolveQualifier("x")
	assert.False(ok)

	assert.True(statement.IsDerivedLabel("avg_derived_count_0"))
	assert.True(statement.IsDerivedLabel("ORDER_BY_DERIVED_1"))
	assert.False(statement.IsDerivedLabel("order_id"))
}
