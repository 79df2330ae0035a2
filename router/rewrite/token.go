package rewrite

import (
	"sort"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
)

type TokenKind int

const (
	TokenTable = TokenKind(iota)
	TokenRemove
	TokenInsertValues
	TokenGeneratedKeyColumn
	TokenInsertColumnRemove
	TokenProjections
	TokenOrderBy
	TokenRowCount
	TokenOffset
)

func (k TokenKind) String() string {
	switch k {
	case TokenTable:
		return "table"
	case TokenRemove:
		return "remove"
	case TokenInsertValues:
		return "insert values"
	case TokenGeneratedKeyColumn:
		return "generated key column"
	case TokenInsertColumnRemove:
		return "insert column remove"
	case TokenProjections:
		return "projections"
	case TokenOrderBy:
		return "order by"
	case TokenRowCount:
		return "row count"
	case TokenOffset:
		return "offset"
	default:
		return "unknown"
	}
}

// Token replaces [Start, Stop) of the original text. Start == Stop inserts.
type Token struct {
	Kind  TokenKind
	Start int
	Stop  int

	// Text is the replacement of structural tokens.
	Text string

	// Table is the lower-cased logical table of table and insert values tokens.
	Table string
	Quote string
	// Sharded table tokens must resolve in every unit.
	Sharded bool

	// Value and Param describe pushed down pagination. Param is -1 for a literal.
	Value int64
	Param int

	// Skip lists the insert column indexes whose values are dropped.
	Skip []int
}

// sortTokens orders tokens by position and rejects overlapping ones.
func sortTokens(tokens []Token) error {
	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].Start != tokens[j].Start {
			return tokens[i].Start < tokens[j].Start
		}
		return tokens[i].Stop < tokens[j].Stop
	})
	for i := 1; i < len(tokens); i++ {
		prev, cur := tokens[i-1], tokens[i]
		if cur.Start < prev.Stop {
			return sherror.Newf(sherror.SHARD_REWRITE_ERROR,
				"%s token at [%d, %d) overlaps %s token at [%d, %d)",
				cur.Kind, cur.Start, cur.Stop, prev.Kind, prev.Start, prev.Stop)
		}
	}
	return nil
}
