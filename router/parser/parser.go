package parser

import (
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pg-sharding/shardcore/pkg/statement"
	"github.com/xwb1989/sqlparser"
)

type Parser interface {
	// Parse returns the statement and the text of its last block comment,
	// which carries routing hints.
	Parse(query string) (*statement.Statement, string, error)
}

type QParser struct {
}

var _ Parser = &QParser{}

func NewQParser() Parser {
	return &QParser{}
}

func (qp *QParser) Parse(query string) (*statement.Statement, string, error) {
	comment := lastComment(query)

	toks, err := lex(query)
	if err != nil {
		return nil, comment, err
	}

	tree, err := sqlparser.Parse(query)
	if err != nil {
		return nil, comment, sherror.Newf(sherror.SHARD_PARSE_ERROR, "%s", strings.TrimSpace(err.Error()))
	}

	stmt, err := bind(query, tree, newLayout(toks))
	if err != nil {
		return nil, comment, err
	}

	shardlog.Zero.Debug().
		Str("kind", stmt.Kind.String()).
		Strs("tables", stmt.TableNames()).
		Int("params", stmt.ParamCount()).
		Msg("parsed statement")
	return stmt, comment, nil
}

func lastComment(query string) string {
	comment := ""
	for i := 0; i+3 < len(query); i++ {
		if query[i] != '/' || query[i+1] != '*' {
			continue
		}
		end := strings.Index(query[i+2:], "*/")
		if end < 0 {
			break
		}
		comment = query[i+2 : i+2+end]
		i += end + 3
	}
	return comment
}
