package qrouter

import (
	"strings"

	"github.com/pg-sharding/shardcore/router/parser"
	"github.com/pg-sharding/shardcore/router/routehint"
)

// mergeHints combines the caller's hint with the one carried in the
// statement comment. Fields the caller sets win.
func mergeHints(explicit *routehint.HintContext, comment string) (*routehint.HintContext, error) {
	if strings.TrimSpace(comment) == "" {
		return explicit, nil
	}
	opts, err := parser.ParseComment(comment)
	if err != nil {
		return nil, err
	}
	fromComment, err := routehint.FromOptions(opts)
	if err != nil {
		return nil, err
	}
	if fromComment == nil {
		return explicit, nil
	}
	if explicit == nil {
		return fromComment, nil
	}

	res := &routehint.HintContext{
		DataSource:          explicit.DataSource,
		DisabledDataSources: append(append([]string{}, explicit.DisabledDataSources...), fromComment.DisabledDataSources...),
	}
	for table, vals := range explicit.DatabaseValues {
		for _, v := range vals {
			res.AddDatabaseValue(table, v)
		}
	}
	for table, vals := range explicit.TableValues {
		for _, v := range vals {
			res.AddTableValue(table, v)
		}
	}
	if res.DataSource == "" {
		res.DataSource = fromComment.DataSource
	}
	for table, vals := range fromComment.DatabaseValues {
		if _, ok := explicit.DatabaseHint(table); !ok {
			for _, v := range vals {
				res.AddDatabaseValue(table, v)
			}
		}
	}
	for table, vals := range fromComment.TableValues {
		if _, ok := explicit.TableHint(table); !ok {
			for _, v := range vals {
				res.AddTableValue(table, v)
			}
		}
	}
	return res, nil
}
