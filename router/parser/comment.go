package parser

import (
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
)

/*
ParseComment parses routing hints of the form
key: value[, key1: value1...]
*/
func ParseComment(comm string) (map[string]string, error) {
	opts := make(map[string]string)

	for _, pair := range strings.Split(comm, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			if len(opts) == 0 && strings.TrimSpace(comm) == "" {
				break
			}
			return nil, sherror.New(sherror.SHARD_PARSE_ERROR, "invalid comment format: empty option")
		}

		name, val, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, sherror.New(sherror.SHARD_PARSE_ERROR, "invalid comment format: expected colon after option name")
		}
		name, val = strings.TrimSpace(name), strings.TrimSpace(val)
		switch {
		case name == "":
			return nil, sherror.New(sherror.SHARD_PARSE_ERROR, "invalid comment format: empty option name")
		case strings.ContainsAny(name, " \t\n"):
			return nil, sherror.Newf(sherror.SHARD_PARSE_ERROR, "invalid comment format: bad option name %q", name)
		case val == "":
			return nil, sherror.New(sherror.SHARD_PARSE_ERROR, "invalid comment format: empty option values")
		case strings.ContainsAny(val, " \t\n"):
			// "a: b c: d" lacks the separating comma
			return nil, sherror.New(sherror.SHARD_PARSE_ERROR, "invalid comment format: expected comma after not-last key-value pair")
		}
		opts[name] = val
	}

	return opts, nil
}
