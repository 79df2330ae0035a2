package parser

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pg-sharding/shardcore/pkg/statement"
)

type cacheEntry struct {
	stmt *statement.Statement
	comm string
}

// SharedParser caches parse results keyed by query text. Cached statements
// are shared between callers and must not be modified.
type SharedParser struct {
	parseCache *cache.Cache
	size       int

	underlying Parser
}

var _ Parser = &SharedParser{}

func (shp *SharedParser) Parse(query string) (*statement.Statement, string, error) {
	if ce, ok := shp.parseCache.Get(query); ok {
		entry := ce.(cacheEntry)
		return entry.stmt, entry.comm, nil
	}

	stmt, comm, err := shp.underlying.Parse(query)
	if err == nil && (shp.size <= 0 || shp.parseCache.ItemCount() < shp.size) {
		shp.parseCache.SetDefault(query, cacheEntry{stmt: stmt, comm: comm})
	}
	return stmt, comm, err
}

// NewSharedParser caches up to size statements for ttl each. A non-positive
// size disables the limit.
func NewSharedParser(size int, ttl time.Duration) Parser {
	return &SharedParser{
		parseCache: cache.New(ttl, 2*ttl),
		size:       size,
		underlying: NewQParser(),
	}
}
