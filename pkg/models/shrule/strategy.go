package shrule

import (
	"strings"

	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/models/algorithm"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
)

type StrategyKind int

const (
	StrategyNone = StrategyKind(iota)
	StrategyStandard
	StrategyComplex
	StrategyHint
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyStandard:
		return config.StrategyStandard
	case StrategyComplex:
		return config.StrategyComplex
	case StrategyHint:
		return config.StrategyHint
	default:
		return config.StrategyNone
	}
}

// Strategy is a closed variant: exactly the algorithm matching Kind is set.
type Strategy struct {
	Kind          StrategyKind
	Columns       []string
	AlgorithmName string

	Standard algorithm.StandardAlgorithm
	Complex  algorithm.ComplexAlgorithm
	Hint     algorithm.HintAlgorithm
}

var noneStrategy = &Strategy{Kind: StrategyNone}

// UsesColumn reports whether col is one of the strategy's sharding columns.
func (s *Strategy) UsesColumn(col string) bool {
	for _, c := range s.Columns {
		if strings.EqualFold(c, col) {
			return true
		}
	}
	return false
}

func buildStrategy(cfg *config.Strategy, algs map[string]algorithm.Algorithm, table, dimension string) (*Strategy, error) {
	if cfg == nil {
		return noneStrategy, nil
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.Type))
	if kind == "" || kind == config.StrategyNone {
		return noneStrategy, nil
	}

	alg, ok := algs[cfg.Algorithm]
	if !ok {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR,
			"%s strategy of table %q references unknown algorithm %q", dimension, table, cfg.Algorithm)
	}
	mismatch := func(want string) error {
		return sherror.Newf(sherror.SHARD_CONFIG_ERROR,
			"%s strategy of table %q is %s but algorithm %q (%s) is not a %s algorithm",
			dimension, table, kind, cfg.Algorithm, alg.Type(), want)
	}

	s := &Strategy{AlgorithmName: cfg.Algorithm}
	switch kind {
	case config.StrategyStandard:
		std, ok := alg.(algorithm.StandardAlgorithm)
		if !ok {
			return nil, mismatch("standard")
		}
		col := strings.TrimSpace(cfg.ShardingColumn)
		if col == "" {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "%s strategy of table %q lacks sharding_column", dimension, table)
		}
		s.Kind, s.Standard, s.Columns = StrategyStandard, std, []string{col}
	case config.StrategyComplex:
		cplx, ok := alg.(algorithm.ComplexAlgorithm)
		if !ok {
			return nil, mismatch("complex")
		}
		for _, c := range strings.Split(cfg.ShardingColumns, ",") {
			if c = strings.TrimSpace(c); c != "" {
				s.Columns = append(s.Columns, c)
			}
		}
		if len(s.Columns) == 0 {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "%s strategy of table %q lacks sharding_columns", dimension, table)
		}
		s.Kind, s.Complex = StrategyComplex, cplx
	case config.StrategyHint:
		hint, ok := alg.(algorithm.HintAlgorithm)
		if !ok {
			return nil, mismatch("hint")
		}
		s.Kind, s.Hint = StrategyHint, hint
	default:
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "unknown %s strategy type %q for table %q", dimension, cfg.Type, table)
	}
	return s, nil
}
