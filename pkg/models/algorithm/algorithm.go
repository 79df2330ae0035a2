package algorithm

import (
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
)

// Algorithm type names accepted in configuration.
const (
	TypeMod           = "MOD"
	TypeHashMod       = "HASH_MOD"
	TypeVolumeRange   = "VOLUME_RANGE"
	TypeBoundaryRange = "BOUNDARY_RANGE"
	TypeInline        = "INLINE"
	TypeComplexInline = "COMPLEX_INLINE"
	TypeHintInline    = "HINT_INLINE"
	TypeInterval      = "INTERVAL"
)

// Range is an inclusive interval of sharding values. A nil bound is unbounded.
type Range struct {
	Lower any
	Upper any
}

type PreciseValue struct {
	LogicTable string
	Column     string
	Value      any
}

type RangeValue struct {
	LogicTable string
	Column     string
	Range      Range
}

// ComplexValue carries every sharding column the statement narrowed.
type ComplexValue struct {
	LogicTable string
	Values     map[string][]any
	Ranges     map[string]Range
}

type HintValue struct {
	LogicTable string
	Values     []any
}

// Algorithm is implemented by every sharding algorithm.
type Algorithm interface {
	Type() string
}

// StandardAlgorithm shards on a single column.
// DoPrecise returns exactly one target name, DoRange returns every name the range may hit.
type StandardAlgorithm interface {
	Algorithm
	DoPrecise(candidates []string, v PreciseValue) (string, error)
	DoRange(candidates []string, v RangeValue) ([]string, error)
}

// ComplexAlgorithm receives all sharding columns at once.
type ComplexAlgorithm interface {
	Algorithm
	DoSharding(candidates []string, v ComplexValue) ([]string, error)
}

// HintAlgorithm shards on values supplied out of band.
type HintAlgorithm interface {
	Algorithm
	DoHintSharding(candidates []string, v HintValue) ([]string, error)
}

// New builds an algorithm from its configured type name and props.
func New(typ string, props map[string]string) (Algorithm, error) {
	p := Props(props)
	switch strings.ToUpper(strings.TrimSpace(typ)) {
	case TypeMod:
		return newMod(p)
	case TypeHashMod:
		return newHashMod(p)
	case TypeVolumeRange:
		return newVolumeRange(p)
	case TypeBoundaryRange:
		return newBoundaryRange(p)
	case TypeInline:
		return newInline(p)
	case TypeComplexInline:
		return newComplexInline(p)
	case TypeHintInline:
		return newHintInline(p)
	case TypeInterval:
		return newInterval(p)
	default:
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "unknown sharding algorithm type %q", typ)
	}
}

func errAlgorithm(alg Algorithm, table, column string, value any, reason string) error {
	return sherror.Newf(sherror.SHARD_ALGORITHM_ERROR,
		"%s algorithm cannot shard table %q on column %q with value %v: %s", alg.Type(), table, column, value, reason)
}
