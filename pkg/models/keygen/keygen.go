package keygen

import (
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"go.uber.org/atomic"
)

const (
	TypeSnowflake = "SNOWFLAKE"
	TypeUUID      = "UUID"
	TypeIncrement = "INCREMENT"
)

// Generator produces primary key values for INSERT statements lacking them.
type Generator interface {
	Type() string
	Next() (any, error)
}

// Spec is the configured type and props of a generator.
type Spec struct {
	Type  string
	Props map[string]string
}

// New builds a generator. Each generator owns its sequence state.
func New(spec Spec) (Generator, error) {
	switch strings.ToUpper(strings.TrimSpace(spec.Type)) {
	case TypeSnowflake:
		workerID, err := intProp(spec.Props, "worker-id", 0)
		if err != nil {
			return nil, err
		}
		node, err := snowflake.NewNode(workerID)
		if err != nil {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "snowflake worker-id %d: %v", workerID, err)
		}
		return &SnowflakeGenerator{node: node}, nil
	case TypeUUID:
		return &UUIDGenerator{}, nil
	case TypeIncrement:
		start, err := intProp(spec.Props, "start", 1)
		if err != nil {
			return nil, err
		}
		return &IncrementGenerator{next: atomic.NewInt64(start - 1)}, nil
	default:
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "unknown key generator type %q", spec.Type)
	}
}

func intProp(props map[string]string, key string, def int64) (int64, error) {
	raw := strings.TrimSpace(props[key])
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "key generator property %q must be an integer, got %q", key, raw)
	}
	return n, nil
}

type SnowflakeGenerator struct {
	node *snowflake.Node
}

func (g *SnowflakeGenerator) Type() string {
	return TypeSnowflake
}

func (g *SnowflakeGenerator) Next() (any, error) {
	return g.node.Generate().Int64(), nil
}

// UUIDGenerator yields random UUIDs as 32 hex characters.
type UUIDGenerator struct{}

func (g *UUIDGenerator) Type() string {
	return TypeUUID
}

func (g *UUIDGenerator) Next() (any, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

type IncrementGenerator struct {
	next *atomic.Int64
}

func (g *IncrementGenerator) Type() string {
	return TypeIncrement
}

func (g *IncrementGenerator) Next() (any, error) {
	return g.next.Inc(), nil
}

// Registry lazily instantiates one generator per configured name.
// It is owned by the caller and outlives individual statements.
type Registry struct {
	mu    sync.Mutex
	specs map[string]Spec
	gens  map[string]Generator
}

func NewRegistry(specs map[string]Spec) *Registry {
	return &Registry{
		specs: specs,
		gens:  map[string]Generator{},
	}
}

// Reset swaps the generator specs. Generators whose spec is unchanged keep their state.
func (r *Registry) Reset(specs map[string]Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range r.gens {
		spec, ok := specs[name]
		if !ok || !sameSpec(r.specs[name], spec) {
			delete(r.gens, name)
		}
	}
	r.specs = specs
}

func sameSpec(a, b Spec) bool {
	if !strings.EqualFold(a.Type, b.Type) || len(a.Props) != len(b.Props) {
		return false
	}
	for k, v := range a.Props {
		if b.Props[k] != v {
			return false
		}
	}
	return true
}

func (r *Registry) generator(name string) (Generator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen, ok := r.gens[name]; ok {
		return gen, nil
	}
	spec, ok := r.specs[name]
	if !ok {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "key generator %q is not configured", name)
	}
	gen, err := New(spec)
	if err != nil {
		return nil, err
	}
	r.gens[name] = gen
	return gen, nil
}

// Generate returns n fresh keys from the named generator.
func (r *Registry) Generate(name string, n int) ([]any, error) {
	gen, err := r.generator(name)
	if err != nil {
		return nil, err
	}
	keys := make([]any, 0, n)
	for range n {
		k, err := gen.Next()
		if err != nil {
			return nil, sherror.Newf(sherror.SHARD_UNEXPECTED, "key generator %q failed: %v", name, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}
