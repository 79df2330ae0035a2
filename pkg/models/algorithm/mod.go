package algorithm

import (
	"fmt"

	"github.com/pg-sharding/shardcore/pkg/models/hashfunction"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
)

const (
	propShardingCount = "sharding-count"
	propHashFunction  = "hash-function"
)

// ModAlgorithm routes value v to the target whose suffix is v % sharding-count.
type ModAlgorithm struct {
	count int64
}

var _ StandardAlgorithm = &ModAlgorithm{}

func newMod(p Props) (*ModAlgorithm, error) {
	count, err := p.RequiredInt(propShardingCount)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "%s must be positive, got %d", propShardingCount, count)
	}
	return &ModAlgorithm{count: count}, nil
}

func (m *ModAlgorithm) Type() string {
	return TypeMod
}

func (m *ModAlgorithm) index(v any) (int64, error) {
	n, err := sqlvalue.ToInt64(v)
	if err != nil {
		return 0, err
	}
	idx := n % m.count
	if idx < 0 {
		idx = -idx
	}
	return idx, nil
}

func (m *ModAlgorithm) DoPrecise(candidates []string, v PreciseValue) (string, error) {
	idx, err := m.index(v.Value)
	if err != nil {
		return "", errAlgorithm(m, v.LogicTable, v.Column, v.Value, err.Error())
	}
	target, ok := findByIndex(candidates, idx)
	if !ok {
		return "", errAlgorithm(m, v.LogicTable, v.Column, v.Value, fmt.Sprintf("no target with suffix %d", idx))
	}
	return target, nil
}

func (m *ModAlgorithm) DoRange(candidates []string, v RangeValue) ([]string, error) {
	if v.Range.Lower == nil || v.Range.Upper == nil {
		return candidates, nil
	}
	lo, err := sqlvalue.ToInt64(v.Range.Lower)
	if err != nil {
		return nil, errAlgorithm(m, v.LogicTable, v.Column, v.Range.Lower, err.Error())
	}
	hi, err := sqlvalue.ToInt64(v.Range.Upper)
	if err != nil {
		return nil, errAlgorithm(m, v.LogicTable, v.Column, v.Range.Upper, err.Error())
	}
	if hi < lo {
		return nil, nil
	}
	// hi >= lo, so the unsigned difference is exact.
	if uint64(hi)-uint64(lo) >= uint64(m.count-1) {
		return candidates, nil
	}

	var res []string
	seen := map[string]struct{}{}
	for n := lo; ; n++ {
		idx, _ := m.index(n)
		if target, ok := findByIndex(candidates, idx); ok {
			if _, dup := seen[target]; !dup {
				seen[target] = struct{}{}
				res = append(res, target)
			}
		}
		if n == hi {
			break
		}
	}
	return res, nil
}

// HashModAlgorithm routes by hash(v) % sharding-count.
type HashModAlgorithm struct {
	count int64
	hf    hashfunction.HashFunctionType
}

var _ StandardAlgorithm = &HashModAlgorithm{}

func newHashMod(p Props) (*HashModAlgorithm, error) {
	count, err := p.RequiredInt(propShardingCount)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "%s must be positive, got %d", propShardingCount, count)
	}
	hf, err := hashfunction.HashFunctionByName(p.Get(propHashFunction, ""))
	if err != nil {
		return nil, sherror.Wrap(sherror.SHARD_CONFIG_ERROR, err)
	}
	return &HashModAlgorithm{count: count, hf: hf}, nil
}

func (h *HashModAlgorithm) Type() string {
	return TypeHashMod
}

func (h *HashModAlgorithm) DoPrecise(candidates []string, v PreciseValue) (string, error) {
	hash, err := hashfunction.ApplyHashFunction(v.Value, h.hf)
	if err != nil {
		return "", errAlgorithm(h, v.LogicTable, v.Column, v.Value, err.Error())
	}
	idx := int64(hash % uint64(h.count))
	target, ok := findByIndex(candidates, idx)
	if !ok {
		return "", errAlgorithm(h, v.LogicTable, v.Column, v.Value, fmt.Sprintf("no target with suffix %d", idx))
	}
	return target, nil
}

// DoRange cannot narrow a hashed column.
func (h *HashModAlgorithm) DoRange(candidates []string, _ RangeValue) ([]string, error) {
	return candidates, nil
}
