package algorithm

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
)

const (
	propRangeLower     = "range-lower"
	propRangeUpper     = "range-upper"
	propShardingVolume = "sharding-volume"
	propShardingRanges = "sharding-ranges"
)

// boundedRange maps a value onto partition indexes given ascending boundaries.
// Partition 0 holds values below the first boundary, partition i holds
// values in [bounds[i-1], bounds[i]).
type boundedRange struct {
	typ    string
	bounds []int64
}

func (b *boundedRange) Type() string {
	return b.typ
}

func (b *boundedRange) partition(n int64) int64 {
	idx, found := slices.BinarySearch(b.bounds, n)
	if found {
		idx++
	}
	return int64(idx)
}

func (b *boundedRange) DoPrecise(candidates []string, v PreciseValue) (string, error) {
	n, err := sqlvalue.ToInt64(v.Value)
	if err != nil {
		return "", errAlgorithm(b, v.LogicTable, v.Column, v.Value, err.Error())
	}
	idx := b.partition(n)
	target, ok := findByIndex(candidates, idx)
	if !ok {
		return "", errAlgorithm(b, v.LogicTable, v.Column, v.Value, fmt.Sprintf("no target for partition %d", idx))
	}
	return target, nil
}

func (b *boundedRange) DoRange(candidates []string, v RangeValue) ([]string, error) {
	from, to := int64(0), int64(len(b.bounds))
	if v.Range.Lower != nil {
		n, err := sqlvalue.ToInt64(v.Range.Lower)
		if err != nil {
			return nil, errAlgorithm(b, v.LogicTable, v.Column, v.Range.Lower, err.Error())
		}
		from = b.partition(n)
	}
	if v.Range.Upper != nil {
		n, err := sqlvalue.ToInt64(v.Range.Upper)
		if err != nil {
			return nil, errAlgorithm(b, v.LogicTable, v.Column, v.Range.Upper, err.Error())
		}
		to = b.partition(n)
	}
	return collectIndexes(candidates, from, to), nil
}

func newVolumeRange(p Props) (*boundedRange, error) {
	lower, err := p.RequiredInt(propRangeLower)
	if err != nil {
		return nil, err
	}
	upper, err := p.RequiredInt(propRangeUpper)
	if err != nil {
		return nil, err
	}
	volume, err := p.RequiredInt(propShardingVolume)
	if err != nil {
		return nil, err
	}
	if volume <= 0 || upper <= lower {
		return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR,
			"invalid volume range: lower %d, upper %d, volume %d", lower, upper, volume)
	}

	var bounds []int64
	for b := lower; b < upper; b += volume {
		bounds = append(bounds, b)
		if b > upper-volume {
			break
		}
	}
	bounds = append(bounds, upper)
	return &boundedRange{typ: TypeVolumeRange, bounds: bounds}, nil
}

func newBoundaryRange(p Props) (*boundedRange, error) {
	raw, err := p.RequiredString(propShardingRanges)
	if err != nil {
		return nil, err
	}
	var bounds []int64
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "invalid boundary %q in %s", part, propShardingRanges)
		}
		if len(bounds) > 0 && n <= bounds[len(bounds)-1] {
			return nil, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "%s must be strictly ascending", propShardingRanges)
		}
		bounds = append(bounds, n)
	}
	return &boundedRange{typ: TypeBoundaryRange, bounds: bounds}, nil
}
