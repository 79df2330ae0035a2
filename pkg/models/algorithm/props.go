package algorithm

import (
	"strconv"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
)

// Props are the raw key/value settings of an algorithm.
type Props map[string]string

func (p Props) Get(key, def string) string {
	if v, ok := p[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p Props) RequiredString(key string) (string, error) {
	v := p.Get(key, "")
	if v == "" {
		return "", sherror.Newf(sherror.SHARD_CONFIG_ERROR, "property %q is required", key)
	}
	return v, nil
}

func (p Props) RequiredInt(key string) (int64, error) {
	v, err := p.RequiredString(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "property %q must be an integer, got %q", key, v)
	}
	return n, nil
}

func (p Props) Int(key string, def int64) (int64, error) {
	if p.Get(key, "") == "" {
		return def, nil
	}
	return p.RequiredInt(key)
}

func (p Props) Bool(key string, def bool) (bool, error) {
	v := p.Get(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "property %q must be a boolean, got %q", key, v)
	}
	return b, nil
}
