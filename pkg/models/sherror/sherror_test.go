package sherror_test

import (
	"fmt"
	"testing"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorFormat(t *testing.T) {
	assert := assert.New(t)

	err := sherror.Newf(sherror.SHARD_ROUTING_ERROR, "no data node for table %q", "t_order")
	assert.Equal(`Code: SHRTE. Name: Routing error. Description: no data node for table "t_order".`, err.Error())

	assert.Equal("Unexpected error", sherror.GetMessageByCode("NOPE"))
	assert.Equal("Merge error", sherror.NewByCode(sherror.SHARD_MERGE_ERROR).Err.Error())
}

func TestCode(t *testing.T) {
	assert := assert.New(t)

	type tcase struct {
		err error
		exp string
	}

	base := sherror.New(sherror.SHARD_ALGORITHM_ERROR, "bad value")

	for _, tt := range []tcase{
		{err: base, exp: sherror.SHARD_ALGORITHM_ERROR},
		{err: errors.Wrap(base, "routing t_order"), exp: sherror.SHARD_ALGORITHM_ERROR},
		{err: fmt.Errorf("plain"), exp: sherror.SHARD_UNEXPECTED},
		{err: sherror.Wrap(sherror.SHARD_EXECUTION_ERROR, fmt.Errorf("conn reset")), exp: sherror.SHARD_EXECUTION_ERROR},
		{err: sherror.Wrap(sherror.SHARD_EXECUTION_ERROR, base), exp: sherror.SHARD_ALGORITHM_ERROR},
	} {
		assert.Equal(tt.exp, sherror.Code(tt.err))
	}

	assert.Nil(sherror.Wrap(sherror.SHARD_MERGE_ERROR, nil))
}

func TestIs(t *testing.T) {
	assert := assert.New(t)

	sentinel := sherror.New(sherror.SHARD_MERGE_ERROR, "cursor is not positioned on a row")
	wrapped := errors.Wrap(sherror.New(sherror.SHARD_MERGE_ERROR, "cursor is not positioned on a row"), "row")

	assert.ErrorIs(wrapped, sentinel)
	assert.NotErrorIs(wrapped, sherror.New(sherror.SHARD_MERGE_ERROR, "other"))
}
