package sqlvalue

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	assert := assert.New(t)

	type tcase struct {
		a, b any
		exp  int
		err  bool
	}

	now := time.Now()

	for _, tt := range []tcase{
		{a: int64(1), b: int64(2), exp: -1},
		{a: 3, b: int32(3), exp: 0},
		{a: uint64(10), b: 9.5, exp: 1},
		{a: nil, b: int64(1), exp: -1},
		{a: "x", b: nil, exp: 1},
		{a: nil, b: nil, exp: 0},
		{a: []byte("10"), b: []byte("9"), exp: 1},
		{a: "abc", b: "abd", exp: -1},
		{a: int64(7), b: "7", exp: 0},
		{a: now, b: now.Add(time.Second), exp: -1},
		{a: true, b: false, exp: 1},
		{a: int64(1), b: "abc", err: true},
		{a: now, b: int64(1), err: true},
	} {
		got, err := Compare(tt.a, tt.b)
		if tt.err {
			assert.Error(err, "%v vs %v", tt.a, tt.b)
			continue
		}
		assert.NoError(err)
		assert.Equal(tt.exp, got, "%v vs %v", tt.a, tt.b)
	}
}

func TestAdd(t *testing.T) {
	assert := assert.New(t)

	type tcase struct {
		a, b any
		exp  any
		err  bool
	}

	for _, tt := range []tcase{
		{a: int64(1), b: int64(2), exp: int64(3)},
		{a: nil, b: int64(2), exp: int64(2)},
		{a: nil, b: nil, exp: nil},
		{a: []byte("4"), b: []byte("6"), exp: int64(10)},
		{a: int64(1), b: 0.5, exp: 1.5},
		{a: "1.25", b: int64(1), exp: 2.25},
		{a: int64(math.MaxInt64), b: int64(1), exp: float64(math.MaxInt64) + 1},
		{a: "abc", b: int64(1), err: true},
	} {
		got, err := Add(tt.a, tt.b)
		if tt.err {
			assert.Error(err)
			continue
		}
		assert.NoError(err)
		assert.Equal(tt.exp, got)
	}
}

func TestToInt64(t *testing.T) {
	assert := assert.New(t)

	n, err := ToInt64("15")
	assert.NoError(err)
	assert.Equal(int64(15), n)

	n, err = ToInt64(uint32(7))
	assert.NoError(err)
	assert.Equal(int64(7), n)

	_, err = ToInt64("fifteen")
	assert.Error(err)

	_, err = ToInt64(1.5)
	assert.Error(err)

	_, err = ToInt64(uint64(math.MaxUint64))
	assert.Error(err)
}

func TestKeyAndFormat(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Key(int64(15)), Key(15.0))
	assert.Equal(Key(int32(15)), Key(uint8(15)))
	assert.NotEqual(Key(int64(15)), Key("15"))
	assert.Equal(Key([]byte("a")), Key("a"))
	assert.NotEqual(Key(nil), Key(""))

	assert.Equal("NULL", Format(nil))
	assert.Equal("15", Format(15))
	assert.Equal("'it''s'", Format("it's"))
	assert.Equal("1.5", Format(1.5))
}
