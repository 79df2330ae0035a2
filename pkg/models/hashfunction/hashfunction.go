package hashfunction

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/city"
	"github.com/pg-sharding/shardcore/pkg/sqlvalue"
	"github.com/spaolacci/murmur3"
)

type HashFunctionType int

/* Pre-defined hash functions */
const (
	HashFunctionIdent  = HashFunctionType(0)
	HashFunctionMurmur = HashFunctionType(1)
	HashFunctionCity   = HashFunctionType(2)
	HashFunctionXX     = HashFunctionType(3)
)

var errUnknownValueType = func(v any, hf HashFunctionType) error {
	return fmt.Errorf("unknown type of value that the hash will be calculated from: %T for %s hash type", v, ToString(hf))
}

func EncodeUInt64(input uint64) []byte {
	const ENCODING_BYTES_BIG = binary.MaxVarintLen64
	const ENCODING_BYTES = 8
	const BOUND = 1 << 56 /* 72057594037927936 */

	sz := ENCODING_BYTES
	if input >= BOUND {
		sz = ENCODING_BYTES_BIG
	}

	buf := make([]byte, sz)
	binary.PutUvarint(buf, input)
	return buf
}

// hashInput renders a sharding value as the byte string that gets hashed.
// Integers use the varint encoding, text is hashed as is.
func hashInput(input any, hf HashFunctionType) ([]byte, error) {
	switch v := sqlvalue.Normalize(input).(type) {
	case int64:
		return EncodeUInt64(uint64(v)), nil
	case uint64:
		return EncodeUInt64(v), nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errUnknownValueType(input, hf)
	}
}

// ApplyHashFunction hashes a sharding value and returns the hash as uint64.
// The identity function only accepts integers and returns them unchanged.
func ApplyHashFunction(input any, hf HashFunctionType) (uint64, error) {
	if hf == HashFunctionIdent {
		n, err := sqlvalue.ToInt64(input)
		if err != nil {
			return 0, errUnknownValueType(input, hf)
		}
		return uint64(n), nil
	}

	buf, err := hashInput(input, hf)
	if err != nil {
		return 0, err
	}

	switch hf {
	case HashFunctionMurmur:
		return uint64(murmur3.Sum32(buf)), nil
	case HashFunctionCity:
		return uint64(city.Hash32(buf)), nil
	case HashFunctionXX:
		return xxhash.Sum64(buf), nil
	default:
		return 0, fmt.Errorf("unknown hash function type: %d", hf)
	}
}

// HashFunctionByName returns the HashFunctionType for a configured name.
func HashFunctionByName(hfn string) (HashFunctionType, error) {
	switch hfn {
	case "identity", "ident":
		return HashFunctionIdent, nil
	case "murmur", "":
		return HashFunctionMurmur, nil
	case "city":
		return HashFunctionCity, nil
	case "xxhash":
		return HashFunctionXX, nil
	default:
		return 0, fmt.Errorf("unknown hash function type: %s", hfn)
	}
}

func ToString(hf HashFunctionType) string {
	switch hf {
	case HashFunctionIdent:
		return "identity"
	case HashFunctionMurmur:
		return "murmur"
	case HashFunctionCity:
		return "city"
	case HashFunctionXX:
		return "xxhash"
	}
	return ""
}
