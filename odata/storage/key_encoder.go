package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/wbrown/janus-odata/odata"
)

// Key namespaces
const (
	entityPrefix byte = 'E'
)

// KeyEncoder builds entity keys:
//
//	'E' | set id (uint64 BE) | encoded key value
//
// Integer keys are stored sign-flipped big-endian and strings and guids as
// raw bytes, so a prefix scan returns the entities of a set in key order.
type KeyEncoder struct{}

// NewKeyEncoder creates a key encoder
func NewKeyEncoder() *KeyEncoder {
	return &KeyEncoder{}
}

// SetID is the persistent identifier of an entity set. Unlike the interned
// odata.ID it does not depend on the order identifiers were interned in, so
// it is stable across processes.
func SetID(set *odata.EntitySet) uint64 {
	return xxhash.Sum64String(set.Type.Namespace + "." + set.Name)
}

// CheckSetIDs fails when two entity sets of model would share a key prefix
func CheckSetIDs(model *odata.Model) error {
	return checkSetIDs(model, SetID)
}

func checkSetIDs(model *odata.Model, id func(*odata.EntitySet) uint64) error {
	seen := make(map[uint64]*odata.EntitySet, len(model.EntitySets))
	for _, set := range model.EntitySets {
		v := id(set)
		if other, ok := seen[v]; ok {
			return fmt.Errorf("entity sets %s and %s share set id %016x", other.Name, set.Name, v)
		}
		seen[v] = set
	}
	return nil
}

// EncodePrefix returns the key prefix shared by every entity of set
func (e *KeyEncoder) EncodePrefix(set *odata.EntitySet) []byte {
	prefix := make([]byte, 9)
	prefix[0] = entityPrefix
	binary.BigEndian.PutUint64(prefix[1:], SetID(set))
	return prefix
}

// EncodeKey returns the key of the entity of set whose key property is key
func (e *KeyEncoder) EncodeKey(set *odata.EntitySet, key interface{}) ([]byte, error) {
	keyProp := set.Type.Key
	if keyProp == nil {
		return nil, fmt.Errorf("entity type %s has no key", set.Type.QualifiedName())
	}
	if key == nil {
		return nil, fmt.Errorf("%s: key %s is null", set.Name, keyProp.Name)
	}
	v, err := odata.Coerce(key, keyProp.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: key %s: %w", set.Name, keyProp.Name, err)
	}
	value, err := encodeValue(v)
	if err != nil {
		return nil, fmt.Errorf("%s: key %s: %w", set.Name, keyProp.Name, err)
	}
	return concatBytes(e.EncodePrefix(set), value), nil
}

// encodeValue encodes an order-preserving key value
func encodeValue(v interface{}) ([]byte, error) {
	if i, ok := odata.AsInt64(v); ok {
		return encodeInt64(i), nil
	}
	switch val := v.(type) {
	case string:
		return []byte(val), nil
	case uuid.UUID:
		return val[:], nil
	case time.Time:
		return encodeInt64(val.UnixNano()), nil
	case bool:
		if val {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case float32:
		return encodeFloat64(float64(val)), nil
	case float64:
		return encodeFloat64(val), nil
	}
	return nil, fmt.Errorf("unsupported key value %T", v)
}

// encodeInt64 flips the sign bit so negative values sort first
func encodeInt64(i int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(i)^(1<<63))
	return buf
}

// encodeFloat64 maps IEEE 754 bits onto an order-preserving unsigned value
func encodeFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

func concatBytes(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
