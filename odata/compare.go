package odata

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CompareValues compares two values and returns:
//
//	-1 if left < right
//	 0 if left == right
//	 1 if left > right
//
// This function handles all runtime value types of the model:
// - Integers of every width and floats, compared numerically across types
// - string, bool, time.Time, uuid.UUID
// - Nil values (nil is less than any non-nil value)
//
// Values of unrelated types are ordered by their type rank so sorting
// a mixed column is still deterministic.
func CompareValues(left, right interface{}) int {
	// Handle nil
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	// Handle numeric comparisons
	if l, ok := asInt64(left); ok {
		if r, ok := asInt64(right); ok {
			return compareInt64s(l, r)
		}
	}
	if l, ok := asFloat64(left); ok {
		if r, ok := asFloat64(right); ok {
			return compareFloats(l, r)
		}
	}

	switch l := left.(type) {
	case string:
		if r, ok := right.(string); ok {
			return strings.Compare(l, r)
		}
	case bool:
		if r, ok := right.(bool); ok {
			if !l && r {
				return -1
			} else if l && !r {
				return 1
			}
			return 0
		}
	case time.Time:
		if r, ok := right.(time.Time); ok {
			if l.Before(r) {
				return -1
			} else if l.After(r) {
				return 1
			}
			return 0
		}
	case uuid.UUID:
		if r, ok := right.(uuid.UUID); ok {
			return bytes.Compare(l[:], r[:])
		}
	}

	// Type mismatch: order by type rank, then by string form
	if lr, rr := typeRank(left), typeRank(right); lr != rr {
		return compareInt64s(int64(lr), int64(rr))
	}
	return strings.Compare(fmt.Sprintf("%v", left), fmt.Sprintf("%v", right))
}

// ValuesEqual checks if two values are equal.
// It uses CompareValues for consistent equality checking.
func ValuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if typeRank(a) != typeRank(b) {
		return false
	}
	return CompareValues(a, b) == 0
}

// typeRank groups runtime types for cross-type ordering
func typeRank(v interface{}) int {
	if _, ok := asFloat64(v); ok {
		return 1
	}
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 2
	case string:
		return 3
	case time.Time:
		return 4
	case uuid.UUID:
		return 5
	default:
		return 6
	}
}

// asInt64 widens any integer value to int64
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

// asFloat64 widens any numeric value to float64
func asFloat64(v interface{}) (float64, bool) {
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

// AsInt64 returns v as an int64 if it holds an integer
func AsInt64(v interface{}) (int64, bool) {
	return asInt64(v)
}

// AsFloat64 returns v as a float64 if it holds any numeric value
func AsFloat64(v interface{}) (float64, bool) {
	return asFloat64(v)
}

// compareInt64s compares two int64 values
func compareInt64s(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// compareFloats compares two float64 values
func compareFloats(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}
