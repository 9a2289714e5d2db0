package odata

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Valid runtime value types:
// - bool
// - uint8, int16, int32, int64 (plain int is accepted on input)
// - float32, float64
// - string
// - uuid.UUID
// - time.Time
// - nil

// Largest integers a float holds exactly (the width of the significand)
const (
	maxExactSingle = 1 << 24
	maxExactDouble = 1 << 53
)

// CoercionError reports a value that cannot be represented in a target type
type CoercionError struct {
	Value  interface{}
	Target TypeRef
	Reason string
}

func (e *CoercionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot coerce %v (%T) to %s: %s", e.Value, e.Value, e.Target, e.Reason)
	}
	return fmt.Sprintf("cannot coerce %v (%T) to %s", e.Value, e.Value, e.Target)
}

// Coerce converts v to the canonical runtime representation of target.
// Integers widen to larger integers and to floating point when the float
// holds them exactly, Single widens to Double, and strings convert to Guid and DateTimeOffset. Narrowing is
// allowed only when the value fits. nil is accepted for nullable or untyped
// targets.
func Coerce(v interface{}, target TypeRef) (interface{}, error) {
	if v == nil {
		if target.Nullable || target.Kind == KindNone {
			return nil, nil
		}
		return nil, &CoercionError{Value: v, Target: target, Reason: "type is not nullable"}
	}
	if target.Collection || target.Kind == KindEntity {
		return nil, &CoercionError{Value: v, Target: target, Reason: "not a primitive type"}
	}

	switch target.Kind {
	case KindNone:
		return v, nil

	case KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}

	case KindByte, KindInt16, KindInt32, KindInt64:
		i, ok := asInt64(v)
		if !ok {
			break
		}
		return narrowInt(i, v, target)

	case KindSingle:
		if i, ok := asInt64(v); ok {
			if i < -maxExactSingle || i > maxExactSingle {
				return nil, &CoercionError{Value: v, Target: target, Reason: "not exactly representable"}
			}
			return float32(i), nil
		}
		switch f := v.(type) {
		case float32:
			return f, nil
		case float64:
			if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
				return nil, &CoercionError{Value: v, Target: target, Reason: "out of range"}
			}
			return float32(f), nil
		}

	case KindDouble:
		if i, ok := asInt64(v); ok {
			if i < -maxExactDouble || i > maxExactDouble {
				return nil, &CoercionError{Value: v, Target: target, Reason: "not exactly representable"}
			}
			return float64(i), nil
		}
		if f, ok := asFloat64(v); ok {
			return f, nil
		}

	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}

	case KindGuid:
		switch g := v.(type) {
		case uuid.UUID:
			return g, nil
		case string:
			parsed, err := uuid.Parse(g)
			if err != nil {
				return nil, &CoercionError{Value: v, Target: target, Reason: err.Error()}
			}
			return parsed, nil
		}

	case KindDateTimeOffset:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, &CoercionError{Value: v, Target: target, Reason: err.Error()}
			}
			return parsed, nil
		}
	}

	return nil, &CoercionError{Value: v, Target: target}
}

// narrowInt converts an integer to the width of target, checking the range
func narrowInt(i int64, orig interface{}, target TypeRef) (interface{}, error) {
	switch target.Kind {
	case KindByte:
		if i < 0 || i > math.MaxUint8 {
			return nil, &CoercionError{Value: orig, Target: target, Reason: "out of range"}
		}
		return uint8(i), nil
	case KindInt16:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, &CoercionError{Value: orig, Target: target, Reason: "out of range"}
		}
		return int16(i), nil
	case KindInt32:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, &CoercionError{Value: orig, Target: target, Reason: "out of range"}
		}
		return int32(i), nil
	default:
		return i, nil
	}
}

// FormatLiteral renders a value in OData literal syntax
func FormatLiteral(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + escapeQuotes(val) + "'"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case uuid.UUID:
		return val.String()
	case float32:
		return fmt.Sprintf("%g", val)
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// escapeQuotes doubles single quotes as OData string literals require
func escapeQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
