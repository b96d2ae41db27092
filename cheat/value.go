package cheat

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidValueType is returned for an unknown value type or a size that does not match it
var ErrInvalidValueType = errors.New("invalid value type")

// ValueType is the declared type of a cheat payload
type ValueType string

const (
	TypeBool    ValueType = "bool"
	TypeInt32   ValueType = "int32"
	TypeFloat32 ValueType = "float32"
)

// aliases accepted from cheat tables written for older tooling
var valueTypeAliases = map[string]ValueType{
	"bool":    TypeBool,
	"boolean": TypeBool,
	"int32":   TypeInt32,
	"int":     TypeInt32,
	"float32": TypeFloat32,
	"float":   TypeFloat32,
}

// ParseValueType maps a declared type name to a ValueType
func ParseValueType(name string) (ValueType, error) {
	t, ok := valueTypeAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidValueType, name)
	}
	return t, nil
}

// Size returns the byte width written for the type
func (t ValueType) Size() uint32 {
	switch t {
	case TypeBool:
		return 1
	case TypeInt32, TypeFloat32:
		return 4
	}
	return 0
}

// Encode converts a dynamic value into little-endian bytes of t.Size() length.
// A value that cannot be coerced to t encodes as the zero value (false, 0, 0.0)
// so one bad entry never aborts a tick.
func Encode(t ValueType, v any) []byte {
	switch t {
	case TypeBool:
		b, _ := v.(bool)
		if b {
			return []byte{1}
		}
		return []byte{0}

	case TypeInt32:
		out := make([]byte, 4)
		i, _ := asInt32(v)
		binary.LittleEndian.PutUint32(out, uint32(i))
		return out

	case TypeFloat32:
		out := make([]byte, 4)
		f, _ := asFloat64(v)
		binary.LittleEndian.PutUint32(out, math.Float32bits(float32(f)))
		return out
	}

	return nil
}

// Decode converts bytes read from the target back into a Go value of t
func Decode(t ValueType, data []byte) (any, error) {
	if uint32(len(data)) != t.Size() || t.Size() == 0 {
		return nil, fmt.Errorf("%w: %d bytes for %q", ErrInvalidValueType, len(data), t)
	}

	switch t {
	case TypeBool:
		return data[0] != 0, nil
	case TypeInt32:
		return int32(binary.LittleEndian.Uint32(data)), nil
	case TypeFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidValueType, t)
}

func asInt32(v any) (int32, bool) {
	var i int64
	switch n := v.(type) {
	case int:
		i = int64(n)
	case int8:
		i = int64(n)
	case int16:
		i = int64(n)
	case int32:
		i = int64(n)
	case int64:
		i = n
	case uint:
		if uint64(n) > math.MaxInt32 {
			return 0, false
		}
		i = int64(n)
	case uint8:
		i = int64(n)
	case uint16:
		i = int64(n)
	case uint32:
		i = int64(n)
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		i = int64(n)
	case float32:
		return asInt32(float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		i = int64(n)
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, false
		}
		i = parsed
	default:
		return 0, false
	}

	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}
	return int32(i), true
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}

	return 0, false
}
