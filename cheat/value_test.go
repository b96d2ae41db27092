package cheat

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValueType(t *testing.T) {
	for name, want := range map[string]ValueType{
		"bool":    TypeBool,
		"int32":   TypeInt32,
		"int":     TypeInt32,
		"Float":   TypeFloat32,
		"float32": TypeFloat32,
	} {
		got, err := ParseValueType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}

	_, err := ParseValueType("currency")
	assert.ErrorIs(t, err, ErrInvalidValueType)
}

func TestEncode(t *testing.T) {
	assert.Equal(t, []byte{1}, Encode(TypeBool, true))
	assert.Equal(t, []byte{0}, Encode(TypeBool, false))

	assert.Equal(t, []byte{0xE7, 0x03, 0, 0}, Encode(TypeInt32, 999))
	assert.Equal(t, []byte{0xE7, 0x03, 0, 0}, Encode(TypeInt32, float64(999)))
	assert.Equal(t, []byte{0xE7, 0x03, 0, 0}, Encode(TypeInt32, json.Number("999")))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, Encode(TypeInt32, -1))

	assert.Equal(t, math.Float32bits(1.5), leUint32(Encode(TypeFloat32, 1.5)))
	assert.Equal(t, math.Float32bits(3), leUint32(Encode(TypeFloat32, 3)))
	assert.Equal(t, math.Float32bits(2.25), leUint32(Encode(TypeFloat32, json.Number("2.25"))))
}

func TestEncode_Float32FromWideIntegers(t *testing.T) {
	want := math.Float32bits(3000000000)
	for _, v := range []any{3000000000, uint(3000000000), uint32(3000000000), int64(3000000000), uint64(3000000000)} {
		assert.Equal(t, want, leUint32(Encode(TypeFloat32, v)), "%T", v)
	}
	assert.Equal(t, math.Float32bits(-70000), leUint32(Encode(TypeFloat32, int32(-70000))))
}

func TestEncode_DefaultsOnCoercionFailure(t *testing.T) {
	assert.Equal(t, []byte{0}, Encode(TypeBool, "yes"))
	assert.Equal(t, []byte{0}, Encode(TypeBool, 1))
	assert.Equal(t, []byte{0, 0, 0, 0}, Encode(TypeInt32, "999"))
	assert.Equal(t, []byte{0, 0, 0, 0}, Encode(TypeInt32, 1.5))
	assert.Equal(t, []byte{0, 0, 0, 0}, Encode(TypeInt32, int64(math.MaxInt32)+1))
	assert.Equal(t, []byte{0, 0, 0, 0}, Encode(TypeFloat32, true))
	assert.Nil(t, Encode(ValueType("currency"), 1))
}

func TestEncode_WidthMatchesSize(t *testing.T) {
	for _, vt := range []ValueType{TypeBool, TypeInt32, TypeFloat32} {
		for _, v := range []any{nil, true, 7, 2.5, "x", []int{1}} {
			assert.Len(t, Encode(vt, v), int(vt.Size()), "%s %v", vt, v)
		}
	}
}

func TestDecode(t *testing.T) {
	v, err := Decode(TypeInt32, []byte{0xE7, 0x03, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, int32(999), v)

	v, err = Decode(TypeBool, []byte{1})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = Decode(TypeFloat32, Encode(TypeFloat32, 0.5))
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), v)

	_, err = Decode(TypeInt32, []byte{1})
	assert.ErrorIs(t, err, ErrInvalidValueType)
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
