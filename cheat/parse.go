package cheat

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseValue reads a value typed on a command line as t.
// Integers accept a 0x prefix.
func ParseValue(t ValueType, s string) (any, error) {
	switch t {
	case TypeBool:
		return strconv.ParseBool(s)
	case TypeInt32:
		v, err := strconv.ParseInt(s, 0, 32)
		return int32(v), err
	case TypeFloat32:
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidValueType, t)
}

// ParseOffsets reads a comma separated offset list such as "0x23df1b0,0x38".
// Surrounding brackets and spaces are ignored.
func ParseOffsets(s string) ([]uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	var offsets []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		off, err := strconv.ParseUint(part, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q: %w", part, err)
		}
		offsets = append(offsets, off)
	}

	return offsets, nil
}
