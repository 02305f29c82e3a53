package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("integer overflow")

// IntToUint32 converts int to uint32 safely.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("%d cannot be converted to uint32 (negative): %w", v, ErrOverflow)
	}
	// On 64-bit systems, int can exceed uint32 max; on 32-bit, this is always false
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%d cannot be converted to uint32 (too large): %w", v, ErrOverflow)
	}
	return uint32(v), nil
}

// Uint32ToInt converts uint32 to int safely. It only fails where int is
// 32 bits wide.
func Uint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, fmt.Errorf("%d cannot be converted to int (too large): %w", v, ErrOverflow)
	}
	return int(v), nil
}
