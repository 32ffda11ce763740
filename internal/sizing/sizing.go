// Package sizing provides overflow-checked arithmetic for byte offsets.
package sizing

import "math"

// AddUint64 returns a + b and reports whether the sum fits in uint64.
func AddUint64(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// RoundBlock rounds n up to the next multiple of blockSize, which must
// be a power of two. Reports whether the result fits in uint64.
func RoundBlock(n, blockSize uint64) (uint64, bool) {
	sum, ok := AddUint64(n, blockSize-1)
	if !ok {
		return 0, false
	}
	return sum &^ (blockSize - 1), true
}

// FitsInt64 reports whether n is representable as a non-negative int64.
func FitsInt64(n uint64) bool {
	return n <= math.MaxInt64
}
