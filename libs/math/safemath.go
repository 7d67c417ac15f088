package math

import (
	"errors"
	"math"
)

var ErrOverflowInt64 = errors.New("int64 overflow")

// SafeAdd adds two int64 numbers. If there is an overflow, the function will
// return -1, true.
func SafeAdd(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return -1, true
	} else if b < 0 && a < math.MinInt64-b {
		return -1, true
	}
	return a + b, false
}

// SafeSub subtracts two int64 numbers. If there is an overflow, the function
// will return -1, true.
func SafeSub(a, b int64) (int64, bool) {
	if b > 0 && a < math.MinInt64+b {
		return -1, true
	} else if b < 0 && a > math.MaxInt64+b {
		return -1, true
	}
	return a - b, false
}

// SafeAddClip performs SafeAdd, however if there is an overflow, it will
// return the maximum int64 value.
func SafeAddClip(a, b int64) int64 {
	c, overflow := SafeAdd(a, b)
	if overflow {
		if b < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return c
}

// SafeSubClip performs SafeSub but will clip the result to either the minimum
// or maximum int64 number.
func SafeSubClip(a, b int64) int64 {
	c, overflow := SafeSub(a, b)
	if overflow {
		if b > 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return c
}

// SafeMul multiplies two int64 numbers. It returns true if the resultant
// overflows.
func SafeMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}

	absOfB := b
	if b < 0 {
		absOfB = -b
	}

	absOfA := a
	if a < 0 {
		absOfA = -a
	}

	if absOfA > math.MaxInt64/absOfB {
		return 0, true
	}

	return a * b, false
}
