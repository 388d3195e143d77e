// Package mathutil provides small numeric helpers shared by the upmixer:
// analysis window sizing and decibel conversion.
package mathutil

import (
	"errors"
	"fmt"
)

// Window sizing constants.
const (
	// minWindowSize is the smallest analysis window that still has steerable
	// bins between DC and Nyquist.
	minWindowSize = 4

	// largestFactor is the largest prime factor allowed in a window size.
	// gonum's mixed-radix FFT handles factors up to 11 without falling back
	// to the slow generic path.
	largestFactor = 11
)

// ErrWindowSize indicates that no usable window size could be derived.
var ErrWindowSize = errors.New("invalid window size")

// IdealWindowSize returns the smallest transform-friendly window size that
// is at least minSize samples. The result is always even, so the window has
// an exact temporal midpoint, and factors into primes no larger than 11.
func IdealWindowSize(minSize int) (int, error) {
	if minSize < 1 {
		return 0, fmt.Errorf("%w: minimum size must be positive, got %d", ErrWindowSize, minSize)
	}

	n := minSize
	if n < minWindowSize {
		n = minWindowSize
	}
	if n%2 != 0 {
		n++
	}

	// Transform-friendly even sizes are dense; the scan terminates quickly
	// (the gap to the next such size is tiny compared to the size itself).
	for ; ; n += 2 {
		if IsTransformFriendly(n) {
			return n, nil
		}
	}
}

// IsTransformFriendly reports whether n factors into primes no larger
// than 11, which keeps the forward and inverse transforms on gonum's fast
// mixed-radix paths.
func IsTransformFriendly(n int) bool {
	if n < 1 {
		return false
	}
	for _, p := range []int{2, 3, 5, 7, 11} {
		for n%p == 0 {
			n /= p
		}
	}
	return n == 1
}
