package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransformFriendly(t *testing.T) {
	friendly := []int{1, 2, 4, 8, 11, 22, 4410, 4800, 4802, 2 * 3 * 5 * 7 * 11}
	for _, n := range friendly {
		assert.True(t, IsTransformFriendly(n), "n=%d", n)
	}

	// 4804 = 2²·1201 carries a large prime factor.
	unfriendly := []int{0, -4, 13, 26, 4804, 8191}
	for _, n := range unfriendly {
		assert.False(t, IsTransformFriendly(n), "n=%d", n)
	}
}

func TestIdealWindowSize(t *testing.T) {
	tests := []struct {
		minSize int
		want    int
	}{
		// Already friendly and even.
		{4410, 4410},
		{4800, 4800},
		// 13 is prime: the next even friendly size is 14 (2·7).
		{13, 14},
		// Smallest usable window.
		{1, 4},
		{3, 4},
	}

	for _, tt := range tests {
		got, err := IdealWindowSize(tt.minSize)
		require.NoError(t, err, "minSize=%d", tt.minSize)
		assert.Equal(t, tt.want, got, "minSize=%d", tt.minSize)
	}
}

func TestIdealWindowSizeProperties(t *testing.T) {
	for minSize := 1; minSize <= 5000; minSize += 97 {
		got, err := IdealWindowSize(minSize)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, got, minSize)
		assert.Zero(t, got%2, "window %d must be even", got)
		assert.True(t, IsTransformFriendly(got), "window %d must be transform friendly", got)
	}
}

func TestIdealWindowSizeRejectsNonPositive(t *testing.T) {
	_, err := IdealWindowSize(0)
	assert.ErrorIs(t, err, ErrWindowSize)
	_, err = IdealWindowSize(-10)
	assert.ErrorIs(t, err, ErrWindowSize)
}
