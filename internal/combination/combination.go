// Package combination converts between a lexicographic rank and the k-subset
// of an n-item universe it names, without materializing the subset list.
//
// Subsets are written as strictly descending index sequences and ordered from
// highest to lowest: for n=6, k=4 rank 0 is [5 4 3 2] and rank 14 is [3 2 1 0].
package combination

import (
	"errors"
	"math"
	"math/bits"
)

// ErrOverflow is returned when a combination count does not fit in a uint64.
var ErrOverflow = errors.New("combination count overflows uint64")

// Count returns the number of k-subsets of an n-item universe.
// It returns 0 when k > n or either argument is negative, and saturates at
// math.MaxUint64 when the exact value does not fit.
func Count(n, k int) uint64 {
	c, err := CountChecked(n, k)
	if err != nil {
		return math.MaxUint64
	}
	return c
}

// CountChecked is Count with explicit overflow reporting.
func CountChecked(n, k int) (uint64, error) {
	if n < 0 || k < 0 || k > n {
		return 0, nil
	}
	if k > n-k {
		k = n - k
	}

	// result*(n-i+1)/i is always an exact binomial, so the 128-bit
	// intermediate only needs to be checked against the divisor.
	result := uint64(1)
	for i := 1; i <= k; i++ {
		hi, lo := bits.Mul64(result, uint64(n-i+1))
		if hi >= uint64(i) {
			return 0, ErrOverflow
		}
		result, _ = bits.Div64(hi, lo, uint64(i))
	}
	return result, nil
}

// Unrank returns the subset at position rank when all k-subsets of [0, n)
// are listed in descending-subset order. The result is strictly descending.
// An empty slice is returned when rank is outside [0, Count(n, k)).
func Unrank(rank uint64, n, k int) []int {
	total, err := CountChecked(n, k)
	if err != nil || rank >= total {
		return []int{}
	}

	// Position in the ascending combinatorial number system, where
	// [k-1 ... 0] is 0 and [n-1 ... n-k] is total-1.
	remaining := total - 1 - rank

	subset := make([]int, 0, k)
	bound := n
	for size := k; size > 0; size-- {
		// Largest element e < bound whose lower subsets still fit in remaining.
		e := bound - 1
		for e >= size && Count(e, size) > remaining {
			e--
		}
		remaining -= Count(e, size)
		subset = append(subset, e)
		bound = e
	}

	return subset
}

// Rank is the inverse of Unrank. The subset must be strictly descending with
// every element in [0, n); ok is false otherwise.
func Rank(subset []int, n int) (rank uint64, ok bool) {
	k := len(subset)
	total, err := CountChecked(n, k)
	if err != nil || total == 0 {
		return 0, false
	}

	var position uint64
	prev := n
	for i, e := range subset {
		if e < 0 || e >= prev {
			return 0, false
		}
		position += Count(e, k-i)
		prev = e
	}

	return total - 1 - position, true
}
