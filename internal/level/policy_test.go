package level

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

// build returns the level sizes, oldest first, after writing each batch on
// top of a chain holding only the root commit.
func build(p Policy, batches ...uint64) []uint64 {
	sizes := []uint64{1}
	for _, n := range batches {
		sizes = Apply(p, n, sizes)
	}
	slices.Reverse(sizes)
	return sizes
}

func TestCarryMergePolicy(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name    string
		batches []uint64
		want    []uint64
	}{
		{name: "Root Only", batches: nil, want: []uint64{1}},
		{name: "Two Singles", batches: []uint64{1, 1}, want: []uint64{3}},
		{name: "Decreasing", batches: []uint64{32, 16, 8, 4, 2}, want: []uint64{57, 6}},
		{name: "Strictly Halving", batches: []uint64{30, 15, 7, 3, 1}, want: []uint64{31, 15, 7, 3, 1}},
		{name: "Equal Batches", batches: []uint64{10, 10, 10, 10, 10, 10, 10, 10, 10}, want: []uint64{71, 20}},
		{name: "Increasing", batches: []uint64{1, 2, 4, 8, 16, 32}, want: []uint64{64}},
		{name: "Single Large", batches: []uint64{100}, want: []uint64{101}},
		{name: "Empty Batch", batches: []uint64{30, 0, 0}, want: []uint64{31}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, build(p, tt.batches...))
		})
	}
}

func TestCarryMergePolicy_Invariants(t *testing.T) {
	p := DefaultPolicy()
	sizes := []uint64{1}
	var total uint64 = 1
	for i := uint64(1); i <= 500; i++ {
		n := i%7 + 1
		sizes = Apply(p, n, sizes)
		total += n

		var sum uint64
		for j, s := range sizes {
			sum += s
			if j > 0 {
				// Older levels are more than twice the size of newer ones.
				assert.Greater(t, s, 2*sizes[j-1])
			}
		}
		assert.Equal(t, total, sum)
		assert.LessOrEqual(t, len(sizes), 12)
	}
}

func TestCarryMergePolicy_Pick(t *testing.T) {
	p := &CarryMergePolicy{Ratio: 2}

	assert.Equal(t, 0, p.Pick(1, nil))
	assert.Equal(t, 0, p.Pick(1, []uint64{3}))
	assert.Equal(t, 1, p.Pick(2, []uint64{4, 100}))
	assert.Equal(t, 2, p.Pick(2, []uint64{4, 12}))
}
