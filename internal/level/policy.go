package level

// Policy determines how many existing levels a new level absorbs.
type Policy interface {
	// Pick returns the number of levels, counted from the newest, that
	// should be folded into a new level of size n. sizes is ordered newest
	// first.
	Pick(n uint64, sizes []uint64) int
}

// CarryMergePolicy folds the next older level into the new one while the
// new level is at least 1/Ratio of its size. Each fold adds to the new
// level, so a long run of small levels collapses at once.
//
// With Ratio 2 level sizes at least halve from one level to the next, which
// keeps the number of levels logarithmic in the number of entries.
type CarryMergePolicy struct {
	Ratio uint64
}

// DefaultPolicy returns the policy used for both commit and changed-path levels.
func DefaultPolicy() *CarryMergePolicy {
	return &CarryMergePolicy{Ratio: 2}
}

func (p *CarryMergePolicy) Pick(n uint64, sizes []uint64) int {
	ratio := p.Ratio
	if ratio == 0 {
		ratio = 2
	}
	k := 0
	for k < len(sizes) && n*ratio >= sizes[k] {
		n += sizes[k]
		k++
	}
	return k
}

// Apply returns the level sizes after writing a level of size n on top of
// sizes with policy p. It is the pure form of what the index does with
// segment files and is handy for reasoning about a chain's shape.
func Apply(p Policy, n uint64, sizes []uint64) []uint64 {
	if n == 0 {
		return sizes
	}
	k := p.Pick(n, sizes)
	for _, s := range sizes[:k] {
		n += s
	}
	out := make([]uint64, 0, len(sizes)-k+1)
	out = append(out, n)
	return append(out, sizes[k:]...)
}
