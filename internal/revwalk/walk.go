package revwalk

import (
	"iter"
	"slices"

	"github.com/hupe1980/revindex/model"
)

// Walk yields the ancestors of heads (heads included) that are not ancestors
// of roots, in descending position order. Only parent edges selected by
// parents are followed from wanted commits; exclusion from roots follows all
// parent edges.
func Walk(g Graph, heads, roots []model.Position, parents model.ParentsRange) iter.Seq[model.Position] {
	return func(yield func(model.Position) bool) {
		q := &workQueue{}
		wanted := 0
		for _, h := range heads {
			q.push(workItem{pos: h})
			wanted++
		}
		for _, r := range roots {
			q.push(workItem{pos: r, flags: flagUnwanted})
		}

		for wanted > 0 {
			item := q.pop()
			unwanted := item.flags&flagUnwanted != 0
			if !unwanted {
				wanted--
			}
			q.popSame(item.pos, func(dup workItem) {
				if dup.flags&flagUnwanted != 0 {
					unwanted = true
				} else {
					wanted--
				}
			})

			if unwanted {
				for _, p := range g.Parents(item.pos) {
					q.push(workItem{pos: p, flags: flagUnwanted})
				}
				continue
			}

			if !yield(item.pos) {
				return
			}
			for _, p := range selectParents(g.Parents(item.pos), parents) {
				q.push(workItem{pos: p})
				wanted++
			}
		}
	}
}

// WalkGenerationRange is like Walk but only yields commits whose distance
// from the nearest head, counted in followed parent edges, lies in gen. A
// commit reachable at several distances is yielded once.
//
// Work items are deduplicated by (position, distance) rather than by position
// alone. Distances at or beyond gen.Start are collapsed to the smallest one,
// which subsumes the rest, so the cost is bounded by the number of commits
// times gen.Start+1.
func WalkGenerationRange(g Graph, heads, roots []model.Position, gen model.GenerationRange, parents model.ParentsRange) iter.Seq[model.Position] {
	if gen.IsFull() {
		return Walk(g, heads, roots, parents)
	}
	return func(yield func(model.Position) bool) {
		if gen.Start >= gen.End {
			return
		}

		q := &workQueue{}
		wanted := 0
		for _, h := range heads {
			q.push(workItem{pos: h})
			wanted++
		}
		for _, r := range roots {
			q.push(workItem{pos: r, flags: flagUnwanted})
		}

		var dists []uint64
		for wanted > 0 {
			item := q.pop()
			pos := item.pos
			unwanted := false
			dists = dists[:0]
			collect := func(it workItem) {
				if it.flags&flagUnwanted != 0 {
					unwanted = true
					return
				}
				wanted--
				dists = append(dists, it.dist)
			}
			collect(item)
			q.popSame(pos, collect)

			if unwanted {
				for _, p := range g.Parents(pos) {
					q.push(workItem{pos: p, flags: flagUnwanted})
				}
				continue
			}

			// Items pop in ascending distance order for one position.
			dists = slices.Compact(dists)
			for i, d := range dists {
				if d >= gen.Start {
					dists = dists[:i+1]
					break
				}
			}

			if last := dists[len(dists)-1]; last >= gen.Start && last < gen.End {
				if !yield(pos) {
					return
				}
			}

			ps := selectParents(g.Parents(pos), parents)
			for _, d := range dists {
				if d+1 >= gen.End {
					continue
				}
				for _, p := range ps {
					q.push(workItem{pos: p, dist: d + 1})
					wanted++
				}
			}
		}
	}
}

// Collect drains a walk into a slice.
func Collect(seq iter.Seq[model.Position]) []model.Position {
	return slices.Collect(seq)
}
