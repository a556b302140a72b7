package revwalk

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/revindex/model"
)

// IsAncestor reports whether a is b or an ancestor of b.
//
// The search never descends below a: positions lower than a, and commits
// whose generation does not exceed a's (other than a itself), cannot have a
// as an ancestor.
func IsAncestor(g Graph, a, b model.Position) bool {
	if a == b {
		return true
	}
	if a > b {
		return false
	}
	genA := g.Generation(a)
	if g.Generation(b) <= genA {
		return false
	}

	visited := roaring.New()
	stack := []model.Position{b}
	for len(stack) > 0 {
		pos := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range g.Parents(pos) {
			if p == a {
				return true
			}
			if p < a || g.Generation(p) <= genA {
				continue
			}
			if visited.CheckedAdd(uint32(p)) {
				stack = append(stack, p)
			}
		}
	}
	return false
}

// Heads returns the candidates that are not ancestors of another candidate,
// in descending position order.
func Heads(g Graph, candidates []model.Position) []model.Position {
	if len(candidates) == 0 {
		return nil
	}

	set := roaring.New()
	minGen := ^uint32(0)
	for _, c := range candidates {
		set.Add(uint32(c))
		minGen = min(minGen, g.Generation(c))
	}
	minPos := model.Position(set.Minimum())

	q := &workQueue{}
	set.Iterate(func(x uint32) bool {
		q.push(workItem{pos: model.Position(x)})
		return true
	})
	visited := roaring.New()
	for q.Len() > 0 {
		item := q.pop()
		q.popSame(item.pos, func(workItem) {})
		for _, p := range g.Parents(item.pos) {
			if p < minPos || g.Generation(p) < minGen {
				continue
			}
			set.Remove(uint32(p))
			if visited.CheckedAdd(uint32(p)) {
				q.push(workItem{pos: p})
			}
		}
	}

	heads := make([]model.Position, 0, set.GetCardinality())
	set.Iterate(func(x uint32) bool {
		heads = append(heads, model.Position(x))
		return true
	})
	slices.Reverse(heads)
	return heads
}

// CommonAncestors returns the heads of the set of commits that are ancestors
// of both a set and b set, in descending position order.
func CommonAncestors(g Graph, as, bs []model.Position) []model.Position {
	q := &workQueue{}
	live := 0
	for _, a := range as {
		q.push(workItem{pos: a, flags: flagA})
		live++
	}
	for _, b := range bs {
		q.push(workItem{pos: b, flags: flagB})
		live++
	}

	var found []model.Position
	for live > 0 {
		item := q.pop()
		flags := item.flags
		if flags&flagStale == 0 {
			live--
		}
		q.popSame(item.pos, func(dup workItem) {
			if dup.flags&flagStale == 0 {
				live--
			}
			flags |= dup.flags
		})

		if flags&(flagA|flagB) == flagA|flagB && flags&flagStale == 0 {
			found = append(found, item.pos)
			flags |= flagStale
		}
		for _, p := range g.Parents(item.pos) {
			q.push(workItem{pos: p, flags: flags})
			if flags&flagStale == 0 {
				live++
			}
		}
	}
	return Heads(g, found)
}
