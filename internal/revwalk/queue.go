package revwalk

import (
	"container/heap"

	"github.com/hupe1980/revindex/model"
)

// Graph is the read view of a commit graph needed by the walks.
type Graph interface {
	NumCommits() uint32
	Generation(pos model.Position) uint32
	Parents(pos model.Position) []model.Position
}

const (
	flagUnwanted uint8 = 1 << iota
	flagA
	flagB
	flagStale
)

type workItem struct {
	pos   model.Position
	dist  uint64
	flags uint8
}

// workQueue is a max-heap of work items ordered by position.
type workQueue []workItem

func (q workQueue) Len() int { return len(q) }

func (q workQueue) Less(i, j int) bool {
	if q[i].pos != q[j].pos {
		return q[i].pos > q[j].pos
	}
	return q[i].dist < q[j].dist
}

func (q workQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *workQueue) Push(x any) { *q = append(*q, x.(workItem)) }

func (q *workQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func (q *workQueue) push(item workItem) { heap.Push(q, item) }

func (q *workQueue) pop() workItem { return heap.Pop(q).(workItem) }

// popSame pops every remaining item at pos.
func (q *workQueue) popSame(pos model.Position, fn func(workItem)) {
	for q.Len() > 0 && (*q)[0].pos == pos {
		fn(q.pop())
	}
}

// selectParents returns the parents whose index lies within r.
func selectParents(parents []model.Position, r model.ParentsRange) []model.Position {
	if r.IsFull() {
		return parents
	}
	start := min(int(r.Start), len(parents))
	end := min(int(r.End), len(parents))
	if start >= end {
		return nil
	}
	return parents[start:end]
}
