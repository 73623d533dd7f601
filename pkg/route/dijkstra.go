// Package route finds shortest routes through the building graph and
// reads and writes the exported route document.
//
// ShortestPath is Dijkstra's algorithm over a binary heap with lazy
// decrease-key: a node may be queued more than once, stale entries are
// skipped when popped and a node is settled exactly once. Runtime is
// O((V+E) log V).
//
// Equal distances pop in node id order and then in push order, so identical
// inputs always produce the identical route.
package route

import (
	"container/heap"
	"slices"

	"github.com/ritzau/wayfinder/pkg/graph"
	"github.com/ritzau/wayfinder/pkg/model"
)

// ShortestPath returns the lightest route from start to end. The boolean is
// false, with a nil path and an infinite distance, when either node is
// absent or end is unreachable.
func ShortestPath(g *graph.Graph, start, end model.NodeID) (model.Route, bool) {
	if !g.HasNode(start) || !g.HasNode(end) {
		return model.NoRoute(), false
	}

	r := &runner{
		g:       g,
		dist:    map[model.NodeID]float64{start: 0},
		prev:    make(map[model.NodeID]model.NodeID),
		settled: make(map[model.NodeID]bool),
	}
	r.push(start, 0)

	if !r.run(end) {
		return model.NoRoute(), false
	}
	return model.Route{Path: r.path(start, end), Distance: r.dist[end]}, true
}

// runner holds the mutable state of one search.
type runner struct {
	g       *graph.Graph
	dist    map[model.NodeID]float64
	prev    map[model.NodeID]model.NodeID
	settled map[model.NodeID]bool
	pq      queue
	seq     int
}

func (r *runner) push(id model.NodeID, d float64) {
	heap.Push(&r.pq, &item{node: id, dist: d, seq: r.seq})
	r.seq++
}

// run settles nodes until end is settled or the queue drains.
func (r *runner) run(end model.NodeID) bool {
	for r.pq.Len() > 0 {
		it := heap.Pop(&r.pq).(*item)
		if r.settled[it.node] {
			continue
		}
		r.settled[it.node] = true
		if it.node == end {
			return true
		}
		r.relax(it.node, it.dist)
	}
	return false
}

func (r *runner) relax(u model.NodeID, du float64) {
	for _, nb := range r.g.Neighbors(u) {
		if r.settled[nb.ID] {
			continue
		}
		nd := du + nb.Weight
		if best, seen := r.dist[nb.ID]; seen && nd >= best {
			continue
		}
		r.dist[nb.ID] = nd
		r.prev[nb.ID] = u
		r.push(nb.ID, nd)
	}
}

// path walks predecessors back from end.
func (r *runner) path(start, end model.NodeID) []model.NodeID {
	p := []model.NodeID{end}
	for n := end; n != start; {
		n = r.prev[n]
		p = append(p, n)
	}
	slices.Reverse(p)
	return p
}

type item struct {
	node model.NodeID
	dist float64
	seq  int
}

// queue is a min-heap on (dist, node, seq).
type queue []*item

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	if c := q[i].node.Compare(q[j].node); c != 0 {
		return c < 0
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(*item)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}
