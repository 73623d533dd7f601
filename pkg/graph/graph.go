// Package graph holds the routable multi-floor adjacency structure.
package graph

import (
	"slices"

	"github.com/ritzau/wayfinder/pkg/model"
)

// Neighbor is one adjacency entry.
type Neighbor struct {
	ID     model.NodeID
	Weight float64
}

// Graph is an undirected weighted adjacency list keyed by node id. Edges are
// stored once per direction and never deduplicated: adding the same edge
// twice leaves two parallel entries on both ends.
type Graph struct {
	adj   map[model.NodeID][]Neighbor
	nodes map[model.NodeID]model.Waypoint
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		adj:   make(map[model.NodeID][]Neighbor),
		nodes: make(map[model.NodeID]model.Waypoint),
	}
}

// AddNode registers a located node. Re-adding a node updates its position
// and label but keeps its edges.
func (g *Graph) AddNode(w model.Waypoint) {
	g.nodes[w.ID] = w
	if _, ok := g.adj[w.ID]; !ok {
		g.adj[w.ID] = nil
	}
}

// AddEdge appends b to a's adjacency and a to b's, creating entries for
// unknown nodes. Weights must be non-negative.
func (g *Graph) AddEdge(a, b model.NodeID, weight float64) {
	g.adj[a] = append(g.adj[a], Neighbor{ID: b, Weight: weight})
	g.adj[b] = append(g.adj[b], Neighbor{ID: a, Weight: weight})
}

// HasNode reports whether id has an adjacency entry.
func (g *Graph) HasNode(id model.NodeID) bool {
	_, ok := g.adj[id]
	return ok
}

// Neighbors returns id's adjacency entries in insertion order. The slice is
// owned by the graph.
func (g *Graph) Neighbors(id model.NodeID) []Neighbor {
	return g.adj[id]
}

// Node returns the waypoint registered for id.
func (g *Graph) Node(id model.NodeID) (model.Waypoint, bool) {
	w, ok := g.nodes[id]
	return w, ok
}

// Nodes lists every node id in order.
func (g *Graph) Nodes() []model.NodeID {
	ids := make([]model.NodeID, 0, len(g.adj))
	for id := range g.adj {
		ids = append(ids, id)
	}
	model.SortNodeIDs(ids)
	return ids
}

// Len is the number of nodes.
func (g *Graph) Len() int {
	return len(g.adj)
}

// EdgeCount counts undirected edges, parallel ones included.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, nbrs := range g.adj {
		n += len(nbrs)
	}
	return n / 2
}

// EdgeWeight returns the lightest edge between a and b.
func (g *Graph) EdgeWeight(a, b model.NodeID) (float64, bool) {
	best, found := 0.0, false
	for _, nb := range g.adj[a] {
		if nb.ID == b && (!found || nb.Weight < best) {
			best, found = nb.Weight, true
		}
	}
	return best, found
}

// PathWeight sums the lightest edge of each hop. It fails when a hop has no
// edge.
func (g *Graph) PathWeight(path []model.NodeID) (float64, bool) {
	total := 0.0
	for i := 1; i < len(path); i++ {
		w, ok := g.EdgeWeight(path[i-1], path[i])
		if !ok {
			return 0, false
		}
		total += w
	}
	return total, true
}

// RemoveNode deletes id and every edge touching it.
func (g *Graph) RemoveNode(id model.NodeID) {
	for _, nb := range g.adj[id] {
		if nb.ID == id {
			continue
		}
		g.adj[nb.ID] = slices.DeleteFunc(g.adj[nb.ID], func(n Neighbor) bool { return n.ID == id })
	}
	delete(g.adj, id)
	delete(g.nodes, id)
}
