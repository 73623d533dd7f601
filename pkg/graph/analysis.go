package graph

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/ritzau/wayfinder/pkg/model"
)

// Index maps node ids to the int64 ids of a gonum view.
type Index struct {
	ids    map[model.NodeID]int64
	nodes  []model.NodeID
	nextID int64
}

func newIndex() *Index {
	return &Index{ids: make(map[model.NodeID]int64)}
}

func (ix *Index) add(id model.NodeID) int64 {
	if n, ok := ix.ids[id]; ok {
		return n
	}
	n := ix.nextID
	ix.ids[id] = n
	ix.nodes = append(ix.nodes, id)
	ix.nextID++
	return n
}

// ID returns the gonum id of a node.
func (ix *Index) ID(id model.NodeID) (int64, bool) {
	n, ok := ix.ids[id]
	return n, ok
}

// Node returns the node behind a gonum id.
func (ix *Index) Node(n int64) model.NodeID {
	return ix.nodes[n]
}

// Weighted returns a gonum view of the graph. Parallel edges collapse to the
// lightest one and self loops are dropped, which keeps shortest distances
// unchanged.
func (g *Graph) Weighted() (*simple.WeightedUndirectedGraph, *Index) {
	wg := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	ix := newIndex()

	for _, id := range g.Nodes() {
		wg.AddNode(simple.Node(ix.add(id)))
	}
	for _, id := range g.Nodes() {
		from := ix.ids[id]
		for _, nb := range g.adj[id] {
			if nb.ID == id {
				continue
			}
			to := ix.ids[nb.ID]
			if w, ok := wg.Weight(from, to); ok && w <= nb.Weight {
				continue
			}
			wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(from), simple.Node(to), nb.Weight))
		}
	}
	return wg, ix
}

// Components returns the connected components, largest first. Nodes inside
// a component are in order and equal sized components are ordered by their
// first node.
func (g *Graph) Components() [][]model.NodeID {
	wg, ix := g.Weighted()

	var comps [][]model.NodeID
	for _, cc := range topo.ConnectedComponents(wg) {
		ids := make([]model.NodeID, len(cc))
		for i, n := range cc {
			ids[i] = ix.Node(n.ID())
		}
		model.SortNodeIDs(ids)
		comps = append(comps, ids)
	}

	slices.SortFunc(comps, func(a, b []model.NodeID) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return a[0].Compare(b[0])
	})
	return comps
}

// Islands returns every component except the largest: map regions that
// cannot be reached from the main body of the building.
func (g *Graph) Islands() [][]model.NodeID {
	comps := g.Components()
	if len(comps) <= 1 {
		return nil
	}
	return comps[1:]
}
