package graph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/ritzau/wayfinder/pkg/logging"
	"github.com/ritzau/wayfinder/pkg/mapfile"
	"github.com/ritzau/wayfinder/pkg/model"
)

var (
	a = model.ID("0", 1)
	b = model.ID("0", 2)
	c = model.ID("1", 1)
	d = model.ID("1", 2)
)

func TestAddEdgeKeepsDuplicates(t *testing.T) {
	g := New()
	g.AddEdge(a, b, 7)
	g.AddEdge(b, a, 7)

	for _, id := range []model.NodeID{a, b} {
		nbrs := g.Neighbors(id)
		if len(nbrs) != 2 {
			t.Fatalf("%s has %d neighbours, want 2", id, len(nbrs))
		}
		for _, nb := range nbrs {
			if nb.Weight != 7 {
				t.Errorf("%s neighbour weight = %v, want 7", id, nb.Weight)
			}
		}
	}
	if got := g.EdgeCount(); got != 2 {
		t.Errorf("EdgeCount() = %d, want 2", got)
	}
}

func TestAddEdgeCreatesNodes(t *testing.T) {
	g := New()
	if g.HasNode(a) {
		t.Fatal("empty graph has a node")
	}
	g.AddEdge(a, c, 30)

	if !g.HasNode(a) || !g.HasNode(c) {
		t.Fatal("AddEdge did not create adjacency entries")
	}
	if got := g.Nodes(); len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("Nodes() = %v", got)
	}
}

func TestEdgeWeightPicksLightest(t *testing.T) {
	g := New()
	g.AddEdge(a, b, 12)
	g.AddEdge(a, b, 9)

	w, ok := g.EdgeWeight(b, a)
	if !ok || w != 9 {
		t.Errorf("EdgeWeight = %v, %v; want 9, true", w, ok)
	}
	if _, ok := g.EdgeWeight(a, c); ok {
		t.Error("EdgeWeight found an edge that does not exist")
	}

	g.AddEdge(b, c, 1)
	total, ok := g.PathWeight([]model.NodeID{a, b, c})
	if !ok || total != 10 {
		t.Errorf("PathWeight = %v, %v; want 10, true", total, ok)
	}
	if _, ok := g.PathWeight([]model.NodeID{a, c}); ok {
		t.Error("PathWeight accepted a missing hop")
	}
}

func TestRemoveNode(t *testing.T) {
	g := New()
	g.AddNode(model.Waypoint{ID: b, Pos: orb.Point{1, 1}})
	g.AddEdge(a, b, 1)
	g.AddEdge(b, c, 1)
	g.AddEdge(a, c, 5)

	g.RemoveNode(b)

	if g.HasNode(b) {
		t.Fatal("node still present")
	}
	if _, ok := g.Node(b); ok {
		t.Error("waypoint still present")
	}
	for _, nb := range g.Neighbors(a) {
		if nb.ID == b {
			t.Error("edge to removed node survived")
		}
	}
	if len(g.Neighbors(c)) != 1 {
		t.Errorf("c has %d neighbours, want 1", len(g.Neighbors(c)))
	}
}

func TestComponents(t *testing.T) {
	g := New()
	g.AddEdge(a, b, 1)
	g.AddEdge(b, model.ID("0", 3), 1)
	g.AddEdge(c, d, 1)
	g.AddNode(model.Waypoint{ID: model.ID("2", 1), Pos: orb.Point{5, 5}})

	comps := g.Components()
	if len(comps) != 3 {
		t.Fatalf("got %d components, want 3: %v", len(comps), comps)
	}
	if len(comps[0]) != 3 || comps[0][0] != a {
		t.Errorf("largest component = %v", comps[0])
	}
	if comps[1][0] != c {
		t.Errorf("second component = %v", comps[1])
	}

	islands := g.Islands()
	if len(islands) != 2 {
		t.Errorf("got %d islands, want 2", len(islands))
	}
}

func TestWeightedCollapsesParallelEdges(t *testing.T) {
	g := New()
	g.AddEdge(a, b, 12)
	g.AddEdge(a, b, 4)
	g.AddEdge(a, a, 1)

	wg, ix := g.Weighted()
	ia, _ := ix.ID(a)
	ib, _ := ix.ID(b)
	w, ok := wg.Weight(ia, ib)
	if !ok || w != 4 {
		t.Errorf("weight = %v, %v; want 4, true", w, ok)
	}
	if ix.Node(ib) != b {
		t.Errorf("Node(%d) = %v", ib, ix.Node(ib))
	}
}

const building = `{
  "building_info": {"name": "Test", "floors": ["0", "1"], "floor_names": {}},
  "floors": {
    "0": {
      "paths": [{"id": 1, "points": [{"id": 1, "x": 10, "y": 10}, {"id": 2, "x": 20, "y": 10}, {"id": 3, "x": 0, "y": 0}]}],
      "connections": [{"from": 1, "to": 2, "distance": 10}, {"from": 2, "to": 3, "distance": 4}, {"from": 2, "to": 9, "distance": 1}]
    },
    "1": {
      "paths": [{"id": 1, "points": [{"id": 1, "x": 20, "y": 10}, {"id": 2, "x": 25, "y": 10}]}],
      "connections": [{"from": 1, "to": 2, "distance": 5}]
    }
  },
  "floor_transitions": [
    {"id": "s", "type": "stairs", "name": "Stairs", "from_floor": "0", "to_floor": "1", "from_point": "2", "to_point": "1", "travel_time": 30},
    {"id": "ghost", "type": "elevator", "name": "Lift", "from_floor": "0", "to_floor": "1", "from_point": "2", "to_point": "42", "travel_time": 15}
  ]
}`

func TestFromBuilding(t *testing.T) {
	var logs bytes.Buffer
	logging.SetOutput(&logs)
	t.Cleanup(func() { logging.SetOutput(nil) })

	bld, err := mapfile.Decode(strings.NewReader(building))
	if err != nil {
		t.Fatal(err)
	}
	g := FromBuilding(bld)

	if g.HasNode(model.ID("0", 3)) {
		t.Error("placeholder point became a node")
	}
	if g.Len() != 4 {
		t.Errorf("Len() = %d, want 4", g.Len())
	}
	if w, ok := g.EdgeWeight(model.ID("0", 2), model.ID("1", 1)); !ok || w != 30 {
		t.Errorf("transition edge = %v, %v", w, ok)
	}
	if got := len(g.Neighbors(model.ID("0", 2))); got != 2 {
		t.Errorf("0_2 has %d neighbours, want 2 (0_1 and the stairs)", got)
	}
	if !strings.Contains(logs.String(), "transition=ghost") {
		t.Errorf("unknown transition target not reported: %q", logs.String())
	}
	if w, ok := g.Node(model.ID("1", 2)); !ok || w.Pos != (orb.Point{25, 10}) {
		t.Errorf("Node(1_2) = %v, %v", w, ok)
	}
}
