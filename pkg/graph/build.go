package graph

import (
	"github.com/ritzau/wayfinder/pkg/logging"
	"github.com/ritzau/wayfinder/pkg/mapfile"
	"github.com/ritzau/wayfinder/pkg/model"
)

// FromBuilding builds the routing graph of a building. Placeholder points
// and connections to unknown points are skipped, and so are transitions
// naming a node that does not exist; those are logged as warnings.
func FromBuilding(b *mapfile.Building) *Graph {
	g := New()

	for _, floor := range b.FloorIDs() {
		f := b.Floors[floor]
		for _, w := range b.Waypoints(floor) {
			g.AddNode(w)
		}

		skipped := 0
		for _, c := range f.Connections {
			from, to := model.ID(floor, c.From), model.ID(floor, c.To)
			if _, ok := g.Node(from); !ok {
				skipped++
				continue
			}
			if _, ok := g.Node(to); !ok {
				skipped++
				continue
			}
			g.AddEdge(from, to, c.Distance)
		}
		if skipped > 0 {
			logging.Debug("skipped connections to missing points", "floor", floor, "count", skipped)
		}
	}

	for _, t := range b.Transitions {
		tr, err := t.Resolve()
		if err != nil {
			logging.Warn("skipping transition", "transition", t.ID, "error", err)
			continue
		}
		_, fromOK := g.Node(tr.From)
		_, toOK := g.Node(tr.To)
		if !fromOK || !toOK {
			logging.Warn("skipping transition with unknown node",
				"transition", t.ID, "from", tr.From.String(), "to", tr.To.String())
			continue
		}
		e := tr.Edge()
		g.AddEdge(e.A, e.B, e.Weight)
	}

	logging.Debug("graph built", "nodes", g.Len(), "edges", g.EdgeCount())
	return g
}
