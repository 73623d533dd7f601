package navigation

import (
	"github.com/paulmach/orb"

	"github.com/ritzau/wayfinder/pkg/graph"
	"github.com/ritzau/wayfinder/pkg/mapfile"
	"github.com/ritzau/wayfinder/pkg/model"
)

// FloorSummary counts what one floor holds.
type FloorSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Paths       int    `json:"paths"`
	Points      int    `json:"points"`
	Connections int    `json:"connections"`
	Labels      int    `json:"labels"`
	// Extent bounds the floor's real points; empty floors have none.
	Extent *orb.Bound `json:"extent,omitempty"`
}

// Summary describes a building and the connectivity of its graph.
type Summary struct {
	Name        string           `json:"name"`
	Floors      []FloorSummary   `json:"floors"`
	Transitions int              `json:"transitions"`
	Nodes       int              `json:"nodes"`
	Edges       int              `json:"edges"`
	Components  int              `json:"components"`
	Islands     [][]model.NodeID `json:"islands,omitempty"`
}

// Summarize counts floors, points and labels and reports the parts of the
// graph that are cut off from its largest component.
func Summarize(b *mapfile.Building, g *graph.Graph) Summary {
	s := Summary{
		Name:        b.Info.Name,
		Transitions: len(b.Transitions),
		Nodes:       g.Len(),
		Edges:       g.EdgeCount(),
	}
	for _, id := range b.FloorIDs() {
		f := b.Floors[id]
		wps := b.Waypoints(id)
		fs := FloorSummary{
			ID:          id,
			Name:        b.FloorName(id),
			Paths:       len(f.Paths),
			Points:      len(wps),
			Connections: len(f.Connections),
			Labels:      len(f.PointLabels),
		}
		if len(wps) > 0 {
			bound := wps[0].Pos.Bound()
			for _, w := range wps[1:] {
				bound = bound.Extend(w.Pos)
			}
			fs.Extent = &bound
		}
		s.Floors = append(s.Floors, fs)
	}
	comps := g.Components()
	s.Components = len(comps)
	if len(comps) > 1 {
		s.Islands = comps[1:]
	}
	return s
}
