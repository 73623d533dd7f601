package cluster

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Merge is the result of MergeCorridors. Remap maps every input point id to
// the id of the cluster that absorbed it.
type Merge struct {
	Points []Point
	Links  []Link
	Remap  map[int]int
}

// MergeCorridors collapses parallel traces of the same corridor. Points are
// clustered with tau and renumbered from 1 in cluster order; each cluster
// keeps the group of its seed. Links are remapped onto cluster ids, self
// loops are dropped and repeated links between the same pair are kept once
// with the distance recomputed from the new centroids.
func MergeCorridors(points []Point, links []Link, tau float64) Merge {
	pts := make([]orb.Point, len(points))
	for i, p := range points {
		pts[i] = p.Pos
	}

	remap := make(map[int]int, len(points))
	merged := make([]Point, 0, len(points))
	byID := make(map[int]orb.Point, len(points))

	for n, c := range Seed(pts, tau) {
		id := n + 1
		pos := RoundPoint(c.Centroid)
		for _, m := range c.Members {
			remap[points[m].ID] = id
		}
		merged = append(merged, Point{ID: id, Pos: pos, Group: points[c.Members[0]].Group})
		byID[id] = pos
	}

	type pair struct{ a, b int }
	seen := make(map[pair]bool)
	var out []Link

	for _, l := range links {
		a, okA := remap[l.From]
		b, okB := remap[l.To]
		if !okA || !okB || a == b {
			continue
		}
		key := pair{min(a, b), max(a, b)}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Link{
			From:     a,
			To:       b,
			Distance: Round2(planar.Distance(byID[a], byID[b])),
		})
	}

	return Merge{Points: merged, Links: out, Remap: remap}
}
