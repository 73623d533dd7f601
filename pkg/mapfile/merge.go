package mapfile

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/ritzau/wayfinder/pkg/cluster"
)

// WalkedPathColor marks paths grown from walked traces.
const WalkedPathColor = "blue"

// ApplyConsolidation persists a consolidation plan on the floor: new points
// become one new path and every planned link becomes a connection. A plan
// without new points changes nothing.
func (f *Floor) ApplyConsolidation(c cluster.Consolidation) {
	if c.Empty() {
		return
	}
	path := Path{ID: f.maxPathID() + 1, Color: WalkedPathColor}
	for _, p := range c.Points {
		path.Points = append(path.Points, Point{ID: p.ID, X: p.Pos[0], Y: p.Pos[1]})
	}
	f.Paths = append(f.Paths, path)
	for _, l := range c.Links {
		f.Connections = append(f.Connections, Connection{From: l.From, To: l.To, Distance: l.Distance})
	}
}

// Consolidate runs trace consolidation against the floor's current points
// and applies the result.
func (f *Floor) Consolidate(trace []orb.Point, opts cluster.Options) cluster.Consolidation {
	c := cluster.Consolidate(trace, f.Existing(), f.MaxPointID()+1, opts)
	f.ApplyConsolidation(c)
	return c
}

// MergeCorridors collapses parallel paths on one floor. Points within tau of
// a seed point merge into it, the floor is rebuilt with one path per
// surviving group and labels and transitions follow their points to the new
// ids. When two labelled points merge, the label of the one listed first in
// the file wins.
func (b *Building) MergeCorridors(floor string, tau float64) (cluster.Merge, error) {
	f, ok := b.Floors[floor]
	if !ok {
		return cluster.Merge{}, fmt.Errorf("floor %q: %w", floor, ErrUnknownNode)
	}

	links := make([]cluster.Link, len(f.Connections))
	for i, c := range f.Connections {
		links[i] = cluster.Link{From: c.From, To: c.To, Distance: c.Distance}
	}
	before := f.Existing()
	m := cluster.MergeCorridors(before, links, tau)

	colors := make(map[int]string)
	for _, p := range f.Paths {
		colors[p.ID] = p.Color
	}
	var paths []Path
	index := make(map[int]int)
	for _, p := range m.Points {
		i, ok := index[p.Group]
		if !ok {
			i = len(paths)
			index[p.Group] = i
			paths = append(paths, Path{ID: p.Group, Color: colors[p.Group]})
		}
		paths[i].Points = append(paths[i].Points, Point{ID: p.ID, X: p.Pos[0], Y: p.Pos[1]})
	}
	f.Paths = paths

	f.Connections = f.Connections[:0]
	for _, l := range m.Links {
		f.Connections = append(f.Connections, Connection{From: l.From, To: l.To, Distance: l.Distance})
	}

	labels := make(map[string]string, len(f.PointLabels))
	for _, p := range before {
		label, ok := f.PointLabels[strconv.Itoa(p.ID)]
		if !ok {
			continue
		}
		key := strconv.Itoa(m.Remap[p.ID])
		if _, taken := labels[key]; !taken {
			labels[key] = label
		}
	}
	f.PointLabels = labels

	remap := func(fl, pt string) string {
		if fl != floor {
			return pt
		}
		id, err := strconv.Atoi(pt)
		if err != nil {
			return pt
		}
		if nid, ok := m.Remap[id]; ok {
			return strconv.Itoa(nid)
		}
		return pt
	}
	for i := range b.Transitions {
		t := &b.Transitions[i]
		t.FromPoint = remap(t.FromFloor, t.FromPoint)
		t.ToPoint = remap(t.ToFloor, t.ToPoint)
	}

	return m, nil
}
