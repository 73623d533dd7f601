package mapfile

import (
	"math"
	"slices"
	"strconv"

	"github.com/paulmach/orb/planar"

	"github.com/ritzau/wayfinder/pkg/cluster"
	"github.com/ritzau/wayfinder/pkg/model"
)

// RemoveNode deletes a point from its floor together with every connection
// and transition touching it and its label. Paths left empty are dropped.
func (b *Building) RemoveNode(id model.NodeID) error {
	f, ok := b.Floors[id.Floor]
	if !ok {
		return ErrUnknownNode
	}
	if _, ok := f.Point(id.Local); !ok {
		return ErrUnknownNode
	}

	paths := f.Paths[:0]
	for _, p := range f.Paths {
		p.Points = slices.DeleteFunc(p.Points, func(pt Point) bool { return pt.ID == id.Local })
		if len(p.Points) > 0 {
			paths = append(paths, p)
		}
	}
	f.Paths = paths

	f.Connections = slices.DeleteFunc(f.Connections, func(c Connection) bool {
		return c.From == id.Local || c.To == id.Local
	})
	delete(f.PointLabels, strconv.Itoa(id.Local))

	local := strconv.Itoa(id.Local)
	b.Transitions = slices.DeleteFunc(b.Transitions, func(t Transition) bool {
		return (t.FromFloor == id.Floor && t.FromPoint == local) ||
			(t.ToFloor == id.Floor && t.ToPoint == local)
	})
	return nil
}

// SetLabel names a node. An empty label clears it.
func (b *Building) SetLabel(id model.NodeID, label string) error {
	f, ok := b.Floors[id.Floor]
	if !ok {
		return ErrUnknownNode
	}
	if _, ok := f.Point(id.Local); !ok {
		return ErrUnknownNode
	}
	key := strconv.Itoa(id.Local)
	if label == "" {
		delete(f.PointLabels, key)
		return nil
	}
	f.PointLabels[key] = label
	return nil
}

// AlignToGrid snaps every point of every floor to the nearest multiple of
// grid and recomputes connection distances. It returns the number of points
// that moved.
func (b *Building) AlignToGrid(grid float64) int {
	if grid <= 0 {
		return 0
	}
	moved := 0
	for _, f := range b.Floors {
		for i := range f.Paths {
			for j := range f.Paths[i].Points {
				pt := &f.Paths[i].Points[j]
				x := math.Round(pt.X/grid) * grid
				y := math.Round(pt.Y/grid) * grid
				if x != pt.X || y != pt.Y {
					pt.X, pt.Y = x, y
					moved++
				}
			}
		}
		f.RecalculateDistances()
	}
	return moved
}

// RecalculateDistances sets every connection's distance from the current
// point positions. Connections naming unknown points are left alone.
func (f *Floor) RecalculateDistances() {
	pos := make(map[int]Point)
	for _, p := range f.Points() {
		pos[p.ID] = p
	}
	for i, c := range f.Connections {
		a, okA := pos[c.From]
		z, okZ := pos[c.To]
		if !okA || !okZ {
			continue
		}
		f.Connections[i].Distance = cluster.Round2(planar.Distance(a.Pos(), z.Pos()))
	}
}
