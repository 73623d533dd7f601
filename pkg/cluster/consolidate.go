package cluster

import (
	"cmp"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Options tunes trace consolidation.
type Options struct {
	Threshold  float64   // tau: snap and clustering radius
	Stride     int       // keep every Stride-th raw sample
	MinSpacing float64   // drop samples closer than this to the previous kept one
	Exact      float64   // below this distance a centroid is the existing point
	Radii      []float64 // escalating search radii for endpoint connections
	MaxLinks   int       // connections per endpoint
}

// DefaultOptions returns the map editor's settings.
func DefaultOptions() Options {
	return Options{
		Threshold:  40,
		Stride:     50,
		MinSpacing: 30,
		Exact:      5,
		Radii:      []float64{60, 100, 150, 200},
		MaxLinks:   3,
	}
}

// Endpoint names which end of a new path a connection attempt was for.
type Endpoint string

const (
	EndpointStart Endpoint = "start"
	EndpointEnd   Endpoint = "end"
)

// Unresolved records an endpoint that found no existing point within the
// largest search radius.
type Unresolved struct {
	Endpoint Endpoint
	Point    Point
	Radius   float64
}

// Consolidation is the plan produced for one trace. Points are new points
// with ids starting at the nextID passed to Consolidate. Links holds the
// sequential links between new points followed by endpoint connections.
type Consolidation struct {
	Points     []Point
	Links      []Link
	Reused     []int
	Unresolved []Unresolved

	Raw     int
	Sampled int
	Thinned int
}

// Empty reports whether the plan adds nothing to the map.
func (c Consolidation) Empty() bool {
	return len(c.Points) == 0
}

// Downsample keeps every stride-th sample plus the final one.
func Downsample(trace []orb.Point, stride int) []orb.Point {
	if stride < 1 {
		stride = 1
	}
	var out []orb.Point
	for i := 0; i < len(trace); i += stride {
		out = append(out, trace[i])
	}
	if n := len(trace); n > 0 && (n-1)%stride != 0 {
		out = append(out, trace[n-1])
	}
	return out
}

// Thin drops points closer than spacing to the previously kept point.
func Thin(pts []orb.Point, spacing float64) []orb.Point {
	var out []orb.Point
	for _, p := range pts {
		if len(out) > 0 && planar.Distance(out[len(out)-1], p) < spacing {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Consolidate turns a raw trace into new points and links for a floor whose
// current points are existing. Existing placeholders at (0,0) are ignored.
func Consolidate(trace []orb.Point, existing []Point, nextID int, opts Options) Consolidation {
	candidates := make([]Point, 0, len(existing))
	for _, p := range existing {
		if !IsPlaceholder(p.Pos) {
			candidates = append(candidates, p)
		}
	}

	res := Consolidation{Raw: len(trace)}
	sampled := Downsample(trace, opts.Stride)
	res.Sampled = len(sampled)
	thinned := Thin(sampled, opts.MinSpacing)
	res.Thinned = len(thinned)

	reused := make(map[int]bool)
	reuse := func(id int) {
		if !reused[id] {
			reused[id] = true
			res.Reused = append(res.Reused, id)
		}
	}

	var fresh []orb.Point
	for _, p := range thinned {
		if hit, ok := nearest(candidates, p, opts.Threshold); ok {
			reuse(hit.ID)
			continue
		}
		fresh = append(fresh, p)
	}

	for _, c := range Centroids(fresh, opts.Threshold) {
		if hit, ok := nearest(candidates, c, opts.Exact); ok && planar.Distance(hit.Pos, c) < opts.Exact {
			reuse(hit.ID)
			continue
		}
		res.Points = append(res.Points, Point{ID: nextID, Pos: RoundPoint(c)})
		nextID++
	}

	for i := 1; i < len(res.Points); i++ {
		a, b := res.Points[i-1], res.Points[i]
		res.Links = append(res.Links, Link{
			From:     a.ID,
			To:       b.ID,
			Distance: Round2(planar.Distance(a.Pos, b.Pos)),
		})
	}

	if len(res.Points) == 0 || len(candidates) == 0 {
		return res
	}

	res.connect(res.Points[0], EndpointStart, candidates, opts)
	if last := res.Points[len(res.Points)-1]; last.ID != res.Points[0].ID {
		res.connect(last, EndpointEnd, candidates, opts)
	}

	return res
}

// connect links p to up to MaxLinks nearest candidates found at the first
// radius that yields any.
func (c *Consolidation) connect(p Point, end Endpoint, candidates []Point, opts Options) {
	type hit struct {
		pt   Point
		dist float64
	}

	for _, r := range opts.Radii {
		var hits []hit
		for _, q := range candidates {
			if d := planar.Distance(p.Pos, q.Pos); d <= r {
				hits = append(hits, hit{q, d})
			}
		}
		if len(hits) == 0 {
			continue
		}

		slices.SortStableFunc(hits, func(a, b hit) int { return cmp.Compare(a.dist, b.dist) })
		for _, h := range hits[:min(opts.MaxLinks, len(hits))] {
			if c.linked(p.ID, h.pt.ID) {
				continue
			}
			c.Links = append(c.Links, Link{From: p.ID, To: h.pt.ID, Distance: Round2(h.dist)})
		}
		return
	}

	var largest float64
	if n := len(opts.Radii); n > 0 {
		largest = opts.Radii[n-1]
	}
	c.Unresolved = append(c.Unresolved, Unresolved{Endpoint: end, Point: p, Radius: largest})
}

func (c *Consolidation) linked(a, b int) bool {
	for _, l := range c.Links {
		if (l.From == a && l.To == b) || (l.From == b && l.To == a) {
			return true
		}
	}
	return false
}

// nearest returns the closest candidate within radius; ties keep the first.
func nearest(candidates []Point, p orb.Point, radius float64) (Point, bool) {
	var best Point
	bestDist := radius
	found := false
	for _, q := range candidates {
		d := planar.Distance(p, q.Pos)
		if d <= radius && (!found || d < bestDist) {
			best, bestDist, found = q, d, true
		}
	}
	return best, found
}
