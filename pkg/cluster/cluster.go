// Package cluster implements the geometric point-merging used to simplify
// walked traces and fold them back into a persisted floor.
//
// All clustering here is seed-neighborhood clustering: points are visited in
// input order and each unused point gathers every other unused point within
// the threshold of itself. Gathering is a single hop from the seed, never a
// transitive expansion, so the result depends on input order. Callers rely on
// the resulting point counts; this is not connected-component merging.
package cluster

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Point is a floor-local point carrying its persisted id. Group is the id of
// the path the point was drawn in.
type Point struct {
	ID    int
	Pos   orb.Point
	Group int
}

// Link is an undirected connection between two point ids.
type Link struct {
	From     int
	To       int
	Distance float64
}

// Cluster is one output of Seed: the input indices gathered around a seed
// and their centroid. Members[0] is always the seed.
type Cluster struct {
	Members  []int
	Centroid orb.Point
}

// Seed runs seed-neighborhood clustering over pts with threshold tau.
func Seed(pts []orb.Point, tau float64) []Cluster {
	used := make([]bool, len(pts))
	var clusters []Cluster

	for i, seed := range pts {
		if used[i] {
			continue
		}
		used[i] = true
		members := []int{i}

		for j, other := range pts {
			if used[j] {
				continue
			}
			if planar.Distance(seed, other) <= tau {
				used[j] = true
				members = append(members, j)
			}
		}

		clusters = append(clusters, Cluster{
			Members:  members,
			Centroid: centroid(pts, members),
		})
	}

	return clusters
}

// Centroids is Seed reduced to the output points.
func Centroids(pts []orb.Point, tau float64) []orb.Point {
	clusters := Seed(pts, tau)
	out := make([]orb.Point, len(clusters))
	for i, c := range clusters {
		out[i] = c.Centroid
	}
	return out
}

func centroid(pts []orb.Point, members []int) orb.Point {
	if len(members) == 1 {
		return pts[members[0]]
	}
	mp := make(orb.MultiPoint, len(members))
	for i, m := range members {
		mp[i] = pts[m]
	}
	c, _ := planar.CentroidArea(mp)
	return c
}

// IsPlaceholder reports whether p is the (0,0) placeholder the map editor
// writes for points that were never positioned.
func IsPlaceholder(p orb.Point) bool {
	return p[0] == 0 && p[1] == 0
}

// Round2 rounds to two decimals, the precision of persisted coordinates and
// distances.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundPoint applies Round2 to both coordinates.
func RoundPoint(p orb.Point) orb.Point {
	return orb.Point{Round2(p[0]), Round2(p[1])}
}
