// Package model holds the value types shared by every layer of the indoor
// navigation stack: node identifiers, waypoints, transitions and routes.
package model

import (
	"math"

	"github.com/paulmach/orb"
)

// TransitionKind identifies how two floors are connected.
type TransitionKind string

const (
	TransitionStairs   TransitionKind = "stairs"
	TransitionElevator TransitionKind = "elevator"
)

// Valid reports whether k is one of the known transition kinds.
func (k TransitionKind) Valid() bool {
	return k == TransitionStairs || k == TransitionElevator
}

// Waypoint is a located point on one floor.
type Waypoint struct {
	ID    NodeID    `json:"id"`
	Pos   orb.Point `json:"pos"`
	Label string    `json:"label,omitempty"`
}

// Edge is an undirected weighted connection between two nodes.
type Edge struct {
	A      NodeID  `json:"a"`
	B      NodeID  `json:"b"`
	Weight float64 `json:"weight"`
}

// FloorTransition links a node on one floor with a node on another.
type FloorTransition struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Kind   TransitionKind `json:"type"`
	From   NodeID         `json:"from"`
	To     NodeID         `json:"to"`
	Weight float64        `json:"weight"`
}

// Edge materializes the transition as a plain graph edge.
func (t FloorTransition) Edge() Edge {
	return Edge{A: t.From, B: t.To, Weight: t.Weight}
}

// Route is an ordered node sequence with its total distance. A route with a
// nil Path means no path exists; its Distance is +Inf.
type Route struct {
	Path     []NodeID `json:"path"`
	Distance float64  `json:"distance"`
}

// NoRoute is the explicit "no path" result.
func NoRoute() Route {
	return Route{Distance: math.Inf(1)}
}

// Found reports whether the route holds a path.
func (r Route) Found() bool {
	return len(r.Path) > 0
}

// Steps is the number of hops along the route.
func (r Route) Steps() int {
	if len(r.Path) == 0 {
		return 0
	}
	return len(r.Path) - 1
}

// Start returns the first node of the route.
func (r Route) Start() NodeID {
	if len(r.Path) == 0 {
		return NodeID{}
	}
	return r.Path[0]
}

// End returns the last node of the route.
func (r Route) End() NodeID {
	if len(r.Path) == 0 {
		return NodeID{}
	}
	return r.Path[len(r.Path)-1]
}

// CrossesFloor reports whether the hop from Path[i] to Path[i+1] changes floor.
func (r Route) CrossesFloor(i int) bool {
	if i < 0 || i+1 >= len(r.Path) {
		return false
	}
	return r.Path[i].Floor != r.Path[i+1].Floor
}

// Floors lists the floors visited by the route in order, without repeats of
// consecutive entries.
func (r Route) Floors() []string {
	var floors []string
	for _, id := range r.Path {
		if len(floors) == 0 || floors[len(floors)-1] != id.Floor {
			floors = append(floors, id.Floor)
		}
	}
	return floors
}
