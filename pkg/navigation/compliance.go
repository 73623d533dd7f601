package navigation

import (
	"slices"

	"github.com/ritzau/wayfinder/pkg/model"
)

// Compliance is the verdict on how closely a finished walk followed its
// route.
type Compliance struct {
	Compliant  bool           `json:"compliant"`
	AllVisited bool           `json:"all_visited"`
	InOrder    bool           `json:"in_order"`
	Missing    []model.NodeID `json:"missing,omitempty"`
	// AutoMarked is the floor-transition node credited without being
	// reached, if any.
	AutoMarked *model.NodeID `json:"auto_marked,omitempty"`
}

// EvaluateCompliance checks that every route node was visited and that
// visits happened in route order. A single missed node that is the last one
// before a floor change is credited as visited, inserted just before the
// first later route node in the visit list, and the walk is judged again.
// The possibly amended visit list is returned.
func EvaluateCompliance(route, visited []model.NodeID) (Compliance, []model.NodeID) {
	c := judge(route, visited)
	if c.Compliant || len(c.Missing) != 1 {
		return c, visited
	}

	missing := c.Missing[0]
	i := slices.Index(route, missing)
	if i < 0 || i+1 >= len(route) || route[i+1].Floor == missing.Floor {
		return c, visited
	}

	amended := creditVisit(route, visited, i)
	again := judge(route, amended)
	again.AutoMarked = &missing
	return again, amended
}

func judge(route, visited []model.NodeID) Compliance {
	pos := make(map[model.NodeID]int, len(visited))
	for i, id := range visited {
		if _, ok := pos[id]; !ok {
			pos[id] = i
		}
	}

	c := Compliance{AllVisited: true, InOrder: true}
	last := -1
	for _, id := range route {
		at, ok := pos[id]
		if !ok {
			c.AllVisited = false
			c.InOrder = false
			c.Missing = append(c.Missing, id)
			continue
		}
		if at < last {
			c.InOrder = false
		}
		last = at
	}
	c.Compliant = c.AllVisited && c.InOrder
	return c
}

// creditVisit inserts route[i] into visited ahead of the first visited node
// that comes later in the route.
func creditVisit(route, visited []model.NodeID, i int) []model.NodeID {
	later := make(map[model.NodeID]bool)
	for _, id := range route[i+1:] {
		later[id] = true
	}
	at := len(visited)
	for j, id := range visited {
		if later[id] {
			at = j
			break
		}
	}
	return slices.Insert(slices.Clone(visited), at, route[i])
}
