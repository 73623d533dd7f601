package route

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ritzau/wayfinder/pkg/cluster"
	"github.com/ritzau/wayfinder/pkg/graph"
	"github.com/ritzau/wayfinder/pkg/model"
)

// ErrEmptyRoute is returned when an imported route holds no path.
var ErrEmptyRoute = errors.New("route has no path")

// Coords are rounded map coordinates.
type Coords struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Summary is the "shortest_path" block of a route document.
type Summary struct {
	StartNode        model.NodeID   `json:"start_node"`
	EndNode          model.NodeID   `json:"end_node"`
	Path             []model.NodeID `json:"path"`
	TotalDistance    float64        `json:"total_distance"`
	NumberOfSteps    int            `json:"number_of_steps"`
	FloorTransitions []string       `json:"floor_transitions"`
}

// Segment describes one hop of a route.
type Segment struct {
	From              model.NodeID `json:"from"`
	To                model.NodeID `json:"to"`
	Distance          float64      `json:"distance"`
	FromFloor         string       `json:"from_floor"`
	ToFloor           string       `json:"to_floor"`
	IsFloorTransition bool         `json:"is_floor_transition"`
	TransitionType    string       `json:"transition_type,omitempty"`
	TransitionName    string       `json:"transition_name,omitempty"`
	FromCoords        *Coords      `json:"from_coords,omitempty"`
	ToCoords          *Coords      `json:"to_coords,omitempty"`
}

// Itinerary is the exported route document shared with the navigator.
type Itinerary struct {
	ShortestPath     Summary                 `json:"shortest_path"`
	PathSegments     []Segment               `json:"path_segments"`
	NodesCoordinates map[model.NodeID]Coords `json:"nodes_coordinates"`
}

// Descriptor renders a floor change as "from->to".
func Descriptor(from, to model.NodeID) string {
	return from.String() + "->" + to.String()
}

// NewItinerary describes a found route. Floor changes are matched against
// transitions in either direction to name their type; unmatched ones
// default to stairs.
func NewItinerary(g *graph.Graph, r model.Route, transitions []model.FloorTransition) Itinerary {
	it := Itinerary{
		ShortestPath: Summary{
			StartNode:        r.Start(),
			EndNode:          r.End(),
			Path:             r.Path,
			TotalDistance:    cluster.Round2(r.Distance),
			NumberOfSteps:    r.Steps(),
			FloorTransitions: []string{},
		},
		PathSegments:     []Segment{},
		NodesCoordinates: make(map[model.NodeID]Coords),
	}

	coords := func(id model.NodeID) *Coords {
		w, ok := g.Node(id)
		if !ok {
			return nil
		}
		p := cluster.RoundPoint(w.Pos)
		return &Coords{X: p[0], Y: p[1]}
	}

	for _, id := range r.Path {
		if c := coords(id); c != nil {
			it.NodesCoordinates[id] = *c
		}
	}

	for i := 0; i+1 < len(r.Path); i++ {
		from, to := r.Path[i], r.Path[i+1]
		w, _ := g.EdgeWeight(from, to)
		seg := Segment{
			From:       from,
			To:         to,
			Distance:   cluster.Round2(w),
			FromFloor:  from.Floor,
			ToFloor:    to.Floor,
			FromCoords: coords(from),
			ToCoords:   coords(to),
		}
		if r.CrossesFloor(i) {
			seg.IsFloorTransition = true
			seg.TransitionType = string(model.TransitionStairs)
			if t, ok := findTransition(transitions, from, to); ok {
				seg.TransitionType = string(t.Kind)
				seg.TransitionName = t.Name
			}
			it.ShortestPath.FloorTransitions = append(it.ShortestPath.FloorTransitions, Descriptor(from, to))
		}
		it.PathSegments = append(it.PathSegments, seg)
	}
	return it
}

func findTransition(ts []model.FloorTransition, a, b model.NodeID) (model.FloorTransition, bool) {
	for _, t := range ts {
		if (t.From == a && t.To == b) || (t.From == b && t.To == a) {
			return t, true
		}
	}
	return model.FloorTransition{}, false
}

// Route returns the node sequence and distance carried by the document.
func (it Itinerary) Route() model.Route {
	return model.Route{Path: it.ShortestPath.Path, Distance: it.ShortestPath.TotalDistance}
}

// TransitionKind returns the kind of the floor change from a to b, falling
// back to stairs.
func (it Itinerary) TransitionKind(a, b model.NodeID) model.TransitionKind {
	for _, s := range it.PathSegments {
		if s.From == a && s.To == b && s.IsFloorTransition && s.TransitionType != "" {
			return model.TransitionKind(s.TransitionType)
		}
	}
	return model.TransitionStairs
}

// Check verifies that every node of the route exists in g and every hop has
// an edge.
func (it Itinerary) Check(g *graph.Graph) error {
	path := it.ShortestPath.Path
	for _, id := range path {
		if !g.HasNode(id) {
			return fmt.Errorf("route node %s not in map", id)
		}
	}
	for i := 1; i < len(path); i++ {
		if _, ok := g.EdgeWeight(path[i-1], path[i]); !ok {
			return fmt.Errorf("route hop %s not in map", Descriptor(path[i-1], path[i]))
		}
	}
	return nil
}

// Decode reads a route document.
func Decode(r io.Reader) (Itinerary, error) {
	var it Itinerary
	if err := json.NewDecoder(r).Decode(&it); err != nil {
		return Itinerary{}, fmt.Errorf("decode route: %w", err)
	}
	if len(it.ShortestPath.Path) == 0 {
		return Itinerary{}, ErrEmptyRoute
	}
	return it, nil
}

// Load reads the route document at path.
func Load(path string) (Itinerary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Itinerary{}, err
	}
	defer f.Close()

	it, err := Decode(f)
	if err != nil {
		return Itinerary{}, fmt.Errorf("%s: %w", path, err)
	}
	return it, nil
}

// Save writes the document through a temporary file next to path.
func (it Itinerary) Save(path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(it); err != nil {
		return fmt.Errorf("encode route: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".route-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
